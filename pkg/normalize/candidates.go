package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate paths are tried strictly in order; the first path that resolves
// to a usable scalar wins and later paths are never consulted. Paths use
// dots for nesting and numeric segments for array indices ("contacts.0.wa_id").
var (
	msgIDPaths = []string{
		"id",
		"meta_msg_id",
		"message.id",
		"message.mid",
		"_id",
		"raw.id",
	}
	waIDPaths = []string{
		"from",
		"wa_id",
		"sender.wa_id",
		"contacts.0.wa_id",
		"to",
	}
	bodyPaths = []string{
		"text.body",
		"message.text",
		"body",
		"message.caption",
	}
	statusTargetPaths = []string{
		"meta_msg_id",
		"id",
		"messageId",
		"status.id",
		"_id",
	}
	statusValuePaths = []string{
		"status",
		"state",
	}
	timestampPaths = []string{
		"timestamp",
		"ts",
		"time",
	}
)

// lookup walks a dotted path through nested maps and arrays and returns the
// raw value at the end, or nil when any segment is missing.
func lookup(obj map[string]any, path string) any {
	var cur any = obj
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// asString coerces a scalar candidate into a string. Numbers are rendered
// without an exponent; objects, arrays, booleans and null are rejected so a
// structured value can never be mistaken for an identifier.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

// firstString returns the first candidate path that resolves to a non-empty
// scalar string.
func firstString(obj map[string]any, paths []string) (string, bool) {
	for _, p := range paths {
		if v := lookup(obj, p); v != nil {
			if s, ok := asString(v); ok {
				return s, true
			}
		}
	}
	return "", false
}
