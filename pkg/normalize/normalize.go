// Package normalize turns raw webhook payloads of uneven shape into typed
// intents. Extraction is candidate-list based: for each canonical field a
// fixed, ordered list of paths is probed and the first usable scalar wins.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatsink/pkg/logger"
	"chatsink/pkg/models"
	"chatsink/pkg/utils"
)

// Mode selects intake semantics. Online intake tolerates junk (a payload
// that cannot be normalized is dropped and acknowledged); batch replay is
// strict about JSON but synthesizes placeholder ids for id-less messages so
// historical dumps are never silently thinned.
type Mode int

const (
	ModeOnline Mode = iota
	ModeBatch
)

func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "online"
}

// Payload parses one raw payload and returns the intents it encodes. A
// single payload can yield several intents (provider envelopes carry arrays
// of messages and statuses). An empty slice with a nil error means the
// payload was understood but carried nothing applicable.
func Payload(raw []byte, mode Mode, now time.Time) ([]models.Intent, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	// Provider envelope: unwrap each change value and normalize it as its
	// own payload.
	if pt, _ := asString(obj["payload_type"]); pt == "whatsapp_webhook" {
		return unwrapEnvelope(obj, mode, now)
	}
	return normalizeOne(obj, raw, mode, now), nil
}

func unwrapEnvelope(obj map[string]any, mode Mode, now time.Time) ([]models.Intent, error) {
	out := []models.Intent{}
	meta, ok := obj["metaData"].(map[string]any)
	if !ok {
		// some dumps nest under metaData, others inline entry at the top
		meta = obj
	}
	entries, _ := meta["entry"].([]any)
	for _, e := range entries {
		em, ok := e.(map[string]any)
		if !ok {
			continue
		}
		changes, _ := em["changes"].([]any)
		for _, c := range changes {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			value, ok := cm["value"].(map[string]any)
			if !ok {
				continue
			}
			sub, err := json.Marshal(value)
			if err != nil {
				continue
			}
			out = append(out, normalizeOne(value, sub, mode, now)...)
		}
	}
	return out, nil
}

// normalizeOne classifies a single unwrapped object and extracts intents.
// Explicit event/type markers are checked before shape heuristics so a
// message payload that happens to carry a bare `status` field is not
// misread as a status change.
func normalizeOne(obj map[string]any, raw []byte, mode Mode, now time.Time) []models.Intent {
	kind, _ := firstString(obj, []string{"event", "type", "payload_type"})
	kind = strings.ToLower(kind)

	switch kind {
	case "status", "message_status", "status_update":
		if in := buildStatus(obj); in != nil {
			return []models.Intent{*in}
		}
		return nil
	case "message", "text", "image", "video", "audio", "document", "sticker":
		return buildMessages(obj, raw, mode, now)
	}

	// statuses array (provider value objects)
	if sts, ok := obj["statuses"].([]any); ok {
		out := []models.Intent{}
		for _, s := range sts {
			sm, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if in := buildStatus(sm); in != nil {
				out = append(out, *in)
			}
		}
		// a value object can carry messages alongside statuses
		out = append(out, buildMessages(obj, raw, mode, now)...)
		return out
	}

	// bare status/state scalar with a resolvable target
	if _, ok := firstString(obj, statusValuePaths); ok {
		if _, hasBody := firstString(obj, bodyPaths); !hasBody {
			if in := buildStatus(obj); in != nil {
				return []models.Intent{*in}
			}
		}
	}

	return buildMessages(obj, raw, mode, now)
}

// buildMessages extracts message upserts from an object: either a
// `messages` array or the object itself when it looks like a message.
func buildMessages(obj map[string]any, raw []byte, mode Mode, now time.Time) []models.Intent {
	if msgs, ok := obj["messages"].([]any); ok {
		out := []models.Intent{}
		for _, m := range msgs {
			mm, ok := m.(map[string]any)
			if !ok {
				continue
			}
			sub, err := json.Marshal(mm)
			if err != nil {
				continue
			}
			// contact info lives on the envelope value, not the entry
			if _, ok := firstString(mm, waIDPaths); !ok {
				if waID, ok := firstString(obj, waIDPaths); ok {
					mm["wa_id"] = waID
				}
			}
			if in := buildMessage(mm, sub, mode, now); in != nil {
				out = append(out, *in)
			}
		}
		return out
	}
	if in := buildMessage(obj, raw, mode, now); in != nil {
		return []models.Intent{*in}
	}
	return nil
}

func buildMessage(obj map[string]any, raw []byte, mode Mode, now time.Time) *models.Intent {
	waID, ok := firstString(obj, waIDPaths)
	if !ok {
		logger.Warn("payload_missing_wa_id", "mode", mode.String())
		return nil
	}

	msgID, ok := firstString(obj, msgIDPaths)
	if !ok {
		if mode != ModeBatch {
			logger.Warn("payload_missing_msg_id", "wa_id", waID)
			return nil
		}
		// historical dumps sometimes lack ids; synthesize one so replay
		// keeps the record
		msgID = utils.GenID()
		logger.Debug("placeholder_msg_id", "msg_id", msgID, "wa_id", waID)
	}

	body, _ := firstString(obj, bodyPaths)

	status := models.StatusSent
	if sv, ok := firstString(obj, statusValuePaths); ok {
		status = models.ParseStatus(sv)
		if status == models.StatusUnknown {
			status = models.StatusSent
		}
	}

	m := models.Message{
		MsgID:      msgID,
		WaID:       waID,
		FromMe:     boolAt(obj, "from_me") || boolAt(obj, "fromMe"),
		Body:       body,
		Media:      extractMedia(obj),
		Status:     status,
		TS:         parseTimestamp(obj, now),
		RawPayload: json.RawMessage(raw),
	}
	in := models.Intent(models.UpsertIntent{Msg: m})
	return &in
}

func buildStatus(obj map[string]any) *models.Intent {
	target, ok := firstString(obj, statusTargetPaths)
	if !ok {
		logger.Warn("status_payload_missing_target")
		return nil
	}
	// a status event without a value still targets a message; the update
	// carries "unknown" rather than being thrown away
	status := models.StatusUnknown
	if sv, ok := firstString(obj, statusValuePaths); ok {
		status = models.ParseStatus(sv)
	}
	in := models.Intent(models.StatusIntent{MsgID: target, Status: status})
	return &in
}

func boolAt(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}

var mediaKeys = []string{"image", "video", "audio", "document", "sticker"}

// extractMedia keeps the first media attachment as an opaque blob. The
// engine never interprets it, only stores and returns it.
func extractMedia(obj map[string]any) json.RawMessage {
	for _, k := range mediaKeys {
		if v, ok := obj[k].(map[string]any); ok {
			if b, err := json.Marshal(v); err == nil {
				return b
			}
		}
	}
	if v, ok := obj["media"].(map[string]any); ok {
		if b, err := json.Marshal(v); err == nil {
			return b
		}
	}
	return nil
}

// parseTimestamp resolves the message timestamp to unix milliseconds.
// Providers send unix seconds (number or digit string), some sources send
// RFC3339; timestamp_ms short-circuits as already-milliseconds. Anything
// unparseable falls back to the receive time.
func parseTimestamp(obj map[string]any, now time.Time) int64 {
	if v := lookup(obj, "timestamp_ms"); v != nil {
		if s, ok := asString(v); ok {
			if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
				return ms
			}
		}
	}
	for _, p := range timestampPaths {
		v := lookup(obj, p)
		if v == nil {
			continue
		}
		s, ok := asString(v)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			// values this large are already milliseconds
			if n > 1_000_000_000_000 {
				return n
			}
			return n * 1000
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UnixMilli()
		}
	}
	return now.UnixMilli()
}
