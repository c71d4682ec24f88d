package models

import "encoding/json"

// Message is the canonical record for one provider message, independent of
// the payload shape it arrived in. MsgID is the dedup boundary: a second
// create for the same id mutates the stored record instead of duplicating it.
type Message struct {
	MsgID  string `json:"msg_id"`
	WaID   string `json:"wa_id"`
	FromMe bool   `json:"from_me"`
	Body   string `json:"body"`
	// Media is an opaque provider blob for media-bearing messages; the
	// server stores and returns it but never interprets it.
	Media  json.RawMessage `json:"media,omitempty"`
	Status Status          `json:"status"`
	// TS is the event time in unix milliseconds (provider-supplied when
	// available, else ingestion time).
	TS int64 `json:"ts"`
	// RawPayload retains the original inbound payload verbatim for
	// audit/debugging; it is never consulted at read time.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}
