package models

// ConversationSummary is the derived per-conversation view: the most recent
// message by timestamp and the message count. It is computed fresh on each
// query, never cached, so it is consistent with the store by construction.
type ConversationSummary struct {
	WaID        string  `json:"wa_id"`
	LastMessage Message `json:"last_message"`
	Count       int     `json:"count"`
}
