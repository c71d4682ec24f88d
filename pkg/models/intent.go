package models

// Intent is the classified, typed result of payload normalization, ready to
// be applied by the reconciliation engine.
type Intent interface {
	intent()
}

// UpsertIntent carries the full canonical field set for a create-or-update
// of one message, keyed by Msg.MsgID.
type UpsertIntent struct {
	Msg Message
}

// StatusIntent carries a targeted status change for an existing message.
// Applying it to an unknown MsgID is a no-op, never a create.
type StatusIntent struct {
	MsgID  string
	Status Status
}

func (UpsertIntent) intent() {}
func (StatusIntent) intent() {}
