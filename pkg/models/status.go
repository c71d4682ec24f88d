package models

// Status is the delivery lifecycle of a message as reported by the provider.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusUnknown   Status = "unknown"
)

// ParseStatus maps a provider-supplied status string onto the known enum,
// folding anything unexpected into StatusUnknown rather than rejecting it.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusSent, StatusDelivered, StatusRead:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// Rank orders the delivery lifecycle for regression detection: sent <
// delivered < read. StatusUnknown ranks 0 and is excluded from ordering.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}
