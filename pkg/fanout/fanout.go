// Package fanout pushes committed changes to live subscribers. Delivery is
// fire-and-forget: ingestion never blocks on a slow consumer.
package fanout

// Event names emitted after reconciliation.
const (
	EventMessageCreated       = "message_created"
	EventMessageStatusUpdated = "message_status_updated"
)

// Event is one outward notification.
type Event struct {
	Event   string `json:"event"`
	WaID    string `json:"wa_id"`
	Payload any    `json:"payload"`
}

// StatusEvent is the payload of a message_status_updated notification.
type StatusEvent struct {
	MsgID  string `json:"msg_id"`
	WaID   string `json:"wa_id"`
	Status string `json:"status"`
}

// Broadcaster delivers one event to all current subscribers of a transport.
type Broadcaster interface {
	Broadcast(event, waID string, payload any)
}

// Multi fans one broadcast out to several transports.
type Multi []Broadcaster

func (m Multi) Broadcast(event, waID string, payload any) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(event, waID, payload)
		}
	}
}
