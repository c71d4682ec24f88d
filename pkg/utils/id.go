package utils

import "github.com/google/uuid"

// GenID returns a fresh message id for records created locally (composed
// outgoing messages, or batch payloads that arrived without an id).
func GenID() string {
	return "msg-" + uuid.NewString()
}
