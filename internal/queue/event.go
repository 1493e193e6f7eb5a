// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Routing keys on the events exchange.
const (
	KeyRequestCreated  = "request.created"
	KeyRequestAccepted = "request.accepted"
	KeyRequestRejected = "request.rejected"
	KeyUserPurged      = "user.purged"
)

// RequestEvent is published when a service request is created or reaches a
// terminal status.  It carries enough for consumers to log or notify
// without querying the primary database.
type RequestEvent struct {
	RequestID      uint64 `json:"request_id"`
	UserID         uint64 `json:"user_id"`
	ProviderUserID uint64 `json:"provider_user_id"`
	Status         string `json:"status"`
	OccurredAt     string `json:"occurred_at"`
}

// UserPurgedEvent is published after an admin purge commits.
type UserPurgedEvent struct {
	UserID          uint64 `json:"user_id"`
	Email           string `json:"email"`
	AdminID         uint64 `json:"admin_id"`
	RequestsDeleted int64  `json:"requests_deleted"`
	ImageReleased   bool   `json:"image_released"`
	OccurredAt      string `json:"occurred_at"`
}

// StatusKey returns the routing key announcing a request reaching status.
func StatusKey(status string) string {
	switch status {
	case "accepted":
		return KeyRequestAccepted
	case "rejected":
		return KeyRequestRejected
	}
	return KeyRequestCreated
}
