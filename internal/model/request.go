package model

import "time"

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanTransition reports whether the state machine permits from -> to.
// The only edges are pending -> accepted and pending -> rejected.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// ParseTargetStatus accepts only the statuses a provider may move a request
// into.
func ParseTargetStatus(s string) (Status, bool) {
	if st := Status(s); CanTransition(StatusPending, st) {
		return st, true
	}
	return "", false
}

// ServiceRequest mirrors the `service_requests` table.  RequesterID is the
// user_id column.
type ServiceRequest struct {
	ID          uint64    `json:"id"`
	RequesterID uint64    `json:"user_id"`
	ProviderID  uint64    `json:"provider_user_id"`
	Description string    `json:"description"`
	Address     *string   `json:"address"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
