package model

import "time"

// SessionStatus is the single persisted summary of the messaging session.
// It is rewritten wholesale on each transition.
type SessionStatus struct {
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Status    SessionState `json:"status"`
}
