package model

import "time"

// PairingRecord is a short-lived pairing code handed out to a user together with
// the QR snapshot that was current when the code was generated.
type PairingRecord struct {
	Code        string        `json:"code"`
	DisplayCode string        `json:"displayCode"`
	PhoneNumber *string       `json:"phoneNumber"`
	Country     *string       `json:"country"`
	SessionID   string        `json:"sessionId"`
	Status      PairingStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	LinkedAt    *time.Time    `json:"linkedAt,omitempty"`
	QRData      string        `json:"-"`
	QRImage     string        `json:"-"`
}

func (r *PairingRecord) IsPending() bool {
	return r.Status == PairingStatusPending
}

type CreatePairingRecordParams struct {
	Code        string
	DisplayCode string
	PhoneNumber *string
	Country     *string
	SessionID   string
	TTL         time.Duration
	QRData      string
	QRImage     string
}
