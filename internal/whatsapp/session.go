// Package whatsapp is the boundary to the external messaging session. The rest of
// the server only sees lifecycle events and a disconnect command.
package whatsapp

import (
	"context"
)

type EventType string

const (
	EventQRAvailable        EventType = "qr-available"
	EventConnectionOpen     EventType = "connection-open"
	EventConnectionClosed   EventType = "connection-closed"
	EventCredentialsUpdated EventType = "credentials-updated"
)

// CloseReason says why a session stopped.
type CloseReason string

const (
	ReasonConnectionLost     CloseReason = "connection_lost"
	ReasonStreamError        CloseReason = "stream_error"
	ReasonQRTimeout          CloseReason = "qr_timeout"
	ReasonLoggedOut          CloseReason = "logged_out"
	ReasonConnectionReplaced CloseReason = "connection_replaced"
	ReasonBanned             CloseReason = "banned"
	ReasonClientOutdated     CloseReason = "client_outdated"
	ReasonConnectFailure     CloseReason = "connect_failure"
)

type Event struct {
	Type   EventType
	QRCode string
	Reason CloseReason
	Err    error
}

type ConnectOptions struct {
	// RequestQR forces a fresh link even if a stale device identity is stored.
	RequestQR bool
}

// Session is one live connection. Events are delivered in order on a single
// channel; the channel is never closed, callers stop reading after Disconnect.
type Session interface {
	Events() <-chan Event
	Disconnect()
}

type Connector interface {
	Connect(ctx context.Context, opts ConnectOptions) (Session, error)
	HasCredentials(ctx context.Context) (bool, error)
	ClearCredentials(ctx context.Context) error
	Close() error
}
