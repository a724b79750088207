package model

// PairingStatus only moves forward: pending to linked, or pending to expired.
type PairingStatus string

const (
	PairingStatusPending PairingStatus = "pending"
	PairingStatusLinked  PairingStatus = "linked"
	PairingStatusExpired PairingStatus = "expired"
)

type BotStatus string

const (
	BotStatusDisconnected BotStatus = "disconnected"
	BotStatusConnecting   BotStatus = "connecting"
	BotStatusQRReady      BotStatus = "qr_ready"
	BotStatusOnline       BotStatus = "online"
	BotStatusError        BotStatus = "error"
)

// AcceptsPairing reports whether codes may be handed out in this state.
func (s BotStatus) AcceptsPairing() bool {
	return s == BotStatusQRReady || s == BotStatusOnline
}

type SessionState string

const (
	SessionStateQRReady   SessionState = "qr_ready"
	SessionStateConnected SessionState = "connected"
)
