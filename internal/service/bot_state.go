package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairlink/pairing-server/internal/model"
	"github.com/pairlink/pairing-server/internal/sse"
)

// BotSnapshot is a consistent copy of BotState for readers.
type BotSnapshot struct {
	Status        model.BotStatus
	QRData        string
	QRImage       string
	Attempts      int
	MaxAttempts   int
	AutoActivated bool
	LastError     string
	StatusSince   time.Time
}

func (s BotSnapshot) HasQR() bool {
	return s.QRImage != ""
}

// BotState is the process-wide state shared by the connection manager and the
// HTTP handlers. Only the connection manager writes to it.
type BotState struct {
	mu     sync.RWMutex
	state  BotSnapshot
	broker *sse.Broker
}

func NewBotState(maxAttempts int, broker *sse.Broker) *BotState {
	return &BotState{
		state: BotSnapshot{
			Status:      model.BotStatusDisconnected,
			MaxAttempts: maxAttempts,
			StatusSince: time.Now(),
		},
		broker: broker,
	}
}

func (b *BotState) Snapshot() BotSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BotState) Status() model.BotStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Status
}

func (b *BotState) SetStatus(status model.BotStatus) {
	b.mu.Lock()
	changed := b.state.Status != status
	if changed {
		b.state.Status = status
		b.state.StatusSince = time.Now()
	}
	if status == model.BotStatusOnline {
		b.state.LastError = ""
	}
	snapshot := b.state
	b.mu.Unlock()

	if changed {
		log.Info().Str("status", string(status)).Msg("bot status changed")
		b.publish(snapshot)
	}
}

// SetQR stores the latest QR payload and its rendered image.
func (b *BotState) SetQR(data, image string, autoActivated bool) {
	b.mu.Lock()
	b.state.QRData = data
	b.state.QRImage = image
	b.state.AutoActivated = autoActivated
	snapshot := b.state
	b.mu.Unlock()

	b.publish(snapshot)
}

func (b *BotState) ClearQR() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.QRData = ""
	b.state.QRImage = ""
}

// IncrementAttempts bumps the attempt counter unless it already reached the cap.
// It reports the counter value and whether the increment happened.
func (b *BotState) IncrementAttempts() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Attempts >= b.state.MaxAttempts {
		return b.state.Attempts, false
	}
	b.state.Attempts++
	return b.state.Attempts, true
}

func (b *BotState) ResetAttempts() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Attempts = 0
}

func (b *BotState) SetError(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.LastError = err.Error()
}

func (b *BotState) publish(snapshot BotSnapshot) {
	if b.broker == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"bot":         snapshot.Status,
		"hasQR":       snapshot.HasQR(),
		"attempts":    snapshot.Attempts,
		"maxAttempts": snapshot.MaxAttempts,
		"statusSince": snapshot.StatusSince,
	})
	if err != nil {
		log.Debug().Err(err).Msg("failed to encode status event")
		return
	}
	if err := b.broker.Publish(context.Background(), sse.Event{Type: sse.EventStatus, Data: data}); err != nil {
		log.Warn().Err(err).Msg("failed to publish status event")
	}
}
