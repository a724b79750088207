package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairlink/pairing-server/internal/audit"
	"github.com/pairlink/pairing-server/internal/config"
	apperrors "github.com/pairlink/pairing-server/internal/errors"
	"github.com/pairlink/pairing-server/internal/model"
	"github.com/pairlink/pairing-server/internal/repository"
	"github.com/pairlink/pairing-server/internal/util"
	"github.com/pairlink/pairing-server/internal/whatsapp"
)

type ReconnectPolicy struct {
	Transient    time.Duration
	Other        time.Duration
	LoggedOut    time.Duration
	InitRetry    time.Duration
	InitCooldown time.Duration
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Transient:    config.ReconnectDelayTransient,
		Other:        config.ReconnectDelayOther,
		LoggedOut:    config.ReconnectDelayLoggedOut,
		InitRetry:    config.InitRetryDelay,
		InitCooldown: config.InitRetryCooldown,
	}
}

type reconnectPlan struct {
	delay time.Duration
	opts  whatsapp.ConnectOptions
}

// ConnectionManager owns the single messaging session. Run drives it from one
// goroutine, so every lifecycle handler executes serially.
type ConnectionManager struct {
	connector    whatsapp.Connector
	state        *BotState
	pairing      *PairingService
	statusRepo   repository.SessionStatusRepository
	autoActivate bool
	policy       ReconnectPolicy
}

func NewConnectionManager(
	connector whatsapp.Connector,
	state *BotState,
	pairing *PairingService,
	statusRepo repository.SessionStatusRepository,
	autoActivate bool,
	policy ReconnectPolicy,
) *ConnectionManager {
	return &ConnectionManager{
		connector:    connector,
		state:        state,
		pairing:      pairing,
		statusRepo:   statusRepo,
		autoActivate: autoActivate,
		policy:       policy,
	}
}

// Run connects and reconnects until ctx is cancelled. The current session is
// disconnected before Run returns.
func (m *ConnectionManager) Run(ctx context.Context) {
	m.restore(ctx)

	opts := whatsapp.ConnectOptions{}
	for ctx.Err() == nil {
		m.state.SetStatus(model.BotStatusConnecting)

		session, err := m.connector.Connect(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !sleepCtx(ctx, m.onInitFailure(err)) {
				break
			}
			continue
		}

		plan, ok := m.consume(ctx, session)
		session.Disconnect()
		if !ok {
			break
		}

		opts = plan.opts
		log.Info().
			Dur("delay", plan.delay).
			Bool("requestQR", plan.opts.RequestQR).
			Msg("reconnect scheduled")
		if !sleepCtx(ctx, plan.delay) {
			break
		}
	}

	m.state.SetStatus(model.BotStatusDisconnected)
	log.Info().Msg("connection manager stopped")
}

func (m *ConnectionManager) restore(ctx context.Context) {
	hasCredentials, err := m.connector.HasCredentials(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to inspect stored credentials")
	} else if hasCredentials {
		log.Info().Msg("restoring stored credentials")
	} else {
		log.Info().Msg("no stored credentials, a qr link will be required")
	}

	previous, err := m.statusRepo.Load()
	if err != nil {
		log.Warn().Err(apperrors.PersistenceFailure(err)).Msg("failed to read session status")
		return
	}
	if previous != nil {
		log.Info().
			Str("status", string(previous.Status)).
			Time("expiresAt", previous.ExpiresAt).
			Msg("previous session status loaded")
	}
}

func (m *ConnectionManager) consume(ctx context.Context, session whatsapp.Session) (reconnectPlan, bool) {
	for {
		select {
		case <-ctx.Done():
			return reconnectPlan{}, false
		case evt := <-session.Events():
			if plan := m.dispatch(ctx, evt); plan != nil {
				return *plan, true
			}
		}
	}
}

// dispatch handles one event. A panic in a handler is logged and the event is
// dropped; a closed event still yields a reconnect.
func (m *ConnectionManager) dispatch(ctx context.Context, evt whatsapp.Event) (plan *reconnectPlan) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event", string(evt.Type)).
				Msg("recovered from panic in connection event handler")
			if evt.Type == whatsapp.EventConnectionClosed {
				plan = &reconnectPlan{delay: m.policy.Other}
			}
		}
	}()

	switch evt.Type {
	case whatsapp.EventQRAvailable:
		m.handleQR(ctx, evt.QRCode)
	case whatsapp.EventConnectionOpen:
		m.handleOpen(ctx)
	case whatsapp.EventCredentialsUpdated:
		log.Debug().Msg("session credentials updated")
	case whatsapp.EventConnectionClosed:
		p := m.handleClosed(ctx, evt)
		return &p
	}
	return nil
}

func (m *ConnectionManager) handleQR(ctx context.Context, payload string) {
	image, err := util.RenderQRDataURL(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to render qr")
		m.state.SetError(err)
		return
	}

	if !m.autoActivate {
		m.state.SetQR(payload, image, false)
		m.state.SetStatus(model.BotStatusQRReady)
		return
	}

	attempt, ok := m.state.IncrementAttempts()
	if !ok {
		log.Warn().
			Int("attempts", attempt).
			Msg("qr attempt limit reached, waiting for manual pairing")
		m.state.SetQR(payload, image, false)
		m.state.SetStatus(model.BotStatusQRReady)
		return
	}

	m.state.SetQR(payload, image, true)
	m.state.SetStatus(model.BotStatusQRReady)

	record, err := m.pairing.AutoGenerate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to create initial pairing code")
	} else {
		log.Info().
			Int("attempt", attempt).
			Str("displayCode", record.DisplayCode).
			Msg("qr ready")
	}

	m.persist(model.SessionStateQRReady, config.QRStatusLifetime)
}

func (m *ConnectionManager) handleOpen(ctx context.Context) {
	// Clear first so the published online event carries no QR.
	m.state.ResetAttempts()
	m.state.ClearQR()
	m.state.SetStatus(model.BotStatusOnline)

	linked := m.pairing.OnExternalConnectionOpen(ctx)
	log.Info().Int("linked", linked).Msg("messaging session online")

	m.persist(model.SessionStateConnected, config.ConnectedStatusLifetime)
}

func (m *ConnectionManager) handleClosed(ctx context.Context, evt whatsapp.Event) reconnectPlan {
	logEvent := log.Warn().Str("reason", string(evt.Reason))
	if evt.Err != nil {
		logEvent = logEvent.Err(evt.Err)
		m.state.SetError(evt.Err)
	}
	logEvent.Msg("messaging session closed")

	m.state.ClearQR()
	m.state.SetStatus(model.BotStatusConnecting)

	switch classifyReason(evt.Reason) {
	case closeTransient:
		return reconnectPlan{delay: m.policy.Transient}
	case closeLoggedOut:
		if err := m.connector.ClearCredentials(ctx); err != nil {
			log.Error().Err(err).Msg("failed to clear credentials")
			m.state.SetError(err)
		} else {
			audit.Log(ctx, audit.Event{
				Type:    audit.EventCredentialsCleared,
				Details: map[string]any{"reason": string(evt.Reason)},
			})
		}
		return reconnectPlan{
			delay: m.policy.LoggedOut,
			opts:  whatsapp.ConnectOptions{RequestQR: true},
		}
	default:
		return reconnectPlan{delay: m.policy.Other}
	}
}

func (m *ConnectionManager) onInitFailure(err error) time.Duration {
	initErr := apperrors.ExternalInitFailure(err)
	m.state.SetError(initErr)

	attempt, ok := m.state.IncrementAttempts()
	if ok && attempt < m.state.Snapshot().MaxAttempts {
		log.Warn().
			Err(initErr).
			Int("attempt", attempt).
			Dur("delay", m.policy.InitRetry).
			Msg("failed to start messaging session, retrying")
		return m.policy.InitRetry
	}

	log.Error().
		Err(initErr).
		Int("attempt", attempt).
		Dur("delay", m.policy.InitCooldown).
		Msg("messaging session start failed repeatedly, cooling down")
	m.state.SetStatus(model.BotStatusError)
	m.state.ResetAttempts()
	return m.policy.InitCooldown
}

func (m *ConnectionManager) persist(state model.SessionState, lifetime time.Duration) {
	now := time.Now()
	err := m.statusRepo.Save(model.SessionStatus{
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
		Status:    state,
	})
	if err != nil {
		log.Warn().Err(apperrors.PersistenceFailure(err)).Msg("failed to write session status")
	}
}

type closeKind int

const (
	closeTransient closeKind = iota
	closeLoggedOut
	closeOther
)

func classifyReason(reason whatsapp.CloseReason) closeKind {
	switch reason {
	case whatsapp.ReasonConnectionLost, whatsapp.ReasonStreamError, whatsapp.ReasonQRTimeout:
		return closeTransient
	case whatsapp.ReasonLoggedOut:
		return closeLoggedOut
	default:
		return closeOther
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
