package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/pairlink/pairing-server/internal/errors"
	"github.com/pairlink/pairing-server/internal/model"
	"github.com/pairlink/pairing-server/internal/phone"
	"github.com/pairlink/pairing-server/internal/repository"
	"github.com/pairlink/pairing-server/internal/util"
)

const maxCodeAttempts = 10

type PairingService struct {
	registry      repository.PairingRegistry
	normalizer    *phone.Normalizer
	state         *BotState
	ttl           time.Duration
	deterministic bool

	mu              sync.Mutex
	lastDisplayCode string
}

func NewPairingService(
	registry repository.PairingRegistry,
	normalizer *phone.Normalizer,
	state *BotState,
	ttl time.Duration,
	deterministicDisplayCodes bool,
) *PairingService {
	return &PairingService{
		registry:      registry,
		normalizer:    normalizer,
		state:         state,
		ttl:           ttl,
		deterministic: deterministicDisplayCodes,
	}
}

// Generate validates the optional phone number, checks that the bot can accept
// pairings and stores a new record carrying the current QR snapshot.
func (s *PairingService) Generate(ctx context.Context, phoneNumber, countryHint string) (*model.PairingRecord, error) {
	var number *phone.Result
	if phoneNumber != "" {
		result := s.normalizer.Normalize(phoneNumber, countryHint)
		if !result.IsValid {
			return nil, apperrors.InvalidPhoneFormat(result.Error)
		}
		number = &result
	}

	if status := s.state.Status(); !status.AcceptsPairing() {
		return nil, apperrors.ServiceNotReady(string(status))
	}

	return s.create(ctx, number)
}

// AutoGenerate creates a record without a phone number. The connection manager
// calls it when a fresh QR arrives.
func (s *PairingService) AutoGenerate(ctx context.Context) (*model.PairingRecord, error) {
	return s.create(ctx, nil)
}

func (s *PairingService) create(ctx context.Context, number *phone.Result) (*model.PairingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.Snapshot()
	sessionID := util.NewSessionID()

	displayCode, err := s.displayCode(sessionID)
	if err != nil {
		return nil, apperrors.Internal("failed to generate display code").WithCause(err)
	}

	params := model.CreatePairingRecordParams{
		DisplayCode: displayCode,
		SessionID:   sessionID,
		TTL:         s.ttl,
		QRData:      snapshot.QRData,
		QRImage:     snapshot.QRImage,
	}
	if number != nil {
		params.PhoneNumber = &number.Formatted
		params.Country = &number.Country
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := util.GeneratePairingCode()
		if err != nil {
			return nil, apperrors.Internal("failed to generate pairing code").WithCause(err)
		}
		existing, err := s.registry.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("look up pairing code: %w", err)
		}
		if existing != nil {
			continue
		}

		params.Code = code
		record, err := s.registry.Create(ctx, params)
		if errors.Is(err, repository.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create pairing record: %w", err)
		}

		s.lastDisplayCode = record.DisplayCode

		event := log.Info().
			Str("code", util.MaskCode(record.Code)).
			Str("displayCode", record.DisplayCode).
			Str("sessionId", record.SessionID).
			Time("expiresAt", record.ExpiresAt)
		if record.PhoneNumber != nil {
			event = event.Str("phoneNumber", *record.PhoneNumber)
		}
		event.Msg("pairing code created")

		return record, nil
	}

	return nil, apperrors.Internal("could not find a free pairing code")
}

func (s *PairingService) displayCode(sessionID string) (string, error) {
	if s.deterministic {
		return util.DeriveDisplayCode(sessionID), nil
	}
	return util.RandomDisplayCode()
}

// OnExternalConnectionOpen links every pending record. The messaging service does
// not say which code was used, so all of them are treated as redeemed.
func (s *PairingService) OnExternalConnectionOpen(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	linked, err := s.registry.MarkAllLinked(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to link pending pairing codes")
		return 0
	}
	if linked > 0 {
		log.Info().Int("count", linked).Msg("pending pairing codes linked")
	}
	return linked
}

func (s *PairingService) Size(ctx context.Context) int {
	return s.registry.Count(ctx)
}

func (s *PairingService) LastGeneratedDisplayCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDisplayCode
}
