package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pairlink/pairing-server/internal/errors"
	"github.com/pairlink/pairing-server/internal/model"
	"github.com/pairlink/pairing-server/internal/phone"
	"github.com/pairlink/pairing-server/internal/repository"
	"github.com/pairlink/pairing-server/internal/util"
)

var displayCodePattern = regexp.MustCompile(`^[A-Z2-9]{4}-[A-Z2-9]{4}$`)

func newTestPairingService(t *testing.T, status model.BotStatus) (*PairingService, *BotState, repository.PairingRegistry) {
	t.Helper()
	registry := repository.NewPairingRegistry()
	t.Cleanup(registry.Close)

	state := NewBotState(3, nil)
	state.SetStatus(status)

	svc := NewPairingService(registry, phone.NewNormalizer(""), state, 10*time.Minute, true)
	return svc, state, registry
}

func TestPairingService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates record with formatted phone while online", func(t *testing.T) {
		svc, _, _ := newTestPairingService(t, model.BotStatusOnline)

		record, err := svc.Generate(ctx, "254723278526", "")
		require.NoError(t, err)

		require.NotNil(t, record.PhoneNumber)
		assert.Equal(t, "+254 723 278526", *record.PhoneNumber)
		require.NotNil(t, record.Country)
		assert.Equal(t, "KE", *record.Country)
		assert.Len(t, record.Code, util.PairingCodeLength)
		assert.Regexp(t, displayCodePattern, record.DisplayCode)
		assert.Equal(t, model.PairingStatusPending, record.Status)
		assert.Equal(t, 1, svc.Size(ctx))
		assert.Equal(t, record.DisplayCode, svc.LastGeneratedDisplayCode())
	})

	t.Run("phone number is optional", func(t *testing.T) {
		svc, _, _ := newTestPairingService(t, model.BotStatusQRReady)

		record, err := svc.Generate(ctx, "", "")
		require.NoError(t, err)
		assert.Nil(t, record.PhoneNumber)
		assert.Nil(t, record.Country)
	})

	t.Run("rejects invalid phone before checking readiness", func(t *testing.T) {
		svc, _, _ := newTestPairingService(t, model.BotStatusConnecting)

		_, err := svc.Generate(ctx, "abc", "")
		assert.Equal(t, apperrors.ErrCodeInvalidPhoneFormat, apperrors.GetCode(err))
	})

	t.Run("refuses while connecting", func(t *testing.T) {
		svc, _, _ := newTestPairingService(t, model.BotStatusConnecting)

		_, err := svc.Generate(ctx, "254723278526", "")
		assert.Equal(t, apperrors.ErrCodeServiceNotReady, apperrors.GetCode(err))
		assert.Equal(t, 0, svc.Size(ctx))
	})

	t.Run("captures the current qr snapshot", func(t *testing.T) {
		svc, state, _ := newTestPairingService(t, model.BotStatusQRReady)
		state.SetQR("2@payload", "data:image/png;base64,AAAA", true)

		record, err := svc.Generate(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, "2@payload", record.QRData)
		assert.Equal(t, "data:image/png;base64,AAAA", record.QRImage)
	})

	t.Run("two calls yield distinct codes", func(t *testing.T) {
		svc, _, _ := newTestPairingService(t, model.BotStatusOnline)

		first, err := svc.Generate(ctx, "", "")
		require.NoError(t, err)
		second, err := svc.Generate(ctx, "", "")
		require.NoError(t, err)

		assert.NotEqual(t, first.Code, second.Code)
		assert.NotEqual(t, first.SessionID, second.SessionID)
		assert.Equal(t, 2, svc.Size(ctx))
	})

	t.Run("deterministic display code follows the session id", func(t *testing.T) {
		svc, _, _ := newTestPairingService(t, model.BotStatusOnline)

		record, err := svc.Generate(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, util.DeriveDisplayCode(record.SessionID), record.DisplayCode)
	})
}

func TestPairingService_OnExternalConnectionOpen(t *testing.T) {
	ctx := context.Background()
	svc, _, registry := newTestPairingService(t, model.BotStatusQRReady)

	first, err := svc.Generate(ctx, "", "")
	require.NoError(t, err)
	second, err := svc.AutoGenerate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, svc.OnExternalConnectionOpen(ctx))
	assert.Equal(t, 0, svc.OnExternalConnectionOpen(ctx), "linked records are not linked twice")

	for _, code := range []string{first.Code, second.Code} {
		record, err := registry.FindByCode(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, model.PairingStatusLinked, record.Status)
		assert.NotNil(t, record.LinkedAt)
	}
}
