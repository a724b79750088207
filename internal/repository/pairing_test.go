package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairlink/pairing-server/internal/model"
)

func createRecord(t *testing.T, reg PairingRegistry, code string, ttl time.Duration) *model.PairingRecord {
	t.Helper()
	record, err := reg.Create(context.Background(), model.CreatePairingRecordParams{
		Code:        code,
		DisplayCode: "ABCD-EFGH",
		SessionID:   "session_1_abcdef12",
		TTL:         ttl,
	})
	require.NoError(t, err)
	return record
}

func TestPairingRegistry_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores pending record with expiry", func(t *testing.T) {
		reg := NewPairingRegistry()
		defer reg.Close()

		record := createRecord(t, reg, "AB12CD34", 10*time.Minute)

		assert.Equal(t, model.PairingStatusPending, record.Status)
		assert.Equal(t, record.CreatedAt.Add(10*time.Minute), record.ExpiresAt)
		assert.Nil(t, record.LinkedAt)

		found, err := reg.FindByCode(ctx, "AB12CD34")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, record.SessionID, found.SessionID)
		assert.Equal(t, 1, reg.Count(ctx))
	})

	t.Run("refuses to overwrite an existing code", func(t *testing.T) {
		reg := NewPairingRegistry()
		defer reg.Close()

		createRecord(t, reg, "AB12CD34", 10*time.Minute)

		_, err := reg.Create(ctx, model.CreatePairingRecordParams{Code: "AB12CD34", TTL: time.Minute})
		assert.ErrorIs(t, err, ErrDuplicateCode)
		assert.Equal(t, 1, reg.Count(ctx))
	})

	t.Run("returns nil for unknown code", func(t *testing.T) {
		reg := NewPairingRegistry()
		defer reg.Close()

		found, err := reg.FindByCode(ctx, "ZZ99ZZ99")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestPairingRegistry_Expiry(t *testing.T) {
	ctx := context.Background()

	t.Run("pending record disappears after ttl", func(t *testing.T) {
		reg := NewPairingRegistry()
		defer reg.Close()

		createRecord(t, reg, "AB12CD34", 50*time.Millisecond)
		time.Sleep(80 * time.Millisecond)

		found, err := reg.FindByCode(ctx, "AB12CD34")
		require.NoError(t, err)
		assert.Nil(t, found)
		assert.Equal(t, 0, reg.Count(ctx))

		deleted, err := reg.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("linked record survives past ttl", func(t *testing.T) {
		reg := NewPairingRegistry()
		defer reg.Close()

		createRecord(t, reg, "AB12CD34", 50*time.Millisecond)
		linked, err := reg.MarkAllLinked(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, linked)

		time.Sleep(80 * time.Millisecond)
		deleted, err := reg.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)

		found, err := reg.FindByCode(ctx, "AB12CD34")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, model.PairingStatusLinked, found.Status)
		assert.NotNil(t, found.LinkedAt)
	})
}

func TestPairingRegistry_MarkAllLinked(t *testing.T) {
	ctx := context.Background()
	reg := NewPairingRegistry()
	defer reg.Close()

	createRecord(t, reg, "AAAA1111", time.Minute)
	createRecord(t, reg, "BBBB2222", time.Minute)

	first := time.Now()
	linked, err := reg.MarkAllLinked(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, linked)

	_, err = reg.Create(ctx, model.CreatePairingRecordParams{
		Code:        "CCCC3333",
		DisplayCode: "WXYZ-2345",
		SessionID:   "session_3_abcdef12",
		TTL:         time.Minute,
		QRData:      "2@ref,noise,identity,adv",
		QRImage:     "data:image/png;base64,iVBORw0KGgo=",
	})
	require.NoError(t, err)

	second := first.Add(time.Second)
	linked, err = reg.MarkAllLinked(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, linked, "already linked records are left alone")

	a, _ := reg.FindByCode(ctx, "AAAA1111")
	c, _ := reg.FindByCode(ctx, "CCCC3333")
	require.NotNil(t, a)
	require.NotNil(t, c)
	assert.True(t, a.LinkedAt.Equal(first))
	assert.True(t, c.LinkedAt.Equal(second))
	assert.Empty(t, c.QRData, "linked records drop their qr snapshot")
	assert.Empty(t, c.QRImage)
	assert.Equal(t, "WXYZ-2345", c.DisplayCode)
	assert.Equal(t, 3, reg.Count(ctx))
}
