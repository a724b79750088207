package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/pairlink/pairing-server/internal/model"
)

// PairingRegistry is the in-memory store of pairing records keyed by code.
// Pending records expire at their ExpiresAt; linked records are kept until the
// process exits.
type PairingRegistry interface {
	FindByCode(ctx context.Context, code string) (*model.PairingRecord, error)
	Create(ctx context.Context, params model.CreatePairingRecordParams) (*model.PairingRecord, error)
	MarkAllLinked(ctx context.Context, at time.Time) (int, error)
	Count(ctx context.Context) int
	DeleteExpired(ctx context.Context) (int64, error)
	Close()
}

// ErrDuplicateCode is returned by Create when the code is already present.
var ErrDuplicateCode = errors.New("pairing code already exists")

type pairingRegistry struct {
	cache        *ttlcache.Cache[string, model.PairingRecord]
	stopEviction func()
}

func NewPairingRegistry() PairingRegistry {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, model.PairingRecord](),
	)

	stop := cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, model.PairingRecord]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		record := item.Value()
		log.Info().
			Str("sessionId", record.SessionID).
			Str("status", string(model.PairingStatusExpired)).
			Time("expiresAt", record.ExpiresAt).
			Msg("pairing code expired")
	})

	return &pairingRegistry{cache: cache, stopEviction: stop}
}

func (r *pairingRegistry) FindByCode(_ context.Context, code string) (*model.PairingRecord, error) {
	item := r.cache.Get(code)
	if item == nil {
		return nil, nil
	}
	record := item.Value()
	return &record, nil
}

func (r *pairingRegistry) Create(_ context.Context, params model.CreatePairingRecordParams) (*model.PairingRecord, error) {
	if r.cache.Has(params.Code) {
		return nil, ErrDuplicateCode
	}

	now := time.Now()
	record := model.PairingRecord{
		Code:        params.Code,
		DisplayCode: params.DisplayCode,
		PhoneNumber: params.PhoneNumber,
		Country:     params.Country,
		SessionID:   params.SessionID,
		Status:      model.PairingStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(params.TTL),
		QRData:      params.QRData,
		QRImage:     params.QRImage,
	}

	r.cache.Set(record.Code, record, params.TTL)
	return &record, nil
}

// MarkAllLinked moves every pending record to linked and drops its expiry.
// Linked records no longer carry the QR they were issued with.
func (r *pairingRegistry) MarkAllLinked(_ context.Context, at time.Time) (int, error) {
	linked := 0
	for code, item := range r.cache.Items() {
		record := item.Value()
		if !record.IsPending() {
			continue
		}
		linkedAt := at
		record.Status = model.PairingStatusLinked
		record.LinkedAt = &linkedAt
		record.QRData = ""
		record.QRImage = ""
		r.cache.Set(code, record, ttlcache.NoTTL)
		linked++
	}
	return linked, nil
}

func (r *pairingRegistry) Count(_ context.Context) int {
	return r.cache.Len()
}

func (r *pairingRegistry) DeleteExpired(_ context.Context) (int64, error) {
	before := r.cache.Metrics().Evictions
	r.cache.DeleteExpired()
	return int64(r.cache.Metrics().Evictions - before), nil
}

func (r *pairingRegistry) Close() {
	r.stopEviction()
}
