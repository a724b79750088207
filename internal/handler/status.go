package handler

import (
	"net/http"
	"time"

	"github.com/pairlink/pairing-server/internal/service"
)

type StatusHandler struct {
	state     *service.BotState
	pairing   *service.PairingService
	version   string
	startedAt time.Time
}

func NewStatusHandler(state *service.BotState, pairing *service.PairingService, version string) *StatusHandler {
	return &StatusHandler{
		state:     state,
		pairing:   pairing,
		version:   version,
		startedAt: time.Now(),
	}
}

// GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.state.Snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"bot":           snapshot.Status,
		"hasQR":         snapshot.HasQR(),
		"pairingCodes":  h.pairing.Size(r.Context()),
		"lastCode":      nullableString(h.pairing.LastGeneratedDisplayCode()),
		"version":       h.version,
		"autoActivated": snapshot.AutoActivated,
		"attempts":      snapshot.Attempts,
		"maxAttempts":   snapshot.MaxAttempts,
		"lastError":     nullableString(snapshot.LastError),
		"statusSince":   formatTime(snapshot.StatusSince),
		"timestamp":     time.Now().UnixMilli(),
	})
}

// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"bot":       h.state.Status(),
		"version":   h.version,
		"uptime":    int64(time.Since(h.startedAt).Seconds()),
		"timestamp": time.Now().UnixMilli(),
	})
}
