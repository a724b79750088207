package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/pairlink/pairing-server/internal/errors"
	"github.com/pairlink/pairing-server/internal/httputil"
	"github.com/pairlink/pairing-server/internal/service"
	"github.com/pairlink/pairing-server/internal/util"
)

type QRHandler struct {
	state *service.BotState
}

func NewQRHandler(state *service.BotState) *QRHandler {
	return &QRHandler{state: state}
}

// GET /qr
func (h *QRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.state.Snapshot()
	if !snapshot.HasQR() {
		httputil.WriteError(w, apperrors.NotFound("QR code"))
		return
	}

	png, err := util.DecodeQRDataURL(snapshot.QRImage)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode qr image")
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
