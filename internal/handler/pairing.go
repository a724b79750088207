package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pairlink/pairing-server/internal/audit"
	apperrors "github.com/pairlink/pairing-server/internal/errors"
	"github.com/pairlink/pairing-server/internal/httputil"
	"github.com/pairlink/pairing-server/internal/model"
	"github.com/pairlink/pairing-server/internal/service"
)

type pairingRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
}

type PairingHandler struct {
	pairing *service.PairingService
	state   *service.BotState
}

func NewPairingHandler(pairing *service.PairingService, state *service.BotState) *PairingHandler {
	return &PairingHandler{
		pairing: pairing,
		state:   state,
	}
}

// POST /generate-code
func (h *PairingHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	req, err := decodePairingRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.pairing.Generate(r.Context(), req.PhoneNumber, req.CountryCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	logGenerated(r, record, audit.EventCodeGenerate)

	resp := recordResponse(record)
	resp["message"] = "Open Linked devices on your phone, choose Link with phone number and enter " + record.DisplayCode
	writeJSON(w, http.StatusOK, resp)
}

// POST /getqr
func (h *PairingHandler) GetQR(w http.ResponseWriter, r *http.Request) {
	req, err := decodePairingRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.PhoneNumber == "" {
		httputil.WriteError(w, apperrors.MissingRequired("phoneNumber"))
		return
	}

	record, err := h.pairing.Generate(r.Context(), req.PhoneNumber, req.CountryCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	logGenerated(r, record, audit.EventQRRequest)

	resp := recordResponse(record)
	if h.state.Status() == model.BotStatusOnline {
		resp["qrImage"] = nil
		resp["message"] = "Bot is already connected, no QR code is needed"
	} else {
		resp["qrImage"] = nullableString(record.QRImage)
		resp["message"] = "Scan the QR code with your phone or enter " + record.DisplayCode
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodePairingRequest(r *http.Request) (pairingRequest, error) {
	var req pairingRequest
	if r.Body == nil {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, apperrors.PayloadTooLarge(tooLarge.Limit)
		}
		return req, apperrors.InvalidInput("body", "malformed JSON")
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.CountryCode = strings.TrimSpace(req.CountryCode)
	return req, nil
}

func recordResponse(record *model.PairingRecord) map[string]any {
	return map[string]any{
		"success":     true,
		"code":        record.Code,
		"displayCode": record.DisplayCode,
		"phoneNumber": record.PhoneNumber,
		"country":     record.Country,
		"sessionId":   record.SessionID,
		"expiresAt":   formatTime(record.ExpiresAt),
	}
}

func logGenerated(r *http.Request, record *model.PairingRecord, eventType audit.EventType) {
	audit.LogFromRequest(r, audit.Event{
		Type:      eventType,
		SessionID: record.SessionID,
		Details: map[string]any{
			"displayCode": record.DisplayCode,
			"hasPhone":    record.PhoneNumber != nil,
		},
	})
}
