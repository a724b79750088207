package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pairlink/pairing-server/internal/config"
	"github.com/pairlink/pairing-server/internal/middleware"
	"github.com/pairlink/pairing-server/internal/service"
	"github.com/pairlink/pairing-server/internal/sse"
)

type RouterDeps struct {
	State        *service.BotState
	Pairing      *service.PairingService
	Broker       *sse.Broker
	Limiter      service.Limiter
	RateLimit    int
	Version      string
	IsProduction bool
}

func NewRouter(d RouterDeps) http.Handler {
	pairingHandler := NewPairingHandler(d.Pairing, d.State)
	statusHandler := NewStatusHandler(d.State, d.Pairing, d.Version)
	eventsHandler := NewEventsHandler(d.Broker, d.State, config.StatusHeartbeatInterval)

	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(d.IsProduction)
	generateLimit := middleware.NewIPRateLimitMiddleware(d.Limiter, d.RateLimit, config.GenerateRateWindow, "generate")

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders.Handler)

	r.Get("/health", statusHandler.Health)
	r.Get("/status", statusHandler.Status)
	r.Get("/events", eventsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Get("/", NewPageHandler().ServeHTTP)
		r.Get("/qr", NewQRHandler(d.State).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(bodyLimit.Handler)
			r.Use(generateLimit.Handler)
			r.Post("/generate-code", pairingHandler.GenerateCode)
			r.Post("/getqr", pairingHandler.GetQR)
		})
	})

	return r
}
