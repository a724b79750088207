package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/pairlink/pairing-server/internal/config"
	"github.com/pairlink/pairing-server/internal/handler"
	"github.com/pairlink/pairing-server/internal/jobs"
	"github.com/pairlink/pairing-server/internal/middleware"
	"github.com/pairlink/pairing-server/internal/phone"
	"github.com/pairlink/pairing-server/internal/redis"
	"github.com/pairlink/pairing-server/internal/repository"
	"github.com/pairlink/pairing-server/internal/service"
	"github.com/pairlink/pairing-server/internal/sse"
	"github.com/pairlink/pairing-server/internal/whatsapp"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	var redisClient *redis.Client
	var limiter service.Limiter = middleware.NewMemoryRateLimiter()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		limiter = service.NewRateLimiter(redisClient.Client, "pairing")
		log.Info().Msg("redis connected")
	}

	waLogger := waLog.Zerolog(log.Logger.With().Str("component", "whatsmeow").Logger())

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	credentials, err := whatsapp.OpenCredentialStore(ctx, cfg.CredentialsDatabaseURL, cfg.AuthDir, waLogger.Sub("Database"))
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open credential store")
	}
	connector := whatsapp.NewWhatsmeowConnector(credentials, waLogger.Sub("Client"), cfg.BrowserName, config.ConnectTimeout)
	defer connector.Close()

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	registry := repository.NewPairingRegistry()
	defer registry.Close()
	statusRepo := repository.NewSessionStatusRepository(cfg.StatusFile)

	state := service.NewBotState(cfg.MaxQRAttempts, broker)
	pairingService := service.NewPairingService(
		registry, phone.NewNormalizer(cfg.DefaultRegion), state,
		cfg.PairingCodeTTL(), cfg.DeterministicDisplayCodes,
	)
	manager := service.NewConnectionManager(
		connector, state, pairingService, statusRepo,
		cfg.AutoActivate, service.DefaultReconnectPolicy(),
	)

	sweepJob := jobs.NewSweepJob(registry, config.RegistrySweepInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		State:        state,
		Pairing:      pairingService,
		Broker:       broker,
		Limiter:      limiter,
		RateLimit:    cfg.GenerateRateLimit,
		Version:      cfg.Version,
		IsProduction: os.Getenv("APP_ENV") == "production",
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	managerCtx, stopManager := context.WithCancel(context.Background())
	managerDone := make(chan struct{})
	go func() {
		manager.Run(managerCtx)
		close(managerDone)
	}()

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("version", cfg.Version).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	stopManager()
	<-managerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
