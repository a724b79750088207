package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Reconnect policy of the connection manager
const (
	ReconnectDelayTransient = 3 * time.Second
	ReconnectDelayOther     = 10 * time.Second
	ReconnectDelayLoggedOut = 15 * time.Second
	InitRetryDelay          = 5 * time.Second
	InitRetryCooldown       = 60 * time.Second
)

// Upper bound on a single connection attempt to the messaging service
const ConnectTimeout = 60 * time.Second

// Keep-alive comment sent on idle status streams
const StatusHeartbeatInterval = 30 * time.Second

// Persisted session status lifetimes
const (
	QRStatusLifetime        = 7 * 24 * time.Hour
	ConnectedStatusLifetime = 30 * 24 * time.Hour
)

// Credential store connection pool settings
const (
	DBMaxOpenConns    = 5
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute
	DBPingTimeout     = 5 * time.Second
)

// Background job intervals
const RegistrySweepInterval = 30 * time.Second

// Rate limiting window for code generation endpoints
const GenerateRateWindow = time.Minute
