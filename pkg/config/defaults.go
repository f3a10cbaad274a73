package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "movez"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultEventsTopic   = "rental-events"
	DefaultEventsEnabled = false

	DefaultReconcileInterval     = 1 * time.Minute
	DefaultReconcileSweepTimeout = 30 * time.Second
	DefaultReconcileLeaseTTL     = 50 * time.Second

	DefaultRecentFeedLimit = 5
	DefaultCurrency        = "USD"

	DefaultPaginationLimit = 10
	MaxPaginationLimit     = 100
)
