package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvLogFmt   = "LOG_FORMAT"
	EnvDotEnv   = "DOTENV_FILE"

	EnvJWTSecret = "JWT_SECRET"
	EnvRedisURL  = "REDIS_URL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvEventsTopic   = "EVENTS_TOPIC"
	EnvEventsEnabled = "EVENTS_ENABLED"

	EnvReconcileInterval     = "RECONCILE_INTERVAL"
	EnvReconcileSweepTimeout = "RECONCILE_SWEEP_TIMEOUT"
	EnvReconcileLeaseTTL     = "RECONCILE_LEASE_TTL"

	EnvRecentFeedLimit = "RECENT_FEED_LIMIT"
	EnvCurrency        = "CURRENCY"
)
