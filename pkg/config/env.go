package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvDefaultHoldTimeHours = "DEFAULT_HOLD_TIME_HOURS"
	EnvSweepInterval        = "HOLD_SWEEP_INTERVAL"
	EnvSweepBatchSize       = "HOLD_SWEEP_BATCH_SIZE"

	EnvKafkaEnabled   = "KAFKA_ENABLED"
	EnvEventsTopic    = "EVENTS_TOPIC"
	EnvEventsDLQTopic = "EVENTS_DLQ_TOPIC"
)
