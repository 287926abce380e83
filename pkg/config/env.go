package config

const EnvPrefix = "CAFEPOS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BroadcastNone     = "none"
	BroadcastPubSub   = "pubsub"
	BroadcastRabbitMQ = "rabbitmq"

	SequenceSourceDB    = "db"
	SequenceSourceRedis = "redis"
)

const (
	EnvAppEnv        = "CAFEPOS_APP_ENV"
	EnvPort          = "CAFEPOS_APP_PORT"
	EnvDBDSN         = "CAFEPOS_DB_DSN"
	EnvDBHost        = "CAFEPOS_DB_HOST"
	EnvDBUser        = "CAFEPOS_DB_USER"
	EnvDBName        = "CAFEPOS_DB_NAME"
	EnvUseSQLite     = "CAFEPOS_USE_SQLITE"
	EnvRedisURL      = "CAFEPOS_REDIS_URL"
	EnvJWTSecret     = "CAFEPOS_JWT_SECRET"
	EnvJWTIssuer     = "CAFEPOS_JWT_ISSUER"
	EnvSequence      = "CAFEPOS_SEQUENCE_SOURCE"
	EnvBroadcast     = "CAFEPOS_BROADCAST_TRANSPORT"
	EnvPubSubSyncSub = "CAFEPOS_PUBSUB_SYNC_SUBSCRIPTION"
	EnvRabbitMQURL   = "CAFEPOS_RABBITMQ_URL"
	EnvFeedURL       = "CAFEPOS_WEB_ORDERS_FEED_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
