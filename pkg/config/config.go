package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Sequence      SequenceConfig
	WebOrders     WebOrdersConfig
	Broadcast     BroadcastConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	RabbitMQ      RabbitMQConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Broadcast.validate(cfg.PubSub, cfg.RabbitMQ); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAFEPOS_APP_ENV" required:"true"`
	Port         string `envconfig:"CAFEPOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAFEPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAFEPOS_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"CAFEPOS_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAFEPOS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAFEPOS_DB_DSN"`
	Driver string `envconfig:"CAFEPOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAFEPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"CAFEPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAFEPOS_DB_USER"`
	LegacyPassword string `envconfig:"CAFEPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAFEPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAFEPOS_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CAFEPOS_SQLITE_PATH" default:"cafepos.db"`

	MaxOpenConns    int           `envconfig:"CAFEPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAFEPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAFEPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAFEPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAFEPOS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAFEPOS_REDIS_ADDR"`
	Password     string        `envconfig:"CAFEPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAFEPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAFEPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAFEPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAFEPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAFEPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAFEPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CAFEPOS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAFEPOS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAFEPOS_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAFEPOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAFEPOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAFEPOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAFEPOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAFEPOS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"CAFEPOS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"CAFEPOS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"CAFEPOS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`

	IntakeWindow       time.Duration `envconfig:"CAFEPOS_RATE_LIMIT_INTAKE_WINDOW" default:"1m"`
	IntakeIPLimit      int           `envconfig:"CAFEPOS_RATE_LIMIT_INTAKE_IP_LIMIT" default:"120"`
	IntakeChannelLimit int           `envconfig:"CAFEPOS_RATE_LIMIT_INTAKE_CHANNEL_LIMIT" default:"600"`
}

type FeatureFlagsConfig struct {
	UseSQLite        bool `envconfig:"CAFEPOS_USE_SQLITE" default:"false"`
	AutoMigrate      bool `envconfig:"CAFEPOS_AUTO_MIGRATE" default:"false"`
	AnalyticsEnabled bool `envconfig:"CAFEPOS_ANALYTICS_ENABLED" default:"false"`
	ProjectToWeb     bool `envconfig:"CAFEPOS_PROJECT_STATUS_TO_WEB" default:"true"`
	AutoDeliveries   bool `envconfig:"CAFEPOS_AUTO_CREATE_DELIVERIES" default:"false"`
}

// SequenceConfig selects where order sequence numbers are drawn from.
type SequenceConfig struct {
	Source string `envconfig:"CAFEPOS_SEQUENCE_SOURCE" default:"db"`
	Name   string `envconfig:"CAFEPOS_SEQUENCE_NAME" default:"orders"`
}

type WebOrdersConfig struct {
	FeedURL      string        `envconfig:"CAFEPOS_WEB_ORDERS_FEED_URL"`
	FeedToken    string        `envconfig:"CAFEPOS_WEB_ORDERS_FEED_TOKEN"`
	ChannelKey   string        `envconfig:"CAFEPOS_WEB_ORDERS_CHANNEL_KEY"`
	MaxAttempts  int           `envconfig:"CAFEPOS_WEB_ORDERS_MAX_ATTEMPTS" default:"3"`
	AttemptLimit time.Duration `envconfig:"CAFEPOS_WEB_ORDERS_ATTEMPT_TIMEOUT" default:"5s"`
	BaseBackoff  time.Duration `envconfig:"CAFEPOS_WEB_ORDERS_BASE_BACKOFF" default:"500ms"`
	MaxBackoff   time.Duration `envconfig:"CAFEPOS_WEB_ORDERS_MAX_BACKOFF" default:"5s"`
}

// BroadcastConfig picks the cross-process transport for notifier events.
type BroadcastConfig struct {
	Transport string `envconfig:"CAFEPOS_BROADCAST_TRANSPORT" default:"none"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CAFEPOS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CAFEPOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CAFEPOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic      string `envconfig:"CAFEPOS_PUBSUB_ORDERS_TOPIC" default:"cafepos-order-events"`
	SyncTopic        string `envconfig:"CAFEPOS_PUBSUB_SYNC_TOPIC" default:"cafepos-sync"`
	SyncSubscription string `envconfig:"CAFEPOS_PUBSUB_SYNC_SUBSCRIPTION"`

	AnalyticsSubscription string `envconfig:"CAFEPOS_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type RabbitMQConfig struct {
	URL      string `envconfig:"CAFEPOS_RABBITMQ_URL"`
	Exchange string `envconfig:"CAFEPOS_RABBITMQ_EXCHANGE" default:"cafepos_sync_fanout"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"CAFEPOS_BIGQUERY_DATASET" default:"cafepos"`
	OrderEventsTable string `envconfig:"CAFEPOS_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	CreateMissing    bool   `envconfig:"CAFEPOS_BIGQUERY_CREATE_MISSING" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CAFEPOS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CAFEPOS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CAFEPOS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CAFEPOS_OUTBOX_RETENTION" default:"720h"`
	IdempotencyTTL time.Duration `envconfig:"CAFEPOS_OUTBOX_IDEMPOTENCY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CAFEPOS_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"CAFEPOS_CRON_LOCK_TTL" default:"5m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func (b BroadcastConfig) validate(ps PubSubConfig, rmq RabbitMQConfig) error {
	switch b.Mode() {
	case BroadcastNone:
		return nil
	case BroadcastPubSub:
		if strings.TrimSpace(ps.SyncSubscription) == "" {
			return fmt.Errorf("%s is required for pubsub broadcast", EnvPubSubSyncSub)
		}
		return nil
	case BroadcastRabbitMQ:
		if strings.TrimSpace(rmq.URL) == "" {
			return fmt.Errorf("%s is required for rabbitmq broadcast", EnvRabbitMQURL)
		}
		return nil
	}
	return fmt.Errorf("unsupported broadcast transport %q", b.Transport)
}

// Mode returns the normalized transport name.
func (b BroadcastConfig) Mode() string {
	mode := strings.ToLower(strings.TrimSpace(b.Transport))
	if mode == "" {
		return BroadcastNone
	}
	return mode
}

// UseRedis reports whether sequence numbers come from the Redis counter.
func (s SequenceConfig) UseRedis() bool {
	return strings.EqualFold(strings.TrimSpace(s.Source), SequenceSourceRedis)
}
