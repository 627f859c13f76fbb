package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Booking      BookingConfig
	Gateway      GatewayConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Booking.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(cfg.App.IsProd()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKYARD_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKYARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKYARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKYARD_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow list for the booking frontend.
	CORSOrigins []string `envconfig:"STOCKYARD_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKYARD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKYARD_DB_DSN"`
	Driver string `envconfig:"STOCKYARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKYARD_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKYARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKYARD_DB_USER"`
	LegacyPassword string `envconfig:"STOCKYARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKYARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKYARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKYARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKYARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKYARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKYARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKYARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKYARD_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKYARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKYARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKYARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKYARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKYARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKYARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKYARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOCKYARD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOCKYARD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOCKYARD_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the staff access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOCKYARD_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOCKYARD_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOCKYARD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOCKYARD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOCKYARD_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	IntakeWindow     time.Duration `envconfig:"STOCKYARD_RATE_LIMIT_INTAKE_WINDOW" default:"10m"`
	IntakeIPLimit    int           `envconfig:"STOCKYARD_RATE_LIMIT_INTAKE_IP_LIMIT" default:"20"`
	IntakeEmailLimit int           `envconfig:"STOCKYARD_RATE_LIMIT_INTAKE_EMAIL_LIMIT" default:"5"`
	LoginWindow      time.Duration `envconfig:"STOCKYARD_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit     int           `envconfig:"STOCKYARD_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit  int           `envconfig:"STOCKYARD_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKYARD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKYARD_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOCKYARD_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookGuardTTL      time.Duration `envconfig:"STOCKYARD_EVENTING_WEBHOOK_GUARD_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOCKYARD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"STOCKYARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOCKYARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic           string `envconfig:"STOCKYARD_PUBSUB_DOMAIN_TOPIC" required:"true"`
	AnalyticsSubscription string `envconfig:"STOCKYARD_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"STOCKYARD_BIGQUERY_DATASET" default:"stockyard"`
	FunnelTable string `envconfig:"STOCKYARD_BIGQUERY_FUNNEL_TABLE" default:"booking_funnel_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOCKYARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOCKYARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOCKYARD_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"STOCKYARD_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"STOCKYARD_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

// BookingConfig carries the booking fee charged through the gateway.
type BookingConfig struct {
	FeeMinorUnits int64  `envconfig:"STOCKYARD_BOOKING_FEE_MINOR_UNITS" default:"100000"`
	Currency      string `envconfig:"STOCKYARD_BOOKING_CURRENCY" default:"INR"`
}

func (b BookingConfig) validate() error {
	if b.FeeMinorUnits <= 0 {
		return fmt.Errorf("%s must be positive", EnvBookingFee)
	}
	if len(strings.TrimSpace(b.Currency)) != 3 {
		return fmt.Errorf("%s must be an ISO 4217 code", EnvBookingCurrency)
	}
	return nil
}

type GatewayConfig struct {
	BaseURL       string        `envconfig:"STOCKYARD_GATEWAY_BASE_URL" default:"https://api.razorpay.com"`
	KeyID         string        `envconfig:"STOCKYARD_GATEWAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"STOCKYARD_GATEWAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"STOCKYARD_GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"STOCKYARD_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"STOCKYARD_GATEWAY_MAX_RETRIES" default:"2"`
}

// Webhooks cannot be authenticated without a secret, so production refuses
// to start without one.
func (g GatewayConfig) validate(prod bool) error {
	switch {
	case prod && strings.TrimSpace(g.WebhookSecret) == "":
		return fmt.Errorf("%s is required in production", EnvGatewayWebhookSecret)
	case g.MaxRetries < 0:
		return fmt.Errorf("%s must not be negative", EnvGatewayMaxRetries)
	}
	return nil
}

type ReconcileConfig struct {
	StaleOrderTTL  time.Duration `envconfig:"STOCKYARD_RECONCILE_STALE_ORDER_TTL" default:"30m"`
	SweepBatchSize int           `envconfig:"STOCKYARD_RECONCILE_BATCH_SIZE" default:"100"`
	CronInterval   time.Duration `envconfig:"STOCKYARD_CRON_INTERVAL" default:"5m"`
}

// ensureDSN assembles a postgres URL from the discrete STOCKYARD_DB_* vars
// when no DSN is given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("set %s, or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
