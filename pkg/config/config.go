package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "LASTBITE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Env var names referenced outside struct tags (tests, tooling).
const (
	EnvAppEnv          = "LASTBITE_APP_ENV"
	EnvPort            = "LASTBITE_APP_PORT"
	EnvDBDSN           = "LASTBITE_DB_DSN"
	EnvDBHost          = "LASTBITE_DB_HOST"
	EnvDBUser          = "LASTBITE_DB_USER"
	EnvDBName          = "LASTBITE_DB_NAME"
	EnvRedisURL        = "LASTBITE_REDIS_URL"
	EnvJWTSecret       = "LASTBITE_JWT_SECRET"
	EnvJWTIssuer       = "LASTBITE_JWT_ISSUER"
	EnvJWTExpMins      = "LASTBITE_JWT_EXPIRATION_MINUTES"
	EnvGatewayBaseURL  = "LASTBITE_GATEWAY_BASE_URL"
	EnvGatewayAPIKey   = "LASTBITE_GATEWAY_API_KEY"
	EnvGatewaySecret   = "LASTBITE_GATEWAY_WEBHOOK_SECRET"
	EnvGCPProjectID    = "LASTBITE_GCP_PROJECT_ID"
	EnvOrdersTopic     = "LASTBITE_PUBSUB_ORDERS_TOPIC"
	EnvDeepLinkBaseURL = "LASTBITE_APP_DEEP_LINK_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	Loyalty      LoyaltyConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string `envconfig:"LASTBITE_APP_ENV" required:"true"`
	Port            string `envconfig:"LASTBITE_APP_PORT" required:"true"`
	LogLevel        string `envconfig:"LASTBITE_LOG_LEVEL" default:"info"`
	LogWarnStack    bool   `envconfig:"LASTBITE_LOG_WARN_STACK" default:"false"`
	PublicBaseURL   string `envconfig:"LASTBITE_APP_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	DeepLinkBaseURL string `envconfig:"LASTBITE_APP_DEEP_LINK_BASE_URL" default:"lastbite://checkout"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LASTBITE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LASTBITE_DB_DSN"`
	Driver string `envconfig:"LASTBITE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LASTBITE_DB_HOST"`
	LegacyPort     int    `envconfig:"LASTBITE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LASTBITE_DB_USER"`
	LegacyPassword string `envconfig:"LASTBITE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LASTBITE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LASTBITE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LASTBITE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LASTBITE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LASTBITE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LASTBITE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LASTBITE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LASTBITE_REDIS_ADDR"`
	Password     string        `envconfig:"LASTBITE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LASTBITE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LASTBITE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LASTBITE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LASTBITE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LASTBITE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LASTBITE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LASTBITE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LASTBITE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LASTBITE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// GatewayConfig holds the payment provider connection. The webhook secret is
// required: a deployment without it must fail at startup, never fall back to
// accepting unsigned events.
type GatewayConfig struct {
	BaseURL       string        `envconfig:"LASTBITE_GATEWAY_BASE_URL" required:"true"`
	APIKey        string        `envconfig:"LASTBITE_GATEWAY_API_KEY" required:"true"`
	WebhookSecret string        `envconfig:"LASTBITE_GATEWAY_WEBHOOK_SECRET" required:"true"`
	Timeout       time.Duration `envconfig:"LASTBITE_GATEWAY_TIMEOUT" default:"10s"`
	StatusPolls   int           `envconfig:"LASTBITE_GATEWAY_STATUS_POLLS" default:"3"`
}

type CheckoutConfig struct {
	PlatformFeePercent string        `envconfig:"LASTBITE_CHECKOUT_PLATFORM_FEE_PERCENT" default:"7.5"`
	PendingOrderTTL    time.Duration `envconfig:"LASTBITE_CHECKOUT_PENDING_ORDER_TTL" default:"30m"`
	ReserveTxTimeout   time.Duration `envconfig:"LASTBITE_CHECKOUT_RESERVE_TX_TIMEOUT" default:"5s"`
}

type LoyaltyConfig struct {
	PointsPerOrder int `envconfig:"LASTBITE_LOYALTY_POINTS_PER_ORDER" default:"1"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LASTBITE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"LASTBITE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"LASTBITE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"LASTBITE_PUBSUB_ORDERS_TOPIC" default:"lb-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LASTBITE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LASTBITE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LASTBITE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LASTBITE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"LASTBITE_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
