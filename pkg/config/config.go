package config

import (
	"fmt"
	"net/url"
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
	FeatureFlags FeatureFlagsConfig
	Assignment   AssignmentConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	WhatsApp     WhatsAppConfig
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
	Env          string `envconfig:"TRADEBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADEBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADEBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADEBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADEBRIDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADEBRIDGE_DB_DSN"`
	Driver string `envconfig:"TRADEBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADEBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADEBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADEBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"TRADEBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADEBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADEBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADEBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADEBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADEBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADEBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADEBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADEBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"TRADEBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADEBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADEBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADEBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADEBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADEBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADEBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRADEBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADEBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADEBRIDGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRADEBRIDGE_AUTO_MIGRATE" default:"false"`
}

// AssignmentConfig controls the transporter assignment offer window.
type AssignmentConfig struct {
	DefaultTTLMinutes int           `envconfig:"TRADEBRIDGE_ASSIGNMENT_DEFAULT_TTL_MINUTES" default:"30"`
	MaxTTLMinutes     int           `envconfig:"TRADEBRIDGE_ASSIGNMENT_MAX_TTL_MINUTES" default:"1440"`
	SweepInterval     time.Duration `envconfig:"TRADEBRIDGE_ASSIGNMENT_SWEEP_INTERVAL" default:"1m"`
}

// DefaultTTL returns the default assignment offer TTL.
func (a AssignmentConfig) DefaultTTL() time.Duration {
	if a.DefaultTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(a.DefaultTTLMinutes) * time.Minute
}

// MaxTTL caps how far into the future a caller may push the offer expiry.
func (a AssignmentConfig) MaxTTL() time.Duration {
	if a.MaxTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.MaxTTLMinutes) * time.Minute
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TRADEBRIDGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADEBRIDGE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TRADEBRIDGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRADEBRIDGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TRADEBRIDGE_PUBSUB_ORDERS_TOPIC" default:"tb-order-events"`
	OrdersSubscription string `envconfig:"TRADEBRIDGE_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADEBRIDGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADEBRIDGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADEBRIDGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// WhatsAppConfig points at the outbound messaging gateway.
type WhatsAppConfig struct {
	BaseURL string        `envconfig:"TRADEBRIDGE_WHATSAPP_BASE_URL"`
	APIKey  string        `envconfig:"TRADEBRIDGE_WHATSAPP_API_KEY"`
	Timeout time.Duration `envconfig:"TRADEBRIDGE_WHATSAPP_TIMEOUT" default:"10s"`
}

// Enabled reports whether the gateway is configured at all.
func (w WhatsAppConfig) Enabled() bool {
	return strings.TrimSpace(w.BaseURL) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TRADEBRIDGE_CRON_INTERVAL" default:"1m"`
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
