package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RISBOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RISBOW_DB_DSN"
	EnvDBHost = "RISBOW_DB_HOST"
	EnvDBUser = "RISBOW_DB_USER"
	EnvDBName = "RISBOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	Coins        CoinsConfig
	Razorpay     RazorpayConfig
	Rooms        RoomsConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"RISBOW_APP_ENV" required:"true"`
	Port         string `envconfig:"RISBOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RISBOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RISBOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RISBOW_DB_DSN"`
	Driver string `envconfig:"RISBOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RISBOW_DB_HOST"`
	LegacyPort     int    `envconfig:"RISBOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RISBOW_DB_USER"`
	LegacyPassword string `envconfig:"RISBOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"RISBOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"RISBOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RISBOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RISBOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RISBOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RISBOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RISBOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RISBOW_REDIS_ADDR"`
	Password     string        `envconfig:"RISBOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"RISBOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RISBOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RISBOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RISBOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RISBOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RISBOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RISBOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RISBOW_JWT_ISSUER" default:"risbow"`
	ExpirationMinutes int    `envconfig:"RISBOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CheckoutConfig struct {
	HoldTTL         time.Duration `envconfig:"RISBOW_CHECKOUT_HOLD_TTL" default:"15m"`
	MinPayablePaise int64         `envconfig:"RISBOW_CHECKOUT_MIN_PAYABLE_PAISE" default:"1"`
}

type CoinsConfig struct {
	ReferralRewardPaise int64 `envconfig:"RISBOW_COINS_REFERRAL_REWARD" default:"50"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"RISBOW_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"RISBOW_RAZORPAY_KEY_SECRET" required:"true"`
	BaseURL       string `envconfig:"RISBOW_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	WebhookSecret string `envconfig:"RISBOW_RAZORPAY_WEBHOOK_SECRET"`
}

// SigningSecret returns the secret used to verify payment signatures.
// Razorpay signs checkout callbacks with the key secret, webhooks with the
// dedicated webhook secret when one is configured.
func (r RazorpayConfig) SigningSecret() string {
	if r.WebhookSecret != "" {
		return r.WebhookSecret
	}
	return r.KeySecret
}

type RoomsConfig struct {
	WriteTimeout time.Duration `envconfig:"RISBOW_ROOMS_WS_WRITE_TIMEOUT" default:"10s"`
	SendBuffer   int           `envconfig:"RISBOW_ROOMS_WS_SEND_BUFFER" default:"64"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RISBOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RISBOW_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"RISBOW_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"RISBOW_PUBSUB_EVENTS_TOPIC" default:"risbow-core-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RISBOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RISBOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RISBOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
