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
	FeatureFlags  FeatureFlagsConfig
	Wallet        WalletConfig
	Payments      PaymentsConfig
	Delivery      DeliveryConfig
	Notifications NotificationsConfig
	Idempotency   IdempotencyConfig
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
	if err := cfg.Wallet.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"FOODDASH_APP_ENV" required:"true"`
	Port         string   `envconfig:"FOODDASH_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FOODDASH_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"FOODDASH_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"FOODDASH_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FOODDASH_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FOODDASH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FOODDASH_DB_DSN"`
	Driver string `envconfig:"FOODDASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FOODDASH_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODDASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODDASH_DB_USER"`
	LegacyPassword string `envconfig:"FOODDASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODDASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODDASH_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"FOODDASH_SQLITE_PATH" default:"fooddash.db"`

	MaxOpenConns    int           `envconfig:"FOODDASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODDASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODDASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODDASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODDASH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FOODDASH_REDIS_ADDR"`
	Password     string        `envconfig:"FOODDASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODDASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODDASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODDASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODDASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODDASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODDASH_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"FOODDASH_REDIS_KEY_PREFIX" default:"fd"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FOODDASH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FOODDASH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FOODDASH_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FOODDASH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FOODDASH_AUTO_MIGRATE" default:"false"`
	DemoTopups  bool `envconfig:"FOODDASH_FEATURE_DEMO_TOPUPS" default:"false"`
}

// WalletConfig controls the ledger currency, when wallet orders are charged
// and the accepted top-up range (minor units).
type WalletConfig struct {
	Currency       string `envconfig:"FOODDASH_WALLET_CURRENCY" default:"IDR"`
	ChargeOn       string `envconfig:"FOODDASH_WALLET_CHARGE_ON" default:"placement"`
	MinTopupMinor  int64  `envconfig:"FOODDASH_WALLET_MIN_TOPUP_MINOR" default:"10000"`
	MaxTopupMinor  int64  `envconfig:"FOODDASH_WALLET_MAX_TOPUP_MINOR" default:"5000000"`
	CurrencyDigits int32  `envconfig:"FOODDASH_WALLET_CURRENCY_DIGITS" default:"0"`
}

func (w WalletConfig) ChargeOnConfirmation() bool {
	return strings.EqualFold(strings.TrimSpace(w.ChargeOn), ChargeOnConfirmation)
}

func (w WalletConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(w.ChargeOn)) {
	case ChargeOnPlacement, ChargeOnConfirmation:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvWalletChargeOn, ChargeOnPlacement, ChargeOnConfirmation)
	}
	if w.MinTopupMinor <= 0 {
		return fmt.Errorf("%s must be positive", EnvWalletMinTopup)
	}
	if w.MaxTopupMinor < w.MinTopupMinor {
		return fmt.Errorf("%s must be >= %s", EnvWalletMaxTopup, EnvWalletMinTopup)
	}
	return nil
}

type PaymentsConfig struct {
	MidtransServerKey string        `envconfig:"FOODDASH_MIDTRANS_SERVER_KEY"`
	MidtransClientKey string        `envconfig:"FOODDASH_MIDTRANS_CLIENT_KEY"`
	MidtransEnv       string        `envconfig:"FOODDASH_MIDTRANS_ENV" default:"sandbox"`
	GatewayTimeout    time.Duration `envconfig:"FOODDASH_PAYMENTS_GATEWAY_TIMEOUT" default:"10s"`
	WebhookTTL        time.Duration `envconfig:"FOODDASH_PAYMENTS_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// Environment returns the normalized Midtrans environment (sandbox/production).
func (p PaymentsConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.MidtransEnv))
	if env == "" {
		return "sandbox"
	}
	return env
}

type DeliveryConfig struct {
	MaxFailedAttempts int           `envconfig:"FOODDASH_DELIVERY_MAX_FAILED_ATTEMPTS" default:"5"`
	AttemptWindow     time.Duration `envconfig:"FOODDASH_DELIVERY_ATTEMPT_WINDOW" default:"15m"`
}

type NotificationsConfig struct {
	DispatchTimeout time.Duration `envconfig:"FOODDASH_NOTIFICATIONS_DISPATCH_TIMEOUT" default:"3s"`
	RealtimeChannel string        `envconfig:"FOODDASH_NOTIFICATIONS_REALTIME_CHANNEL" default:"realtime"`
	ReadRetention   time.Duration `envconfig:"FOODDASH_NOTIFICATIONS_READ_RETENTION" default:"720h"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"FOODDASH_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	Interval      time.Duration `envconfig:"FOODDASH_CRON_INTERVAL" default:"5m"`
	LockTTL       time.Duration `envconfig:"FOODDASH_CRON_LOCK_TTL" default:"10m"`
	TopupStaleTTL time.Duration `envconfig:"FOODDASH_CRON_TOPUP_STALE_TTL" default:"24h"`
	BatchSize     int           `envconfig:"FOODDASH_CRON_BATCH_SIZE" default:"100"`
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
