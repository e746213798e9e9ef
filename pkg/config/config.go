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
	Geofence      GeofenceConfig
	Ledger        LedgerConfig
	Cron          CronConfig
	Stripe        StripeConfig
	FCM           FCMConfig
	Notifications NotificationsConfig
	CORS          CORSConfig
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
	Env          string `envconfig:"TABLESTARS_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLESTARS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLESTARS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLESTARS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TABLESTARS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TABLESTARS_DB_DSN"`
	Driver string `envconfig:"TABLESTARS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TABLESTARS_DB_HOST"`
	Port     int    `envconfig:"TABLESTARS_DB_PORT" default:"5432"`
	User     string `envconfig:"TABLESTARS_DB_USER"`
	Password string `envconfig:"TABLESTARS_DB_PASSWORD"`
	Name     string `envconfig:"TABLESTARS_DB_NAME"`
	SSLMode  string `envconfig:"TABLESTARS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLESTARS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLESTARS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLESTARS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLESTARS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TABLESTARS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL            string        `envconfig:"TABLESTARS_REDIS_URL" required:"true"`
	Address        string        `envconfig:"TABLESTARS_REDIS_ADDR"`
	Password       string        `envconfig:"TABLESTARS_REDIS_PASSWORD"`
	DB             int           `envconfig:"TABLESTARS_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"TABLESTARS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"TABLESTARS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"TABLESTARS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"TABLESTARS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"TABLESTARS_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"TABLESTARS_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TABLESTARS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TABLESTARS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TABLESTARS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TABLESTARS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TABLESTARS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TABLESTARS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TABLESTARS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TABLESTARS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TABLESTARS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TABLESTARS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TABLESTARS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TABLESTARS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TABLESTARS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TABLESTARS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TABLESTARS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"TABLESTARS_AUTO_MIGRATE" default:"false"`
	MetricsEnabled bool `envconfig:"TABLESTARS_METRICS_ENABLED" default:"true"`
}

type GeofenceConfig struct {
	RadiusMeters float64 `envconfig:"TABLESTARS_GEOFENCE_RADIUS_METERS" default:"100"`
}

type LedgerConfig struct {
	ScanAward int `envconfig:"TABLESTARS_LEDGER_SCAN_AWARD" default:"10"`
}

type CronConfig struct {
	Schedule string        `envconfig:"TABLESTARS_CRON_SCHEDULE" default:"0 * * * *"`
	Embedded bool          `envconfig:"TABLESTARS_CRON_EMBEDDED" default:"true"`
	LockTTL  time.Duration `envconfig:"TABLESTARS_CRON_LOCK_TTL" default:"10m"`
	Timezone string        `envconfig:"TABLESTARS_CRON_TIMEZONE" default:"UTC"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"TABLESTARS_STRIPE_API_KEY"`
	Secret     string `envconfig:"TABLESTARS_STRIPE_SECRET"`
	Env        string `envconfig:"TABLESTARS_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"TABLESTARS_STRIPE_SUCCESS_URL" default:"http://localhost:3000/subscriptions/success"`
	CancelURL  string `envconfig:"TABLESTARS_STRIPE_CANCEL_URL" default:"http://localhost:3000/subscriptions/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether enough Stripe credentials exist to build a client.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.Secret) != ""
}

type FCMConfig struct {
	Enabled         bool   `envconfig:"TABLESTARS_FCM_ENABLED" default:"false"`
	ProjectID       string `envconfig:"TABLESTARS_FCM_PROJECT_ID"`
	CredentialsFile string `envconfig:"TABLESTARS_FCM_CREDENTIALS_FILE"`
	CredentialsJSON string `envconfig:"TABLESTARS_FCM_CREDENTIALS_JSON"`
}

type NotificationsConfig struct {
	Workers     int           `envconfig:"TABLESTARS_NOTIFICATIONS_WORKERS" default:"4"`
	QueueSize   int           `envconfig:"TABLESTARS_NOTIFICATIONS_QUEUE_SIZE" default:"256"`
	SendTimeout time.Duration `envconfig:"TABLESTARS_NOTIFICATIONS_SEND_TIMEOUT" default:"10s"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TABLESTARS_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dsnPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
