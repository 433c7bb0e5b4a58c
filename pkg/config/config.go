package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MEDIAKEEPER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MEDIAKEEPER_DB_DSN"
	EnvDBHost = "MEDIAKEEPER_DB_HOST"
	EnvDBUser = "MEDIAKEEPER_DB_USER"
	EnvDBName = "MEDIAKEEPER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	RateLimit    RateLimitConfig
	Alerts       AlertsConfig
	Scheduler    SchedulerConfig
	Cache        CacheConfig
	Cleanup      CleanupConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"MEDIAKEEPER_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDIAKEEPER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEDIAKEEPER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDIAKEEPER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEDIAKEEPER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEDIAKEEPER_DB_DSN"`
	Driver string `envconfig:"MEDIAKEEPER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEDIAKEEPER_DB_HOST"`
	LegacyPort     int    `envconfig:"MEDIAKEEPER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEDIAKEEPER_DB_USER"`
	LegacyPassword string `envconfig:"MEDIAKEEPER_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEDIAKEEPER_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEDIAKEEPER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDIAKEEPER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDIAKEEPER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDIAKEEPER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDIAKEEPER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDIAKEEPER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEDIAKEEPER_REDIS_ADDR"`
	Password     string        `envconfig:"MEDIAKEEPER_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDIAKEEPER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDIAKEEPER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDIAKEEPER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDIAKEEPER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDIAKEEPER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDIAKEEPER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MEDIAKEEPER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MEDIAKEEPER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MEDIAKEEPER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MEDIAKEEPER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MEDIAKEEPER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MEDIAKEEPER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName      string        `envconfig:"MEDIAKEEPER_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry time.Duration `envconfig:"MEDIAKEEPER_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	PublicBaseURL   string        `envconfig:"MEDIAKEEPER_GCS_PUBLIC_BASE_URL"`
}

type PubSubConfig struct {
	StorageEventsSubscription string `envconfig:"MEDIAKEEPER_PUBSUB_STORAGE_EVENTS_SUBSCRIPTION"`
}

// RateLimitConfig holds the fixed-window budgets per operation class.
type RateLimitConfig struct {
	UploadWindow  time.Duration `envconfig:"MEDIAKEEPER_RATE_LIMIT_UPLOAD_WINDOW" default:"1m"`
	UploadLimit   int           `envconfig:"MEDIAKEEPER_RATE_LIMIT_UPLOAD_LIMIT" default:"10"`
	CleanupWindow time.Duration `envconfig:"MEDIAKEEPER_RATE_LIMIT_CLEANUP_WINDOW" default:"5m"`
	CleanupLimit  int           `envconfig:"MEDIAKEEPER_RATE_LIMIT_CLEANUP_LIMIT" default:"2"`
	MutateWindow  time.Duration `envconfig:"MEDIAKEEPER_RATE_LIMIT_MUTATE_WINDOW" default:"1m"`
	MutateLimit   int           `envconfig:"MEDIAKEEPER_RATE_LIMIT_MUTATE_LIMIT" default:"30"`
	ViewWindow    time.Duration `envconfig:"MEDIAKEEPER_RATE_LIMIT_VIEW_WINDOW" default:"1m"`
	ViewLimit     int           `envconfig:"MEDIAKEEPER_RATE_LIMIT_VIEW_LIMIT" default:"120"`
}

// AlertsConfig carries the thresholds the monitor evaluates.
type AlertsConfig struct {
	OrphanPercentWarn       float64 `envconfig:"MEDIAKEEPER_ALERT_ORPHAN_PERCENT_WARN" default:"20"`
	OrphanPercentDegraded   float64 `envconfig:"MEDIAKEEPER_ALERT_ORPHAN_PERCENT_DEGRADED" default:"30"`
	OrphanStorageGiBWarn    float64 `envconfig:"MEDIAKEEPER_ALERT_ORPHAN_STORAGE_GIB_WARN" default:"1"`
	FailureRatePercentError float64 `envconfig:"MEDIAKEEPER_ALERT_FAILURE_RATE_PERCENT_ERROR" default:"10"`
	FailureRatePercentCrit  float64 `envconfig:"MEDIAKEEPER_ALERT_FAILURE_RATE_PERCENT_CRIT" default:"25"`
	StaleOrphanDays         int     `envconfig:"MEDIAKEEPER_ALERT_STALE_ORPHAN_DAYS" default:"90"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `envconfig:"MEDIAKEEPER_SCHEDULER_POLL_INTERVAL" default:"1m"`
	LockTTL      time.Duration `envconfig:"MEDIAKEEPER_SCHEDULER_LOCK_TTL" default:"10m"`
}

// CacheConfig defines the TTL bands for the query cache layer.
type CacheConfig struct {
	ListTTL            time.Duration `envconfig:"MEDIAKEEPER_CACHE_LIST_TTL" default:"5m"`
	SearchTTL          time.Duration `envconfig:"MEDIAKEEPER_CACHE_SEARCH_TTL" default:"5m"`
	UsageTTL           time.Duration `envconfig:"MEDIAKEEPER_CACHE_USAGE_TTL" default:"30m"`
	OrphanListTTL      time.Duration `envconfig:"MEDIAKEEPER_CACHE_ORPHAN_LIST_TTL" default:"30m"`
	StatsTTL           time.Duration `envconfig:"MEDIAKEEPER_CACHE_STATS_TTL" default:"10m"`
	FallbackMaxEntries int           `envconfig:"MEDIAKEEPER_CACHE_FALLBACK_MAX_ENTRIES" default:"1024"`
}

type CleanupConfig struct {
	RecentUploadGrace time.Duration `envconfig:"MEDIAKEEPER_CLEANUP_RECENT_UPLOAD_GRACE" default:"1h"`
	MaxBatchSize      int           `envconfig:"MEDIAKEEPER_CLEANUP_MAX_BATCH_SIZE" default:"500"`
}

type FeatureFlagsConfig struct {
	UseSQLite           bool `envconfig:"MEDIAKEEPER_USE_SQLITE" default:"false"`
	AutoMigrate         bool `envconfig:"MEDIAKEEPER_AUTO_MIGRATE" default:"false"`
	BlockingContentScan bool `envconfig:"MEDIAKEEPER_BLOCKING_CONTENT_SCAN" default:"false"`
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
