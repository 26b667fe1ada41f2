package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CARTSYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Sync         SyncConfig
	Sweeper      SweeperConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"CARTSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CARTSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARTSYNC_DB_DSN"`
	Driver string `envconfig:"CARTSYNC_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CARTSYNC_DB_HOST"`
	Port     int    `envconfig:"CARTSYNC_DB_PORT" default:"5432"`
	User     string `envconfig:"CARTSYNC_DB_USER"`
	Password string `envconfig:"CARTSYNC_DB_PASSWORD"`
	Name     string `envconfig:"CARTSYNC_DB_NAME"`
	SSLMode  string `envconfig:"CARTSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARTSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTSYNC_REDIS_URL"`
	Address      string        `envconfig:"CARTSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CARTSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"CARTSYNC_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CARTSYNC_JWT_ISSUER" default:"cartsync"`
}

// SyncConfig drives the client-side engine: where the authoritative API lives
// and how long the cached tiers are trusted.
type SyncConfig struct {
	ServerBaseURL  string        `envconfig:"CARTSYNC_SYNC_SERVER_BASE_URL"`
	RequestTimeout time.Duration `envconfig:"CARTSYNC_SYNC_REQUEST_TIMEOUT" default:"10s"`
	MirrorTTL      time.Duration `envconfig:"CARTSYNC_SYNC_MIRROR_TTL" default:"720h"`
	ClearIntentTTL time.Duration `envconfig:"CARTSYNC_SYNC_CLEAR_INTENT_TTL" default:"168h"`
}

type SweeperConfig struct {
	Interval  time.Duration `envconfig:"CARTSYNC_SWEEPER_INTERVAL" default:"24h"`
	Retention time.Duration `envconfig:"CARTSYNC_SWEEPER_RETENTION" default:"168h"`
	LockTTL   time.Duration `envconfig:"CARTSYNC_SWEEPER_LOCK_TTL" default:"25h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CARTSYNC_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CARTSYNC_PUBSUB_NOTIFICATION_TOPIC" default:"cartsync-sync-events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARTSYNC_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsSQLite() {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"CARTSYNC_DB_HOST": db.Host,
		"CARTSYNC_DB_USER": db.User,
		"CARTSYNC_DB_NAME": db.Name,
	}
	for _, key := range []string{"CARTSYNC_DB_HOST", "CARTSYNC_DB_USER", "CARTSYNC_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either CARTSYNC_DB_DSN or %s are required", strings.Join(missing, ", "))
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
