package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvDBDSN  = "PAIRSPACE_DB_DSN"
	EnvDBHost = "PAIRSPACE_DB_HOST"
	EnvDBUser = "PAIRSPACE_DB_USER"
	EnvDBName = "PAIRSPACE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Presence     PresenceConfig
	Media        MediaConfig
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
	Env          string `envconfig:"PAIRSPACE_APP_ENV" required:"true"`
	Port         string `envconfig:"PAIRSPACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAIRSPACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAIRSPACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAIRSPACE_DB_DSN"`
	Driver string `envconfig:"PAIRSPACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAIRSPACE_DB_HOST"`
	LegacyPort     int    `envconfig:"PAIRSPACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAIRSPACE_DB_USER"`
	LegacyPassword string `envconfig:"PAIRSPACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAIRSPACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAIRSPACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAIRSPACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAIRSPACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAIRSPACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAIRSPACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAIRSPACE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAIRSPACE_REDIS_ADDR"`
	Password     string        `envconfig:"PAIRSPACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAIRSPACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAIRSPACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAIRSPACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAIRSPACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAIRSPACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAIRSPACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PAIRSPACE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PAIRSPACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PAIRSPACE_JWT_EXPIRATION_MINUTES" default:"43200"`
}

type RateLimitConfig struct {
	RegisterWindow  time.Duration `envconfig:"PAIRSPACE_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit int           `envconfig:"PAIRSPACE_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type PresenceConfig struct {
	SendQueueSize     int           `envconfig:"PAIRSPACE_WS_SEND_QUEUE" default:"64"`
	WriteTimeout      time.Duration `envconfig:"PAIRSPACE_WS_WRITE_TIMEOUT" default:"5s"`
	ReadIdleTimeout   time.Duration `envconfig:"PAIRSPACE_WS_READ_IDLE_TIMEOUT" default:"2m"`
	HeartbeatInterval time.Duration `envconfig:"PAIRSPACE_WS_HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatTimeout  time.Duration `envconfig:"PAIRSPACE_WS_HEARTBEAT_TIMEOUT" default:"10s"`
	AllowedOrigins    []string      `envconfig:"PAIRSPACE_WS_ALLOWED_ORIGINS" default:"localhost,127.0.0.1"`
}

type MediaConfig struct {
	UploadSigningSecret string `envconfig:"PAIRSPACE_MEDIA_SIGNING_SECRET"`
	UploadFolder        string `envconfig:"PAIRSPACE_MEDIA_UPLOAD_FOLDER" default:"photo-shares"`
	UploadKeyID         string `envconfig:"PAIRSPACE_MEDIA_UPLOAD_KEY_ID"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAIRSPACE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAIRSPACE_AUTO_MIGRATE" default:"false"`
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
