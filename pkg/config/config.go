package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

const EnvPrefix = "STOREFRONT"

const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvStorageDriver   = "STOREFRONT_STORAGE_DRIVER"
	EnvStorageKey      = "STOREFRONT_STORAGE_KEY"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvDBDriver        = "STOREFRONT_DB_DRIVER"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvCommerceBaseURL = "STOREFRONT_COMMERCE_BASE_URL"
	EnvCommerceToken   = "STOREFRONT_COMMERCE_TOKEN"
	EnvReconcileTO     = "STOREFRONT_CART_RECONCILE_TIMEOUT"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQL    = "sql"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

type Config struct {
	App      AppConfig
	Storage  StorageConfig
	Redis    RedisConfig
	DB       DBConfig
	Commerce CommerceConfig
	Cart     CartConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs error

	switch c.Storage.Driver {
	case StorageMemory, StorageSQL:
	case StorageRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s or STOREFRONT_REDIS_ADDR is required for the redis storage driver", EnvRedisURL))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported storage driver %q", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be empty", EnvStorageKey))
	}

	if c.Storage.Driver == StorageSQL {
		switch c.DB.Driver {
		case DBDriverSQLite, DBDriverPostgres:
		default:
			errs = multierr.Append(errs, fmt.Errorf("unsupported db driver %q", c.DB.Driver))
		}
		if c.DB.DSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s is required for the sql storage driver", EnvDBDSN))
		}
	}

	if c.Commerce.BaseURL != "" {
		if u, err := url.Parse(c.Commerce.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s must be an absolute url", EnvCommerceBaseURL))
		}
	}
	if c.Commerce.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("commerce timeout must be positive"))
	}
	if c.Cart.ReconcileTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvReconcileTO))
	}
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated list of storefront UI origins.
	CORSOrigins []string `envconfig:"STOREFRONT_APP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StorageConfig selects where the cart snapshot is persisted.
type StorageConfig struct {
	Driver      string `envconfig:"STOREFRONT_STORAGE_DRIVER" default:"memory"`
	Key         string `envconfig:"STOREFRONT_STORAGE_KEY" default:"cart-storage"`
	AutoMigrate bool   `envconfig:"STOREFRONT_STORAGE_AUTO_MIGRATE" default:"true"`
	// TTL expires redis records; zero keeps them.
	TTL time.Duration `envconfig:"STOREFRONT_STORAGE_TTL" default:"0s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type DBConfig struct {
	Driver          string        `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"STOREFRONT_DB_DSN" default:"file:storefront-cart.db?_busy_timeout=5000"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
}

// CommerceConfig points at the remote storefront REST API.
type CommerceConfig struct {
	BaseURL             string        `envconfig:"STOREFRONT_COMMERCE_BASE_URL" default:"http://localhost:8000/api"`
	Token               string        `envconfig:"STOREFRONT_COMMERCE_TOKEN"`
	Timeout             time.Duration `envconfig:"STOREFRONT_COMMERCE_TIMEOUT" default:"10s"`
	ConsecutiveFailures uint32        `envconfig:"STOREFRONT_COMMERCE_BREAKER_FAILURES" default:"5"`
	OpenTimeout         time.Duration `envconfig:"STOREFRONT_COMMERCE_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type CartConfig struct {
	ReconcileTimeout time.Duration `envconfig:"STOREFRONT_CART_RECONCILE_TIMEOUT" default:"10s"`
	ReconcileOnStart bool          `envconfig:"STOREFRONT_CART_RECONCILE_ON_START" default:"false"`
	ChangeChannel    string        `envconfig:"STOREFRONT_CART_CHANGE_CHANNEL" default:"cart-changes"`
}
