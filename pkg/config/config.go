package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = "INVENTORY"
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Ledger LedgerConfig
	Report ReportConfig
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
	Env         string `envconfig:"INVENTORY_APP_ENV" default:"dev"`
	Name        string `envconfig:"INVENTORY_APP_NAME" default:"Inventory Ledger"`
	Port        string `envconfig:"PORT" default:"3000"`
	LogLevel    string `envconfig:"INVENTORY_LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"INVENTORY_LOG_FORMAT" default:"json"`
	AutoMigrate bool   `envconfig:"INVENTORY_AUTO_MIGRATE" default:"false"`
	SeedAdmin   bool   `envconfig:"INVENTORY_SEED_ADMIN" default:"true"`

	AdminUsername string `envconfig:"INVENTORY_ADMIN_USERNAME" default:"admin"`
	AdminEmail    string `envconfig:"INVENTORY_ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"INVENTORY_ADMIN_PASSWORD" default:"admin123"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"DATABASE_URL"`

	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"inventory"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INVENTORY_DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"INVENTORY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INVENTORY_DB_CONN_MAX_LIFETIME" default:"1h"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.Name == "" {
		return fmt.Errorf("database DSN or DB_HOST/DB_NAME is required")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	d.DSN = u.String()
	return nil
}

// RedisConfig is optional. An empty URL disables caching and distributed locking.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"INVENTORY_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"INVENTORY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INVENTORY_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"INVENTORY_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type JWTConfig struct {
	Secret          string `envconfig:"JWT_SECRET" default:"change-me-in-production"`
	Issuer          string `envconfig:"INVENTORY_JWT_ISSUER" default:"go-inventory-ledger"`
	ExpirationHours int    `envconfig:"INVENTORY_JWT_EXPIRATION_HOURS" default:"24"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationHours) * time.Hour
}

type LedgerConfig struct {
	MaxRetries  int           `envconfig:"INVENTORY_LEDGER_MAX_RETRIES" default:"3"`
	LockTTL     time.Duration `envconfig:"INVENTORY_LEDGER_LOCK_TTL" default:"10s"`
	LockTimeout time.Duration `envconfig:"INVENTORY_LEDGER_LOCK_TIMEOUT" default:"5s"`
}

type ReportConfig struct {
	CacheTTL      time.Duration `envconfig:"INVENTORY_REPORT_CACHE_TTL" default:"30s"`
	LowStockLimit int           `envconfig:"INVENTORY_REPORT_LOW_STOCK_LIMIT" default:"10"`
	RecentLimit   int           `envconfig:"INVENTORY_REPORT_RECENT_LIMIT" default:"5"`
	TopLimit      int           `envconfig:"INVENTORY_REPORT_TOP_LIMIT" default:"5"`
}
