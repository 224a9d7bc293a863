package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CLUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv          = "CLUB_APP_ENV"
	EnvLogLevel        = "CLUB_LOG_LEVEL"
	EnvLogFormat       = "CLUB_LOG_FORMAT"
	EnvLogWarnStack    = "CLUB_LOG_WARN_STACK"
	EnvDBPath          = "CLUB_DB_PATH"
	EnvDBBusyTimeout   = "CLUB_DB_BUSY_TIMEOUT"
	EnvDBLogSQL        = "CLUB_DB_LOG_SQL"
	EnvDBAutoMigrate   = "CLUB_DB_AUTO_MIGRATE"
	EnvMetricsFile     = "CLUB_METRICS_FILE"
	EnvBillingCurrency = "CLUB_BILLING_CURRENCY"
	EnvBillingMethod   = "CLUB_BILLING_CHARGE_METHOD"

	// DefaultDBPath is the on-disk store relative to the application root.
	DefaultDBPath = "data/club_manager.db"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Metrics MetricsConfig
	Billing BillingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLUB_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"CLUB_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CLUB_LOG_FORMAT" default:"console"`
	LogWarnStack bool   `envconfig:"CLUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Path        string        `envconfig:"CLUB_DB_PATH" default:"data/club_manager.db"`
	BusyTimeout time.Duration `envconfig:"CLUB_DB_BUSY_TIMEOUT" default:"5s"`
	LogSQL      bool          `envconfig:"CLUB_DB_LOG_SQL" default:"false"`
	AutoMigrate bool          `envconfig:"CLUB_DB_AUTO_MIGRATE" default:"true"`
}

// Dir returns the directory holding the store file.
func (d DBConfig) Dir() string {
	return filepath.Dir(d.Path)
}

type MetricsConfig struct {
	File string `envconfig:"CLUB_METRICS_FILE"`
}

// BillingConfig drives generated charges. ChargeMethod names the payment
// method recorded on monthly fees and penalties.
type BillingConfig struct {
	Currency     string `envconfig:"CLUB_BILLING_CURRENCY" default:"EUR"`
	ChargeMethod string `envconfig:"CLUB_BILLING_CHARGE_METHOD" default:"Efectivo"`
}

func (c *Config) validate() error {
	c.DB.Path = strings.TrimSpace(c.DB.Path)
	if c.DB.Path == "" {
		return fmt.Errorf("%s must not be empty", EnvDBPath)
	}
	if c.DB.BusyTimeout < 0 {
		return fmt.Errorf("%s must not be negative", EnvDBBusyTimeout)
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("%s must be console or json, got %q", EnvLogFormat, c.App.LogFormat)
	}
	c.Billing.Currency = strings.ToUpper(strings.TrimSpace(c.Billing.Currency))
	c.Billing.ChargeMethod = strings.TrimSpace(c.Billing.ChargeMethod)
	if c.Billing.ChargeMethod == "" {
		return fmt.Errorf("%s must not be empty", EnvBillingMethod)
	}
	return nil
}
