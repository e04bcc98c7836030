package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env           string              `mapstructure:"env" envconfig:"APP_ENV"`
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY"`
	PayPal        PayPalConfig        `mapstructure:"paypal" envconfig:"PAYPAL"`
	Settlement    SettlementConfig    `mapstructure:"settlement" envconfig:"SETTLEMENT"`
	Withdrawal    WithdrawalConfig    `mapstructure:"withdrawal" envconfig:"WITHDRAWAL"`
	Redis         RedisConfig         `mapstructure:"redis" envconfig:"REDIS"`
	Messaging     MessagingConfig     `mapstructure:"messaging" envconfig:"MESSAGING"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

// SecurityConfig holds the shared secret of the platform's auth provider.
// Tokens are verified here, never issued.
type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" envconfig:"JWT_SECRET" validate:"required,min=32"`
	JWTIssuer string `mapstructure:"jwt_issuer" envconfig:"JWT_ISSUER"`
}

type PayPalConfig struct {
	BaseURL        string        `mapstructure:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	ClientID       string        `mapstructure:"client_id" envconfig:"VITE_PAYPAL_CLIENT_ID" validate:"required"`
	ClientSecret   string        `mapstructure:"client_secret" envconfig:"VITE_PAYPAL_CLIENT_SECRET" validate:"required"`
	Currency       string        `mapstructure:"currency" envconfig:"CURRENCY" validate:"len=3"`
	Timeout        time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT" validate:"required"`
	VerifyCaptures bool          `mapstructure:"verify_captures" envconfig:"VERIFY_CAPTURES"`
}

type SettlementConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL" validate:"required"`
	BatchSize    int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE" validate:"min=1"`
	MaxWorkers   int           `mapstructure:"max_workers" envconfig:"MAX_WORKERS" validate:"min=1"`
	JobQueueSize int           `mapstructure:"job_queue_size" envconfig:"JOB_QUEUE_SIZE" validate:"min=1"`
	LockTTL      time.Duration `mapstructure:"lock_ttl" envconfig:"LOCK_TTL" validate:"required"`
	HoldPeriod   time.Duration `mapstructure:"hold_period" envconfig:"HOLD_PERIOD" validate:"required"`
	Timezone     string        `mapstructure:"timezone" envconfig:"TIMEZONE"`
	RunInServer  bool          `mapstructure:"run_in_server" envconfig:"RUN_IN_SERVER"`
}

type WithdrawalConfig struct {
	StaleAfter        time.Duration `mapstructure:"stale_after" envconfig:"STALE_AFTER" validate:"required"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" envconfig:"RECONCILE_INTERVAL" validate:"required"`
	LockTTL           time.Duration `mapstructure:"lock_ttl" envconfig:"LOCK_TTL" validate:"required"`
	MaxPayoutAttempts int           `mapstructure:"max_payout_attempts" envconfig:"MAX_PAYOUT_ATTEMPTS" validate:"min=1"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" envconfig:"ADDR"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	DB       int    `mapstructure:"db" envconfig:"DB" validate:"min=0"`
}

type MessagingConfig struct {
	AMQPURL  string `mapstructure:"amqp_url" envconfig:"AMQP_URL" validate:"omitempty,url"`
	Exchange string `mapstructure:"exchange" envconfig:"EXCHANGE" validate:"required_with=AMQPURL"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	Path    string `mapstructure:"path" envconfig:"METRICS_PATH" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from process environment only.
// PayPal credentials are also read from VITE_PAYPAL_CLIENT_ID and
// VITE_PAYPAL_CLIENT_SECRET.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the values used in local development.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.AllowedOrigins == "" {
		c.Server.AllowedOrigins = "http://localhost:5173"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 20 * time.Second
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 5 * time.Minute
	}

	if c.PayPal.BaseURL == "" {
		c.PayPal.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	if c.PayPal.Currency == "" {
		c.PayPal.Currency = "USD"
	}
	if c.PayPal.Timeout == 0 {
		c.PayPal.Timeout = 15 * time.Second
	}

	if c.Settlement.PollInterval == 0 {
		c.Settlement.PollInterval = time.Minute
	}
	if c.Settlement.BatchSize == 0 {
		c.Settlement.BatchSize = 100
	}
	if c.Settlement.MaxWorkers == 0 {
		c.Settlement.MaxWorkers = 4
	}
	if c.Settlement.JobQueueSize == 0 {
		c.Settlement.JobQueueSize = c.Settlement.BatchSize
	}
	if c.Settlement.LockTTL == 0 {
		c.Settlement.LockTTL = 2 * time.Minute
	}
	if c.Settlement.HoldPeriod == 0 {
		c.Settlement.HoldPeriod = 24 * time.Hour
	}
	if c.Settlement.Timezone == "" {
		c.Settlement.Timezone = "UTC"
	}

	if c.Withdrawal.StaleAfter == 0 {
		c.Withdrawal.StaleAfter = 10 * time.Minute
	}
	if c.Withdrawal.ReconcileInterval == 0 {
		c.Withdrawal.ReconcileInterval = 5 * time.Minute
	}
	if c.Withdrawal.LockTTL == 0 {
		c.Withdrawal.LockTTL = time.Minute
	}
	if c.Withdrawal.MaxPayoutAttempts == 0 {
		c.Withdrawal.MaxPayoutAttempts = 3
	}

	if c.Messaging.AMQPURL != "" && c.Messaging.Exchange == "" {
		c.Messaging.Exchange = "settlement.events"
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Settlement.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("settlement config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	for _, origin := range c.Origins() {
		if origin == "*" {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SettlementConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.JobQueueSize < c.BatchSize {
		return errors.New("job_queue_size must be >= batch_size")
	}
	return nil
}

// Location is the zone appointment dates are interpreted in.
func (c *SettlementConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
