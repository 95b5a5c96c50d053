package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Business      BusinessConfig      `mapstructure:"business"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

type SecurityConfig struct {
	JWTPrivateKey       string        `mapstructure:"jwt_private_key" validate:"required"`
	JWTPublicKey        string        `mapstructure:"jwt_public_key" validate:"required"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m"`
	BCryptCost          int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// BusinessConfig holds the platform's ledger rules. Rates and limits are kept
// as strings in config files and parsed to decimals once at load time.
type BusinessConfig struct {
	DefaultCreditLimit string        `mapstructure:"default_credit_limit"`
	MaxCreditLimit     string        `mapstructure:"max_credit_limit"`
	AutoApproveLimit   string        `mapstructure:"auto_approve_limit"`
	CommissionRate     string        `mapstructure:"commission_rate"`
	RequestExpiry      time.Duration `mapstructure:"request_expiry"`
	SinglePaymentDays  int           `mapstructure:"single_payment_days"`
	WriteRetryAttempts int           `mapstructure:"write_retry_attempts"`
}

// BusinessRules is BusinessConfig with amounts parsed.
type BusinessRules struct {
	DefaultCreditLimit decimal.Decimal
	MaxCreditLimit     decimal.Decimal
	AutoApproveLimit   decimal.Decimal
	CommissionRate     decimal.Decimal
	RequestExpiry      time.Duration
	SinglePaymentDays  int
	WriteRetryAttempts int
}

func (c BusinessConfig) Rules() (BusinessRules, error) {
	rules := BusinessRules{
		RequestExpiry:      c.RequestExpiry,
		SinglePaymentDays:  c.SinglePaymentDays,
		WriteRetryAttempts: c.WriteRetryAttempts,
	}
	if rules.RequestExpiry <= 0 {
		rules.RequestExpiry = 24 * time.Hour
	}
	if rules.SinglePaymentDays <= 0 {
		rules.SinglePaymentDays = 10
	}
	if rules.WriteRetryAttempts <= 0 {
		rules.WriteRetryAttempts = 3
	}

	var err error
	if rules.DefaultCreditLimit, err = parseAmount(c.DefaultCreditLimit, "2000"); err != nil {
		return rules, fmt.Errorf("default_credit_limit: %w", err)
	}
	if rules.MaxCreditLimit, err = parseAmount(c.MaxCreditLimit, "50000"); err != nil {
		return rules, fmt.Errorf("max_credit_limit: %w", err)
	}
	if rules.AutoApproveLimit, err = parseAmount(c.AutoApproveLimit, "5000"); err != nil {
		return rules, fmt.Errorf("auto_approve_limit: %w", err)
	}
	if rules.CommissionRate, err = parseAmount(c.CommissionRate, "0.005"); err != nil {
		return rules, fmt.Errorf("commission_rate: %w", err)
	}
	if rules.CommissionRate.IsNegative() || rules.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return rules, errors.New("commission_rate must be within [0, 1]")
	}
	return rules, nil
}

func parseAmount(s, fallback string) (decimal.Decimal, error) {
	if s == "" {
		s = fallback
	}
	return decimal.NewFromString(s)
}

// LoadConfigFromEnv builds the config purely from environment variables, used
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDR", "") != "",
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			StatsTTL: 5 * time.Minute,
		},
		Security: SecurityConfig{
			JWTPrivateKey:       getEnv("JWT_PRIVATE_KEY", ""),
			JWTPublicKey:        getEnv("JWT_PUBLIC_KEY", ""),
			AccessTokenDuration: 24 * time.Hour,
			BCryptCost:          getEnvAsInt("BCRYPT_COST", 10),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Business: BusinessConfig{
			DefaultCreditLimit: getEnv("DEFAULT_CREDIT_LIMIT", "2000"),
			MaxCreditLimit:     getEnv("MAX_CREDIT_LIMIT", "50000"),
			AutoApproveLimit:   getEnv("AUTO_APPROVE_LIMIT", "5000"),
			CommissionRate:     getEnv("COMMISSION_RATE", "0.005"),
			RequestExpiry:      time.Duration(getEnvAsInt("REQUEST_EXPIRY_HOURS", 24)) * time.Hour,
			SinglePaymentDays:  getEnvAsInt("SINGLE_PAYMENT_DAYS", 10),
			WriteRetryAttempts: getEnvAsInt("WRITE_RETRY_ATTEMPTS", 3),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if _, err := c.Business.Rules(); err != nil {
		errs = append(errs, fmt.Sprintf("business config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver != "" && c.Driver != "postgres" && c.Driver != "sqlite" {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if _, err := c.GetPrivateKey(); err != nil {
		return fmt.Errorf("invalid JWT private key: %w", err)
	}
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid JWT public key: %w", err)
	}
	return nil
}

func (c *SecurityConfig) GetPrivateKey() (*rsa.PrivateKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}
