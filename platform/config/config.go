// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DispatchConfig provides tuning knobs for candidate dispatch and retry.
type DispatchConfig interface {
	GetMinRadiusKM() float64
	GetMaxRadiusKM() float64
	GetMaxDispatchRounds() int
	GetDispatchRoundWindow() time.Duration
	GetRadiusGrowthFactor() float64
	GetCreateRatePerMinute() float64
	GetCreateBurst() int
}

// PricingConfig provides settings for the price estimator.
type PricingConfig interface {
	GetPricingBaselineCents() int64
	GetPricingBaselineRadiusKM() float64
}

// MailConfig provides settings for outcome mail delivery.
type MailConfig interface {
	GetMailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetMailFromName() string
	GetMailFromAddress() string
	GetMailOpsAddress() string
}

// SettlementConfig provides settings for the settlement emitter.
type SettlementConfig interface {
	GetSettlementURL() string
	IsSettlementEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MinRadiusKM         float64
	MaxRadiusKM         float64
	MaxDispatchRounds   int
	DispatchRoundWindow time.Duration
	RadiusGrowthFactor  float64
	CreateRatePerMinute float64
	CreateBurst         int

	PricingBaselineCents    int64
	PricingBaselineRadiusKM float64

	MailEnabled     bool
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFromName    string
	MailFromAddress string
	MailOpsAddress  string

	SettlementURL string
}

// Load reads configuration from the environment (and an optional .env file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "dispatch"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		MinRadiusKM:         mustFloat(getEnv("DISPATCH_MIN_RADIUS_KM", "0.5")),
		MaxRadiusKM:         mustFloat(getEnv("DISPATCH_MAX_RADIUS_KM", "30")),
		MaxDispatchRounds:   mustInt(getEnv("DISPATCH_MAX_ROUNDS", "3")),
		DispatchRoundWindow: mustDuration(getEnv("DISPATCH_ROUND_WINDOW", "10m")),
		RadiusGrowthFactor:  mustFloat(getEnv("DISPATCH_RADIUS_GROWTH", "1.5")),
		CreateRatePerMinute: mustFloat(getEnv("DISPATCH_CREATE_RATE", "5")),
		CreateBurst:         mustInt(getEnv("DISPATCH_CREATE_BURST", "3")),

		PricingBaselineCents:    int64(mustInt(getEnv("PRICING_BASELINE_CENTS", "5000"))),
		PricingBaselineRadiusKM: mustFloat(getEnv("PRICING_BASELINE_RADIUS_KM", "5")),

		MailEnabled:     strings.EqualFold(getEnv("MAIL_ENABLED", "false"), "true"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		MailFromName:    getEnv("MAIL_FROM_NAME", "Dispatch"),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", ""),
		MailOpsAddress:  getEnv("MAIL_OPS_ADDRESS", ""),

		SettlementURL: getEnv("SETTLEMENT_URL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.MailEnabled && (cfg.SMTPHost == "" || cfg.MailFromAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST and MAIL_FROM_ADDRESS are required when MAIL_ENABLED is true")
	}
	if cfg.MinRadiusKM <= 0 || cfg.MaxRadiusKM <= cfg.MinRadiusKM {
		return nil, fmt.Errorf("invalid radius bounds: min %.2f, max %.2f", cfg.MinRadiusKM, cfg.MaxRadiusKM)
	}
	if cfg.RadiusGrowthFactor <= 1 {
		return nil, fmt.Errorf("DISPATCH_RADIUS_GROWTH must be greater than 1")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetMinRadiusKM() float64               { return c.MinRadiusKM }
func (c *Config) GetMaxRadiusKM() float64               { return c.MaxRadiusKM }
func (c *Config) GetMaxDispatchRounds() int             { return c.MaxDispatchRounds }
func (c *Config) GetDispatchRoundWindow() time.Duration { return c.DispatchRoundWindow }
func (c *Config) GetRadiusGrowthFactor() float64        { return c.RadiusGrowthFactor }
func (c *Config) GetCreateRatePerMinute() float64       { return c.CreateRatePerMinute }
func (c *Config) GetCreateBurst() int                   { return c.CreateBurst }

func (c *Config) GetPricingBaselineCents() int64      { return c.PricingBaselineCents }
func (c *Config) GetPricingBaselineRadiusKM() float64 { return c.PricingBaselineRadiusKM }

func (c *Config) GetMailEnabled() bool       { return c.MailEnabled && c.SMTPHost != "" }
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetMailFromName() string    { return c.MailFromName }
func (c *Config) GetMailFromAddress() string { return c.MailFromAddress }
func (c *Config) GetMailOpsAddress() string  { return c.MailOpsAddress }

func (c *Config) GetSettlementURL() string  { return c.SettlementURL }
func (c *Config) IsSettlementEnabled() bool { return c.SettlementURL != "" }
