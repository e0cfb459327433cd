package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Clock    ClockConfig    `mapstructure:"clock"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Pix      PixConfig      `mapstructure:"pix"`
	Cron     CronConfig     `mapstructure:"cron"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig validates bearer tokens minted by the identity service.
// This module never issues tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type ClockConfig struct {
	Timezone string `mapstructure:"timezone"` // reference zone for day boundaries
}

type WebhookConfig struct {
	Secret           string        `mapstructure:"secret"`
	RequireSignature bool          `mapstructure:"require_signature"`
	MaxSkew          time.Duration `mapstructure:"max_skew"`    // 0 disables the timestamp window
	AmountUnit       string        `mapstructure:"amount_unit"` // auto, major, minor
	MinorThreshold   int64         `mapstructure:"minor_unit_threshold"`
	ProcessTimeout   time.Duration `mapstructure:"process_timeout"`
}

type PayoutConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	FeeRate string        `mapstructure:"fee_rate"`
}

// Fee parses FeeRate. Invalid values fall back to 5%.
func (p PayoutConfig) Fee() decimal.Decimal {
	rate, err := decimal.NewFromString(p.FeeRate)
	if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.RequireFromString("0.05")
	}
	return rate
}

type PixConfig struct {
	Key          string `mapstructure:"key"`
	MerchantName string `mapstructure:"merchant_name"`
	MerchantCity string `mapstructure:"merchant_city"`
}

type CronConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	LockKey     string        `mapstructure:"lock_key"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	MetricsAddr string        `mapstructure:"metrics_addr"` // empty disables the worker's /metrics listener
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: INV_.
// Nested keys use underscore: INV_DATABASE_HOST, INV_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "investment_core")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "investment-identity")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("clock.timezone", "America/Sao_Paulo")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.require_signature", true)
	v.SetDefault("webhook.max_skew", "0s")
	v.SetDefault("webhook.amount_unit", "auto")
	v.SetDefault("webhook.minor_unit_threshold", 1000)
	v.SetDefault("webhook.process_timeout", "30s")
	v.SetDefault("payout.base_url", "")
	v.SetDefault("payout.api_key", "")
	v.SetDefault("payout.timeout", "30s")
	v.SetDefault("payout.fee_rate", "0.05")
	v.SetDefault("pix.key", "")
	v.SetDefault("pix.merchant_name", "MULTI CRYPTO")
	v.SetDefault("pix.merchant_city", "SAO PAULO")
	v.SetDefault("cron.interval", "1h")
	v.SetDefault("cron.lock_key", "investment-core:cron:lock")
	v.SetDefault("cron.lock_ttl", "15m")
	v.SetDefault("cron.metrics_addr", ":9091")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// INV_DATABASE_HOST -> database.host
	v.SetEnvPrefix("INV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	switch cfg.Webhook.AmountUnit {
	case "auto", "major", "minor":
	default:
		return nil, fmt.Errorf("invalid webhook.amount_unit %q", cfg.Webhook.AmountUnit)
	}
	if cfg.Webhook.MinorThreshold <= 0 {
		return nil, fmt.Errorf("webhook.minor_unit_threshold must be positive, got %d", cfg.Webhook.MinorThreshold)
	}

	return &cfg, nil
}
