package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Fulfillment FulfillmentConfig `mapstructure:"fulfillment"`
	RetryQueue  RetryQueueConfig  `mapstructure:"retry_queue"`
	Security    SecurityConfig    `mapstructure:"security"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Driver           string   `mapstructure:"driver"` // memory, kafka
	Brokers          []string `mapstructure:"brokers"`
	FulfillmentTopic string   `mapstructure:"fulfillment_topic"`
	GroupID          string   `mapstructure:"group_id"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerIP   struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"per_ip"`
	PerCampaign struct {
		Limit  int           `mapstructure:"limit"`
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"per_campaign"`
}

// ProviderConfig represents a single payment provider configuration
type ProviderConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	MerchantAccount string        `mapstructure:"merchant_account"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// PaymentConfig represents payment gateway configuration
type PaymentConfig struct {
	Primary         ProviderConfig `mapstructure:"primary"`
	Secondary       ProviderConfig `mapstructure:"secondary"`
	FallbackEnabled bool           `mapstructure:"fallback_enabled"`
	Breaker         struct {
		MaxRequests  uint32        `mapstructure:"max_requests"`
		Interval     time.Duration `mapstructure:"interval"`
		Timeout      time.Duration `mapstructure:"timeout"`
		FailureRatio float64       `mapstructure:"failure_ratio"`
		MinRequests  uint32        `mapstructure:"min_requests"`
	} `mapstructure:"breaker"`
}

// FulfillmentConfig represents booking fulfillment configuration
type FulfillmentConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AirlineBaseURL string        `mapstructure:"airline_base_url"`
	AirlineToken   string        `mapstructure:"airline_token"`
	AirlineTimeout time.Duration `mapstructure:"airline_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

// RetryQueueConfig represents durable retry queue configuration
type RetryQueueConfig struct {
	Name          string        `mapstructure:"name"`
	MaxRetries    int           `mapstructure:"max_retries"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer"`
	AccessExpire  time.Duration `mapstructure:"access_expire"`
	RefreshExpire time.Duration `mapstructure:"refresh_expire"`
}

// SetDefaults fills in defaults for unset fields
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.FulfillmentTopic == "" {
		c.Queue.FulfillmentTopic = "fulfillment_requests"
	}
	if c.Queue.GroupID == "" {
		c.Queue.GroupID = "fulfillment-workers"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Payment.Primary.Timeout == 0 {
		c.Payment.Primary.Timeout = 15 * time.Second
	}
	if c.Payment.Secondary.Timeout == 0 {
		c.Payment.Secondary.Timeout = 15 * time.Second
	}
	if c.Payment.Breaker.MaxRequests == 0 {
		c.Payment.Breaker.MaxRequests = 3
	}
	if c.Payment.Breaker.Interval == 0 {
		c.Payment.Breaker.Interval = time.Minute
	}
	if c.Payment.Breaker.Timeout == 0 {
		c.Payment.Breaker.Timeout = 30 * time.Second
	}
	if c.Payment.Breaker.FailureRatio == 0 {
		c.Payment.Breaker.FailureRatio = 0.6
	}
	if c.Payment.Breaker.MinRequests == 0 {
		c.Payment.Breaker.MinRequests = 5
	}
	if c.Fulfillment.MaxAttempts == 0 {
		c.Fulfillment.MaxAttempts = 3
	}
	if c.Fulfillment.AirlineTimeout == 0 {
		c.Fulfillment.AirlineTimeout = 30 * time.Second
	}
	if c.Fulfillment.SweepInterval == 0 {
		c.Fulfillment.SweepInterval = time.Minute
	}
	if c.Fulfillment.StaleAfter == 0 {
		c.Fulfillment.StaleAfter = 5 * time.Minute
	}
	if c.RetryQueue.Name == "" {
		c.RetryQueue.Name = "autobook_retry_queue"
	}
	if c.RetryQueue.MaxRetries == 0 {
		c.RetryQueue.MaxRetries = 3
	}
	if c.RetryQueue.DrainInterval == 0 {
		c.RetryQueue.DrainInterval = 30 * time.Second
	}
	if c.Security.JWTIssuer == "" {
		c.Security.JWTIssuer = "autobook"
	}
	if c.Security.AccessExpire == 0 {
		c.Security.AccessExpire = 2 * time.Hour
	}
	if c.Security.RefreshExpire == 0 {
		c.Security.RefreshExpire = 7 * 24 * time.Hour
	}
	if c.RateLimit.PerIP.RPS == 0 {
		c.RateLimit.PerIP.RPS = 50
	}
	if c.RateLimit.PerIP.Burst == 0 {
		c.RateLimit.PerIP.Burst = 100
	}
	if c.RateLimit.PerCampaign.Limit == 0 {
		c.RateLimit.PerCampaign.Limit = 10
	}
	if c.RateLimit.PerCampaign.Window == 0 {
		c.RateLimit.PerCampaign.Window = time.Minute
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "autobook"
	}
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Username == "" {
		return fmt.Errorf("database.username is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if c.Queue.Driver == "kafka" && len(c.Queue.Brokers) == 0 {
		return fmt.Errorf("queue.brokers is required for the kafka driver")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	return nil
}
