package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration. The probe
// harness and the sandbox share one schema; each binary validates only the
// sections it reads.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Target    TargetConfig    `yaml:"target"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Runner    RunnerConfig    `yaml:"runner"`
	History   HistoryConfig   `yaml:"history"`
	Report    ReportConfig    `yaml:"report"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
}

// TargetConfig holds the upstream API the probes run against
type TargetConfig struct {
	BaseURL         string        `yaml:"base_url"`
	AuthToken       string        `yaml:"auth_token"`
	UserAgent       string        `yaml:"user_agent"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxResponseSize int64         `yaml:"max_response_size"`
}

// RetryConfig holds the rate-limit retry policy settings. Zero delays fall
// back to the policy defaults; max_retries of 0 disables retries.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	DefaultDelay time.Duration `yaml:"default_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// RateLimitConfig holds token bucket settings. Zero rps disables the bucket.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// RunnerConfig holds the probe runner settings
type RunnerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	CheckTimeout time.Duration `yaml:"check_timeout"`
	Checks       []string      `yaml:"checks"`
}

// HistoryConfig holds optional run persistence settings
type HistoryConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// ReportConfig holds optional report publishing settings
type ReportConfig struct {
	Enabled  bool           `yaml:"enabled"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration. The publisher declares and
// binds the queue so reports survive until a consumer shows up.
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// SandboxConfig holds the mock upstream server configuration
type SandboxConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Rate            RateLimitConfig `yaml:"rate"`
	RetryAfter      time.Duration   `yaml:"retry_after"`
	WorkDelay       time.Duration   `yaml:"work_delay"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateProbeConfig checks the sections the probe harness reads.
func (c *Config) ValidateProbeConfig() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target base_url is required")
	}

	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner concurrency must be greater than 0")
	}

	if c.Runner.CheckTimeout < 0 {
		return fmt.Errorf("runner check_timeout must not be negative")
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative")
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit rps must not be negative")
	}

	if c.History.Enabled {
		if c.History.Database.Host == "" {
			return fmt.Errorf("history database host is required")
		}
		if c.History.Database.Port < MinPort || c.History.Database.Port > MaxPort {
			return fmt.Errorf("invalid history database port: %d (must be between %d and %d)", c.History.Database.Port, MinPort, MaxPort)
		}
		if c.History.Database.Database == "" {
			return fmt.Errorf("history database name is required")
		}
	}

	if c.Report.Enabled {
		if c.Report.RabbitMQ.Host == "" {
			return fmt.Errorf("report rabbitmq host is required")
		}
		if c.Report.RabbitMQ.Port < MinPort || c.Report.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid report rabbitmq port: %d (must be between %d and %d)", c.Report.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.Report.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("report rabbitmq exchange name is required")
		}
		if c.Report.RabbitMQ.Queue.Name == "" {
			return fmt.Errorf("report rabbitmq queue name is required")
		}
	}

	return nil
}

// ValidateSandboxConfig checks the sections the sandbox server reads.
func (c *Config) ValidateSandboxConfig() error {
	if c.Sandbox.Port < MinPort || c.Sandbox.Port > MaxPort {
		return fmt.Errorf("invalid sandbox port: %d (must be between %d and %d)", c.Sandbox.Port, MinPort, MaxPort)
	}

	if c.Sandbox.Rate.RPS <= 0 {
		return fmt.Errorf("sandbox rate rps must be greater than 0")
	}

	if c.Sandbox.RetryAfter <= 0 {
		return fmt.Errorf("sandbox retry_after must be greater than 0")
	}

	if c.Sandbox.WorkDelay < 0 {
		return fmt.Errorf("sandbox work_delay must not be negative")
	}

	return nil
}
