// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"net/mail"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SMTPConfig contains relay connection settings
type SMTPConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	From      string        `yaml:"from"`       // sender address for all campaigns
	TLS       string        `yaml:"tls"`        // none, starttls, tls
	LocalName string        `yaml:"local_name"` // HELO name
	Timeout   time.Duration `yaml:"timeout"`
}

// SchedulerConfig contains tick loop settings
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Concurrency  int           `yaml:"concurrency"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"` // Default: :9090
	Path       string   `yaml:"path"`        // Default: /metrics
	AllowedIPs []string `yaml:"allowed_ips"` // IP addresses/CIDRs allowed to access metrics
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = "data/mailsched.db"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "starttls"
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 30 * time.Second
	}
	if c.SMTP.LocalName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "localhost"
		}
		c.SMTP.LocalName = hostname
	}
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = time.Minute
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be between 1 and 65535")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}
	if _, err := mail.ParseAddress(c.SMTP.From); err != nil {
		return fmt.Errorf("smtp.from is not a valid address: %w", err)
	}
	switch c.SMTP.TLS {
	case "none", "starttls", "tls":
	default:
		return fmt.Errorf("smtp.tls must be one of none, starttls, tls")
	}
	if c.Scheduler.TickInterval < time.Second {
		return fmt.Errorf("scheduler.tick_interval must be at least 1s")
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("scheduler.concurrency must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}
	return nil
}
