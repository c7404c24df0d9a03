// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// Maximum time a reserve call waits for its resource locks before
	// failing with a transient error.
	LockWaitSeconds int `yaml:"lock_wait_seconds"`
	// How far back the cascade repair job looks for cancelled bookings.
	CascadeLookbackMinutes int    `yaml:"cascade_lookback_minutes"`
	CascadeSweepCron       string `yaml:"cascade_sweep_cron"`
}

type RateLimitConfig struct {
	WriteMaxPerMinute int `yaml:"write_max_per_minute"`
	WriteMaxPerHour   int `yaml:"write_max_per_hour"`
	// Honor X-Forwarded-For only when the server sits behind a proxy.
	TrustProxy bool `yaml:"trust_proxy"`
}

type NotificationsConfig struct {
	// Empty region disables SES and falls back to the log notifier.
	SESRegion string `yaml:"ses_region,omitempty"`
	SESSender string `yaml:"ses_sender,omitempty"`
	// Loaded from environment
	SESAccessKeyID     string `yaml:"-"`
	SESSecretAccessKey string `yaml:"-"`
}

type Config struct {
	App struct {
		Name            string `yaml:"name"`
		Environment     string `yaml:"environment"`
		Port            int    `yaml:"port"`
		ShutdownSeconds int    `yaml:"shutdown_seconds"`
	} `yaml:"app"`

	Database      DatabaseConfig      `yaml:"database"`
	Booking       BookingConfig       `yaml:"booking"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.Notifications.SESAccessKeyID = os.Getenv("SES_ACCESS_KEY_ID")
	cfg.Notifications.SESSecretAccessKey = os.Getenv("SES_SECRET_ACCESS_KEY")

	// Deployment-level overrides
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.App.Environment = env
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
		cfg.App.Port = p
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.ShutdownSeconds == 0 {
		c.App.ShutdownSeconds = 30
	}
	if c.Booking.LockWaitSeconds == 0 {
		c.Booking.LockWaitSeconds = 3
	}
	if c.Booking.CascadeLookbackMinutes == 0 {
		c.Booking.CascadeLookbackMinutes = 60
	}
	if c.Booking.CascadeSweepCron == "" {
		c.Booking.CascadeSweepCron = "*/5 * * * *"
	}
	if c.RateLimit.WriteMaxPerMinute == 0 {
		c.RateLimit.WriteMaxPerMinute = 30
	}
	if c.RateLimit.WriteMaxPerHour == 0 {
		c.RateLimit.WriteMaxPerHour = 300
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Notifications.SESRegion != "" && c.Notifications.SESSender == "" {
		return fmt.Errorf("ses sender is required when ses region is set")
	}

	return nil
}

func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Booking.LockWaitSeconds) * time.Second
}

func (c *Config) CascadeLookback() time.Duration {
	return time.Duration(c.Booking.CascadeLookbackMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.App.ShutdownSeconds) * time.Second
}
