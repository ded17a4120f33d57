package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
		Mode string `yaml:"mode" env:"SERVER_MODE"`
	} `yaml:"server"`

	Database struct {
		Driver          string `yaml:"driver" env:"DB_DRIVER"`
		DSN             string `yaml:"dsn" env:"DB_DSN"`
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Storage struct {
		Path        string `yaml:"path" env:"STORAGE_PATH"`
		MaxUploadMB int    `yaml:"max_upload_mb" env:"STORAGE_MAX_UPLOAD_MB"`
	} `yaml:"storage"`

	Booking BookingConfig `yaml:"booking"`
}

// BookingConfig describes the weekly booking grid generated for every course.
type BookingConfig struct {
	OpenTime           string `yaml:"open_time" env:"BOOKING_OPEN_TIME"`
	CloseTime          string `yaml:"close_time" env:"BOOKING_CLOSE_TIME"`
	IntervalMinutes    int    `yaml:"interval_minutes" env:"BOOKING_INTERVAL_MINUTES"`
	ReservationMinutes int    `yaml:"reservation_minutes" env:"BOOKING_RESERVATION_MINUTES"`
	NumDays            int    `yaml:"num_days" env:"BOOKING_NUM_DAYS"`
	// EnforceCapacity makes max_available_assistants a hard ceiling when
	// assistants register. Off by default: the capacity is advisory.
	EnforceCapacity bool `yaml:"enforce_capacity" env:"BOOKING_ENFORCE_CAPACITY"`
}

// LoadConfig loads configuration from a file, an optional .env file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// .env is optional, real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Default returns a configuration populated with defaults only. Used by tests and tooling.
func Default() *Config {
	config := &Config{}
	setDefaults(config)
	return config
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	config.Database.Driver = DriverPostgres
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "itsbooking"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"

	config.JWT.AccessTokenExpiration = "12h"
	config.JWT.Issuer = "itsbooking"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Storage.Path = "media"
	config.Storage.MaxUploadMB = 20

	config.Booking = BookingConfig{
		OpenTime:           "08:00",
		CloseTime:          "18:00",
		IntervalMinutes:    120,
		ReservationMinutes: 15,
		NumDays:            5,
	}
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	_, err := applyEnvOverrides(config)
	return err
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	switch strings.ToLower(config.Database.Driver) {
	case DriverPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
			return fmt.Errorf("invalid database connection max lifetime: %w", err)
		}
	case DriverSQLite:
		if config.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if _, err := time.ParseDuration(config.JWT.AccessTokenExpiration); err != nil {
		return fmt.Errorf("invalid JWT access token expiration format: %w", err)
	}

	if config.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	return config.Booking.Validate()
}

// Validate checks that the booking grid is well formed.
func (b BookingConfig) Validate() error {
	open, err := ParseClock(b.OpenTime)
	if err != nil {
		return fmt.Errorf("booking open_time: %w", err)
	}
	closing, err := ParseClock(b.CloseTime)
	if err != nil {
		return fmt.Errorf("booking close_time: %w", err)
	}
	if closing <= open {
		return fmt.Errorf("booking close_time must be after open_time")
	}
	if b.IntervalMinutes <= 0 || b.ReservationMinutes <= 0 {
		return fmt.Errorf("booking interval and reservation lengths must be positive")
	}
	if b.IntervalMinutes%b.ReservationMinutes != 0 {
		return fmt.Errorf("booking interval_minutes (%d) must be a multiple of reservation_minutes (%d)",
			b.IntervalMinutes, b.ReservationMinutes)
	}
	if b.NumDays < 1 || b.NumDays > 7 {
		return fmt.Errorf("booking num_days must be between 1 and 7")
	}
	return nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes since midnight.
// Seconds are dropped.
func ParseClock(value string) (int, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", value)
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Server.Mode) == "production"
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) << 20
}
