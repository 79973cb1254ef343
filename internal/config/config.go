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

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Payment    PaymentConfig    `yaml:"payment"`
	Google     GoogleConfig     `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	// ChannelPrefix namespaces fan-out channels when several deployments share one redis.
	ChannelPrefix string `yaml:"channel_prefix"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// WSActions caps add_slot/book_slot messages per party and action within WSWindow.
	WSActions int           `yaml:"ws_actions"`
	WSWindow  time.Duration `yaml:"ws_window"`
}

// BookingConfig holds the reservation policy knobs.
type BookingConfig struct {
	// PaymentTimeout is how long a booking may stay pending before the sweeper cancels it.
	// Zero disables the sweeper.
	PaymentTimeout time.Duration `yaml:"payment_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	Currency       string        `yaml:"currency"`
	HubBuffer      int           `yaml:"hub_buffer"`
	Timezone       string        `yaml:"timezone"`
}

type PaymentConfig struct {
	Provider  string        `yaml:"provider"` // razorpay or fake
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse expands environment references in raw YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Payment.Provider {
	case "razorpay":
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			return errors.New("payment key_id and key_secret are required for razorpay")
		}
	case "fake":
		if c.App.Environment == "production" {
			return errors.New("fake payment provider is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown payment provider %q", c.Payment.Provider)
	}

	if len(c.Booking.Currency) != 3 {
		return fmt.Errorf("booking currency must be an ISO 4217 code, got %q", c.Booking.Currency)
	}
	if c.Booking.PaymentTimeout < 0 {
		return errors.New("booking payment_timeout must not be negative")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking timezone: %w", err)
	}

	keys := make(map[string]bool, len(c.API.Auth.APIKeys))
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if keys[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		keys[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tutorslot"
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5 * time.Second
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = "tutorslot:party:"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.RateLimit.WSActions == 0 {
		c.API.RateLimit.WSActions = 30
	}
	if c.API.RateLimit.WSWindow == 0 {
		c.API.RateLimit.WSWindow = time.Minute
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Booking.PaymentTimeout == 0 {
		c.Booking.PaymentTimeout = 15 * time.Minute
	}
	if c.Booking.SweepInterval == 0 {
		c.Booking.SweepInterval = time.Minute
	}
	c.Booking.Currency = strings.ToUpper(strings.TrimSpace(c.Booking.Currency))
	if c.Booking.Currency == "" {
		c.Booking.Currency = "INR"
	}
	if c.Booking.HubBuffer <= 0 {
		c.Booking.HubBuffer = 32
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}

	if c.Payment.Provider == "" {
		c.Payment.Provider = "razorpay"
	}
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api.razorpay.com"
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 10 * time.Second
	}
}
