package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TUTORSLOT_KEY_SECRET", "s3cret")

	yamlContent := `
app:
  name: tutorslot
  environment: test
database:
  path: "test.db"
booking:
  payment_timeout: 20m
  currency: inr
payment:
  provider: razorpay
  key_id: rzp_test_key
  key_secret: ${TUTORSLOT_KEY_SECRET}
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.Payment.KeySecret)
	assert.Equal(t, 20*time.Minute, cfg.Booking.PaymentTimeout)
	assert.Equal(t, "INR", cfg.Booking.Currency)
	assert.Equal(t, time.Minute, cfg.Booking.SweepInterval)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "https://api.razorpay.com", cfg.Payment.BaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  path: db.sqlite\npayment:\n  provider: fake\n"))
	require.NoError(t, err)

	assert.Equal(t, "tutorslot", cfg.App.Name)
	assert.Equal(t, 15*time.Minute, cfg.Booking.PaymentTimeout)
	assert.Equal(t, 32, cfg.Booking.HubBuffer)
	assert.Equal(t, "UTC", cfg.Booking.Timezone)
	assert.Equal(t, "tutorslot:party:", cfg.Redis.ChannelPrefix)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		c := Config{
			Database: DatabaseConfig{Path: "path"},
			Payment:  PaymentConfig{Provider: "razorpay", KeyID: "id", KeySecret: "secret"},
		}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "razorpay without secret", mutate: func(c *Config) { c.Payment.KeySecret = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Payment.Provider = "paypal" }, wantErr: true},
		{
			name: "fake provider in production",
			mutate: func(c *Config) {
				c.Payment.Provider = "fake"
				c.App.Environment = "production"
			},
			wantErr: true,
		},
		{name: "bad currency", mutate: func(c *Config) { c.Booking.Currency = "RUPEE" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Booking.PaymentTimeout = -time.Second }, wantErr: true},
		{
			name: "duplicate api key",
			mutate: func(c *Config) {
				c.API.Auth.APIKeys = []APIClientKey{{Key: "k", Name: "a"}, {Key: "k", Name: "b"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
