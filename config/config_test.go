package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.Equal(t, 5, cfg.Security.LockThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Security.LockDuration)
	assert.Equal(t, 10*time.Minute, cfg.Security.ResetTokenTTL)
	assert.Equal(t, time.Duration(0), cfg.Security.VerificationTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.ExpirationTime)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.Request)
	assert.True(t, cfg.Security.UniformResetResponse)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LOCK_THRESHOLD", "3")
	t.Setenv("LOCK_DURATION", "30m")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("JWT_EXPIRATION", "1h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Security.LockThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Security.LockDuration)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, time.Hour, cfg.JWT.ExpirationTime)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App: AppConfig{Environment: "development"},
			JWT: JWTConfig{Secret: "s3cret", ExpirationTime: time.Hour},
			Security: SecurityConfig{
				BcryptCost:    10,
				LockThreshold: 5,
				LockDuration:  2 * time.Hour,
				ResetTokenTTL: 10 * time.Minute,
				TokenBytes:    20,
			},
			RateLimit: RateLimitConfig{Enabled: true, Request: 5, Window: 15 * time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "default secret in production", mutate: func(c *Config) {
			c.App.Environment = "production"
			c.JWT.Secret = "default_secret_key_change_in_production"
		}, wantErr: true},
		{name: "bcrypt cost too low", mutate: func(c *Config) { c.Security.BcryptCost = 1 }, wantErr: true},
		{name: "zero threshold", mutate: func(c *Config) { c.Security.LockThreshold = 0 }, wantErr: true},
		{name: "short tokens", mutate: func(c *Config) { c.Security.TokenBytes = 8 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: true},
		{name: "zero window with limiter disabled", mutate: func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.Window = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.App.TrustedProxies)
}

func TestLoadConfig_NoTrustedProxiesByDefault(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.App.TrustedProxies)
}

func TestLoadConfig_RejectsBadProxy(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "not-an-ip")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}
