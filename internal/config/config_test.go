package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/clinic/v1", cfg.APIBasePath)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.PortalProfileTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://clinic@localhost/clinic")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, int32(7), cfg.DBMaxConns)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)

	store := cfg.Store()
	assert.Equal(t, "postgres://clinic@localhost/clinic", store.DatabaseURL)
}

func TestCORSOriginsAreTrimmed(t *testing.T) {
	tests := []struct {
		env  string
		want []string
	}{
		{env: "http://a.test", want: []string{"http://a.test"}},
		{env: "http://a.test,http://b.test", want: []string{"http://a.test", "http://b.test"}},
		{env: " http://a.test ,  http://b.test, ", want: []string{"http://a.test", "http://b.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("CORS_ORIGINS", tt.env)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.CORSOrigins)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env:         "production",
			APIBasePath: "/clinic/v1",
			JWTSecret:   "s3cret",
			TokenTTL:    time.Hour,
			StoreDriver: "memory",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret in production", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "missing secret in development", mutate: func(c *Config) { c.JWTSecret = ""; c.Env = "development" }},
		{name: "bad base path", mutate: func(c *Config) { c.APIBasePath = "clinic" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "mongo" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreDriver = "postgres" }, wantErr: true},
		{name: "couchbase without url", mutate: func(c *Config) { c.StoreDriver = "couchbase" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.TokenTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
