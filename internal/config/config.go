// Package config loads process configuration from the environment and
// optional .env files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"stealthcompany.com/clinicportal/internal/couchbase"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

type Config struct {
	Env              string `mapstructure:"ENV"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`

	// Server
	APIPort     string        `mapstructure:"API_PORT"`
	APIBasePath string        `mapstructure:"API_BASE_PATH"`
	AnonKey     string        `mapstructure:"ANON_KEY"`
	CORSOrigins []string      `mapstructure:"CORS_ORIGINS"`
	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	TokenTTL    time.Duration `mapstructure:"TOKEN_TTL"`
	AuthIssuer  string        `mapstructure:"AUTH_ISSUER"`

	// Store
	StoreDriver         string `mapstructure:"STORE_DRIVER"`
	CouchbaseURL        string `mapstructure:"COUCHBASE_URL"`
	CouchbaseUsername   string `mapstructure:"COUCHBASE_USERNAME"`
	CouchbasePassword   string `mapstructure:"COUCHBASE_PASSWORD"`
	CouchbaseBucket     string `mapstructure:"COUCHBASE_BUCKET"`
	CouchbaseScope      string `mapstructure:"COUCHBASE_SCOPE"`
	CouchbaseCollection string `mapstructure:"COUCHBASE_COLLECTION"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32  `mapstructure:"DB_MIN_CONNS"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int    `mapstructure:"REDIS_DB"`
	RedisNamespace      string `mapstructure:"REDIS_NAMESPACE"`

	// Portal client
	PortalAPIURL         string        `mapstructure:"PORTAL_API_URL"`
	PortalAnonKey        string        `mapstructure:"PORTAL_ANON_KEY"`
	PortalStoragePath    string        `mapstructure:"PORTAL_STORAGE_PATH"`
	PortalRequestTimeout time.Duration `mapstructure:"PORTAL_REQUEST_TIMEOUT"`
	PortalProfileTimeout time.Duration `mapstructure:"PORTAL_PROFILE_TIMEOUT"`

	// Report analysis
	AnalysisURL     string        `mapstructure:"ANALYSIS_URL"`
	AnalysisAPIKey  string        `mapstructure:"ANALYSIS_API_KEY"`
	AnalysisTimeout time.Duration `mapstructure:"ANALYSIS_TIMEOUT"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "ELASTICSEARCH_URL",
	"API_PORT", "API_BASE_PATH", "ANON_KEY", "CORS_ORIGINS", "JWT_SECRET", "TOKEN_TTL", "AUTH_ISSUER",
	"STORE_DRIVER", "COUCHBASE_URL", "COUCHBASE_USERNAME", "COUCHBASE_PASSWORD", "COUCHBASE_BUCKET",
	"COUCHBASE_SCOPE", "COUCHBASE_COLLECTION", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_NAMESPACE",
	"PORTAL_API_URL", "PORTAL_ANON_KEY", "PORTAL_STORAGE_PATH", "PORTAL_REQUEST_TIMEOUT", "PORTAL_PROFILE_TIMEOUT",
	"ANALYSIS_URL", "ANALYSIS_API_KEY", "ANALYSIS_TIMEOUT",
}

// LoadDotEnv loads ../.env and then .env when present. Variables already set
// in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load("../.env"); err != nil {
		log.Debug().Msg("Not found .env file in parent directory, trying current directory")
		if err := godotenv.Load(".env"); err != nil {
			log.Debug().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("API_BASE_PATH", "/clinic/v1")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("AUTH_ISSUER", "clinicportal")
	v.SetDefault("STORE_DRIVER", kvstore.DriverMemory)
	v.SetDefault("COUCHBASE_BUCKET", "clinic")
	v.SetDefault("COUCHBASE_SCOPE", "_default")
	v.SetDefault("COUCHBASE_COLLECTION", "_default")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_NAMESPACE", "clinic")
	v.SetDefault("PORTAL_API_URL", "http://localhost:8080/clinic/v1")
	v.SetDefault("PORTAL_STORAGE_PATH", "clinic-portal.db")
	v.SetDefault("PORTAL_REQUEST_TIMEOUT", "15s")
	v.SetDefault("PORTAL_PROFILE_TIMEOUT", "5s")
	v.SetDefault("ANALYSIS_TIMEOUT", "30s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings the API server needs before it starts.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
		c.JWTSecret = "development-only-secret"
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if !strings.HasPrefix(c.APIBasePath, "/") {
		return fmt.Errorf("API_BASE_PATH must start with '/', got %q", c.APIBasePath)
	}

	switch c.StoreDriver {
	case kvstore.DriverMemory:
		if !c.IsDev() {
			log.Warn().Msg("STORE_DRIVER=memory outside development, data is lost on restart")
		}
	case kvstore.DriverCouchbase:
		if c.CouchbaseURL == "" || c.CouchbaseUsername == "" {
			return fmt.Errorf("COUCHBASE_URL and COUCHBASE_USERNAME are required for the couchbase driver")
		}
	case kvstore.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case kvstore.DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis driver")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, couchbase, postgres, redis; got %q", c.StoreDriver)
	}

	return nil
}

// Store returns the key-value backend settings.
func (c *Config) Store() kvstore.Config {
	return kvstore.Config{
		Driver: c.StoreDriver,
		Couchbase: couchbase.Config{
			URL:        c.CouchbaseURL,
			Username:   c.CouchbaseUsername,
			Password:   c.CouchbasePassword,
			Bucket:     c.CouchbaseBucket,
			Scope:      c.CouchbaseScope,
			Collection: c.CouchbaseCollection,
		},
		DatabaseURL:    c.DatabaseURL,
		MaxConns:       c.DBMaxConns,
		MinConns:       c.DBMinConns,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		RedisDB:        c.RedisDB,
		RedisNamespace: c.RedisNamespace,
	}
}
