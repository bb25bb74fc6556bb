package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (HOSTLY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (HOSTLY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	// RedisURL enables shared inventory counters. In-process counters are
	// used when empty, which is only correct for a single replica.
	RedisURL    string `usage:"Redis URL for inventory counters (HOSTLY_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	JWT         JWTConfig
	Kafka       KafkaConfig
	PromoFilter PromoFilterConfig
	RateLimit   RateLimitConfig
	PromoLimit  PromoLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// JWTConfig controls bearer token verification.
type JWTConfig struct {
	Secret string `usage:"HS256 secret shared with the identity provider (HOSTLY_JWT_SECRET)" flag:"jwt-secret"`
	Issuer string `default:"" usage:"Expected iss claim; not checked when empty" flag:"jwt-issuer"`
}

// KafkaConfig controls OrderPlaced publishing. Publishing is disabled when
// no brokers are set.
type KafkaConfig struct {
	Brokers  []string `usage:"Kafka seed brokers"`
	Topic    string   `default:"hostly.orders" usage:"Topic for order events"`
	ClientID string   `default:"hostly-api" usage:"Kafka client id"`
}

// PromoFilterConfig sizes the promo code bloom filter.
type PromoFilterConfig struct {
	Capacity          uint          `default:"100000" usage:"Expected number of promo codes"`
	FalsePositiveRate float64       `default:"0.001" usage:"Target false positive rate"`
	ReloadInterval    time.Duration `default:"5m" usage:"Interval between filter rebuilds"`
}

// RateLimitConfig controls a per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// PromoLimitConfig limits promo code validation per client to slow down
// code guessing.
type PromoLimitConfig struct {
	Max    int           `default:"10" usage:"Max promo validations per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Promo validation window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins, https://*.example.com allows subdomains"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "HOSTLY",
		Files:     []string{"config.yaml", "/etc/hostly/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set HOSTLY_DATABASE_URL or DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required: set HOSTLY_JWT_SECRET")
	}
	if c.PromoFilter.FalsePositiveRate <= 0 || c.PromoFilter.FalsePositiveRate >= 1 {
		return errors.Errorf("promo filter false positive rate %v out of (0, 1)", c.PromoFilter.FalsePositiveRate)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's HOSTLY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
