package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (FRESHCART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (FRESHCART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for campaign selections and rate limits; empty keeps both in process" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (FRESHCART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig tunes the promotional pricing rules.
type PricingConfig struct {
	CurrencySymbol string `default:"€" usage:"Currency symbol used in discount labels" flag:"currency-symbol"`
	// CartFixedMode and ProductFixedMode are per_cart or per_unit.
	CartFixedMode    string        `default:"per_cart" usage:"FIXED_AMOUNT campaign mode for carts" flag:"cart-fixed-mode"`
	ProductFixedMode string        `default:"per_unit" usage:"FIXED_AMOUNT campaign mode for product previews" flag:"product-fixed-mode"`
	PromptOnMultiple bool          `default:"false" usage:"Ask the shopper to pick whenever several campaigns apply" flag:"prompt-on-multiple"`
	SelectionTTL     time.Duration `default:"24h" usage:"How long a shopper's campaign choice is remembered" flag:"selection-ttl"`
}

// Options converts the configuration into pricing options.
func (c PricingConfig) Options() (pricing.Options, error) {
	cartFixed, err := campaign.ParseFixedMode(c.CartFixedMode)
	if err != nil {
		return pricing.Options{}, errors.Wrap(err, "cart fixed mode")
	}
	productFixed, err := campaign.ParseFixedMode(c.ProductFixedMode)
	if err != nil {
		return pricing.Options{}, errors.Wrap(err, "product fixed mode")
	}
	return pricing.Options{
		CartFixed:        cartFixed,
		ProductFixed:     productFixed,
		PromptOnMultiple: c.PromptOnMultiple,
		CurrencySymbol:   c.CurrencySymbol,
	}, nil
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
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
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FRESHCART",
		Files:     []string{"config.yaml", "/etc/freshcart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
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
		return errors.New("database URL is required: set FRESHCART_DATABASE_URL or DATABASE_URL")
	}
	_, err := c.Pricing.Options()
	return err
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's FRESHCART_-prefixed configuration.
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
