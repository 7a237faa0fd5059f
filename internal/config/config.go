package config

import (
	"fmt"
	"os"
)

// DefaultWebhookPath is the route the webhook endpoint is mounted on when
// STRIPE_WEBHOOK_PATH is not set.
const DefaultWebhookPath = "/stripe/webhook"

// Config holds the runtime configuration for the service. Fields set
// explicitly take precedence over the environment; Load fills in whatever
// is still empty.
type Config struct {
	// StripeAPIKey authenticates outbound calls to the Stripe API.
	StripeAPIKey string
	// StripeWebhookSecret is the shared secret webhook signatures are
	// verified against. Leaving it empty disables the webhook endpoint.
	StripeWebhookSecret string
	// WebhookPath is the route the webhook endpoint listens on.
	WebhookPath string

	DatabaseURL string
	Port        string
}

// Load resolves configuration from the environment for any field not already
// set. It returns an error for the secrets the service cannot run without;
// the webhook secret is deliberately not required here so the API surface can
// run without webhooks configured (the endpoint then rejects deliveries).
func Load() (Config, error) {
	cfg := Config{}
	return cfg.Resolve()
}

// Resolve fills empty fields from the environment and validates the result.
func (c Config) Resolve() (Config, error) {
	if c.StripeAPIKey == "" {
		c.StripeAPIKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		c.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	}
	if c.WebhookPath == "" {
		c.WebhookPath = os.Getenv("STRIPE_WEBHOOK_PATH")
	}
	if c.WebhookPath == "" {
		c.WebhookPath = DefaultWebhookPath
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Port == "" {
		c.Port = os.Getenv("PORT")
	}
	if c.Port == "" {
		c.Port = "8000"
	}

	if c.StripeAPIKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY environment variable is required")
	}
	if c.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return c, nil
}
