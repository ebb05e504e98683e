package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL, used for checkout return links
	BaseURL string

	// Idle lifetime of a device session; each request slides it forward
	SessionDuration time.Duration

	// Storage for post files referenced by key
	StorageProvider  string // "local" or "r2"
	LocalStoragePath string
	LocalStorageURL  string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Lifetime of presigned download links
	DownloadURLTTL time.Duration

	// Stripe card checkout. Checkout and the webhook are disabled when the
	// secret key is empty.
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePricePremium  string
	StripePriceVIP      string

	// AbacatePay PIX checkout. Disabled when the API key is empty.
	AbacatePayAPIKey        string
	AbacatePayAPIURL        string
	AbacatePayWebhookSecret string
	PixTimeout              time.Duration

	// Background sweeps
	SchedulerEnabled          bool
	SubscriptionSweepSchedule string
	SessionPruneSchedule      string

	// Login attempts allowed per client IP per window
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Metrics endpoint authentication: basic auth for people, a bearer
	// token for Prometheus. With all three empty /metrics is unprotected.
	MetricsUsername string
	MetricsPassword string
	MetricsToken    string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		SessionDuration: getEnvDuration("SESSION_DURATION", 7*24*time.Hour),

		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./files"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		DownloadURLTTL: getEnvDuration("DOWNLOAD_URL_TTL", 15*time.Minute),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePricePremium:  getEnv("STRIPE_PRICE_PREMIUM", ""),
		StripePriceVIP:      getEnv("STRIPE_PRICE_VIP", ""),

		AbacatePayAPIKey:        getEnv("ABACATEPAY_API_KEY", ""),
		AbacatePayAPIURL:        getEnv("ABACATEPAY_API_URL", "https://api.abacatepay.com/v1"),
		AbacatePayWebhookSecret: getEnv("ABACATEPAY_WEBHOOK_SECRET", ""),
		PixTimeout:              getEnvDuration("PIX_TIMEOUT", 10*time.Second),

		SchedulerEnabled:          getEnvBool("SCHEDULER_ENABLED", true),
		SubscriptionSweepSchedule: getEnv("SUBSCRIPTION_SWEEP_SCHEDULE", "*/15 * * * *"),
		SessionPruneSchedule:      getEnv("SESSION_PRUNE_SCHEDULE", "@hourly"),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
		MetricsToken:    getEnv("METRICS_TOKEN", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.StorageProvider {
	case "r2":
		if cfg.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	case "local":
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	if cfg.StripeSecretKey != "" {
		if cfg.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
		}
		if cfg.StripePricePremium == "" || cfg.StripePriceVIP == "" {
			return fmt.Errorf("STRIPE_PRICE_PREMIUM and STRIPE_PRICE_VIP are required when STRIPE_SECRET_KEY is set")
		}
	}

	if cfg.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive, got: %s", cfg.SessionDuration)
	}
	if cfg.PixTimeout <= 0 {
		return fmt.Errorf("PIX_TIMEOUT must be positive, got: %s", cfg.PixTimeout)
	}
	if cfg.LoginRateLimit < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be at least 1, got: %d", cfg.LoginRateLimit)
	}
	return nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (cfg *Config) IsDevelopment() bool {
	return cfg.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
