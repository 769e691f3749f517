package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend values select the collaborators the server is wired with.
const (
	BackendFirebase = "firebase"
	BackendMemory   = "memory"
)

// DefaultPaymentLink is the hosted checkout for the pro plan.
const DefaultPaymentLink = "https://buy.stripe.com/test_5kQeVc0tt95SgIz6Ip5Vu01"

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	Backend                          string `mapstructure:"BACKEND"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	FirebaseStorageBucket            string `mapstructure:"FIREBASE_STORAGE_BUCKET"`
	FirebaseWebAPIKey                string `mapstructure:"FIREBASE_WEB_API_KEY"`
	EncryptionKey                    string `mapstructure:"ENCRYPTION_KEY"` // Base64 encoded, optional
	StripeWebhookSecret              string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripePaymentLink                string `mapstructure:"STRIPE_PAYMENT_LINK"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`

	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RabbitMQURL  string `mapstructure:"RABBITMQ_URL"`
	BillingQueue string `mapstructure:"BILLING_QUEUE"`

	SMTPHost   string `mapstructure:"SMTP_HOST"`
	SMTPPort   string `mapstructure:"SMTP_PORT"`
	SMTPUser   string `mapstructure:"SMTP_USER"`
	SMTPPass   string `mapstructure:"SMTP_PASS"`
	MailSender string `mapstructure:"MAIL_SENDER"`

	FreeTierItemLimit       int           `mapstructure:"FREE_TIER_ITEM_LIMIT"`
	MaxUploadBytes          int64         `mapstructure:"MAX_UPLOAD_BYTES"`
	IdentityRecheckInterval time.Duration `mapstructure:"IDENTITY_RECHECK_INTERVAL"`
}

var keys = []string{
	"PORT", "GIN_MODE", "BACKEND",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"FIREBASE_STORAGE_BUCKET", "FIREBASE_WEB_API_KEY",
	"ENCRYPTION_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PAYMENT_LINK", "CLIENT_URL",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB",
	"RABBITMQ_URL", "BILLING_QUEUE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "MAIL_SENDER",
	"FREE_TIER_ITEM_LIMIT", "MAX_UPLOAD_BYTES", "IDENTITY_RECHECK_INTERVAL",
}

// LoadDotEnv reads a .env file into the process environment unless
// GIN_MODE is release. A missing file is not an error.
func LoadDotEnv() error {
	if strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper.
// When PATH_CONFIG points to a YAML file its values are read first and the
// environment overrides them.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("BACKEND", BackendFirebase)
	v.SetDefault("STRIPE_PAYMENT_LINK", DefaultPaymentLink)
	v.SetDefault("BILLING_QUEUE", "stora.billing")
	v.SetDefault("SMTP_HOST", "smtp.mailtrap.io")
	v.SetDefault("SMTP_PORT", "2525")
	v.SetDefault("MAIL_SENDER", "no-reply@stora.app")
	v.SetDefault("FREE_TIER_ITEM_LIMIT", 5)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(10*1024*1024))
	v.SetDefault("IDENTITY_RECHECK_INTERVAL", 30*time.Second)

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path := os.Getenv("PATH_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields required by the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required")
		}
		if c.GoogleApplicationCredentials == "" && c.FirebaseServiceAccountJSONBase64 == "" {
			return errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required")
		}
		if c.FirebaseStorageBucket == "" {
			return errors.New("FIREBASE_STORAGE_BUCKET is required")
		}
		if c.FirebaseWebAPIKey == "" {
			return errors.New("FIREBASE_WEB_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q", c.Backend)
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.ClientURL == "" {
		return errors.New("CLIENT_URL is required")
	}
	if c.FreeTierItemLimit <= 0 {
		return errors.New("FREE_TIER_ITEM_LIMIT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.IdentityRecheckInterval <= 0 {
		return errors.New("IDENTITY_RECHECK_INTERVAL must be positive")
	}
	return nil
}

// MailConfigured reports whether SMTP credentials are present.
func (c *Config) MailConfigured() bool {
	return c.SMTPUser != "" && c.SMTPPass != ""
}
