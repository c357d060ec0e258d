package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is built once at startup and passed explicitly to the components that need it.
type Config struct {
	AppPort     string
	RabbitMQURL string

	Database Database
	Auth     Auth
	Payment  Payment
}

type Database struct {
	Driver string // postgres or sqlite
	DSN    string
}

type Auth struct {
	JWTSecret   string
	TokenTTL    time.Duration
	AdminEmails []string
}

// Payment holds the Razorpay credentials and the bound for outbound gateway calls.
type Payment struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

// Load reads configuration from defaults, an optional .env file and the environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), ".env")
}

// LoadFrom is Load with an explicit viper instance and env file path.
func LoadFrom(v *viper.Viper, envFile string) (*Config, error) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=shophub port=5432 sslmode=disable")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ADMIN_EMAILS", "")
	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("PAYMENT_CURRENCY", "INR")
	v.SetDefault("PAYMENT_TIMEOUT", "5s")

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isMissingFile(err) {
				return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		Database: Database{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			JWTSecret:   v.GetString("JWT_SECRET"),
			TokenTTL:    v.GetDuration("JWT_TTL"),
			AdminEmails: splitList(v.GetString("ADMIN_EMAILS")),
		},
		Payment: Payment{
			BaseURL:       strings.TrimRight(v.GetString("RAZORPAY_BASE_URL"), "/"),
			KeyID:         v.GetString("RAZORPAY_KEY_ID"),
			KeySecret:     v.GetString("RAZORPAY_KEY_SECRET"),
			WebhookSecret: v.GetString("RAZORPAY_WEBHOOK_SECRET"),
			Currency:      strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
			Timeout:       v.GetDuration("PAYMENT_TIMEOUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Payment.Timeout <= 0 {
		return errors.New("PAYMENT_TIMEOUT must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (a Auth) IsAdminEmail(email string) bool {
	for _, e := range a.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// viper returns a *fs.PathError rather than ConfigFileNotFoundError when SetConfigFile is used.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
