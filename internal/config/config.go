// Package config loads application settings from the environment.
//
// A .env file in the working directory is read first (if present) so local
// development does not need exported shell variables. Real environment
// variables always win over the file because godotenv never overwrites
// variables that are already set.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// MinSecretLength mirrors the check in auth.NewTokenService.
	MinSecretLength = 16
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	OIDC     OIDCConfig
	Stripe   StripeConfig
	Mail     MailConfig
	Log      LogConfig

	// AdminEmails are lower-cased addresses granted admin rights on login.
	AdminEmails []string
	// PremiumPolicy is "authenticated" or "premium", see entitlement.ParsePolicy.
	PremiumPolicy string
}

type ServerConfig struct {
	Port    int
	BaseURL string
	// StaticDir holds the built web client. It is served with an
	// index.html fallback when the directory exists.
	StaticDir string
}

type DatabaseConfig struct {
	URL string
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
	// Generated is true when no secret was configured and a random one was
	// created for this process. Sessions will not survive a restart.
	Generated bool
	Secure    bool
}

type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether enough is configured to attempt provider discovery.
func (c OIDCConfig) Enabled() bool {
	return c.IssuerURL != "" && c.ClientID != ""
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	PriceCents     int64
	Currency       string
}

type MailConfig struct {
	PublicKey        string
	PrivateKey       string
	Sender           string
	ContactRecipient string
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

// Load reads the configuration. It only fails for settings that make the
// process unsafe to run, such as a missing session secret in production.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.ToLower(getString("APP_ENV", EnvDevelopment))
	if env != EnvDevelopment && env != EnvProduction {
		return nil, fmt.Errorf("config: APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, env)
	}

	port, err := getInt("PORT", 5000)
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(getString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	ttl, err := getDuration("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	price, err := getInt("PREMIUM_PRICE_CENTS", 900)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, fmt.Errorf("config: PREMIUM_PRICE_CENTS must be positive, got %d", price)
	}

	level, err := parseLevel(getString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env: env,
		Server: ServerConfig{
			Port:      port,
			BaseURL:   baseURL,
			StaticDir: getString("STATIC_DIR", "dist/public"),
		},
		Database: DatabaseConfig{
			URL: getString("DATABASE_URL", "data/portfolio.db"),
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
			TTL:    ttl,
			Secure: strings.HasPrefix(baseURL, "https://"),
		},
		OIDC: OIDCConfig{
			IssuerURL:    getString("OIDC_ISSUER_URL", "https://replit.com/oidc"),
			ClientID:     firstNonEmpty(os.Getenv("OIDC_CLIENT_ID"), os.Getenv("REPL_ID")),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  getString("OIDC_REDIRECT_URL", baseURL+"/api/callback"),
		},
		Stripe: StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: firstNonEmpty(os.Getenv("STRIPE_PUBLIC_KEY"), os.Getenv("VITE_STRIPE_PUBLIC_KEY")),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceCents:     int64(price),
			Currency:       strings.ToLower(getString("PREMIUM_CURRENCY", "usd")),
		},
		Mail: MailConfig{
			PublicKey:        os.Getenv("MAILJET_PUBLIC_KEY"),
			PrivateKey:       os.Getenv("MAILJET_PRIVATE_KEY"),
			Sender:           os.Getenv("MAIL_SENDER"),
			ContactRecipient: os.Getenv("CONTACT_RECIPIENT"),
		},
		Log: LogConfig{
			Level:  level,
			Format: strings.ToLower(getString("LOG_FORMAT", "text")),
		},
		AdminEmails:   parseList(os.Getenv("ADMIN_EMAILS")),
		PremiumPolicy: strings.ToLower(getString("PREMIUM_POLICY", "authenticated")),
	}

	if err := cfg.ensureSessionSecret(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

func (c *Config) ensureSessionSecret() error {
	if c.Session.Secret != "" {
		if len(c.Session.Secret) < MinSecretLength {
			return fmt.Errorf("config: SESSION_SECRET must be at least %d characters", MinSecretLength)
		}
		return nil
	}
	if c.IsProduction() {
		return fmt.Errorf("config: SESSION_SECRET is required in production")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("config: generating session secret: %w", err)
	}
	c.Session.Secret = hex.EncodeToString(buf)
	c.Session.Generated = true
	return nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration like 24h: %w", key, err)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return level, nil
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
