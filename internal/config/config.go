// Package config builds the gateway configuration once at startup.
//
// Service URLs and the token signing key come from a secrets.Provider; every
// other setting is read from the environment, which is populated from a .env
// file when one exists.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/emilythestrangee/main-feed/backend/internal/secrets"
)

// Secret names resolved at startup.
const (
	SecretPostServiceURL    = "POST_SERVICE_URL"
	SecretCommentServiceURL = "COMMENT_SERVICE_URL"
	SecretStorageServiceURL = "STORAGE_SERVICE_URL"
	SecretSigningKey        = "SECURITY_TOKEN_SECRET"
	SecretOpenAIAPIKey      = "OPENAI_API_KEY"
)

const (
	DefaultPort            = "8080"
	DefaultFeedScope       = "feed:read"
	DefaultPostScope       = "post:write"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultMaxImageBytes   = 10 << 20
)

var DefaultAllowedOrigins = []string{"http://localhost", "http://localhost:8080"}

type Config struct {
	Port string

	PostServiceURL    string
	CommentServiceURL string
	StorageServiceURL string

	SigningKey []byte
	FeedScope  string
	PostScope  string

	AllowedOrigins  []string
	UpstreamTimeout time.Duration
	MaxImageBytes   int64

	// OpenAIAPIKey enables content review when set.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	OTLPEndpoint string
	LogLevel     slog.Level
}

// ModerationEnabled reports whether submitted content is reviewed.
func (c *Config) ModerationEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// Load resolves secrets through provider and reads the remaining settings
// from the environment.
func Load(ctx context.Context, provider secrets.Provider) (*Config, error) {
	return load(ctx, provider, os.Getenv)
}

func load(ctx context.Context, provider secrets.Provider, getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:          stringOr(getenv("PORT"), DefaultPort),
		FeedScope:     stringOr(getenv("FEED_SCOPE"), DefaultFeedScope),
		PostScope:     stringOr(getenv("POST_SCOPE"), DefaultPostScope),
		OpenAIModel:   getenv("OPENAI_MODEL"),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL"),
		OTLPEndpoint:  strings.Trim(getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "\"' "),
	}

	var errs []error

	urls := []struct {
		secret string
		dst    *string
	}{
		{SecretPostServiceURL, &cfg.PostServiceURL},
		{SecretCommentServiceURL, &cfg.CommentServiceURL},
		{SecretStorageServiceURL, &cfg.StorageServiceURL},
	}
	for _, u := range urls {
		v, err := provider.Secret(ctx, u.secret)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", u.secret, err))
			continue
		}
		if err := validateBaseURL(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.secret, err))
			continue
		}
		*u.dst = v
	}

	key, err := provider.Secret(ctx, SecretSigningKey)
	if err != nil {
		errs = append(errs, fmt.Errorf("resolve %s: %w", SecretSigningKey, err))
	}
	cfg.SigningKey = []byte(key)

	apiKey, err := provider.Secret(ctx, SecretOpenAIAPIKey)
	switch {
	case err == nil:
		cfg.OpenAIAPIKey = apiKey
	case errors.Is(err, secrets.ErrNotFound):
		slog.Warn("OPENAI_API_KEY not set, content review disabled")
	default:
		errs = append(errs, fmt.Errorf("resolve %s: %w", SecretOpenAIAPIKey, err))
	}

	cfg.AllowedOrigins = DefaultAllowedOrigins
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	cfg.UpstreamTimeout = DefaultUpstreamTimeout
	if v := getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUT: invalid duration %q", v))
		} else {
			cfg.UpstreamTimeout = d
		}
	}

	cfg.MaxImageBytes = DefaultMaxImageBytes
	if v := getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES: invalid size %q", v))
		} else {
			cfg.MaxImageBytes = n
		}
	}

	cfg.LogLevel = slog.LevelInfo
	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProviderFromEnv picks the secret provider: Google Secret Manager when
// SECRET_PROJECT is set (falling back to the environment for secrets it does
// not hold), otherwise the environment alone. The returned close function
// releases the provider's connections.
func ProviderFromEnv(ctx context.Context) (secrets.Provider, func() error, error) {
	project := os.Getenv("SECRET_PROJECT")
	if project == "" {
		return secrets.NewEnv(), func() error { return nil }, nil
	}

	gsm, err := secrets.NewGoogleSecretManager(ctx, project, os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Reading secrets from Google Secret Manager", "project", project)
	return secrets.Chain{gsm, secrets.NewEnv()}, gsm.Close, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
