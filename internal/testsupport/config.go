package testsupport

import (
	"path/filepath"
	"testing"

	"streamfade/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.TMDB.APIKey = "test"
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "streamfaded.sock")
	cfg.Retry.CooldownSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithFilter overrides the provider/country selection on the test config.
func WithFilter(countryCode string, providerID int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Filter.CountryCode = countryCode
		cfg.Filter.ProviderID = providerID
	}
}

// WithTMDBBaseURL points the metadata client at a test server.
func WithTMDBBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.TMDB.BaseURL = url
	}
}

// WithOffersBaseURL points the offer-catalog client at a test server.
func WithOffersBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Offers.BaseURL = url
	}
}
