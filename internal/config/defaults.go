package config

const (
	defaultStateDir          = "~/.local/share/streamfade/state"
	defaultLogDir            = "~/.local/share/streamfade/logs"
	defaultSocketPath        = "~/.local/share/streamfade/streamfaded.sock"
	defaultTMDBBaseURL       = "https://api.themoviedb.org/3"
	defaultTMDBLanguage      = "en-US"
	defaultOffersBaseURL     = "https://apis.justwatch.com/content"
	defaultOffersPageSize    = 30
	defaultCountryCode       = "DE"
	defaultProviderID        = 8 // Netflix
	defaultHTTPTimeout       = 10
	defaultRequestsPerWindow = 40
	defaultWindowSeconds     = 10
	defaultRetryCooldown     = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Offers: Offers{
			BaseURL:  defaultOffersBaseURL,
			PageSize: defaultOffersPageSize,
		},
		Filter: Filter{
			CountryCode: defaultCountryCode,
			ProviderID:  defaultProviderID,
			Enabled:     true,
		},
		HTTP: HTTP{
			TimeoutSeconds:    defaultHTTPTimeout,
			RequestsPerWindow: defaultRequestsPerWindow,
			WindowSeconds:     defaultWindowSeconds,
		},
		Retry: Retry{
			CooldownSeconds: defaultRetryCooldown,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
