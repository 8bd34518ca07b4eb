package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.TMDB.APIKey == "" {
		problems = append(problems, "tmdb.api_key is required")
	}
	if c.TMDB.BaseURL == "" {
		problems = append(problems, "tmdb.base_url must not be empty")
	}
	if c.Offers.BaseURL == "" {
		problems = append(problems, "offers.base_url must not be empty")
	}
	if c.Offers.PageSize <= 0 {
		problems = append(problems, "offers.page_size must be positive")
	}
	if len(c.Filter.CountryCode) != 2 {
		problems = append(problems, fmt.Sprintf("filter.country_code %q must be a two-letter ISO 3166-1 code", c.Filter.CountryCode))
	}
	if c.Filter.ProviderID <= 0 {
		problems = append(problems, "filter.provider_id must be positive")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		problems = append(problems, "http.timeout_seconds must be positive")
	}
	if c.HTTP.RequestsPerWindow <= 0 || c.HTTP.WindowSeconds <= 0 {
		problems = append(problems, "http.requests_per_window and http.window_seconds must be positive")
	}
	if c.Retry.CooldownSeconds <= 0 {
		problems = append(problems, "retry.cooldown_seconds must be positive")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
