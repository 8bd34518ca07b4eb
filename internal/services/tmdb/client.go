package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"streamfade/internal/services"
)

// Result represents a single TMDB search match or detail payload.
type Result struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Name          string `json:"name"`
	OriginalTitle string `json:"original_title"`
	OriginalName  string `json:"original_name"`
	ReleaseDate   string `json:"release_date"`
	FirstAirDate  string `json:"first_air_date"`
	MediaType     string `json:"media_type"`
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Provider describes one entry of the watch-provider directory.
type Provider struct {
	ProviderID        int64          `json:"provider_id"`
	ProviderName      string         `json:"provider_name"`
	DisplayPriority   int            `json:"display_priority"`
	DisplayPriorities map[string]int `json:"display_priorities"`
}

// Region describes one entry of the watch-provider region directory.
type Region struct {
	CountryCode string `json:"iso_3166_1"`
	EnglishName string `json:"english_name"`
}

// Searcher defines the metadata-search operations the pipeline uses.
type Searcher interface {
	SearchMulti(ctx context.Context, query string) (*Response, error)
	GetDetails(ctx context.Context, mediaType string, id int64) (*Result, error)
}

// Directory defines the provider/region directory operations.
type Directory interface {
	MovieProviders(ctx context.Context) ([]Provider, error)
	Regions(ctx context.Context) ([]Region, error)
}

// Client provides access to the TMDB API.
type Client struct {
	token      string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var (
	_ Searcher  = (*Client)(nil)
	_ Directory = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit throttles outbound requests to n per window.
func WithRateLimit(n int, window time.Duration) Option {
	return func(c *Client) {
		if n > 0 && window > 0 {
			c.limiter = rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
		}
	}
}

// WithTimeout caps how long a single request may take.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a TMDB client authenticating with a bearer token.
func New(token, baseURL, language string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("tmdb token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchMulti queries /search/multi for movies and series matching the title.
func (c *Client) SearchMulti(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "search", "query must not be empty", nil)
	}
	params := url.Values{}
	params.Set("query", query)

	var payload Response
	if err := c.get(ctx, "/search/multi", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetDetails fetches the full movie or tv payload, including the title as
// known in the configured language and the original-language title.
func (c *Client) GetDetails(ctx context.Context, mediaType string, id int64) (*Result, error) {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType != "movie" && mediaType != "tv" {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "details", fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "details", "id must be positive", nil)
	}

	var payload Result
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", mediaType, id), url.Values{}, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = mediaType
	return &payload, nil
}

type directoryResponse[T any] struct {
	Results []T `json:"results"`
}

// MovieProviders fetches the movie watch-provider directory.
func (c *Client) MovieProviders(ctx context.Context) ([]Provider, error) {
	var payload directoryResponse[Provider]
	if err := c.get(ctx, "/watch/providers/movie", url.Values{}, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// Regions fetches the watch-provider region directory.
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	var payload directoryResponse[Region]
	if err := c.get(ctx, "/watch/providers/regions", url.Values{}, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return services.Wrap(services.ErrTransient, "tmdb", "throttle", "", err)
		}
	}

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "tmdb", "url", path, err)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tmdb", "build request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tmdb", "execute request", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.StatusError("tmdb", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "tmdb", "decode response", "", err)
	}
	return nil
}
