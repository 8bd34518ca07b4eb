package offers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"streamfade/internal/services"
)

// Monetization kinds that count as included-with-subscription access.
const (
	MonetizationFlatrate = "flatrate"
	MonetizationFree     = "free"
)

// Offer is a single way of watching an entry with a specific provider.
type Offer struct {
	MonetizationType string `json:"monetization_type"`
	ProviderID       int64  `json:"provider_id"`
}

// Entry is one work in the offer catalog, scoped to the queried country.
type Entry struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseYear   int     `json:"original_release_year"`
	Offers        []Offer `json:"offers"`
}

// Response models the catalog title-search payload.
type Response struct {
	Items []Entry `json:"items"`
}

// Searcher defines the offer-catalog operation the pipeline uses.
type Searcher interface {
	SearchTitles(ctx context.Context, countryCode, query string) (*Response, error)
}

// Client queries the streaming-offer catalog.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Searcher = (*Client)(nil)

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

// New creates an offer-catalog client.
func New(baseURL string, pageSize int, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("offer catalog base url required")
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchBody struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Query    string `json:"query"`
}

// SearchTitles searches the popular-titles index of the given country for
// entries matching the query. All returned entries carry offers valid for
// that country only.
func (c *Client) SearchTitles(ctx context.Context, countryCode, query string) (*Response, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if len(countryCode) != 2 {
		return nil, services.Wrap(services.ErrValidation, "offers", "search", "country code must be two letters", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "offers", "search", "query must not be empty", nil)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrTransient, "offers", "throttle", "", err)
		}
	}

	body, err := json.Marshal(searchBody{Page: 1, PageSize: c.pageSize, Query: query})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "offers", "encode body", "", err)
	}

	locale := strings.ToLower(countryCode) + "_" + countryCode
	endpoint, err := url.Parse(c.baseURL + "/titles/" + locale + "/popular")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "offers", "url", locale, err)
	}
	params := url.Values{}
	params.Set("body", string(body))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "offers", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "offers", "execute request", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.StatusError("offers", "search", resp.StatusCode)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "offers", "decode response", "", err)
	}
	return &payload, nil
}
