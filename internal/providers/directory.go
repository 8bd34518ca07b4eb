// Package providers maintains a local copy of the watch-provider and region
// directories so selection commands work without a network round trip. The
// cache is refreshed from the metadata service when it ages past its TTL.
package providers

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"streamfade/internal/logging"
	"streamfade/internal/services"
	"streamfade/internal/services/tmdb"
	"streamfade/internal/state"
)

// DefaultTTL is how long a cached directory stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// Directory serves providers and regions from the local cache, refreshing
// from the metadata service when stale.
type Directory struct {
	mu     sync.Mutex
	source tmdb.Directory
	store  *state.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewDirectory builds a directory over the metadata client and cache store.
func NewDirectory(source tmdb.Directory, store *state.Store, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Directory{source: source, store: store, ttl: DefaultTTL, logger: logger}
}

// WithTTL overrides the refresh interval.
func (d *Directory) WithTTL(ttl time.Duration) *Directory {
	d.ttl = ttl
	return d
}

// Providers returns the provider directory, refreshing the cache first when
// it is stale or empty. A refresh failure falls back to the cached copy when
// one exists.
func (d *Directory) Providers(ctx context.Context) ([]state.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.refreshProvidersLocked(ctx); err != nil {
		cached, listErr := d.store.ListProviders(ctx)
		if listErr == nil && len(cached) > 0 {
			d.logger.Warn("provider refresh failed, serving cached directory", logging.Error(err))
			return cached, nil
		}
		return nil, err
	}
	return d.store.ListProviders(ctx)
}

// Regions returns the region directory under the same refresh policy as
// Providers.
func (d *Directory) Regions(ctx context.Context) ([]state.Region, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.refreshRegionsLocked(ctx); err != nil {
		cached, listErr := d.store.ListRegions(ctx)
		if listErr == nil && len(cached) > 0 {
			d.logger.Warn("region refresh failed, serving cached directory", logging.Error(err))
			return cached, nil
		}
		return nil, err
	}
	return d.store.ListRegions(ctx)
}

// FindProvider resolves a name to a provider, preferring an exact
// case-insensitive match and falling back to the best fuzzy match.
func (d *Directory) FindProvider(ctx context.Context, name string) (state.Provider, error) {
	providers, err := d.Providers(ctx)
	if err != nil {
		return state.Provider{}, err
	}

	for _, provider := range providers {
		if strings.EqualFold(provider.Name, name) {
			return provider, nil
		}
	}

	names := make([]string, len(providers))
	for i, provider := range providers {
		names[i] = provider.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(name, names)
	if len(ranks) == 0 {
		return state.Provider{}, services.Wrap(services.ErrNotFound, "providers", "find",
			"no provider matches "+name, nil)
	}
	sort.Sort(ranks)
	return providers[ranks[0].OriginalIndex], nil
}

func (d *Directory) refreshProvidersLocked(ctx context.Context) error {
	if d.freshLocked(ctx, "providers") {
		return nil
	}

	fetched, err := d.source.MovieProviders(ctx)
	if err != nil {
		return err
	}
	providers := make([]state.Provider, 0, len(fetched))
	for _, provider := range fetched {
		countries := make([]string, 0, len(provider.DisplayPriorities))
		for country := range provider.DisplayPriorities {
			countries = append(countries, country)
		}
		sort.Strings(countries)
		providers = append(providers, state.Provider{
			ID:              provider.ProviderID,
			Name:            provider.ProviderName,
			DisplayPriority: provider.DisplayPriority,
			Countries:       countries,
		})
	}
	if err := d.store.ReplaceProviders(ctx, providers); err != nil {
		return err
	}
	d.logger.Info("provider directory refreshed", logging.Int("providers", len(providers)))
	return nil
}

func (d *Directory) refreshRegionsLocked(ctx context.Context) error {
	if d.freshLocked(ctx, "regions") {
		return nil
	}

	fetched, err := d.source.Regions(ctx)
	if err != nil {
		return err
	}
	regions := make([]state.Region, 0, len(fetched))
	for _, region := range fetched {
		regions = append(regions, state.Region{
			Code: region.CountryCode,
			Name: regionName(region),
		})
	}
	if err := d.store.ReplaceRegions(ctx, regions); err != nil {
		return err
	}
	d.logger.Info("region directory refreshed", logging.Int("regions", len(regions)))
	return nil
}

func (d *Directory) freshLocked(ctx context.Context, key string) bool {
	fetchedAt, ok, err := d.store.DirectoryFetchedAt(ctx, key)
	if err != nil {
		d.logger.Warn("directory meta lookup failed", logging.Error(err))
		return false
	}
	return ok && time.Since(fetchedAt) < d.ttl
}

// regionName prefers the English name the service supplies and derives one
// from the country code when the field is empty.
func regionName(region tmdb.Region) string {
	if region.EnglishName != "" {
		return region.EnglishName
	}
	parsed, err := language.ParseRegion(region.CountryCode)
	if err != nil {
		return region.CountryCode
	}
	return display.English.Regions().Name(parsed)
}
