package availability

import (
	"context"
	"log/slog"

	"streamfade/internal/logging"
	"streamfade/internal/match"
	"streamfade/internal/services"
	"streamfade/internal/services/offers"
	"streamfade/internal/services/tmdb"
)

// Film is one crawled work to classify.
type Film struct {
	Title     string
	Year      int
	Positions []int
}

// Outcome is the terminal classification of one film for one pass.
// RateLimited marks films that resolved unavailable only because a catalog
// signalled transient capacity; they are candidates for a deferred retry.
type Outcome struct {
	Available   bool
	RateLimited bool
}

// Checker is the surface the run coordinator drives per film.
type Checker interface {
	Check(ctx context.Context, film Film, countryCode string, providerID int64) Outcome
}

// Pipeline chains the lookups that classify one film: a direct offer-catalog
// search under the film's own title, a metadata search, a localized-title
// fetch, and a second resolve over the already-fetched catalog response.
type Pipeline struct {
	search tmdb.Searcher
	offers offers.Searcher
	logger *slog.Logger
}

var _ Checker = (*Pipeline)(nil)

// NewPipeline constructs a pipeline over the two catalog clients.
func NewPipeline(search tmdb.Searcher, offerCatalog offers.Searcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{search: search, offers: offerCatalog, logger: logger}
}

// Check runs the film through the lookup chain and returns its terminal
// classification. Every path terminates; errors never escape. The offer
// catalog is queried exactly once and its response reused for the localized
// resolve.
func (p *Pipeline) Check(ctx context.Context, film Film, countryCode string, providerID int64) Outcome {
	log := p.logger.With(
		logging.String(logging.FieldTitle, film.Title),
		logging.Int(logging.FieldYear, film.Year),
	)

	// Direct catalog lookup under the film's own title.
	catalog, err := p.offers.SearchTitles(ctx, countryCode, film.Title)
	if err != nil {
		return p.failed(log, "direct-lookup", err)
	}
	if entry, found := FindOfferEntry(catalog.Items, film.Title, film.Year); found {
		available := entryHasProviderFlatrate(entry, providerID)
		log.Debug("resolved by direct lookup", logging.Bool("available", available))
		return Outcome{Available: available}
	}

	// Metadata search to identify the work.
	searched, err := p.search.SearchMulti(ctx, film.Title)
	if err != nil {
		return p.failed(log, "metadata-search", err)
	}
	best := match.FindBestMatch(candidatesFromSearch(searched.Results), film.Title, film.Year)
	if !best.Found {
		log.Debug("no metadata match")
		return Outcome{}
	}

	// Localized title for the matched work. Any failure here resolves the
	// film unavailable without retry, including capacity errors.
	localized := film.Title
	if detail, err := p.search.GetDetails(ctx, string(best.Kind), best.ExternalID); err != nil {
		log.Debug("localized title fetch failed", logging.Error(err))
		return Outcome{}
	} else if title := localizedTitle(detail); title != "" {
		localized = title
	}

	// Second resolve over the cached catalog response using the localized
	// title. Terminal either way.
	available := HasFlatrateOffer(catalog.Items, localized, film.Year, providerID)
	log.Debug("resolved by localized lookup",
		logging.String("localized_title", localized),
		logging.Bool("available", available),
	)
	return Outcome{Available: available}
}

func (p *Pipeline) failed(log *slog.Logger, stage string, err error) Outcome {
	if services.IsRateLimited(err) {
		log.Debug("rate limited", logging.String(logging.FieldStage, stage))
		return Outcome{RateLimited: true}
	}
	log.Debug("request failed", logging.String(logging.FieldStage, stage), logging.Error(err))
	return Outcome{}
}

// candidatesFromSearch projects heterogeneous search results onto match
// candidates. Results without a media type, or missing the title field for
// their kind, are dropped.
func candidatesFromSearch(results []tmdb.Result) []match.Candidate {
	candidates := make([]match.Candidate, 0, len(results))
	for _, result := range results {
		switch result.MediaType {
		case "movie":
			if result.Title == "" {
				continue
			}
			candidates = append(candidates, match.Candidate{
				ExternalID: result.ID,
				Kind:       match.KindMovie,
				Title:      result.Title,
				Date:       result.ReleaseDate,
			})
		case "tv":
			if result.Name == "" {
				continue
			}
			candidates = append(candidates, match.Candidate{
				ExternalID: result.ID,
				Kind:       match.KindSeries,
				Title:      result.Name,
				Date:       result.FirstAirDate,
			})
		}
	}
	return candidates
}

// localizedTitle picks the title as known in the configured language, falling
// back to the original-language title.
func localizedTitle(detail *tmdb.Result) string {
	switch {
	case detail == nil:
		return ""
	case detail.Title != "":
		return detail.Title
	case detail.Name != "":
		return detail.Name
	case detail.OriginalTitle != "":
		return detail.OriginalTitle
	case detail.OriginalName != "":
		return detail.OriginalName
	}
	return ""
}
