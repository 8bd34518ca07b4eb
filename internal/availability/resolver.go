package availability

import (
	"strings"

	"streamfade/internal/match"
	"streamfade/internal/services/offers"
)

// FindOfferEntry locates the catalog entry for the given title and year. The
// first pass accepts only exact year equality; the ±1/unknown-year fallback
// runs as a second pass over all entries only when the first pass found
// nothing, with the last fallback entry winning, mirroring the search-match
// tie-break. Entries without a usable title are skipped.
func FindOfferEntry(entries []offers.Entry, title string, year int) (offers.Entry, bool) {
	if strings.TrimSpace(title) == "" {
		return offers.Entry{}, false
	}

	for _, entry := range entries {
		if !entryTitleMatches(entry, title) {
			continue
		}
		if year != match.YearUnknown && entry.ReleaseYear == year {
			return entry, true
		}
	}

	var fallback offers.Entry
	found := false
	for _, entry := range entries {
		if !entryTitleMatches(entry, title) {
			continue
		}
		if year == match.YearUnknown || entry.ReleaseYear == year-1 || entry.ReleaseYear == year+1 {
			fallback = entry
			found = true
		}
	}
	return fallback, found
}

// HasFlatrateOffer reports whether the catalog carries the titled work with a
// flatrate or free offer from the given provider.
func HasFlatrateOffer(entries []offers.Entry, title string, year int, providerID int64) bool {
	entry, found := FindOfferEntry(entries, title, year)
	if !found {
		return false
	}
	return entryHasProviderFlatrate(entry, providerID)
}

func entryTitleMatches(entry offers.Entry, title string) bool {
	if entry.Title != "" && strings.EqualFold(entry.Title, title) {
		return true
	}
	return entry.OriginalTitle != "" && strings.EqualFold(entry.OriginalTitle, title)
}

func entryHasProviderFlatrate(entry offers.Entry, providerID int64) bool {
	for _, offer := range entry.Offers {
		if offer.ProviderID == 0 || offer.ProviderID != providerID {
			continue
		}
		switch offer.MonetizationType {
		case offers.MonetizationFlatrate, offers.MonetizationFree:
			return true
		}
	}
	return false
}
