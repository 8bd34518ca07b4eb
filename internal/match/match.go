package match

import "strings"

// YearUnknown is the sentinel for a film whose release year was not crawled.
const YearUnknown = -1

// Kind tags a candidate as a movie or a series.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "tv"
)

// Candidate is one heterogeneous search result considered for a match.
// Title and Date carry the kind-specific fields (title/release date for
// movies, name/first air date for series) already projected by the caller.
type Candidate struct {
	ExternalID int64
	Kind       Kind
	Title      string
	Date       string
}

// Result identifies the winning candidate. ExternalID and Kind are
// meaningless unless Found is true.
type Result struct {
	ExternalID int64
	Kind       Kind
	Found      bool
}

// FindBestMatch scans candidates in order for the one identifying the target
// work. A title match with exact year equality wins immediately. A title
// match whose year is off by one, or any title match when the target year is
// unknown, is kept as a fallback; the last such fallback wins if no exact
// match appears. Titles compare case-insensitively and must otherwise be
// equal. Candidates missing a title are skipped.
func FindBestMatch(candidates []Candidate, targetTitle string, targetYear int) Result {
	var fallback Result

	for _, candidate := range candidates {
		if candidate.Title == "" || !strings.EqualFold(candidate.Title, targetTitle) {
			continue
		}

		year, hasYear := YearFromDate(candidate.Date)

		if hasYear && targetYear != YearUnknown && year == targetYear {
			return Result{ExternalID: candidate.ExternalID, Kind: candidate.Kind, Found: true}
		}

		if targetYear == YearUnknown || (hasYear && (year == targetYear-1 || year == targetYear+1)) {
			fallback = Result{ExternalID: candidate.ExternalID, Kind: candidate.Kind, Found: true}
		}
	}

	return fallback
}

// YearFromDate extracts a 4-digit year from a date string such as
// "2021-09-15". It reports false for empty or malformed dates.
func YearFromDate(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0, false
		}
		year = year*10 + int(r-'0')
	}
	if year == 0 {
		return 0, false
	}
	return year, true
}
