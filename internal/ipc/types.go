package ipc

import (
	"encoding/json"
	"strconv"
	"strings"

	"streamfade/internal/fade"
	"streamfade/internal/match"
	"streamfade/internal/runs"
)

// CrawlEntry is one film reported by the page collaborator. The collaborator
// scrapes display markup, so the year arrives as a number, a string, or not
// at all; anything unparseable decodes to the unknown-year sentinel.
type CrawlEntry struct {
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Positions []int  `json:"positions"`
}

// UnmarshalJSON tolerates the loose payloads the collaborator produces: the
// year field may be a number or string, and positions arrive either as an
// array under "positions" or as a single id (or id array) under "id".
func (e *CrawlEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title     string          `json:"title"`
		Year      json.RawMessage `json:"year"`
		Positions json.RawMessage `json:"positions"`
		ID        json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Title = raw.Title
	e.Year = parseYear(raw.Year)
	e.Positions = parsePositions(raw.Positions)
	if len(e.Positions) == 0 {
		e.Positions = parsePositions(raw.ID)
	}
	return nil
}

func parsePositions(raw json.RawMessage) []int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []int
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		return []int{single}
	}
	return nil
}

func parseYear(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return match.YearUnknown
	}

	var number int
	if err := json.Unmarshal(raw, &number); err == nil {
		if number > 0 {
			return number
		}
		return match.YearUnknown
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return match.YearUnknown
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || parsed <= 0 {
		return match.YearUnknown
	}
	return parsed
}

// Film converts the wire entry to the coordinator's model.
func (e CrawlEntry) Film() runs.CrawledFilm {
	return runs.CrawledFilm{Title: e.Title, Year: e.Year, Positions: e.Positions}
}

// SubmitCrawlRequest starts a run from a tab's crawled film list.
type SubmitCrawlRequest struct {
	TabID int64        `json:"tab_id"`
	Films []CrawlEntry `json:"films"`
}

// SubmitCrawlResponse acknowledges a crawl submission.
type SubmitCrawlResponse struct {
	Accepted bool `json:"accepted"`
	Films    int  `json:"films"`
}

// CommandsRequest drains the pending collaborator commands for a tab.
type CommandsRequest struct {
	TabID int64 `json:"tab_id"`
}

// CommandsResponse carries the drained commands in issue order.
type CommandsResponse struct {
	Commands []fade.Command `json:"commands"`
}

// RetryNowRequest fires a tab's deferred retry immediately.
type RetryNowRequest struct {
	TabID int64 `json:"tab_id"`
}

// RetryNowResponse acknowledges the retry trigger.
type RetryNowResponse struct {
	Triggered bool `json:"triggered"`
}

// CloseTabRequest drops all state for a closed tab.
type CloseTabRequest struct {
	TabID int64 `json:"tab_id"`
}

// CloseTabResponse acknowledges the close.
type CloseTabResponse struct {
	Closed bool `json:"closed"`
}

// GetFilterRequest fetches the effective filter selection.
type GetFilterRequest struct{}

// SetFilterRequest persists a new filter selection.
type SetFilterRequest struct {
	CountryCode string `json:"country_code"`
	ProviderID  int64  `json:"provider_id"`
	Enabled     bool   `json:"enabled"`
}

// FilterResponse is the effective filter selection.
type FilterResponse struct {
	CountryCode string `json:"country_code"`
	ProviderID  int64  `json:"provider_id"`
	Enabled     bool   `json:"enabled"`
}

// ProviderInfo is one watch-provider directory entry.
type ProviderInfo struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	DisplayPriority int      `json:"display_priority"`
	Countries       []string `json:"countries"`
}

// ProvidersRequest lists the provider directory, optionally restricted to
// one country.
type ProvidersRequest struct {
	Country string `json:"country"`
}

// ProvidersResponse carries the provider directory.
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// FindProviderRequest resolves a provider by name.
type FindProviderRequest struct {
	Name string `json:"name"`
}

// FindProviderResponse carries the resolved provider.
type FindProviderResponse struct {
	Provider ProviderInfo `json:"provider"`
}

// RegionInfo is one region directory entry.
type RegionInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RegionsRequest lists the region directory.
type RegionsRequest struct{}

// RegionsResponse carries the region directory.
type RegionsResponse struct {
	Regions []RegionInfo `json:"regions"`
}

// TabInfo summarizes one tab's run.
type TabInfo struct {
	TabID        int64  `json:"tab_id"`
	SessionID    string `json:"session_id"`
	Generation   uint64 `json:"generation"`
	Total        int    `json:"total"`
	Resolved     int    `json:"resolved"`
	Running      bool   `json:"running"`
	Available    int    `json:"available"`
	PendingRetry int    `json:"pending_retry"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon's runtime summary.
type StatusResponse struct {
	Running     bool      `json:"running"`
	Tabs        []TabInfo `json:"tabs"`
	LockPath    string    `json:"lock_path"`
	StateDBPath string    `json:"state_db_path"`
	PID         int       `json:"pid"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges the shutdown request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
