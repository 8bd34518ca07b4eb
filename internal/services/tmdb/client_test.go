package tmdb_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamfade/internal/services"
	"streamfade/internal/services/tmdb"
)

func TestSearchMultiSendsQueryAndBearer(t *testing.T) {
	var gotAuth, gotQuery, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/multi" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		gotLanguage = r.URL.Query().Get("language")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page": 1,
			"results": []map[string]any{
				{"id": 438631, "title": "Dune", "media_type": "movie", "release_date": "2021-09-15"},
			},
		})
	}))
	defer server.Close()

	client, err := tmdb.New("token", server.URL, "de-DE")
	if err != nil {
		t.Fatalf("tmdb.New failed: %v", err)
	}

	resp, err := client.SearchMulti(context.Background(), "Dune")
	if err != nil {
		t.Fatalf("SearchMulti failed: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 438631 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotQuery != "Dune" {
		t.Fatalf("expected query Dune, got %q", gotQuery)
	}
	if gotLanguage != "de-DE" {
		t.Fatalf("expected language de-DE, got %q", gotLanguage)
	}
}

func TestSearchMultiMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := tmdb.New("token", server.URL, "")
	if err != nil {
		t.Fatalf("tmdb.New failed: %v", err)
	}

	_, err = client.SearchMulti(context.Background(), "Dune")
	if !services.IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestGetDetailsSetsMediaType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 1399, "name": "Game of Thrones", "original_name": "Game of Thrones",
		})
	}))
	defer server.Close()

	client, err := tmdb.New("token", server.URL, "")
	if err != nil {
		t.Fatalf("tmdb.New failed: %v", err)
	}

	detail, err := client.GetDetails(context.Background(), "tv", 1399)
	if err != nil {
		t.Fatalf("GetDetails failed: %v", err)
	}
	if detail.MediaType != "tv" {
		t.Fatalf("expected media type tv, got %q", detail.MediaType)
	}
	if detail.Name != "Game of Thrones" {
		t.Fatalf("unexpected name %q", detail.Name)
	}
}

func TestGetDetailsRejectsUnknownKind(t *testing.T) {
	client, err := tmdb.New("token", "https://example.test", "")
	if err != nil {
		t.Fatalf("tmdb.New failed: %v", err)
	}
	_, err = client.GetDetails(context.Background(), "person", 1)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDirectories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch/providers/movie":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"provider_id": 8, "provider_name": "Netflix", "display_priority": 0,
						"display_priorities": map[string]int{"DE": 0, "US": 1}},
				},
			})
		case "/watch/providers/regions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"iso_3166_1": "DE", "english_name": "Germany"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := tmdb.New("token", server.URL, "")
	if err != nil {
		t.Fatalf("tmdb.New failed: %v", err)
	}

	providers, err := client.MovieProviders(context.Background())
	if err != nil {
		t.Fatalf("MovieProviders failed: %v", err)
	}
	if len(providers) != 1 || providers[0].ProviderName != "Netflix" {
		t.Fatalf("unexpected providers %+v", providers)
	}
	if _, ok := providers[0].DisplayPriorities["DE"]; !ok {
		t.Fatal("expected display priorities per country")
	}

	regions, err := client.Regions(context.Background())
	if err != nil {
		t.Fatalf("Regions failed: %v", err)
	}
	if len(regions) != 1 || regions[0].CountryCode != "DE" {
		t.Fatalf("unexpected regions %+v", regions)
	}
}

func TestWithTimeoutCancelsSlowRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer server.Close()

	client, err := tmdb.New("token", server.URL, "", tmdb.WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("tmdb.New failed: %v", err)
	}

	_, err = client.SearchMulti(context.Background(), "Dune")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error from timeout, got %v", err)
	}
}
