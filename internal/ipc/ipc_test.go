package ipc_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"streamfade/internal/availability"
	"streamfade/internal/daemon"
	"streamfade/internal/fade"
	"streamfade/internal/ipc"
	"streamfade/internal/logging"
	"streamfade/internal/match"
	"streamfade/internal/providers"
	"streamfade/internal/runs"
	"streamfade/internal/services/tmdb"
	"streamfade/internal/settings"
	"streamfade/internal/state"
	"streamfade/internal/testsupport"
)

type staticChecker struct {
	outcome availability.Outcome
}

func (s staticChecker) Check(context.Context, availability.Film, string, int64) availability.Outcome {
	return s.outcome
}

type staticDirectorySource struct{}

func (staticDirectorySource) MovieProviders(context.Context) ([]tmdb.Provider, error) {
	return []tmdb.Provider{{ProviderID: 8, ProviderName: "Netflix", DisplayPriorities: map[string]int{"DE": 1}}}, nil
}

func (staticDirectorySource) Regions(context.Context) ([]tmdb.Region, error) {
	return []tmdb.Region{{CountryCode: "DE", EnglishName: "Germany"}}, nil
}

func newClient(t *testing.T, outcome availability.Outcome) *ipc.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	logger := logging.NewNop()

	filter := settings.NewService(store, cfg)
	queue := fade.NewQueue(logger)
	coordinator := runs.NewCoordinator(staticChecker{outcome: outcome}, queue, filter, store, cfg, logger)
	directory := providers.NewDirectory(staticDirectorySource{}, store, logger)

	d, err := daemon.New(cfg, store, coordinator, queue, filter, directory, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(filepath.Dir(cfg.Paths.SocketPath), "streamfade-test.sock")
	srv, err := ipc.NewServer(ctx, socket, d, nil, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSubmitCrawlAndCommands(t *testing.T) {
	client := newClient(t, availability.Outcome{})

	resp, err := client.SubmitCrawl(ipc.SubmitCrawlRequest{
		TabID: 1,
		Films: []ipc.CrawlEntry{{Title: "Stalker", Year: 1979, Positions: []int{0}}},
	})
	if err != nil {
		t.Fatalf("submit crawl: %v", err)
	}
	if !resp.Accepted || resp.Films != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The unfade-all that precedes every run is queued synchronously.
	commands, err := client.Commands(1)
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	if len(commands.Commands) == 0 || commands.Commands[0].Kind != fade.KindUnfadeAll {
		t.Fatalf("expected leading unfade-all, got %+v", commands.Commands)
	}
}

func TestStatusAndFilterRoundTrip(t *testing.T) {
	client := newClient(t, availability.Outcome{Available: true})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.PID == 0 || status.StateDBPath == "" {
		t.Fatalf("unexpected status: %+v", status)
	}

	updated, err := client.SetFilter(ipc.SetFilterRequest{CountryCode: "US", ProviderID: 337, Enabled: true})
	if err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if updated.CountryCode != "US" || updated.ProviderID != 337 {
		t.Fatalf("unexpected filter: %+v", updated)
	}

	fetched, err := client.GetFilter()
	if err != nil {
		t.Fatalf("get filter: %v", err)
	}
	if *fetched != *updated {
		t.Fatalf("filter mismatch: %+v vs %+v", fetched, updated)
	}
}

func TestProvidersAndRegions(t *testing.T) {
	client := newClient(t, availability.Outcome{})

	found, err := client.FindProvider("netflix")
	if err != nil {
		t.Fatalf("find provider: %v", err)
	}
	if found.Provider.ID != 8 {
		t.Fatalf("expected Netflix, got %+v", found.Provider)
	}

	regions, err := client.Regions()
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	if len(regions.Regions) != 1 || regions.Regions[0].Code != "DE" {
		t.Fatalf("unexpected regions: %+v", regions.Regions)
	}
}

func TestCrawlEntryDecodesLooseYears(t *testing.T) {
	cases := []struct {
		name string
		json string
		want int
	}{
		{"number", `{"title":"Heat","year":1995,"positions":[0]}`, 1995},
		{"string", `{"title":"Heat","year":"1995","positions":[0]}`, 1995},
		{"padded string", `{"title":"Heat","year":" 1995 ","positions":[0]}`, 1995},
		{"empty string", `{"title":"Heat","year":"","positions":[0]}`, match.YearUnknown},
		{"null", `{"title":"Heat","year":null,"positions":[0]}`, match.YearUnknown},
		{"missing", `{"title":"Heat","positions":[0]}`, match.YearUnknown},
		{"zero", `{"title":"Heat","year":0,"positions":[0]}`, match.YearUnknown},
		{"garbage", `{"title":"Heat","year":"n/a","positions":[0]}`, match.YearUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var entry ipc.CrawlEntry
			if err := json.Unmarshal([]byte(tc.json), &entry); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if entry.Year != tc.want {
				t.Fatalf("expected year %d, got %d", tc.want, entry.Year)
			}
		})
	}
}

func TestCrawlEntryDecodesLoosePositions(t *testing.T) {
	cases := []struct {
		name string
		json string
		want []int
	}{
		{"array", `{"title":"Heat","positions":[3,7]}`, []int{3, 7}},
		{"single id", `{"title":"Heat","id":4}`, []int{4}},
		{"id array", `{"title":"Heat","id":[1,2]}`, []int{1, 2}},
		{"positions win over id", `{"title":"Heat","positions":[5],"id":9}`, []int{5}},
		{"missing", `{"title":"Heat"}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var entry ipc.CrawlEntry
			if err := json.Unmarshal([]byte(tc.json), &entry); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(entry.Positions, tc.want) {
				t.Fatalf("expected positions %v, got %v", tc.want, entry.Positions)
			}
		})
	}
}
