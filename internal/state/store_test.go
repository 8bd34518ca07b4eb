package state_test

import (
	"context"
	"reflect"
	"testing"

	"streamfade/internal/state"
	"streamfade/internal/testsupport"
)

func openStore(t *testing.T) *state.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	snapshot := state.RunSnapshot{
		TabID:      7,
		Generation: 3,
		SessionID:  "session-1",
		Total:      2,
		Resolved:   1,
		Running:    true,
		Films: map[string]state.FilmSnapshot{
			"Dune": {Year: 2021, Positions: []int{3, 7}},
		},
		Available: []int{3, 7},
		PendingRetry: map[string]state.FilmSnapshot{
			"Nosferatu": {Year: -1, Positions: []int{9}},
		},
	}
	if err := store.SaveRun(ctx, snapshot); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	loaded, found, err := store.GetRun(ctx, 7)
	if err != nil || !found {
		t.Fatalf("GetRun failed: found=%v err=%v", found, err)
	}
	if loaded.Generation != 3 || loaded.Resolved != 1 || !loaded.Running {
		t.Fatalf("unexpected snapshot %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.Films["Dune"].Positions, []int{3, 7}) {
		t.Fatalf("films not round-tripped: %+v", loaded.Films)
	}
	if loaded.PendingRetry["Nosferatu"].Year != -1 {
		t.Fatalf("pending retry not round-tripped: %+v", loaded.PendingRetry)
	}

	// Upsert replaces.
	snapshot.Resolved = 2
	snapshot.Running = false
	if err := store.SaveRun(ctx, snapshot); err != nil {
		t.Fatalf("SaveRun upsert failed: %v", err)
	}
	loaded, _, err = store.GetRun(ctx, 7)
	if err != nil {
		t.Fatalf("GetRun after upsert failed: %v", err)
	}
	if loaded.Resolved != 2 || loaded.Running {
		t.Fatalf("upsert did not replace: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v %v", runs, err)
	}

	if err := store.DeleteRun(ctx, 7); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, found, _ := store.GetRun(ctx, 7); found {
		t.Fatal("expected snapshot gone after delete")
	}
}

func TestGetRunMissing(t *testing.T) {
	store := openStore(t)
	_, found, err := store.GetRun(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if found {
		t.Fatal("expected no snapshot")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, found, err := store.GetSetting(ctx, "country_code"); err != nil || found {
		t.Fatalf("expected missing setting, found=%v err=%v", found, err)
	}
	if err := store.SetSetting(ctx, "country_code", "DE"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := store.SetSetting(ctx, "country_code", "US"); err != nil {
		t.Fatalf("SetSetting upsert failed: %v", err)
	}
	value, found, err := store.GetSetting(ctx, "country_code")
	if err != nil || !found || value != "US" {
		t.Fatalf("GetSetting = (%q, %v, %v)", value, found, err)
	}
}

func TestDirectoryRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, fetched, err := store.DirectoryFetchedAt(ctx, "providers"); err != nil || fetched {
		t.Fatalf("expected unfetched directory, fetched=%v err=%v", fetched, err)
	}

	providers := []state.Provider{
		{ID: 9, Name: "Amazon Prime Video", DisplayPriority: 1, Countries: []string{"DE", "US"}},
		{ID: 8, Name: "Netflix", DisplayPriority: 0, Countries: []string{"DE"}},
	}
	if err := store.ReplaceProviders(ctx, providers); err != nil {
		t.Fatalf("ReplaceProviders failed: %v", err)
	}
	listed, err := store.ListProviders(ctx)
	if err != nil {
		t.Fatalf("ListProviders failed: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "Netflix" {
		t.Fatalf("expected priority ordering, got %+v", listed)
	}
	if !reflect.DeepEqual(listed[1].Countries, []string{"DE", "US"}) {
		t.Fatalf("countries not round-tripped: %+v", listed[1])
	}

	if err := store.ReplaceRegions(ctx, []state.Region{{Code: "DE", Name: "Germany"}}); err != nil {
		t.Fatalf("ReplaceRegions failed: %v", err)
	}
	regions, err := store.ListRegions(ctx)
	if err != nil || len(regions) != 1 || regions[0].Name != "Germany" {
		t.Fatalf("ListRegions = %+v, %v", regions, err)
	}

	if _, fetched, err := store.DirectoryFetchedAt(ctx, "providers"); err != nil || !fetched {
		t.Fatalf("expected fetched timestamp, fetched=%v err=%v", fetched, err)
	}
}
