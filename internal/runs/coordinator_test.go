package runs_test

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"streamfade/internal/availability"
	"streamfade/internal/runs"
	"streamfade/internal/settings"
	"streamfade/internal/state"
	"streamfade/internal/testsupport"
)

type fadeCall struct {
	kind      string
	tabID     int64
	positions []int
}

type fadeRecorder struct {
	mu    sync.Mutex
	calls []fadeCall
}

func (f *fadeRecorder) Fade(tabID int64, positions []int) {
	f.record(fadeCall{kind: "fade", tabID: tabID, positions: sorted(positions)})
}

func (f *fadeRecorder) Unfade(tabID int64, positions []int) {
	f.record(fadeCall{kind: "unfade", tabID: tabID, positions: sorted(positions)})
}

func sorted(positions []int) []int {
	out := make([]int, len(positions))
	copy(out, positions)
	sort.Ints(out)
	return out
}

func (f *fadeRecorder) UnfadeAll(tabID int64) {
	f.record(fadeCall{kind: "unfade_all", tabID: tabID})
}

func (f *fadeRecorder) RequestCrawl(tabID int64) {
	f.record(fadeCall{kind: "recrawl", tabID: tabID})
}

func (f *fadeRecorder) record(call fadeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fadeRecorder) byKind(kind string) []fadeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fadeCall
	for _, call := range f.calls {
		if call.kind == kind {
			out = append(out, call)
		}
	}
	return out
}

// fakeChecker resolves by title. A title listed in blocked holds its check
// until the channel is closed. Outcomes may be queued per title; the last
// one repeats.
type fakeChecker struct {
	mu       sync.Mutex
	outcomes map[string][]availability.Outcome
	blocked  map[string]chan struct{}
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{
		outcomes: make(map[string][]availability.Outcome),
		blocked:  make(map[string]chan struct{}),
	}
}

func (f *fakeChecker) set(title string, outcomes ...availability.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[title] = outcomes
}

func (f *fakeChecker) block(title string) chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[title] = gate
	return gate
}

func (f *fakeChecker) Check(ctx context.Context, film availability.Film, countryCode string, providerID int64) availability.Outcome {
	f.mu.Lock()
	gate := f.blocked[title(film)]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.outcomes[title(film)]
	if len(queue) == 0 {
		return availability.Outcome{}
	}
	outcome := queue[0]
	if len(queue) > 1 {
		f.outcomes[title(film)] = queue[1:]
	}
	return outcome
}

func title(film availability.Film) string { return film.Title }

func newCoordinator(t *testing.T, checker availability.Checker, fader *fadeRecorder) *runs.Coordinator {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coordinator := runs.NewCoordinator(checker, fader, settings.NewService(store, cfg), store, cfg, nil)
	t.Cleanup(coordinator.Close)
	return coordinator
}

func waitIdle(t *testing.T, c *runs.Coordinator, tabID int64) runs.TabStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, status := range c.Status() {
			if status.TabID == tabID && !status.Running && status.Resolved >= status.Total {
				return status
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("tab %d never went idle: %+v", tabID, c.Status())
	return runs.TabStatus{}
}

func TestRunFadesOnlyUnavailablePositions(t *testing.T) {
	checker := newFakeChecker()
	checker.set("Heat", availability.Outcome{Available: true})
	checker.set("Stalker", availability.Outcome{})
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, checker, fader)

	err := coordinator.StartRun(context.Background(), 7, []runs.CrawledFilm{
		{Title: "Heat", Year: 1995, Positions: []int{0, 4}},
		{Title: "Stalker", Year: 1979, Positions: []int{2}},
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	status := waitIdle(t, coordinator, 7)
	if status.Available != 2 {
		t.Fatalf("expected 2 available positions, got %d", status.Available)
	}

	fades := fader.byKind("fade")
	if len(fades) != 1 {
		t.Fatalf("expected exactly one fade command, got %d", len(fades))
	}
	if !reflect.DeepEqual(fades[0].positions, []int{2}) {
		t.Fatalf("expected faded positions [2], got %v", fades[0].positions)
	}
	if unfades := fader.byKind("unfade_all"); len(unfades) != 1 {
		t.Fatalf("expected one unfade-all at run start, got %d", len(unfades))
	}
}

func TestEmptyCrawlRequestsRescrape(t *testing.T) {
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, newFakeChecker(), fader)

	if err := coordinator.StartRun(context.Background(), 3, nil); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if crawls := fader.byKind("recrawl"); len(crawls) != 1 {
		t.Fatalf("expected one recrawl request, got %d", len(crawls))
	}
	if fades := fader.byKind("fade"); len(fades) != 0 {
		t.Fatalf("expected no fade commands, got %d", len(fades))
	}
}

func TestDisabledFilterIgnoresCrawl(t *testing.T) {
	checker := newFakeChecker()
	fader := &fadeRecorder{}
	cfg := testsupport.NewConfig(t)
	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	filter := settings.NewService(store, cfg)
	if err := filter.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("disable filter: %v", err)
	}
	coordinator := runs.NewCoordinator(checker, fader, filter, store, cfg, nil)
	t.Cleanup(coordinator.Close)

	err = coordinator.StartRun(context.Background(), 5, []runs.CrawledFilm{
		{Title: "Heat", Year: 1995, Positions: []int{0}},
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if len(coordinator.Status()) != 0 {
		t.Fatalf("expected no run state, got %+v", coordinator.Status())
	}
	fader.mu.Lock()
	calls := len(fader.calls)
	fader.mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no collaborator commands, got %d", calls)
	}
}

func TestZeroPositionFilmsAreSkipped(t *testing.T) {
	checker := newFakeChecker()
	checker.set("Heat", availability.Outcome{Available: true})
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, checker, fader)

	err := coordinator.StartRun(context.Background(), 9, []runs.CrawledFilm{
		{Title: "Heat", Year: 1995, Positions: []int{1}},
		{Title: "Phantom Entry", Year: 2001},
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	status := waitIdle(t, coordinator, 9)
	if status.Total != 1 {
		t.Fatalf("expected 1 film after skipping, got %d", status.Total)
	}
}

func TestSupersedingRunDiscardsStaleCompletions(t *testing.T) {
	checker := newFakeChecker()
	gate := checker.block("Heat")
	checker.set("Heat", availability.Outcome{Available: true})
	checker.set("Solaris", availability.Outcome{})
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, checker, fader)
	ctx := context.Background()

	// First run stalls on its only film.
	err := coordinator.StartRun(ctx, 11, []runs.CrawledFilm{
		{Title: "Heat", Year: 1995, Positions: []int{0}},
	})
	if err != nil {
		t.Fatalf("start first run: %v", err)
	}

	// A fresh crawl supersedes it before the stalled check returns.
	err = coordinator.StartRun(ctx, 11, []runs.CrawledFilm{
		{Title: "Solaris", Year: 1972, Positions: []int{3}},
	})
	if err != nil {
		t.Fatalf("start second run: %v", err)
	}

	status := waitIdle(t, coordinator, 11)
	close(gate)
	// Give the stale completion a chance to arrive before asserting.
	time.Sleep(50 * time.Millisecond)

	final := waitIdle(t, coordinator, 11)
	if final.Resolved != 1 || final.Total != 1 {
		t.Fatalf("stale completion leaked into counters: %+v", final)
	}
	if final.Available != 0 {
		t.Fatalf("stale availability leaked: %+v", final)
	}
	if final.Generation != status.Generation {
		t.Fatalf("generation moved unexpectedly: %d vs %d", final.Generation, status.Generation)
	}

	fades := fader.byKind("fade")
	if len(fades) != 1 || !reflect.DeepEqual(fades[0].positions, []int{3}) {
		t.Fatalf("expected single fade of [3], got %+v", fades)
	}
}

func TestRateLimitedFilmsRetryAndKeepAccumulator(t *testing.T) {
	checker := newFakeChecker()
	checker.set("Heat", availability.Outcome{Available: true})
	checker.set("Stalker", availability.Outcome{RateLimited: true}, availability.Outcome{Available: true})
	checker.set("Solaris", availability.Outcome{RateLimited: true}, availability.Outcome{})
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, checker, fader)

	err := coordinator.StartRun(context.Background(), 2, []runs.CrawledFilm{
		{Title: "Heat", Year: 1995, Positions: []int{0}},
		{Title: "Stalker", Year: 1979, Positions: []int{1}},
		{Title: "Solaris", Year: 1972, Positions: []int{2}},
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	status := waitIdle(t, coordinator, 2)
	if status.PendingRetry != 2 {
		t.Fatalf("expected 2 parked films, got %+v", status)
	}
	// Rate-limited films are unavailable for this pass and faded with the
	// genuinely unavailable ones.
	fades := fader.byKind("fade")
	if len(fades) != 1 || !reflect.DeepEqual(fades[0].positions, []int{1, 2}) {
		t.Fatalf("expected first pass to fade [1 2], got %+v", fades)
	}

	coordinator.RetryNow(2)
	final := waitIdle(t, coordinator, 2)
	if final.PendingRetry != 0 {
		t.Fatalf("expected retry to drain parked films, got %+v", final)
	}
	if final.Available != 2 {
		t.Fatalf("expected accumulator to keep position 0 and gain 1, got %+v", final)
	}

	fades = fader.byKind("fade")
	if len(fades) != 2 || !reflect.DeepEqual(fades[1].positions, []int{2}) {
		t.Fatalf("expected retry to fade only [2], got %+v", fades)
	}
	unfades := fader.byKind("unfade")
	if len(unfades) != 1 || !reflect.DeepEqual(unfades[0].positions, []int{1}) {
		t.Fatalf("expected retry to unfade [1], got %+v", unfades)
	}
}

func TestRetryDoesNotDispatchAfterClose(t *testing.T) {
	checker := newFakeChecker()
	checker.set("Solaris", availability.Outcome{RateLimited: true}, availability.Outcome{Available: true})
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, checker, fader)

	err := coordinator.StartRun(context.Background(), 5, []runs.CrawledFilm{
		{Title: "Solaris", Year: 1972, Positions: []int{1}},
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	status := waitIdle(t, coordinator, 5)
	if status.PendingRetry != 1 {
		t.Fatalf("expected one parked film, got %+v", status)
	}

	coordinator.Close()
	fades := len(fader.byKind("fade"))

	// Neither an explicit retry nor the cooldown timer armed before Close may
	// start a sub-run once Close returned.
	coordinator.RetryNow(5)
	time.Sleep(1200 * time.Millisecond)

	if got := len(fader.byKind("fade")); got != fades {
		t.Fatalf("fade commands issued after close: %d then %d", fades, got)
	}
	if unfades := fader.byKind("unfade"); len(unfades) != 0 {
		t.Fatalf("unfade commands issued after close: %+v", unfades)
	}
}

func TestCloseTabDropsState(t *testing.T) {
	checker := newFakeChecker()
	checker.set("Heat", availability.Outcome{Available: true})
	fader := &fadeRecorder{}
	coordinator := newCoordinator(t, checker, fader)
	ctx := context.Background()

	err := coordinator.StartRun(ctx, 4, []runs.CrawledFilm{
		{Title: "Heat", Year: 1995, Positions: []int{0}},
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitIdle(t, coordinator, 4)

	if err := coordinator.CloseTab(ctx, 4); err != nil {
		t.Fatalf("close tab: %v", err)
	}
	if len(coordinator.Status()) != 0 {
		t.Fatalf("expected no tabs, got %+v", coordinator.Status())
	}
}
