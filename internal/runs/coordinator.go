// Package runs coordinates availability runs per browser tab. A run fans the
// crawled film list out to the availability checker, accumulates which list
// positions are streamable, and finalizes exactly once by handing the faded
// positions to the page collaborator. Films that only failed on catalog rate
// limits are parked and re-driven in a deferred sub-run.
package runs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamfade/internal/availability"
	"streamfade/internal/config"
	"streamfade/internal/fade"
	"streamfade/internal/logging"
	"streamfade/internal/settings"
	"streamfade/internal/state"
)

// CrawledFilm is one list entry reported by the page collaborator. Positions
// are the zero-based slots the film occupies in the rendered list; the same
// work can appear more than once.
type CrawledFilm struct {
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Positions []int  `json:"positions"`
}

// TabStatus is a read-only summary of one tab's run for the control surface.
type TabStatus struct {
	TabID        int64
	SessionID    string
	Generation   uint64
	Total        int
	Resolved     int
	Running      bool
	Available    int
	PendingRetry int
}

type filmRecord struct {
	year      int
	positions []int
}

// tabState is all mutable run state of one tab. Every field is guarded by
// the coordinator mutex.
type tabState struct {
	generation    uint64
	sessionID     string
	countryCode   string
	providerID    int64
	total         int
	resolved      int
	running       bool
	retryPass     bool
	films         map[string]filmRecord
	availablePos  map[int]struct{}
	fadePending   []int
	unfadePending []int
	pendingRetry  map[string]filmRecord
	retryTimer    *time.Timer
}

// Coordinator owns the per-tab run lifecycle.
type Coordinator struct {
	checker  availability.Checker
	fader    fade.Service
	settings *settings.Service
	store    *state.Store
	cooldown time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	tabs   map[int64]*tabState
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator wires the coordinator over its collaborators. The store may
// be nil in tests that do not exercise persistence.
func NewCoordinator(checker availability.Checker, fader fade.Service, filter *settings.Service, store *state.Store, cfg *config.Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		checker:  checker,
		fader:    fader,
		settings: filter,
		store:    store,
		cooldown: time.Duration(cfg.Retry.CooldownSeconds) * time.Second,
		logger:   logger,
		tabs:     make(map[int64]*tabState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// StartRun begins a fresh run for a tab from a crawled film list. Any run
// already in flight for the tab is superseded; its late completions are
// discarded. An empty crawl asks the collaborator to scrape again instead of
// starting a run. When filtering is disabled the crawl is acknowledged and
// nothing else happens.
func (c *Coordinator) StartRun(ctx context.Context, tabID int64, films []CrawledFilm) error {
	snap, err := c.settings.Current(ctx)
	if err != nil {
		return err
	}
	if !snap.Enabled {
		c.logger.Debug("filtering disabled, ignoring crawl", logging.Int64(logging.FieldTab, tabID))
		return nil
	}

	c.fader.UnfadeAll(tabID)

	if len(films) == 0 {
		c.logger.Info("empty crawl, requesting re-scrape", logging.Int64(logging.FieldTab, tabID))
		c.fader.RequestCrawl(tabID)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	tab := c.tabs[tabID]
	if tab == nil {
		tab = &tabState{}
		c.tabs[tabID] = tab
	}
	c.stopRetryLocked(tab)

	tab.generation++
	tab.sessionID = uuid.New().String()
	tab.countryCode = snap.CountryCode
	tab.providerID = snap.ProviderID
	tab.films = make(map[string]filmRecord, len(films))
	tab.availablePos = make(map[int]struct{})
	tab.fadePending = nil
	tab.unfadePending = nil
	tab.pendingRetry = make(map[string]filmRecord)
	tab.resolved = 0
	tab.running = true
	tab.retryPass = false

	for _, film := range films {
		if len(film.Positions) == 0 {
			c.logger.Warn("crawled film carries no positions, skipping",
				logging.Int64(logging.FieldTab, tabID),
				logging.String(logging.FieldTitle, film.Title),
			)
			continue
		}
		record := tab.films[film.Title]
		record.year = film.Year
		record.positions = append(record.positions, film.Positions...)
		tab.films[film.Title] = record
	}
	tab.total = len(tab.films)

	if tab.total == 0 {
		tab.running = false
		c.persistLocked(tabID, tab)
		return nil
	}

	c.logger.Info("run started",
		logging.Int64(logging.FieldTab, tabID),
		logging.String(logging.FieldRun, tab.sessionID),
		logging.Int("films", tab.total),
		logging.String(logging.FieldCountry, tab.countryCode),
		logging.Int64(logging.FieldProvider, tab.providerID),
	)
	c.persistLocked(tabID, tab)
	c.dispatchLocked(tabID, tab)
	return nil
}

// dispatchLocked fans the tab's current film set out to the checker. The
// captured generation ties each completion to the sub-run that issued it.
func (c *Coordinator) dispatchLocked(tabID int64, tab *tabState) {
	generation := tab.generation
	countryCode := tab.countryCode
	providerID := tab.providerID

	for title, record := range tab.films {
		film := availability.Film{Title: title, Year: record.year, Positions: record.positions}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			outcome := c.checker.Check(c.ctx, film, countryCode, providerID)
			c.onFilmResolved(tabID, generation, film, outcome)
		}()
	}
}

// onFilmResolved records one completion. Completions tagged with a stale
// generation are dropped so superseded runs cannot corrupt the counters.
func (c *Coordinator) onFilmResolved(tabID int64, generation uint64, film availability.Film, outcome availability.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab := c.tabs[tabID]
	if tab == nil || tab.generation != generation {
		c.logger.Debug("discarding stale completion",
			logging.Int64(logging.FieldTab, tabID),
			logging.String(logging.FieldTitle, film.Title),
			logging.Int64(logging.FieldGeneration, int64(generation)),
		)
		return
	}

	tab.resolved++
	switch {
	case outcome.Available:
		for _, pos := range film.Positions {
			tab.availablePos[pos] = struct{}{}
		}
		// A retried film was faded by the previous pass and needs an
		// explicit unfade now that it turned out available.
		if tab.retryPass {
			tab.unfadePending = append(tab.unfadePending, film.Positions...)
		}
	case outcome.RateLimited:
		// Unavailable for this pass, corrected by the deferred retry.
		tab.fadePending = append(tab.fadePending, film.Positions...)
		tab.pendingRetry[film.Title] = filmRecord{year: film.Year, positions: film.Positions}
	default:
		tab.fadePending = append(tab.fadePending, film.Positions...)
	}

	if tab.resolved >= tab.total {
		c.finalizeLocked(tabID, tab)
	}
	c.persistLocked(tabID, tab)
}

// finalizeLocked closes the current sub-run: exactly one fade command covers
// everything that resolved unavailable, and a deferred sub-run is scheduled
// when rate-limited films remain.
func (c *Coordinator) finalizeLocked(tabID int64, tab *tabState) {
	tab.running = false

	if len(tab.fadePending) > 0 {
		c.fader.Fade(tabID, tab.fadePending)
	}
	if len(tab.unfadePending) > 0 {
		c.fader.Unfade(tabID, tab.unfadePending)
	}
	c.logger.Info("run finalized",
		logging.Int64(logging.FieldTab, tabID),
		logging.String(logging.FieldRun, tab.sessionID),
		logging.Int("faded", len(tab.fadePending)),
		logging.Int("unfaded", len(tab.unfadePending)),
		logging.Int("available", len(tab.availablePos)),
		logging.Int("pending_retry", len(tab.pendingRetry)),
	)
	tab.fadePending = nil
	tab.unfadePending = nil

	if len(tab.pendingRetry) > 0 {
		c.scheduleRetryLocked(tabID, tab)
	}
}

// scheduleRetryLocked arms the deferred sub-run for the tab's parked films.
func (c *Coordinator) scheduleRetryLocked(tabID int64, tab *tabState) {
	generation := tab.generation
	c.logger.Info("retry scheduled",
		logging.Int64(logging.FieldTab, tabID),
		logging.Int("films", len(tab.pendingRetry)),
		logging.Duration("cooldown", c.cooldown),
	)
	tab.retryTimer = time.AfterFunc(c.cooldown, func() {
		c.startRetry(tabID, generation)
	})
}

// startRetry promotes the parked films into a new sub-run. The sub-run is
// abandoned when the coordinator shut down, the tab closed, or a fresh crawl
// superseded the run in the meantime. The shutdown check matters for timers
// that already fired and were waiting on the mutex while Close held it;
// Timer.Stop cannot retract those.
func (c *Coordinator) startRetry(tabID int64, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab := c.tabs[tabID]
	if c.closed || tab == nil || tab.generation != generation || len(tab.pendingRetry) == 0 {
		c.logger.Debug("abandoning deferred retry",
			logging.Int64(logging.FieldTab, tabID),
			logging.Int64(logging.FieldGeneration, int64(generation)),
		)
		return
	}

	tab.generation++
	tab.films = tab.pendingRetry
	tab.pendingRetry = make(map[string]filmRecord)
	tab.total = len(tab.films)
	tab.resolved = 0
	tab.fadePending = nil
	tab.unfadePending = nil
	tab.running = true
	tab.retryPass = true
	tab.retryTimer = nil

	c.logger.Info("retry sub-run started",
		logging.Int64(logging.FieldTab, tabID),
		logging.String(logging.FieldRun, tab.sessionID),
		logging.Int("films", tab.total),
	)
	c.persistLocked(tabID, tab)
	c.dispatchLocked(tabID, tab)
}

// RetryNow fires a pending deferred retry immediately instead of waiting out
// the cooldown. It is a no-op when nothing is parked.
func (c *Coordinator) RetryNow(tabID int64) {
	c.mu.Lock()
	tab := c.tabs[tabID]
	var generation uint64
	ready := !c.closed && tab != nil && !tab.running && len(tab.pendingRetry) > 0
	if ready {
		c.stopRetryLocked(tab)
		generation = tab.generation
	}
	c.mu.Unlock()

	if ready {
		c.startRetry(tabID, generation)
	}
}

// CloseTab drops all run state for a tab. In-flight completions for the tab
// are discarded when they arrive.
func (c *Coordinator) CloseTab(ctx context.Context, tabID int64) error {
	c.mu.Lock()
	tab := c.tabs[tabID]
	if tab != nil {
		c.stopRetryLocked(tab)
		delete(c.tabs, tabID)
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteRun(ctx, tabID); err != nil {
			return err
		}
	}
	c.logger.Info("tab closed", logging.Int64(logging.FieldTab, tabID))
	return nil
}

// Resume re-drives every persisted run after a restart. Fade state on the
// page cannot be trusted across a daemon restart, so each resumed tab gets an
// unfade-all before its films are re-checked. Snapshots that stopped with
// parked films get their deferred sub-run re-armed.
func (c *Coordinator) Resume(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snapshots, err := c.store.ListRuns(ctx)
	if err != nil {
		return err
	}
	filter, err := c.settings.Current(ctx)
	if err != nil {
		return err
	}

	for _, snapshot := range snapshots {
		c.resumeTab(filter, snapshot)
	}
	return nil
}

func (c *Coordinator) resumeTab(filter settings.Snapshot, snapshot state.RunSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab := &tabState{
		generation:   snapshot.Generation + 1,
		sessionID:    snapshot.SessionID,
		countryCode:  filter.CountryCode,
		providerID:   filter.ProviderID,
		films:        make(map[string]filmRecord, len(snapshot.Films)),
		availablePos: make(map[int]struct{}),
		pendingRetry: make(map[string]filmRecord),
	}
	c.tabs[snapshot.TabID] = tab

	switch {
	case snapshot.Running && len(snapshot.Films) > 0:
		for title, film := range snapshot.Films {
			tab.films[title] = filmRecord{year: film.Year, positions: film.Positions}
		}
		tab.total = len(tab.films)
		tab.running = true
		c.fader.UnfadeAll(snapshot.TabID)
		c.logger.Info("resuming interrupted run",
			logging.Int64(logging.FieldTab, snapshot.TabID),
			logging.Int("films", tab.total),
		)
		c.persistLocked(snapshot.TabID, tab)
		c.dispatchLocked(snapshot.TabID, tab)
	case len(snapshot.PendingRetry) > 0:
		for _, pos := range snapshot.Available {
			tab.availablePos[pos] = struct{}{}
		}
		for title, film := range snapshot.PendingRetry {
			tab.pendingRetry[title] = filmRecord{year: film.Year, positions: film.Positions}
		}
		tab.total = snapshot.Total
		tab.resolved = snapshot.Resolved
		c.logger.Info("re-arming deferred retry",
			logging.Int64(logging.FieldTab, snapshot.TabID),
			logging.Int("films", len(tab.pendingRetry)),
		)
		c.scheduleRetryLocked(snapshot.TabID, tab)
	default:
		c.logger.Debug("resumed completed run", logging.Int64(logging.FieldTab, snapshot.TabID))
		for _, pos := range snapshot.Available {
			tab.availablePos[pos] = struct{}{}
		}
		tab.total = snapshot.Total
		tab.resolved = snapshot.Resolved
	}
}

// Status reports all known tabs ordered by tab id.
func (c *Coordinator) Status() []TabStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]TabStatus, 0, len(c.tabs))
	for tabID, tab := range c.tabs {
		statuses = append(statuses, TabStatus{
			TabID:        tabID,
			SessionID:    tab.sessionID,
			Generation:   tab.generation,
			Total:        tab.total,
			Resolved:     tab.resolved,
			Running:      tab.running,
			Available:    len(tab.availablePos),
			PendingRetry: len(tab.pendingRetry),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].TabID < statuses[j].TabID })
	return statuses
}

// Close stops scheduled retries and waits for in-flight checks to drain. No
// new runs or sub-runs dispatch after Close returns.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for _, tab := range c.tabs {
		c.stopRetryLocked(tab)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) stopRetryLocked(tab *tabState) {
	if tab.retryTimer != nil {
		tab.retryTimer.Stop()
		tab.retryTimer = nil
	}
}

// persistLocked mirrors the tab state into the store. Persistence failures
// are logged and tolerated; the in-memory run stays authoritative.
func (c *Coordinator) persistLocked(tabID int64, tab *tabState) {
	if c.store == nil {
		return
	}

	films := make(map[string]state.FilmSnapshot, len(tab.films))
	for title, record := range tab.films {
		films[title] = state.FilmSnapshot{Year: record.year, Positions: record.positions}
	}
	pending := make(map[string]state.FilmSnapshot, len(tab.pendingRetry))
	for title, record := range tab.pendingRetry {
		pending[title] = state.FilmSnapshot{Year: record.year, Positions: record.positions}
	}
	available := make([]int, 0, len(tab.availablePos))
	for pos := range tab.availablePos {
		available = append(available, pos)
	}
	sort.Ints(available)

	err := c.store.SaveRun(c.ctx, state.RunSnapshot{
		TabID:        tabID,
		Generation:   tab.generation,
		SessionID:    tab.sessionID,
		Total:        tab.total,
		Resolved:     tab.resolved,
		Running:      tab.running,
		Films:        films,
		Available:    available,
		PendingRetry: pending,
	})
	if err != nil {
		c.logger.Warn("persisting run snapshot failed",
			logging.Int64(logging.FieldTab, tabID),
			logging.Error(err),
		)
	}
}
