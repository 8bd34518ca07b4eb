package fade

import (
	"log/slog"
	"sort"
	"sync"

	"streamfade/internal/logging"
)

// Kind discriminates the commands sent to the page collaborator.
type Kind string

const (
	// KindFade marks the listed positions as not streamable.
	KindFade Kind = "fade"
	// KindUnfade clears the fade on the listed positions, used when a
	// deferred retry finds a previously faded film available.
	KindUnfade Kind = "unfade"
	// KindUnfadeAll clears all fade state before a run recomputes it.
	KindUnfadeAll Kind = "unfade_all"
	// KindRecrawl asks the collaborator to scrape the film list again.
	KindRecrawl Kind = "recrawl"
)

// Command is one instruction for the page collaborator of a tab.
type Command struct {
	Kind      Kind  `json:"kind"`
	Positions []int `json:"positions,omitempty"`
}

// Service is the outbound boundary toward the DOM-fading collaborator.
type Service interface {
	Fade(tabID int64, positions []int)
	Unfade(tabID int64, positions []int)
	UnfadeAll(tabID int64)
	RequestCrawl(tabID int64)
}

// Queue records commands per tab until the collaborator drains them.
type Queue struct {
	mu     sync.Mutex
	queues map[int64][]Command
	logger *slog.Logger
}

var _ Service = (*Queue)(nil)

// NewQueue constructs an empty command queue.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{queues: make(map[int64][]Command), logger: logger}
}

// Fade enqueues a fade command for the given positions. Positions are sorted
// so the collaborator applies them deterministically.
func (q *Queue) Fade(tabID int64, positions []int) {
	if len(positions) == 0 {
		return
	}
	sorted := make([]int, len(positions))
	copy(sorted, positions)
	sort.Ints(sorted)

	q.logger.Debug("fade command",
		logging.Int64(logging.FieldTab, tabID),
		logging.Int("positions", len(sorted)),
	)
	q.push(tabID, Command{Kind: KindFade, Positions: sorted})
}

// Unfade enqueues a command clearing the fade on the given positions.
func (q *Queue) Unfade(tabID int64, positions []int) {
	if len(positions) == 0 {
		return
	}
	sorted := make([]int, len(positions))
	copy(sorted, positions)
	sort.Ints(sorted)

	q.logger.Debug("unfade command",
		logging.Int64(logging.FieldTab, tabID),
		logging.Int("positions", len(sorted)),
	)
	q.push(tabID, Command{Kind: KindUnfade, Positions: sorted})
}

// UnfadeAll enqueues a command clearing all fades on the tab.
func (q *Queue) UnfadeAll(tabID int64) {
	q.logger.Debug("unfade-all command", logging.Int64(logging.FieldTab, tabID))
	q.push(tabID, Command{Kind: KindUnfadeAll})
}

// RequestCrawl enqueues a command asking the collaborator to re-scrape.
func (q *Queue) RequestCrawl(tabID int64) {
	q.logger.Debug("recrawl command", logging.Int64(logging.FieldTab, tabID))
	q.push(tabID, Command{Kind: KindRecrawl})
}

// Pull drains and returns all pending commands for the tab in issue order.
func (q *Queue) Pull(tabID int64) []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	commands := q.queues[tabID]
	delete(q.queues, tabID)
	return commands
}

// Drop discards all pending commands for a closed tab.
func (q *Queue) Drop(tabID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, tabID)
}

func (q *Queue) push(tabID int64, command Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[tabID] = append(q.queues[tabID], command)
}

// Nop discards every command. Used when no collaborator is attached.
type Nop struct{}

var _ Service = Nop{}

func (Nop) Fade(int64, []int)   {}
func (Nop) Unfade(int64, []int) {}
func (Nop) UnfadeAll(int64)     {}
func (Nop) RequestCrawl(int64)  {}
