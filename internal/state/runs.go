package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FilmSnapshot is the persisted form of one crawled film.
type FilmSnapshot struct {
	Year      int   `json:"year"`
	Positions []int `json:"positions"`
}

// RunSnapshot is the persisted form of one tab's run state, written after
// every mutation so a torn-down process resumes where it stopped.
type RunSnapshot struct {
	TabID        int64
	Generation   uint64
	SessionID    string
	Total        int
	Resolved     int
	Running      bool
	Films        map[string]FilmSnapshot
	Available    []int
	PendingRetry map[string]FilmSnapshot
	UpdatedAt    time.Time
}

// SaveRun upserts the snapshot for its tab.
func (s *Store) SaveRun(ctx context.Context, snapshot RunSnapshot) error {
	films, err := json.Marshal(orEmptyFilms(snapshot.Films))
	if err != nil {
		return fmt.Errorf("encode films: %w", err)
	}
	available, err := json.Marshal(orEmptyInts(snapshot.Available))
	if err != nil {
		return fmt.Errorf("encode available: %w", err)
	}
	pending, err := json.Marshal(orEmptyFilms(snapshot.PendingRetry))
	if err != nil {
		return fmt.Errorf("encode pending retry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO runs (tab_id, generation, session_id, total, resolved, running, films, available, pending_retry, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(tab_id) DO UPDATE SET
            generation = excluded.generation,
            session_id = excluded.session_id,
            total = excluded.total,
            resolved = excluded.resolved,
            running = excluded.running,
            films = excluded.films,
            available = excluded.available,
            pending_retry = excluded.pending_retry,
            updated_at = excluded.updated_at`,
		snapshot.TabID,
		snapshot.Generation,
		snapshot.SessionID,
		snapshot.Total,
		snapshot.Resolved,
		boolToInt(snapshot.Running),
		string(films),
		string(available),
		string(pending),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun loads the snapshot for a tab. The second return is false when no
// snapshot exists.
func (s *Store) GetRun(ctx context.Context, tabID int64) (RunSnapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT tab_id, generation, session_id, total, resolved, running, films, available, pending_retry, updated_at
        FROM runs WHERE tab_id = ?`, tabID)
	snapshot, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSnapshot{}, false, nil
	}
	if err != nil {
		return RunSnapshot{}, false, err
	}
	return snapshot, true, nil
}

// ListRuns returns every persisted run snapshot.
func (s *Store) ListRuns(ctx context.Context) ([]RunSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT tab_id, generation, session_id, total, resolved, running, films, available, pending_retry, updated_at
        FROM runs ORDER BY tab_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var snapshots []RunSnapshot
	for rows.Next() {
		snapshot, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// DeleteRun removes a tab's snapshot, if any.
func (s *Store) DeleteRun(ctx context.Context, tabID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE tab_id = ?", tabID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSnapshot, error) {
	var (
		snapshot  RunSnapshot
		running   int
		films     string
		available string
		pending   string
		updatedAt string
	)
	if err := row.Scan(
		&snapshot.TabID,
		&snapshot.Generation,
		&snapshot.SessionID,
		&snapshot.Total,
		&snapshot.Resolved,
		&running,
		&films,
		&available,
		&pending,
		&updatedAt,
	); err != nil {
		return RunSnapshot{}, err
	}
	snapshot.Running = running != 0

	if err := json.Unmarshal([]byte(films), &snapshot.Films); err != nil {
		return RunSnapshot{}, fmt.Errorf("decode films: %w", err)
	}
	if err := json.Unmarshal([]byte(available), &snapshot.Available); err != nil {
		return RunSnapshot{}, fmt.Errorf("decode available: %w", err)
	}
	if err := json.Unmarshal([]byte(pending), &snapshot.PendingRetry); err != nil {
		return RunSnapshot{}, fmt.Errorf("decode pending retry: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		snapshot.UpdatedAt = parsed
	}
	return snapshot, nil
}

func orEmptyFilms(films map[string]FilmSnapshot) map[string]FilmSnapshot {
	if films == nil {
		return map[string]FilmSnapshot{}
	}
	return films
}

func orEmptyInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
