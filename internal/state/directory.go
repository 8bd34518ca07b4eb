package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider is one cached entry of the watch-provider directory.
type Provider struct {
	ID              int64
	Name            string
	DisplayPriority int
	Countries       []string
}

// Region is one cached entry of the region directory.
type Region struct {
	Code string
	Name string
}

// ReplaceProviders swaps the cached provider directory in one transaction.
func (s *Store) ReplaceProviders(ctx context.Context, providers []Provider) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin providers tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM providers"); err != nil {
		return fmt.Errorf("clear providers: %w", err)
	}
	for _, provider := range providers {
		countries, err := json.Marshal(provider.Countries)
		if err != nil {
			return fmt.Errorf("encode countries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO providers (provider_id, name, display_priority, countries)
            VALUES (?, ?, ?, ?)`,
			provider.ID, provider.Name, provider.DisplayPriority, string(countries),
		); err != nil {
			return fmt.Errorf("insert provider %d: %w", provider.ID, err)
		}
	}
	if err := touchDirectory(ctx, tx, "providers"); err != nil {
		return err
	}
	return tx.Commit()
}

// ListProviders returns the cached provider directory ordered by priority.
func (s *Store) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT provider_id, name, display_priority, countries FROM providers ORDER BY display_priority, provider_id")
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		var provider Provider
		var countries string
		if err := rows.Scan(&provider.ID, &provider.Name, &provider.DisplayPriority, &countries); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		if err := json.Unmarshal([]byte(countries), &provider.Countries); err != nil {
			return nil, fmt.Errorf("decode countries: %w", err)
		}
		providers = append(providers, provider)
	}
	return providers, rows.Err()
}

// ReplaceRegions swaps the cached region directory in one transaction.
func (s *Store) ReplaceRegions(ctx context.Context, regions []Region) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin regions tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM regions"); err != nil {
		return fmt.Errorf("clear regions: %w", err)
	}
	for _, region := range regions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO regions (code, name) VALUES (?, ?)", region.Code, region.Name); err != nil {
			return fmt.Errorf("insert region %s: %w", region.Code, err)
		}
	}
	if err := touchDirectory(ctx, tx, "regions"); err != nil {
		return err
	}
	return tx.Commit()
}

// ListRegions returns the cached region directory ordered by code.
func (s *Store) ListRegions(ctx context.Context) ([]Region, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT code, name FROM regions ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var region Region
		if err := rows.Scan(&region.Code, &region.Name); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}

// DirectoryFetchedAt reports when the named directory was last replaced.
func (s *Store) DirectoryFetchedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var fetchedAt string
	row := s.db.QueryRowContext(ctx, "SELECT fetched_at FROM directory_meta WHERE key = ?", key)
	if err := row.Scan(&fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("directory meta %s: %w", key, err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse directory meta %s: %w", key, err)
	}
	return parsed, true, nil
}

func touchDirectory(ctx context.Context, tx *sql.Tx, key string) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO directory_meta (key, fetched_at) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET fetched_at = excluded.fetched_at`,
		key, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("touch directory %s: %w", key, err)
	}
	return nil
}
