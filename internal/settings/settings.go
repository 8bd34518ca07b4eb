// Package settings layers persisted filter preferences over configured
// defaults. Values written through Update survive daemon restarts; keys
// never stored fall back to the configuration file.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"streamfade/internal/config"
	"streamfade/internal/services"
	"streamfade/internal/state"
)

const (
	keyCountryCode   = "country_code"
	keyProviderID    = "provider_id"
	keyFilterEnabled = "filter_enabled"
)

// Snapshot is the effective filter selection at a point in time.
type Snapshot struct {
	CountryCode string
	ProviderID  int64
	Enabled     bool
}

// Service resolves and persists the filter selection.
type Service struct {
	mu       sync.Mutex
	store    *state.Store
	defaults Snapshot
}

// NewService builds a Service with fallbacks drawn from cfg.
func NewService(store *state.Store, cfg *config.Config) *Service {
	return &Service{
		store: store,
		defaults: Snapshot{
			CountryCode: cfg.Filter.CountryCode,
			ProviderID:  cfg.Filter.ProviderID,
			Enabled:     cfg.Filter.Enabled,
		},
	}
}

// Current returns the effective selection, preferring stored values over
// configured defaults key by key.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.defaults

	if value, ok, err := s.store.GetSetting(ctx, keyCountryCode); err != nil {
		return Snapshot{}, err
	} else if ok {
		snap.CountryCode = value
	}

	if value, ok, err := s.store.GetSetting(ctx, keyProviderID); err != nil {
		return Snapshot{}, err
	} else if ok {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Snapshot{}, services.Wrap(services.ErrValidation, "settings", "current",
				fmt.Sprintf("stored provider id %q is not numeric", value), err)
		}
		snap.ProviderID = id
	}

	if value, ok, err := s.store.GetSetting(ctx, keyFilterEnabled); err != nil {
		return Snapshot{}, err
	} else if ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Snapshot{}, services.Wrap(services.ErrValidation, "settings", "current",
				fmt.Sprintf("stored filter flag %q is not boolean", value), err)
		}
		snap.Enabled = enabled
	}

	return snap, nil
}

// Update persists a new selection and returns the resulting snapshot.
func (s *Service) Update(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if snap.CountryCode == "" {
		return Snapshot{}, services.Wrap(services.ErrValidation, "settings", "update",
			"country code must not be empty", nil)
	}
	if snap.ProviderID <= 0 {
		return Snapshot{}, services.Wrap(services.ErrValidation, "settings", "update",
			fmt.Sprintf("provider id %d must be positive", snap.ProviderID), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetSetting(ctx, keyCountryCode, snap.CountryCode); err != nil {
		return Snapshot{}, err
	}
	if err := s.store.SetSetting(ctx, keyProviderID, strconv.FormatInt(snap.ProviderID, 10)); err != nil {
		return Snapshot{}, err
	}
	if err := s.store.SetSetting(ctx, keyFilterEnabled, strconv.FormatBool(snap.Enabled)); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// SetEnabled toggles filtering without touching the provider selection.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetSetting(ctx, keyFilterEnabled, strconv.FormatBool(enabled))
}
