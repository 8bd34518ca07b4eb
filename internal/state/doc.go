// Package state persists daemon state in SQLite: per-tab run snapshots,
// the settings snapshot, and the provider/region directory cache.
package state
