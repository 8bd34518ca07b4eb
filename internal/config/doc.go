// Package config loads, normalizes, and validates the TOML configuration
// shared by the streamfade CLI and daemon. The TMDB API key may also come
// from the TMDB_API_KEY environment variable when the file omits it.
package config
