// Package tmdb is a thin client for the metadata-search service: title
// search, localized detail lookups, and the provider/region directories.
package tmdb
