// Package availability classifies crawled films as watchable or not under
// the configured provider and country. It hosts the offer resolver and the
// per-film lookup pipeline; run bookkeeping lives in package runs.
package availability
