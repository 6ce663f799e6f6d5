// Package enrichment attaches user-facing descriptions to POIs in two
// phases: a blocking pass over the POIs placed into a route, and a detached
// background pass over the remaining candidate pool.
package enrichment

import "errors"

// ErrNoSummary indicates the provider has no usable summary for a place.
var ErrNoSummary = errors.New("no summary available")

// Progress reports background enrichment activity.
type Progress struct {
	// Queued is the total number of POIs handed to the background phase.
	Queued int64

	// Completed is the number of background lookups finished, including
	// lookups that yielded no summary.
	Completed int64
}
