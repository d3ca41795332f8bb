package models

import "time"

// DateRange bounds a filter window. Both ends are inclusive; the end date
// is advanced to end-of-day before comparison.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AppliedFilters describes the active history filters. A zero-valued
// dimension (no tags, nil range, empty query) imposes no constraint.
type AppliedFilters struct {
	Tags         []string   `json:"tags,omitempty"`
	DateRange    *DateRange `json:"date_range,omitempty"`
	ContentQuery string     `json:"content_query,omitempty"`
}

// IsZero reports whether no filter dimension is active.
func (f AppliedFilters) IsZero() bool {
	return len(f.Tags) == 0 && f.DateRange == nil && f.ContentQuery == ""
}
