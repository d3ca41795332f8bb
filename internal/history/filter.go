// Package history provides filtering and export of persisted sprints.
package history

import (
	"sort"
	"strings"
	"time"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// Filter returns the records matching every active filter dimension.
// Dimensions left at their zero value impose no constraint.
func Filter(records []*models.Sprint, f models.AppliedFilters) []*models.Sprint {
	if f.IsZero() {
		return records
	}
	var out []*models.Sprint
	for _, r := range records {
		if Matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether one record satisfies the filters: every selected
// tag must be present (AND semantics), the date range is inclusive with
// the end advanced to end-of-day, and the content query is a
// case-insensitive substring match.
func Matches(r *models.Sprint, f models.AppliedFilters) bool {
	for _, tag := range f.Tags {
		if !r.Tags.Contains(tag) {
			return false
		}
	}

	if f.DateRange != nil {
		if r.CompletedAt.Before(f.DateRange.Start) {
			return false
		}
		if r.CompletedAt.After(endOfDay(f.DateRange.End)) {
			return false
		}
	}

	if f.ContentQuery != "" {
		if !strings.Contains(strings.ToLower(r.Content), strings.ToLower(f.ContentQuery)) {
			return false
		}
	}

	return true
}

// UniqueTags returns the sorted union of tags across the records.
func UniqueTags(records []*models.Sprint) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, tag := range r.Tags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// endOfDay advances t to the last nanosecond of its calendar day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
