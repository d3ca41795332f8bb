package progress

import (
	"sort"
	"time"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// BestSprint returns the best record for the given category, or nil when
// records is empty. Ties resolve to the earliest CompletedAt: candidates
// are scanned oldest-first and only a strictly better value replaces the
// current best.
func BestSprint(records []*models.Sprint, category models.HighScoreCategory) *models.Sprint {
	if len(records) == 0 {
		return nil
	}

	ordered := make([]*models.Sprint, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CompletedAt.Before(ordered[j].CompletedAt)
	})

	best := ordered[0]
	for _, r := range ordered[1:] {
		if metric(r, category) > metric(best, category) {
			best = r
		}
	}
	return best
}

// HighScores collects the best record per category and the longest streak.
func HighScores(records []*models.Sprint, loc *time.Location) models.HighScores {
	return models.HighScores{
		WPM:        BestSprint(records, models.CategoryWPM),
		Words:      BestSprint(records, models.CategoryWords),
		Duration:   BestSprint(records, models.CategoryDuration),
		BestStreak: BestStreak(records, loc),
	}
}

func metric(r *models.Sprint, category models.HighScoreCategory) float64 {
	switch category {
	case models.CategoryWPM:
		return r.WPM()
	case models.CategoryWords:
		return float64(r.WordCount)
	case models.CategoryDuration:
		return float64(r.EffectiveDuration())
	}
	return 0
}
