// Package progress computes progress statistics and high-score extremes
// over persisted sprint records. All functions are pure; calendar
// comparisons happen in the caller-supplied time zone.
package progress

import (
	"time"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// Stats folds records into progress statistics for the requested range.
// Range bucketing compares calendar dates in loc; the streak is computed
// over ALL records, independent of the range.
func Stats(records []*models.Sprint, rng models.ProgressRange, now time.Time, loc *time.Location) models.ProgressStats {
	bucketed := bucket(records, rng, now, loc)

	stats := basicStats(bucketed)
	stats.CurrentStreak = CurrentStreak(records, now, loc)
	return stats
}

// bucket selects the records inside the requested range.
func bucket(records []*models.Sprint, rng models.ProgressRange, now time.Time, loc *time.Location) []*models.Sprint {
	if rng == models.RangeTotal {
		return records
	}

	if rng == models.RangeToday {
		// Compare calendar dates, not offsets from now, so users far from
		// UTC do not gain or lose a day.
		today := dateKey(now, loc)
		var out []*models.Sprint
		for _, r := range records {
			if dateKey(r.CompletedAt, loc) == today {
				out = append(out, r)
			}
		}
		return out
	}

	start := rangeStart(rng, now, loc)
	var out []*models.Sprint
	for _, r := range records {
		if !r.CompletedAt.Before(start) {
			out = append(out, r)
		}
	}
	return out
}

// rangeStart returns the inclusive lower bound for week/month/year ranges.
func rangeStart(rng models.ProgressRange, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	switch rng {
	case models.RangeWeek:
		// Week starts on Sunday.
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return midnight.AddDate(0, 0, -int(local.Weekday()))
	case models.RangeMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	case models.RangeYear:
		return time.Date(local.Year(), 1, 1, 0, 0, 0, 0, loc)
	}
	return time.Time{}
}

// basicStats sums words and minutes, and averages per-record WPM.
// AverageWPM is the mean of per-sprint WPM samples, not total words over
// total minutes; each record contributes one sample.
func basicStats(records []*models.Sprint) models.ProgressStats {
	if len(records) == 0 {
		return models.ProgressStats{}
	}

	var totalWords, totalSeconds int
	var totalWPM float64
	for _, r := range records {
		totalWords += r.WordCount
		totalSeconds += r.EffectiveDuration()
		totalWPM += r.WPM()
	}

	return models.ProgressStats{
		WordCount:      totalWords,
		MinutesWritten: float64(totalSeconds) / 60.0,
		AverageWPM:     totalWPM / float64(len(records)),
	}
}

// dateKey renders the calendar date of t in loc as YYYY-MM-DD.
func dateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
