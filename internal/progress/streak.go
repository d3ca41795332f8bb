package progress

import (
	"sort"
	"time"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// CurrentStreak counts consecutive calendar days (in loc) with at least
// one sprint, walking backward from the most recent record. The streak is
// 0 unless the most recent record falls on today or yesterday. Multiple
// sprints on one day count once.
func CurrentStreak(records []*models.Sprint, now time.Time, loc *time.Location) int {
	if len(records) == 0 {
		return 0
	}

	days := distinctDays(records, loc)
	newest := days[len(days)-1]

	today := calendarDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)
	if !newest.Equal(today) && !newest.Equal(yesterday) {
		return 0
	}

	streak := 1
	for i := len(days) - 2; i >= 0; i-- {
		if !days[i].Equal(days[i+1].AddDate(0, 0, -1)) {
			break
		}
		streak++
	}
	return streak
}

// BestStreak returns the longest run of consecutive calendar days with at
// least one sprint anywhere in history.
func BestStreak(records []*models.Sprint, loc *time.Location) int {
	if len(records) == 0 {
		return 0
	}

	days := distinctDays(records, loc)

	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Equal(days[i-1].AddDate(0, 0, 1)) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	return best
}

// calendarDay reads t's calendar date in loc and pins it to midnight UTC.
// Consecutive-day arithmetic then stays exact even in zones where a DST
// transition skips local midnight.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// distinctDays returns the sorted distinct calendar days covered by the
// records, ascending, each pinned to midnight UTC.
func distinctDays(records []*models.Sprint, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(records))
	for _, r := range records {
		seen[calendarDay(r.CompletedAt, loc)] = struct{}{}
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
