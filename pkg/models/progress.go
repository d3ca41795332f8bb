package models

import "fmt"

// ProgressRange selects the bucketing window for progress statistics.
type ProgressRange string

const (
	RangeToday ProgressRange = "today"
	RangeWeek  ProgressRange = "week"
	RangeMonth ProgressRange = "month"
	RangeYear  ProgressRange = "year"
	RangeTotal ProgressRange = "total"
)

// ParseProgressRange validates a range string from a request.
func ParseProgressRange(s string) (ProgressRange, error) {
	switch ProgressRange(s) {
	case RangeToday, RangeWeek, RangeMonth, RangeYear, RangeTotal:
		return ProgressRange(s), nil
	case "":
		return RangeTotal, nil
	}
	return "", fmt.Errorf("unknown progress range %q", s)
}

// ProgressStats aggregates sprint records for one range.
type ProgressStats struct {
	WordCount      int     `json:"word_count"`
	MinutesWritten float64 `json:"minutes_written"`
	AverageWPM     float64 `json:"average_wpm"`
	CurrentStreak  int     `json:"current_streak"`
}

// HighScoreCategory names one best-record dimension.
type HighScoreCategory string

const (
	CategoryWPM      HighScoreCategory = "wpm"
	CategoryWords    HighScoreCategory = "words"
	CategoryDuration HighScoreCategory = "duration"
)

// HighScores collects the best sprint per category plus the longest streak.
type HighScores struct {
	WPM        *Sprint `json:"wpm,omitempty"`
	Words      *Sprint `json:"words,omitempty"`
	Duration   *Sprint `json:"duration,omitempty"`
	BestStreak int     `json:"best_streak"`
}
