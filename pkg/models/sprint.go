// Package models contains domain models for quickpen.
package models

import (
	"database/sql"
	"errors"
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// Sprint is a single completed (or early-ended) writing session.
// Records are written once; only Tags may change afterwards.
type Sprint struct {
	ID             string          `db:"id" json:"id,omitempty"`
	UserID         string          `db:"user_id" json:"user_id"`
	Content        string          `db:"content" json:"content"`
	WordCount      int             `db:"word_count" json:"word_count"`
	Duration       int             `db:"duration" json:"duration"`
	ActualDuration sql.NullInt64   `db:"actual_duration" json:"-"`
	CompletedAt    time.Time       `db:"completed_at" json:"completed_at"`
	EndedEarly     bool            `db:"ended_early" json:"ended_early"`
	Tags           JSONStringArray `db:"tags" json:"tags,omitempty"`
}

// ErrInvariant is returned by Validate when a sprint breaks the
// endedEarly/actualDuration invariant.
var ErrInvariant = errors.New("sprint invariant violation")

// EffectiveDuration returns the seconds the writer actually spent:
// the actual duration for early-ended sprints, the planned duration otherwise.
func (s *Sprint) EffectiveDuration() int {
	if s.ActualDuration.Valid {
		return int(s.ActualDuration.Int64)
	}
	return s.Duration
}

// WPM returns the words-per-minute rate for this sprint.
func (s *Sprint) WPM() float64 {
	secs := s.EffectiveDuration()
	if secs <= 0 {
		return 0
	}
	return float64(s.WordCount) / (float64(secs) / 60.0)
}

// RoundedWPM returns WPM rounded to the nearest integer.
func (s *Sprint) RoundedWPM() int {
	return int(math.Round(s.WPM()))
}

// Validate checks the record invariants: endedEarly iff actualDuration is
// present, and a present actualDuration is shorter than the planned one.
func (s *Sprint) Validate() error {
	if s.EndedEarly != s.ActualDuration.Valid {
		return ErrInvariant
	}
	if s.ActualDuration.Valid && s.ActualDuration.Int64 >= int64(s.Duration) {
		return ErrInvariant
	}
	return nil
}

// sprintJSON is the wire representation of Sprint. It flattens
// ActualDuration so clients see a plain optional integer.
type sprintJSON struct {
	ID             string    `json:"id,omitempty"`
	UserID         string    `json:"user_id"`
	Content        string    `json:"content"`
	WordCount      int       `json:"word_count"`
	Duration       int       `json:"duration"`
	ActualDuration *int64    `json:"actual_duration,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
	EndedEarly     bool      `json:"ended_early"`
	Tags           []string  `json:"tags,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Sprint) MarshalJSON() ([]byte, error) {
	j := sprintJSON{
		ID:          s.ID,
		UserID:      s.UserID,
		Content:     s.Content,
		WordCount:   s.WordCount,
		Duration:    s.Duration,
		CompletedAt: s.CompletedAt,
		EndedEarly:  s.EndedEarly,
		Tags:        []string(s.Tags),
	}
	if s.ActualDuration.Valid {
		j.ActualDuration = &s.ActualDuration.Int64
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sprint) UnmarshalJSON(data []byte) error {
	var j sprintJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.ID = j.ID
	s.UserID = j.UserID
	s.Content = j.Content
	s.WordCount = j.WordCount
	s.Duration = j.Duration
	s.CompletedAt = j.CompletedAt
	s.EndedEarly = j.EndedEarly
	s.Tags = JSONStringArray(j.Tags)
	if j.ActualDuration != nil {
		s.ActualDuration = sql.NullInt64{Int64: *j.ActualDuration, Valid: true}
	} else {
		s.ActualDuration = sql.NullInt64{}
	}
	return nil
}
