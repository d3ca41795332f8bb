package sprint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quickpen-app/quickpen/internal/events"
	"github.com/quickpen-app/quickpen/pkg/models"
)

// Phase is the session lifecycle phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
)

// EndDecision is the business outcome of an early end request.
type EndDecision int

const (
	// DecisionDiscard: nothing was written; the session should be discarded.
	DecisionDiscard EndDecision = iota
	// DecisionConfirmComplete: content exists; the caller confirms and then
	// completes the sprint with endedEarly set.
	DecisionConfirmComplete
)

// String returns the wire name of the decision.
func (d EndDecision) String() string {
	switch d {
	case DecisionConfirmComplete:
		return "confirm_complete"
	default:
		return "discard"
	}
}

const (
	// minWPMElapsedSeconds is the elapsed time below which WPM reports 0.
	minWPMElapsedSeconds = 5
	// wpmCheckpointSeconds is the elapsed-time interval between WPM
	// recomputations while running.
	wpmCheckpointSeconds = 5

	autoCompleteTimeout = 10 * time.Second
)

var (
	// ErrNoActiveSession is returned for operations that require an active session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionActive is returned when starting over an active session.
	ErrSessionActive = errors.New("session already active")
	// ErrEditWhilePaused is returned when editing a paused session; the
	// content buffer is frozen while paused.
	ErrEditWhilePaused = errors.New("content is frozen while paused")
)

// Recorder persists finished sprint records. Implemented by the gorm
// sprint store; tests substitute fakes.
type Recorder interface {
	SaveSprint(ctx context.Context, s *models.Sprint) (string, error)
}

// SessionState is a point-in-time snapshot of a session for API responses.
type SessionState struct {
	Phase          Phase  `json:"phase"`
	TimeRemaining  int    `json:"time_remaining"`
	TotalDuration  int    `json:"total_duration"`
	IsPaused       bool   `json:"is_paused"`
	Content        string `json:"content"`
	WordCount      int    `json:"word_count"`
	WordsPerMinute int    `json:"words_per_minute"`
	SaveError      string `json:"save_error,omitempty"`
}

// Session is the sprint session state machine for one user. All mutation
// goes through the mutex; the timer tick loop runs on its own goroutine
// and is cancelled on every exit path (complete, discard, shutdown).
type Session struct {
	mu         sync.Mutex
	phase      Phase
	userID     string
	timer      *Timer
	content    string
	wordCount  int
	wpm        int
	lastWPMAt  int // elapsed seconds at last WPM recomputation
	recorder   Recorder
	bus        *events.Bus
	now        func() time.Time
	cancelTick context.CancelFunc
	saveErr    error

	// noTickLoop suppresses the background tick goroutine so tests can
	// drive the timer deterministically.
	noTickLoop bool
}

// NewSession creates an idle session for the given user.
func NewSession(userID string, recorder Recorder, bus *events.Bus) *Session {
	return &Session{
		userID:   userID,
		recorder: recorder,
		bus:      bus,
		now:      time.Now,
	}
}

// StartSprint parses the duration input and, on success, enters Active
// with a fresh content buffer and a running countdown. On parse failure
// the session stays Idle and no timer starts.
func (s *Session) StartSprint(durationInput string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return ErrSessionActive
	}

	seconds, err := ParseDuration(durationInput)
	if err != nil {
		return err
	}

	s.timer = NewTimer(s.onTimerExpired)
	if err := s.timer.Start(seconds); err != nil {
		return err
	}

	s.phase = PhaseActive
	s.content = ""
	s.wordCount = 0
	s.wpm = 0
	s.lastWPMAt = 0
	s.saveErr = nil

	if !s.noTickLoop {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelTick = cancel
		go s.timer.Run(ctx)
	}

	log.Debug().Str("userId", s.userID).Int("seconds", seconds).Msg("Sprint started")
	return nil
}

// EditContent replaces the live content buffer. Valid only while active
// and not paused.
func (s *Session) EditContent(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return ErrNoActiveSession
	}
	if s.timer.State() == TimerPaused {
		return ErrEditWhilePaused
	}

	s.content = text
	s.wordCount = CountWords(text)
	s.updateWPMLocked(false)
	return nil
}

// Pause freezes the countdown and the content buffer, and recomputes WPM
// immediately.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return ErrNoActiveSession
	}
	s.timer.Pause()
	s.updateWPMLocked(true)
	return nil
}

// Resume continues a paused countdown from its current value.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return ErrNoActiveSession
	}
	s.timer.Resume()
	return nil
}

// EndEarly reports the business decision for a manual end: discard when
// nothing was written, confirm-then-complete otherwise. It does not change
// state; the caller follows up with Discard or Complete.
func (s *Session) EndEarly() (EndDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return DecisionDiscard, ErrNoActiveSession
	}
	if strings.TrimSpace(s.content) == "" {
		return DecisionDiscard, nil
	}
	return DecisionConfirmComplete, nil
}

// Complete builds the sprint record, persists it, emits the completion
// event, and resets to Idle. When the persistence call fails the session
// stays Active with its content intact so the user can retry.
func (s *Session) Complete(ctx context.Context, endedEarly bool) (*models.Sprint, error) {
	s.mu.Lock()

	if s.phase != PhaseActive {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}

	remaining := s.timer.Remaining()
	total := s.timer.Total()
	if remaining == 0 {
		// Countdown fully consumed; this is a full completion no matter
		// how the request was phrased.
		endedEarly = false
	}

	sp := &models.Sprint{
		UserID:      s.userID,
		Content:     s.content,
		WordCount:   CountWords(s.content),
		Duration:    total,
		CompletedAt: s.now(),
		EndedEarly:  endedEarly,
	}
	if endedEarly {
		sp.ActualDuration = sql.NullInt64{Int64: int64(total - remaining), Valid: true}
	}

	// Freeze the countdown while the save is in flight.
	s.timer.Pause()

	id, err := s.recorder.SaveSprint(ctx, sp)
	if err != nil {
		s.saveErr = err
		s.mu.Unlock()
		return nil, fmt.Errorf("save sprint: %w", err)
	}
	sp.ID = id

	s.resetLocked()
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit(events.SprintCompleted, sp)
	}

	log.Info().
		Str("userId", sp.UserID).
		Str("sprintId", sp.ID).
		Int("words", sp.WordCount).
		Bool("endedEarly", sp.EndedEarly).
		Msg("Sprint completed")
	return sp, nil
}

// Discard drops the session without persisting anything.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return ErrNoActiveSession
	}
	s.resetLocked()
	return nil
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionState{Phase: s.phase}
	if s.phase != PhaseActive {
		return st
	}
	st.TimeRemaining = s.timer.Remaining()
	st.TotalDuration = s.timer.Total()
	st.IsPaused = s.timer.State() == TimerPaused
	st.Content = s.content
	st.WordCount = s.wordCount
	st.WordsPerMinute = s.wpm
	if s.saveErr != nil {
		st.SaveError = s.saveErr.Error()
	}
	return st
}

// onTimerExpired auto-completes the session when the countdown hits zero.
// A failed save is logged and surfaced in the snapshot; content survives.
func (s *Session) onTimerExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), autoCompleteTimeout)
	defer cancel()

	if _, err := s.Complete(ctx, false); err != nil && !errors.Is(err, ErrNoActiveSession) {
		log.Error().Err(err).Str("userId", s.userID).Msg("Auto-completion save failed")
	}
}

// updateWPMLocked recomputes words-per-minute. Below the minimum elapsed
// threshold WPM is 0; afterwards it refreshes on 5-second elapsed
// checkpoints, or immediately when forced (pause).
func (s *Session) updateWPMLocked(force bool) {
	elapsed := s.timer.Elapsed()
	if elapsed < minWPMElapsedSeconds {
		s.wpm = 0
		return
	}
	if !force && elapsed-s.lastWPMAt < wpmCheckpointSeconds {
		return
	}
	minutes := float64(elapsed) / 60.0
	s.wpm = int(math.Round(float64(s.wordCount) / minutes))
	s.lastWPMAt = elapsed
}

// resetLocked cancels the tick loop and returns the session to Idle.
func (s *Session) resetLocked() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.phase = PhaseIdle
	s.content = ""
	s.wordCount = 0
	s.wpm = 0
	s.lastWPMAt = 0
	s.saveErr = nil
}
