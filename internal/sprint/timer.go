package sprint

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TimerState is the countdown timer state.
type TimerState int

const (
	TimerStopped TimerState = iota
	TimerRunning
	TimerPaused
)

// ErrTimerActive is returned when starting a timer that is not stopped.
var ErrTimerActive = errors.New("timer already started")

// Timer is a one-second-resolution countdown. Ticks while paused or
// stopped are no-ops, so a resumed countdown continues from the value it
// was paused at without drift. When the countdown reaches zero the timer
// stops itself and fires the expiry callback exactly once.
type Timer struct {
	mu        sync.Mutex
	state     TimerState
	total     int
	remaining int
	onExpired func()
}

// NewTimer creates a stopped timer. onExpired may be nil.
func NewTimer(onExpired func()) *Timer {
	return &Timer{onExpired: onExpired}
}

// Start arms the countdown. Only valid while stopped.
func (t *Timer) Start(durationSeconds int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerStopped {
		return ErrTimerActive
	}
	t.total = durationSeconds
	t.remaining = durationSeconds
	t.state = TimerRunning
	return nil
}

// Tick advances the countdown by one second. It is a no-op unless the
// timer is running.
func (t *Timer) Tick() {
	t.mu.Lock()
	if t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.remaining--
	expired := t.remaining <= 0
	var cb func()
	if expired {
		t.remaining = 0
		t.state = TimerStopped
		cb = t.onExpired
	}
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Pause freezes the countdown. No effect unless running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		t.state = TimerPaused
	}
}

// Resume continues a paused countdown. No effect unless paused.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerPaused {
		t.state = TimerRunning
	}
}

// Stop forces the timer to stopped from any state.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TimerStopped
}

// Run drives Tick once per second until the context is cancelled or the
// timer stops. There is never more than one Run loop per active session;
// the owning session cancels the context on every exit path.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
			if t.State() == TimerStopped {
				return
			}
		}
	}
}

// State returns the current timer state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the seconds left on the countdown.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Total returns the seconds the countdown was armed with.
func (t *Timer) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Elapsed returns seconds of countdown consumed so far.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - t.remaining
}
