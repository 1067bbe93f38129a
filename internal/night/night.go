// Package night defines the immutable per-run night context and the shared
// mutable night state exchanged between the state machine, the predictors,
// and the alarm scheduler.
package night

import (
	"os"
	"sync"
	"time"
)

// IDFor derives the fixed 6-character night key from the calendar date the
// night began on.
func IDFor(t time.Time) string {
	return t.Format("020106")
}

// Context captures everything about "tonight" that is decided once at
// startup and never mutated.
type Context struct {
	// Cutoff is the next-day time-of-day at which the night ends.
	Cutoff   time.Duration
	Today    time.Time
	Tomorrow time.Time
	NightID  string
	// Until is the hard wall-clock stop for every worker loop.
	Until time.Time
}

// NewContext derives the night context from the current wall-clock time and
// the day-boundary cutoff.
func NewContext(now time.Time, cutoff time.Duration) Context {
	tomorrow := now.AddDate(0, 0, 1)
	midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
	return Context{
		Cutoff:   cutoff,
		Today:    now,
		Tomorrow: tomorrow,
		NightID:  IDFor(now),
		Until:    midnight.Add(cutoff),
	}
}

// State is the lock-protected mutable night state. All accessors are atomic
// with respect to each other so concurrent writers (onset handler, cycle
// handler, scheduler) never interleave partial updates.
type State struct {
	mu             sync.Mutex
	firstEventTime time.Time
	alarmScheduled time.Time
	skipNextFade   bool
	cycleAdjusted  bool
	markerPath     string
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// FirstEventTime returns the current best wake-time estimate (zero when none
// has been computed yet).
func (s *State) FirstEventTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstEventTime
}

// SetFirstEventTime records a new wake-time estimate.
func (s *State) SetFirstEventTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstEventTime = t
}

// AlarmScheduled returns the instant of the currently installed alarm, or the
// zero time when none is installed.
func (s *State) AlarmScheduled() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarmScheduled
}

// SetAlarmScheduled records the installed alarm instant.
func (s *State) SetAlarmScheduled(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmScheduled = t
}

// BindMarkerFile mirrors the skip-next-fade flag to a marker file so a fade
// started from an external trigger in a fresh process still sees it. Marker
// I/O is best effort; the in-memory flag remains authoritative within one
// process.
func (s *State) BindMarkerFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markerPath = path
}

// SetSkipNextFade flags that the next externally triggered fade must be
// skipped because an in-process wake sequence already covers it.
func (s *State) SetSkipNextFade() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipNextFade = true
	if s.markerPath != "" {
		_ = os.WriteFile(s.markerPath, nil, 0o644)
	}
}

// ConsumeSkipNextFade reports and clears the skip flag in one step.
func (s *State) ConsumeSkipNextFade() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	skip := s.skipNextFade
	s.skipNextFade = false

	if s.markerPath != "" {
		if _, err := os.Stat(s.markerPath); err == nil {
			skip = true
		}
		_ = os.Remove(s.markerPath)
	}
	return skip
}

// MarkCycleAdjusted flips the once-per-night cycle-adjustment guard. It
// returns true only for the first caller.
func (s *State) MarkCycleAdjusted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycleAdjusted {
		return false
	}
	s.cycleAdjusted = true
	return true
}
