// Package journal persists one night's decisions and errors as an append/
// update-only JSON event log, and derives slept hours from it.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// EventType discriminates journal records.
type EventType string

const (
	EventSleepOnset     EventType = "sleep_onset"
	EventWakeUp         EventType = "wake_up"
	EventAlarmSet       EventType = "alarm_set"
	EventError          EventType = "error"
	EventServiceStarted EventType = "service_started"
)

// TimeLayout is the fixed timestamp format used inside journal files.
const TimeLayout = "2006-01-02 15:04:05.000"

// Event is a single journal record. Events are immutable once appended,
// except alarm_set which is upserted by type.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Message   string
}

type eventJSON struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// MarshalJSON implements json.Marshaler with the fixed timestamp format.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Type:      e.Type,
		Timestamp: e.Timestamp.Format(TimeLayout),
		Message:   e.Message,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(TimeLayout, raw.Timestamp, time.Local)
	if err != nil {
		return fmt.Errorf("parse journal timestamp %q: %w", raw.Timestamp, err)
	}
	*e = Event{Type: raw.Type, Timestamp: ts, Message: raw.Message}
	return nil
}

// Journal is the per-night event file. Writes are serialized in-process; the
// file itself assumes a single writer process.
type Journal struct {
	mu   sync.Mutex
	path string
}

// Open returns the journal for a night directory, creating the directory if
// needed. nightID keys both the directory and the file name.
func Open(root, nightID string) (*Journal, error) {
	dir := filepath.Join(root, nightID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create night directory %s", dir)
	}
	return &Journal{path: filepath.Join(dir, "journal-"+nightID+".json")}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append adds a new record unconditionally.
func (j *Journal) Append(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	events := j.load()
	events = append(events, ev)
	return j.save(events)
}

// Upsert replaces the first record of the same type in place, preserving its
// position, or appends when none exists. Used exclusively for alarm_set so at
// most one live alarm record exists per night.
func (j *Journal) Upsert(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	events := j.load()
	replaced := false
	for i := range events {
		if events[i].Type == ev.Type {
			events[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		events = append(events, ev)
	}
	return j.save(events)
}

// Events returns all records. A missing or corrupt file reads as an empty
// journal so the service stays available.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.load()
}

// SleptHours folds the night's events into total slept hours.
func (j *Journal) SleptHours() float64 {
	return SleptHours(j.Events())
}

// SleptHours sorts events by timestamp and pairs each open sleep_onset with
// the next wake_up or alarm_set (being woken by the alarm ends the interval).
// A closer with no open onset is ignored.
func SleptHours(events []Event) float64 {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, k int) bool {
		return sorted[i].Timestamp.Before(sorted[k].Timestamp)
	})

	var total float64
	var openOnset time.Time
	var open bool

	for _, ev := range sorted {
		switch ev.Type {
		case EventSleepOnset:
			openOnset = ev.Timestamp
			open = true
		case EventWakeUp, EventAlarmSet:
			if !open {
				continue
			}
			if ev.Timestamp.After(openOnset) {
				total += ev.Timestamp.Sub(openOnset).Hours()
			}
			open = false
		}
	}
	return total
}

func (j *Journal) load() []Event {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		// Corrupt journal reads as empty rather than taking the night down.
		return nil
	}
	return events
}

func (j *Journal) save(events []Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal journal")
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write journal %s", j.path)
	}
	return nil
}

// Store resolves journals under a root data directory, one directory per
// night.
type Store struct {
	root string
}

// NewStore constructs a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Night opens (creating if needed) the journal for nightID.
func (s *Store) Night(nightID string) (*Journal, error) {
	return Open(s.root, nightID)
}

// SleptHoursFor reads a prior night's journal. ok is false when no journal
// exists on disk for that night; such nights contribute nothing to debt.
func (s *Store) SleptHoursFor(nightID string) (float64, bool) {
	path := filepath.Join(s.root, nightID, "journal-"+nightID+".json")
	if _, err := os.Stat(path); err != nil {
		return 0, false
	}
	j := &Journal{path: path}
	return j.SleptHours(), true
}
