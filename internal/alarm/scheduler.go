// Package alarm schedules the adaptive wake alarm: external timer triggers
// for far-off instants, an in-process wake sequence for imminent ones.
package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/journal"
	"github.com/cybre/sleepwake/internal/night"
)

// SchedulerConfig tunes scheduling behaviour.
type SchedulerConfig struct {
	// ShortHorizon is the window within which external timer installation is
	// skipped in favour of an immediate in-process wake sequence.
	ShortHorizon time.Duration
	// PreWakeLead is how far before the wake instant the light fade trigger
	// fires.
	PreWakeLead time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.ShortHorizon <= 0 {
		c.ShortHorizon = 30 * time.Minute
	}
	if c.PreWakeLead <= 0 {
		c.PreWakeLead = 30 * time.Minute
	}
	return c
}

// ResolveInstant resolves a wall-clock time of day to an absolute instant: an
// explicit date pins it exactly; otherwise the next occurrence on/after now
// is chosen, rolling to the following day when already passed.
func ResolveInstant(now time.Time, hour, minute int, date *time.Time) time.Time {
	if date != nil {
		return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, now.Location())
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Scheduler idempotently (re)installs the wake and pre-wake triggers whenever
// the computed ideal wake time changes.
type Scheduler struct {
	cfg       SchedulerConfig
	installer Installer
	wake      *WakeSequence
	jrnl      *journal.Journal
	state     *night.State
	logger    *slog.Logger

	now func() time.Time
}

// NewScheduler constructs a Scheduler.
func NewScheduler(cfg SchedulerConfig, installer Installer, wake *WakeSequence, jrnl *journal.Journal, state *night.State, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		installer: installer,
		wake:      wake,
		jrnl:      jrnl,
		state:     state,
		logger:    logger,
		now:       time.Now,
	}
}

// Schedule installs (or re-installs) the alarm for the given absolute
// instant. Calling it again with the same instant safely re-applies the same
// configuration; triggers never stack.
func (s *Scheduler) Schedule(ctx context.Context, instant time.Time) error {
	remaining := instant.Sub(s.now())

	if remaining <= s.cfg.ShortHorizon {
		if remaining <= 0 {
			// Already past due; a negative duration tells the wake sequence to
			// skip the ramp pacing and sound the alarm right away.
			remaining = -time.Nanosecond
			s.logger.Warn("wake instant already passed, waking immediately", slog.Time("at", instant))
		}

		// External timer installation has latency and coarse granularity, so
		// near-term alarms run in-process. The skip flag keeps the recurring
		// external trigger from double-firing the fade this run.
		s.state.SetSkipNextFade()
		s.state.SetAlarmScheduled(instant)
		s.journalAlarm(instant, fmt.Sprintf("imminent alarm, in-process wake sequence over %s", remaining.Round(time.Second)))

		s.logger.Info("alarm imminent, starting in-process wake sequence",
			slog.Time("at", instant),
			slog.Duration("remaining", remaining),
		)

		go func() {
			if err := s.wake.Run(ctx, remaining, WakeOptions{AlarmMode: true}); err != nil && !eris.Is(err, context.Canceled) {
				s.logger.Error("in-process wake sequence failed", slog.Any("error", err))
			}
		}()
		return nil
	}

	if err := s.installer.Install(ctx, TriggerWake, instant); err != nil {
		// Previous schedule remains in effect.
		return eris.Wrap(err, "install wake trigger")
	}

	preWake := instant.Add(-s.cfg.PreWakeLead)
	if err := s.installer.Install(ctx, TriggerPreWake, preWake); err != nil {
		return eris.Wrap(err, "install pre-wake trigger")
	}

	s.state.SetAlarmScheduled(instant)
	s.journalAlarm(instant, fmt.Sprintf("wake trigger at %s, light fade from %s",
		instant.Format("15:04"), preWake.Format("15:04")))

	s.logger.Info("alarm scheduled",
		slog.Time("wake", instant),
		slog.Time("prewake", preWake),
	)
	return nil
}

// journalAlarm upserts the single live alarm_set record. A persistence
// failure is logged but does not undo the installed schedule.
func (s *Scheduler) journalAlarm(instant time.Time, message string) {
	err := s.jrnl.Upsert(journal.Event{
		Type:      journal.EventAlarmSet,
		Timestamp: instant,
		Message:   message,
	})
	if err != nil {
		s.logger.Error("failed to journal alarm_set", slog.Any("error", err))
	}
}
