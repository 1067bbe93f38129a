// Package predict computes the ideal wake time: a sleep-debt estimate at
// sleep onset, refined near the alarm by detected sleep-cycle timing.
package predict

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/calendar"
	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/journal"
	"github.com/cybre/sleepwake/internal/night"
	"github.com/cybre/sleepwake/internal/stream"
)

// Scheduler is the slice of the alarm scheduler the predictor drives.
type Scheduler interface {
	Schedule(ctx context.Context, instant time.Time) error
}

// Config tunes the debt and cycle calculations.
type Config struct {
	GoalHours     float64
	HistoryNights int
	// DefaultWakeHour/Minute apply when no calendar commitment is found.
	DefaultWakeHour   int
	DefaultWakeMinute int
	// WakeLead is how long before the earliest commitment the baseline wake
	// falls.
	WakeLead time.Duration
	// IgnoreMarker excludes commitments whose notes contain it.
	IgnoreMarker string

	Cycle CycleConfig
}

func (c Config) withDefaults() Config {
	if c.GoalHours <= 0 {
		c.GoalHours = 8
	}
	if c.HistoryNights <= 0 {
		c.HistoryNights = 7
	}
	if c.DefaultWakeHour <= 0 {
		c.DefaultWakeHour = 9
	}
	if c.WakeLead <= 0 {
		c.WakeLead = time.Hour
	}
	if c.IgnoreMarker == "" {
		c.IgnoreMarker = "ignorethis"
	}
	c.Cycle = c.Cycle.withDefaults()
	return c
}

// Predictor recomputes the wake-time estimate. Both entry points run as
// fire-and-forget tasks off the monitoring loop; they report errors to the
// caller's logging sink instead of crashing anything.
type Predictor struct {
	cfg       Config
	cal       calendar.Source // nil when no calendar is configured
	store     *journal.Store
	jrnl      *journal.Journal
	state     *night.State
	sched     Scheduler
	dominants *stream.History[classify.Record]
	logger    *slog.Logger
}

// New constructs a Predictor. dominants is the state machine's per-night
// dominant-state trace.
func New(cfg Config, cal calendar.Source, store *journal.Store, jrnl *journal.Journal, state *night.State, sched Scheduler, dominants *stream.History[classify.Record], logger *slog.Logger) *Predictor {
	return &Predictor{
		cfg:       cfg.withDefaults(),
		cal:       cal,
		store:     store,
		jrnl:      jrnl,
		state:     state,
		sched:     sched,
		dominants: dominants,
		logger:    logger,
	}
}

// OnSleepOnset recomputes the ideal wake time from sleep debt and tomorrow's
// commitments, and reschedules the alarm when the estimate changed.
func (p *Predictor) OnSleepOnset(ctx context.Context, onset time.Time, nightCtx night.Context) error {
	baseline := p.baselineWake(ctx, nightCtx)
	debt := p.sleepDebt(nightCtx)
	sleptToday := p.jrnl.SleptHours()

	needed := p.cfg.GoalHours - sleptToday + debt
	target := onset.Add(time.Duration(needed * float64(time.Hour)))

	// Never sleep later than the calendar requires.
	estimate := baseline
	if target.Before(baseline) {
		estimate = target
	}

	p.logger.Info("wake-time estimate computed",
		slog.Time("onset", onset),
		slog.Float64("debt_hours", debt),
		slog.Float64("slept_today", sleptToday),
		slog.Time("baseline", baseline),
		slog.Time("target", target),
		slog.Time("estimate", estimate),
	)

	if estimate.Equal(p.state.FirstEventTime()) {
		return nil
	}
	p.state.SetFirstEventTime(estimate)

	if err := p.sched.Schedule(ctx, estimate); err != nil {
		return eris.Wrap(err, "schedule debt-adjusted alarm")
	}
	return nil
}

// baselineWake derives the latest acceptable wake time from tomorrow's
// earliest qualifying commitment, falling back to the default wake time when
// the calendar is unavailable or empty.
func (p *Predictor) baselineWake(ctx context.Context, nightCtx night.Context) time.Time {
	tomorrow := nightCtx.Tomorrow
	fallback := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
		p.cfg.DefaultWakeHour, p.cfg.DefaultWakeMinute, 0, 0, tomorrow.Location())

	if p.cal == nil {
		return fallback
	}

	commitments, err := p.cal.Commitments(ctx, tomorrow)
	if err != nil {
		p.logger.Warn("calendar lookup failed, using default wake time", slog.Any("error", err))
		return fallback
	}

	commitments = calendar.FilterIgnored(commitments, p.cfg.IgnoreMarker)
	if len(commitments) == 0 {
		return fallback
	}

	earliest := commitments[0].Time
	for _, c := range commitments[1:] {
		if c.Time.Before(earliest) {
			earliest = c.Time
		}
	}
	return earliest.Add(-p.cfg.WakeLead)
}

// sleepDebt sums the shortfall against the goal over the last K prior nights
// that have a journal on disk. Nights without a journal are excluded rather
// than counted as zero.
func (p *Predictor) sleepDebt(nightCtx night.Context) float64 {
	var debt float64
	for i := 1; i <= p.cfg.HistoryNights; i++ {
		id := night.IDFor(nightCtx.Today.AddDate(0, 0, -i))
		slept, ok := p.store.SleptHoursFor(id)
		if !ok {
			continue
		}
		debt += p.cfg.GoalHours - slept
	}
	return debt
}

// OnPreAlarm refines the scheduled alarm using detected sleep-cycle timing.
// It is a soft heuristic: when no plausible cycle emerges the alarm stays
// put.
func (p *Predictor) OnPreAlarm(ctx context.Context) error {
	alarm := p.state.AlarmScheduled()
	if alarm.IsZero() {
		return nil
	}

	adjusted, ok := PredictCycleWake(p.dominants.Items(), alarm, p.cfg.Cycle)
	if !ok {
		p.logger.Info("no usable sleep-cycle estimate, keeping alarm", slog.Time("alarm", alarm))
		return nil
	}

	p.logger.Info("moving alarm to predicted light-sleep boundary",
		slog.Time("from", alarm),
		slog.Time("to", adjusted),
	)

	p.state.SetFirstEventTime(adjusted)
	if err := p.sched.Schedule(ctx, adjusted); err != nil {
		return eris.Wrap(err, "schedule cycle-adjusted alarm")
	}
	return nil
}
