// Package sleep turns the noisy per-tick classification stream into debounced
// sleep_onset and wake_up transitions, and fires the pre-alarm cycle hook.
package sleep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/journal"
	"github.com/cybre/sleepwake/internal/night"
	"github.com/cybre/sleepwake/internal/stream"
)

// Config tunes the debouncing state machine.
type Config struct {
	// DrainThreshold is the minimum number of buffered classifications before
	// a step runs.
	DrainThreshold int
	// DominantDepth is how many recent dominant states vote on transitions.
	DominantDepth int
	// OnsetDensity and WakeDensity are the hysteresis thresholds on the
	// asleep fraction of the dominant ring.
	OnsetDensity float64
	WakeDensity  float64
	// PreAlarmWindow is how close to the scheduled alarm the once-per-night
	// cycle adjustment fires.
	PreAlarmWindow time.Duration
	// TraceDepth bounds the per-night dominant-state trace.
	TraceDepth int
	// IdleSleep paces the polling loop; ErrorBackoff delays retry after a
	// journaled failure.
	IdleSleep    time.Duration
	ErrorBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.DrainThreshold <= 0 {
		c.DrainThreshold = 30
	}
	if c.DominantDepth <= 0 {
		c.DominantDepth = 15
	}
	if c.OnsetDensity <= 0 {
		c.OnsetDensity = 0.75
	}
	if c.WakeDensity <= 0 {
		c.WakeDensity = 0.40
	}
	if c.PreAlarmWindow <= 0 {
		c.PreAlarmWindow = time.Hour
	}
	if c.TraceDepth <= 0 {
		c.TraceDepth = 1440
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 10 * time.Second
	}
	return c
}

// OnsetFunc is invoked once per sleep_onset transition with the transition
// instant.
type OnsetFunc func(ctx context.Context, onset time.Time)

// PreAlarmFunc is invoked once per night when the scheduled alarm enters the
// pre-alarm window.
type PreAlarmFunc func(ctx context.Context)

// Monitor is the debounced asleep/awake state machine. It drains the shared
// classification history in batches, reduces each batch to a dominant state,
// and flips between awake and asleep only when the recent dominant-state
// density crosses the hysteresis thresholds.
type Monitor struct {
	cfg      Config
	results  *stream.History[classify.Record]
	dominant *stream.History[classify.Record]
	trace    *stream.History[classify.Record]
	jrnl     *journal.Journal
	state    *night.State
	logger   *slog.Logger

	onOnset    OnsetFunc
	onPreAlarm PreAlarmFunc

	mu     sync.Mutex
	asleep bool

	now func() time.Time
}

// NewMonitor constructs a Monitor draining results. trace receives every
// dominant state for the cycle predictor; either callback may be nil.
func NewMonitor(cfg Config, results *stream.History[classify.Record], trace *stream.History[classify.Record], jrnl *journal.Journal, state *night.State, onOnset OnsetFunc, onPreAlarm PreAlarmFunc, logger *slog.Logger) *Monitor {
	cfg = cfg.withDefaults()
	return &Monitor{
		cfg:        cfg,
		results:    results,
		dominant:   stream.NewHistory[classify.Record](cfg.DominantDepth),
		trace:      trace,
		jrnl:       jrnl,
		state:      state,
		onOnset:    onOnset,
		onPreAlarm: onPreAlarm,
		logger:     logger,
		now:        time.Now,
	}
}

// Asleep reports the machine's current debounced state. Safe to call from
// other goroutines while Run is looping.
func (m *Monitor) Asleep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asleep
}

func (m *Monitor) setAsleep(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asleep = v
}

// Run polls until the context ends. Step failures are journaled and retried
// after a backoff; the monitor itself never gives up on the night.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("sleep monitor started",
		slog.Int("drain_threshold", m.cfg.DrainThreshold),
		slog.Float64("onset_density", m.cfg.OnsetDensity),
		slog.Float64("wake_density", m.cfg.WakeDensity),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.Step(ctx); err != nil {
			m.logger.Error("monitor step failed", slog.Any("error", err))
			if jerr := m.jrnl.Append(journal.Event{
				Type:      journal.EventError,
				Timestamp: m.now(),
				Message:   fmt.Sprintf("monitor: %v", err),
			}); jerr != nil {
				m.logger.Error("failed to journal monitor error", slog.Any("error", jerr))
			}
			if err := sleepContext(ctx, m.cfg.ErrorBackoff); err != nil {
				return err
			}
			continue
		}

		if err := sleepContext(ctx, m.cfg.IdleSleep); err != nil {
			return err
		}
	}
}

// Step runs one iteration: the pre-alarm check, then at most one batch
// reduction and transition evaluation.
func (m *Monitor) Step(ctx context.Context) error {
	m.maybeTriggerCycle(ctx)

	if m.results.Len() < m.cfg.DrainThreshold {
		return nil
	}

	batch := m.results.Drain()
	if len(batch) == 0 {
		return nil
	}

	dom := dominantRecord(batch)
	m.dominant.Add(dom)
	if m.trace != nil {
		m.trace.Add(dom)
	}

	// Transitions wait for a full ring so early batches cannot flip the state
	// on a thin sample.
	if m.dominant.Len() < m.cfg.DominantDepth {
		return nil
	}

	density := asleepDensity(m.dominant.Items())
	asleep := m.Asleep()
	m.logger.Debug("batch reduced",
		slog.String("dominant", string(dom.Label)),
		slog.Float64("asleep_density", density),
		slog.Bool("asleep", asleep),
	)

	latest := batch[len(batch)-1].Time

	switch {
	case !asleep && density >= m.cfg.OnsetDensity:
		m.setAsleep(true)
		m.logger.Info("sleep onset detected", slog.Time("at", latest), slog.Float64("density", density))
		if err := m.jrnl.Append(journal.Event{Type: journal.EventSleepOnset, Timestamp: latest}); err != nil {
			return err
		}
		if m.onOnset != nil {
			m.onOnset(ctx, latest)
		}

	case asleep && density < m.cfg.WakeDensity:
		m.setAsleep(false)
		m.logger.Info("wake up detected", slog.Time("at", latest), slog.Float64("density", density))
		if err := m.jrnl.Append(journal.Event{Type: journal.EventWakeUp, Timestamp: latest}); err != nil {
			return err
		}
	}
	return nil
}

// maybeTriggerCycle fires the once-per-night pre-alarm hook when the installed
// alarm is close enough for a cycle adjustment to matter.
func (m *Monitor) maybeTriggerCycle(ctx context.Context) {
	if m.onPreAlarm == nil {
		return
	}
	alarm := m.state.AlarmScheduled()
	if alarm.IsZero() {
		return
	}
	remaining := alarm.Sub(m.now())
	if remaining <= 0 || remaining > m.cfg.PreAlarmWindow {
		return
	}
	if !m.state.MarkCycleAdjusted() {
		return
	}
	m.logger.Info("alarm in pre-alarm window, requesting cycle adjustment",
		slog.Time("alarm", alarm),
		slog.Duration("remaining", remaining),
	)
	m.onPreAlarm(ctx)
}

// dominantRecord reduces a batch to its most frequent label, stamped with the
// batch's latest time. Ties go to the label seen latest in the batch.
func dominantRecord(batch []classify.Record) classify.Record {
	counts := make(map[classify.Label]int, len(batch))
	var dominant classify.Label
	best := 0
	for _, rec := range batch {
		counts[rec.Label]++
		if counts[rec.Label] >= best {
			best = counts[rec.Label]
			dominant = rec.Label
		}
	}
	return classify.Record{Time: batch[len(batch)-1].Time, Label: dominant}
}

// asleepDensity is the fraction of records carrying an asleep-family label.
func asleepDensity(records []classify.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	asleep := 0
	for _, rec := range records {
		if rec.Label.IsAsleep() {
			asleep++
		}
	}
	return float64(asleep) / float64(len(records))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
