package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/alarm"
	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/predict"
	"github.com/cybre/sleepwake/internal/sleep"
	"github.com/cybre/sleepwake/internal/stream"
)

// Tuning carries the empirically chosen pipeline constants. Every field is
// optional; zero values fall through to the built-in defaults of each
// component.
type Tuning struct {
	Stream   streamTuning   `toml:"stream"`
	Classify classifyTuning `toml:"classify"`
	Monitor  monitorTuning  `toml:"monitor"`
	Cycle    cycleTuning    `toml:"cycle"`
	Alarm    alarmTuning    `toml:"alarm"`
}

type streamTuning struct {
	QueueCapacity  int     `toml:"queue_capacity"`
	WindowSeconds  int     `toml:"window_seconds"`
	SampleRateHz   int     `toml:"sample_rate_hz"`
	BatchThreshold int     `toml:"batch_threshold"`
	ADCScale       float64 `toml:"adc_scale"`
	VRef           float64 `toml:"vref"`
}

type classifyTuning struct {
	IntervalSeconds float64 `toml:"interval_seconds"`
	HistoryDepth    int     `toml:"history_depth"`
	ResultCapacity  int     `toml:"result_capacity"`
}

type monitorTuning struct {
	DrainThreshold  int     `toml:"drain_threshold"`
	DominantDepth   int     `toml:"dominant_depth"`
	OnsetDensity    float64 `toml:"onset_density"`
	WakeDensity     float64 `toml:"wake_density"`
	PreAlarmMinutes int     `toml:"prealarm_minutes"`
	TraceDepth      int     `toml:"trace_depth"`
}

type cycleTuning struct {
	SmoothWindow     int     `toml:"smooth_window"`
	MinSeparationMin int     `toml:"min_separation_min"`
	MinHeight        float64 `toml:"min_height"`
	MinProminence    float64 `toml:"min_prominence"`
	MinCycleMin      int     `toml:"min_cycle_min"`
	MaxCycleMin      int     `toml:"max_cycle_min"`
	SnapMinutes      int     `toml:"snap_minutes"`
}

type alarmTuning struct {
	ShortHorizonMinutes int `toml:"short_horizon_minutes"`
	PreWakeMinutes      int `toml:"prewake_minutes"`
	FadeMinutes         int `toml:"fade_minutes"`
	FadeSteps           int `toml:"fade_steps"`
	MaxBrightness       int `toml:"max_brightness"`
}

// loadTuning reads the tuning file when a path is given; an empty path yields
// all defaults.
func loadTuning(path string) (Tuning, error) {
	var t Tuning
	if path == "" {
		return t, nil
	}
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return t, eris.Wrapf(err, "load tuning file %s", path)
	}
	return t, nil
}

// parseClock parses a HH:MM flag value into an hour and minute of day.
func parseClock(s string) (int, int, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "parse clock time %q", s)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// parseCutoff converts a HH:MM flag value into an offset from midnight.
func parseCutoff(s string) (time.Duration, error) {
	hour, minute, err := parseClock(s)
	if err != nil {
		return 0, eris.Wrap(err, "parse cutoff")
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

const (
	defaultQueueCapacity  = 200_000
	defaultWindowSeconds  = 30
	defaultSampleRateHz   = 100
	defaultTraceDepth     = 1440
	defaultResultCapacity = 30
)

func (t Tuning) queueCapacity() int {
	if t.Stream.QueueCapacity > 0 {
		return t.Stream.QueueCapacity
	}
	return defaultQueueCapacity
}

func (t Tuning) windowSeconds() int {
	if t.Stream.WindowSeconds > 0 {
		return t.Stream.WindowSeconds
	}
	return defaultWindowSeconds
}

func (t Tuning) sampleRateHz() int {
	if t.Stream.SampleRateHz > 0 {
		return t.Stream.SampleRateHz
	}
	return defaultSampleRateHz
}

func (t Tuning) resultCapacity() int {
	if t.Classify.ResultCapacity > 0 {
		return t.Classify.ResultCapacity
	}
	return defaultResultCapacity
}

func (t Tuning) traceDepth() int {
	if t.Monitor.TraceDepth > 0 {
		return t.Monitor.TraceDepth
	}
	return defaultTraceDepth
}

func (t Tuning) processorConfig() stream.ProcessorConfig {
	return stream.ProcessorConfig{
		BatchThreshold: t.Stream.BatchThreshold,
		ADCScale:       t.Stream.ADCScale,
		VRef:           t.Stream.VRef,
	}
}

func (t Tuning) workerConfig() classify.WorkerConfig {
	return classify.WorkerConfig{
		Interval:       time.Duration(t.Classify.IntervalSeconds * float64(time.Second)),
		WindowSeconds:  t.windowSeconds(),
		HistoryDepth:   t.Classify.HistoryDepth,
		ResultCapacity: t.Classify.ResultCapacity,
	}
}

func (t Tuning) monitorConfig() sleep.Config {
	return sleep.Config{
		DrainThreshold: t.Monitor.DrainThreshold,
		DominantDepth:  t.Monitor.DominantDepth,
		OnsetDensity:   t.Monitor.OnsetDensity,
		WakeDensity:    t.Monitor.WakeDensity,
		PreAlarmWindow: time.Duration(t.Monitor.PreAlarmMinutes) * time.Minute,
		TraceDepth:     t.traceDepth(),
	}
}

func (t Tuning) cycleConfig() predict.CycleConfig {
	return predict.CycleConfig{
		MaxMinutes:       t.traceDepth(),
		SmoothWindow:     t.Cycle.SmoothWindow,
		MinSeparationMin: t.Cycle.MinSeparationMin,
		MinHeight:        t.Cycle.MinHeight,
		MinProminence:    t.Cycle.MinProminence,
		MinCycleMin:      t.Cycle.MinCycleMin,
		MaxCycleMin:      t.Cycle.MaxCycleMin,
		SnapWindow:       time.Duration(t.Cycle.SnapMinutes) * time.Minute,
	}
}

func (t Tuning) schedulerConfig() alarm.SchedulerConfig {
	return alarm.SchedulerConfig{
		ShortHorizon: time.Duration(t.Alarm.ShortHorizonMinutes) * time.Minute,
		PreWakeLead:  time.Duration(t.Alarm.PreWakeMinutes) * time.Minute,
	}
}

func (t Tuning) maxBrightness() int {
	if t.Alarm.MaxBrightness > 0 {
		return t.Alarm.MaxBrightness
	}
	return 78
}

func (t Tuning) fadeConfig() alarm.FadeConfig {
	return alarm.FadeConfig{
		Duration:      time.Duration(t.Alarm.FadeMinutes) * time.Minute,
		Steps:         t.Alarm.FadeSteps,
		MaxBrightness: t.Alarm.MaxBrightness,
	}
}

func (t Tuning) predictConfig(opts runtimeOptions) predict.Config {
	return predict.Config{
		GoalHours:     opts.goalHours,
		HistoryNights: opts.historyNights,
		Cycle:         t.cycleConfig(),
	}
}
