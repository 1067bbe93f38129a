package alarm

import (
	"context"
	"log/slog"
	"time"

	"github.com/crazy3lf/colorconv"
	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/light"
	"github.com/cybre/sleepwake/internal/night"
	"github.com/cybre/sleepwake/internal/utils"
)

// FadeConfig tunes the gradual wake sequence.
type FadeConfig struct {
	Duration time.Duration
	Steps    int
	// MaxBrightness is the fade ceiling on the 0-255 scale.
	MaxBrightness int
	// SunriseStartHue/SunriseEndHue bound the warm colour sweep (degrees) for
	// colour-capable backends.
	SunriseStartHue float64
	SunriseEndHue   float64
	// ColorEvery applies the colour sweep only every Nth step to keep command
	// rates low.
	ColorEvery int
}

func (c FadeConfig) withDefaults() FadeConfig {
	if c.Duration <= 0 {
		c.Duration = 30 * time.Minute
	}
	if c.Steps <= 0 {
		c.Steps = 255
	}
	if c.MaxBrightness <= 0 {
		c.MaxBrightness = 78
	}
	if c.SunriseStartHue <= 0 {
		c.SunriseStartHue = 10
	}
	if c.SunriseEndHue <= 0 {
		c.SunriseEndHue = 40
	}
	if c.ColorEvery <= 0 {
		c.ColorEvery = 16
	}
	return c
}

// WakeOptions selects the behaviour of one wake-sequence run.
type WakeOptions struct {
	// Aware runs honour the skip flag set when an in-process sequence already
	// covers the externally triggered one.
	Aware bool
	// AlarmMode sounds the buzzer once the fade completes.
	AlarmMode bool
}

// WakeSequence runs the cosine-eased light fade ending at alarm mode.
type WakeSequence struct {
	cfg      FadeConfig
	actuator light.Actuator
	sounder  Sounder
	state    *night.State
	logger   *slog.Logger
}

// NewWakeSequence constructs a wake sequence runner.
func NewWakeSequence(cfg FadeConfig, actuator light.Actuator, sounder Sounder, state *night.State, logger *slog.Logger) *WakeSequence {
	return &WakeSequence{
		cfg:      cfg.withDefaults(),
		actuator: actuator,
		sounder:  sounder,
		state:    state,
		logger:   logger,
	}
}

// Run fades the lights up over duration and, in alarm mode, hands off to the
// buzzer. A zero duration falls back to the configured one; a negative
// duration means the wake instant is already due, so the ramp runs without
// pacing and the alarm sounds immediately. Step pacing uses the monotonic
// clock so drift does not accumulate.
func (w *WakeSequence) Run(ctx context.Context, duration time.Duration, opts WakeOptions) error {
	if opts.Aware && w.state.ConsumeSkipNextFade() {
		w.logger.Info("skipping externally triggered fade; in-process sequence already ran")
		return nil
	}

	overdue := duration < 0
	if overdue {
		duration = 0
	} else if duration == 0 {
		duration = w.cfg.Duration
	}

	w.logger.Info("starting wake fade",
		slog.Duration("duration", duration),
		slog.Bool("alarm_mode", opts.AlarmMode),
		slog.Bool("overdue", overdue),
	)

	steps := w.cfg.Steps
	stepTime := duration / time.Duration(steps)
	colorCapable, _ := w.actuator.(light.ColorActuator)
	start := time.Now()

	for i := 0; i <= steps; i++ {
		x := float64(i) / float64(steps)
		eased := utils.CosineEase(x)

		brightness := int(float64(w.cfg.MaxBrightness) * eased)
		if err := w.actuator.SetBrightness(ctx, brightness); err != nil {
			w.logger.Warn("fade brightness step failed", slog.Any("error", err))
		}

		if colorCapable != nil && i%w.cfg.ColorEvery == 0 {
			hue := w.cfg.SunriseStartHue + (w.cfg.SunriseEndHue-w.cfg.SunriseStartHue)*eased
			if r, g, b, err := colorconv.HSVToRGB(hue, 1, 1); err == nil {
				if err := colorCapable.SetColor(ctx, r, g, b); err != nil {
					w.logger.Warn("fade colour step failed", slog.Any("error", err))
				}
			}
		}

		next := start.Add(time.Duration(i+1) * stepTime)
		if wait := time.Until(next); wait > 0 && i < steps {
			if !sleepInterruptible(ctx, wait) {
				return ctx.Err()
			}
		}
	}

	if !opts.AlarmMode {
		return nil
	}

	w.logger.Info("fade complete, sounding alarm")
	if err := w.sounder.Sound(ctx, DefaultPattern()); err != nil && !eris.Is(err, context.Canceled) {
		return eris.Wrap(err, "sound alarm")
	}
	return nil
}
