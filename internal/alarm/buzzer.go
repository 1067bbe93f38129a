package alarm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cybre/sleepwake/internal/utils"
)

// PatternStep is one on/off segment of an alarm pattern.
type PatternStep struct {
	On  time.Duration
	Off time.Duration
}

// Pattern describes the buzzer cadence. Volume scales PWM duty, Speed divides
// segment durations.
type Pattern struct {
	Steps  []PatternStep
	Volume float64
	Speed  float64
}

// DefaultPattern is the double-chirp wake pattern.
func DefaultPattern() Pattern {
	return Pattern{
		Steps: []PatternStep{
			{On: 100 * time.Millisecond, Off: 100 * time.Millisecond},
			{On: 100 * time.Millisecond, Off: 600 * time.Millisecond},
		},
		Volume: 1.0,
		Speed:  1.0,
	}
}

// Sounder plays an audible alarm pattern until the context is cancelled.
type Sounder interface {
	Sound(ctx context.Context, pattern Pattern) error
}

// NopSounder discards the alarm; used in dry runs and tests.
type NopSounder struct{}

// Sound implements Sounder.
func (NopSounder) Sound(ctx context.Context, pattern Pattern) error { return nil }

const buzzerCycleLen = 32

// GPIOBuzzer drives a piezo buzzer with hardware PWM.
type GPIOBuzzer struct {
	pin  rpio.Pin
	freq int
}

// NewGPIOBuzzer constructs a buzzer on the given BCM pin at the given PWM
// frequency. Open must be called before Sound.
func NewGPIOBuzzer(pin, freqHz int) *GPIOBuzzer {
	return &GPIOBuzzer{pin: rpio.Pin(pin), freq: freqHz}
}

// Open maps GPIO memory and configures the pin for PWM.
func (b *GPIOBuzzer) Open() error {
	if err := rpio.Open(); err != nil {
		return eris.Wrap(err, "open gpio memory")
	}
	b.pin.Mode(rpio.Pwm)
	b.pin.Freq(b.freq * buzzerCycleLen)
	return nil
}

// Close silences the buzzer and unmaps GPIO memory.
func (b *GPIOBuzzer) Close() error {
	b.pin.DutyCycle(0, buzzerCycleLen)
	return eris.Wrap(rpio.Close(), "close gpio memory")
}

// Sound implements Sounder, looping the pattern until ctx is done.
func (b *GPIOBuzzer) Sound(ctx context.Context, pattern Pattern) error {
	if len(pattern.Steps) == 0 {
		pattern = DefaultPattern()
	}
	speed := pattern.Speed
	if speed <= 0 {
		speed = 1
	}
	duty := uint32(utils.Clamp(pattern.Volume, 0.0, 1.0) * buzzerCycleLen)

	defer b.pin.DutyCycle(0, buzzerCycleLen)

	for {
		for _, step := range pattern.Steps {
			if step.On > 0 {
				b.pin.DutyCycle(duty, buzzerCycleLen)
				if !sleepInterruptible(ctx, time.Duration(float64(step.On)/speed)) {
					return ctx.Err()
				}
			}
			b.pin.DutyCycle(0, buzzerCycleLen)
			if !sleepInterruptible(ctx, time.Duration(float64(step.Off)/speed)) {
				return ctx.Err()
			}
		}
	}
}

// sleepInterruptible sleeps for d and reports false when the context ended
// first.
func sleepInterruptible(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
