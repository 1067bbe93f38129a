package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/sleepwake/internal/night"
)

type colorCapableActuator struct {
	mu     sync.Mutex
	levels []int
	colors int
}

func (a *colorCapableActuator) SetBrightness(ctx context.Context, level int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels = append(a.levels, level)
	return nil
}

func (a *colorCapableActuator) SetColor(ctx context.Context, r, g, b uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.colors++
	return nil
}

type patternSounder struct {
	sounded bool
}

func (s *patternSounder) Sound(ctx context.Context, pattern Pattern) error {
	s.sounded = true
	return nil
}

func TestWakeSequenceRampsToMaxBrightness(t *testing.T) {
	actuator := &colorCapableActuator{}
	w := NewWakeSequence(FadeConfig{
		Duration:      20 * time.Millisecond,
		Steps:         10,
		MaxBrightness: 78,
	}, actuator, NopSounder{}, night.NewState(), discardLogger())

	require.NoError(t, w.Run(context.Background(), 0, WakeOptions{}))

	require.Len(t, actuator.levels, 11)
	assert.Equal(t, 0, actuator.levels[0])
	assert.Equal(t, 78, actuator.levels[len(actuator.levels)-1])
	// Monotone non-decreasing cosine ramp.
	for i := 1; i < len(actuator.levels); i++ {
		assert.GreaterOrEqual(t, actuator.levels[i], actuator.levels[i-1])
	}
	assert.Greater(t, actuator.colors, 0)
}

func TestWakeSequenceOverdueSoundsAlarmImmediately(t *testing.T) {
	actuator := &colorCapableActuator{}
	sounder := &patternSounder{}
	w := NewWakeSequence(FadeConfig{
		Duration:      2 * time.Second,
		Steps:         10,
		MaxBrightness: 78,
	}, actuator, sounder, night.NewState(), discardLogger())

	start := time.Now()
	require.NoError(t, w.Run(context.Background(), -time.Hour, WakeOptions{AlarmMode: true}))

	// A past-due wake must not sit through the configured ramp first.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, sounder.sounded)
	require.NotEmpty(t, actuator.levels)
	assert.Equal(t, 78, actuator.levels[len(actuator.levels)-1])
}

func TestWakeSequenceAwareHonoursSkipFlag(t *testing.T) {
	actuator := &colorCapableActuator{}
	state := night.NewState()
	state.SetSkipNextFade()

	w := NewWakeSequence(FadeConfig{Duration: 10 * time.Millisecond, Steps: 5}, actuator, NopSounder{}, state, discardLogger())

	require.NoError(t, w.Run(context.Background(), 0, WakeOptions{Aware: true}))
	assert.Empty(t, actuator.levels)

	// Flag is consumed; the next aware run fades normally.
	require.NoError(t, w.Run(context.Background(), 0, WakeOptions{Aware: true}))
	assert.NotEmpty(t, actuator.levels)
}

func TestWakeSequenceAlarmModeSoundsBuzzer(t *testing.T) {
	sounder := &patternSounder{}
	w := NewWakeSequence(FadeConfig{Duration: 10 * time.Millisecond, Steps: 5}, &colorCapableActuator{}, sounder, night.NewState(), discardLogger())

	require.NoError(t, w.Run(context.Background(), 0, WakeOptions{AlarmMode: true}))
	assert.True(t, sounder.sounded)
}

func TestWakeSequenceCancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWakeSequence(FadeConfig{Duration: time.Hour, Steps: 100}, &colorCapableActuator{}, NopSounder{}, night.NewState(), discardLogger())

	err := w.Run(ctx, time.Hour, WakeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultPattern(t *testing.T) {
	p := DefaultPattern()
	require.Len(t, p.Steps, 2)
	assert.Equal(t, 1.0, p.Volume)
}
