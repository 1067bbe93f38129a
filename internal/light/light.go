// Package light abstracts the wake-light actuation backends.
package light

import "context"

// Actuator sets light brightness. Levels use the 0-255 scale; implementations
// clamp out-of-range values and retry transient failures a bounded number of
// times.
type Actuator interface {
	SetBrightness(ctx context.Context, level int) error
}

// ColorActuator is implemented by backends that can also set an RGB colour.
// The fade runner uses it for the sunrise colour sweep when available.
type ColorActuator interface {
	Actuator
	SetColor(ctx context.Context, r, g, b uint8) error
}

// Nop discards all commands; used in dry runs and tests.
type Nop struct{}

// SetBrightness implements Actuator.
func (Nop) SetBrightness(ctx context.Context, level int) error { return nil }

// SetColor implements ColorActuator.
func (Nop) SetColor(ctx context.Context, r, g, b uint8) error { return nil }
