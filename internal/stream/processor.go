package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"
)

// SampleSink receives processed samples for append-only persistence. Writes
// happen outside any buffer lock.
type SampleSink interface {
	AppendSamples(samples []ProcessedSample) error
}

// ProcessorConfig tunes batch conversion from raw counts to voltages.
type ProcessorConfig struct {
	// BatchThreshold is the number of accumulated raw samples that triggers a
	// conversion pass.
	BatchThreshold int
	IdleSleep      time.Duration
	// ADCScale and VRef calibrate raw counts into volts.
	ADCScale float64
	VRef     float64
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.BatchThreshold <= 0 {
		c.BatchThreshold = 600
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = 10 * time.Millisecond
	}
	if c.ADCScale <= 0 {
		c.ADCScale = 4095
	}
	if c.VRef <= 0 {
		c.VRef = 3.3
	}
	return c
}

// Processor drains the ingestion queue, converts raw samples into timestamped
// voltages, and feeds the rolling window. A per-batch failure is logged and
// the loop continues.
type Processor struct {
	cfg    ProcessorConfig
	queue  *Queue
	window *RollingWindow
	sink   SampleSink // optional raw log
	logger *slog.Logger
}

// NewProcessor constructs a Processor. sink may be nil to disable raw logging.
func NewProcessor(cfg ProcessorConfig, queue *Queue, window *RollingWindow, sink SampleSink, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:    cfg.withDefaults(),
		queue:  queue,
		window: window,
		sink:   sink,
		logger: logger,
	}
}

// Run blocks until the context is done, busy-polling the queue with a small
// idle sleep.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("batch processor started")

	accumulator := make([]RawSample, 0, p.cfg.BatchThreshold*2)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := p.queue.Drain()
		accumulator = append(accumulator, batch...)

		if len(accumulator) >= p.cfg.BatchThreshold {
			if err := p.process(accumulator); err != nil {
				p.logger.Error("failed to process batch", slog.Any("error", err))
			}
			accumulator = accumulator[:0]
			continue
		}

		if len(batch) == 0 {
			sleepContext(ctx, p.cfg.IdleSleep)
		}
	}
}

func (p *Processor) process(raw []RawSample) error {
	processed := p.convert(raw)
	p.window.AddBatch(processed)

	if p.sink != nil {
		if err := p.sink.AppendSamples(processed); err != nil {
			return eris.Wrap(err, "append samples to raw log")
		}
	}
	return nil
}

func (p *Processor) convert(raw []RawSample) []ProcessedSample {
	processed := make([]ProcessedSample, len(raw))
	for i, s := range raw {
		processed[i] = ProcessedSample{
			Time:    s.ArrivalTime,
			Voltage: float64(s.Value) / p.cfg.ADCScale * p.cfg.VRef,
		}
	}
	return processed
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
