package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/stream"
)

// RecordSink receives each classification for append-only persistence.
type RecordSink interface {
	AppendClassification(anchor time.Time, label Label) error
}

// WorkerConfig tunes the classification cadence.
type WorkerConfig struct {
	Interval      time.Duration
	WindowSeconds int
	// HistoryDepth is how many prior feature rows are concatenated before the
	// newest row to support look-back features.
	HistoryDepth int
	// ResultCapacity bounds the classification history drained by the state
	// machine.
	ResultCapacity int
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 30
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = 12
	}
	if c.ResultCapacity <= 0 {
		c.ResultCapacity = 30
	}
	return c
}

// Worker runs classification on a fixed cadence, independent of sample
// arrival rate. Each tick snapshots the rolling window, extracts features,
// invokes the classifier, and appends to the classification history. Per-tick
// failures are logged and the worker continues.
type Worker struct {
	cfg        WorkerConfig
	window     *stream.RollingWindow
	extractor  FeatureExtractor
	classifier Classifier
	history    *stream.History[FeatureRow]
	results    *stream.History[Record]
	sink       RecordSink // optional per-night CSV
	logger     *slog.Logger
}

// NewWorker constructs a cadence worker. results is the shared classification
// history consumed by the state machine; sink may be nil.
func NewWorker(cfg WorkerConfig, window *stream.RollingWindow, extractor FeatureExtractor, classifier Classifier, results *stream.History[Record], sink RecordSink, logger *slog.Logger) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		cfg:        cfg,
		window:     window,
		extractor:  extractor,
		classifier: classifier,
		history:    stream.NewHistory[FeatureRow](cfg.HistoryDepth),
		results:    results,
		sink:       sink,
		logger:     logger,
	}
}

// Run blocks until the context is done, ticking on the configured interval.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("classification worker started", slog.Duration("interval", w.cfg.Interval))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.tick(); err != nil {
				w.logger.Error("classification tick failed", slog.Any("error", err))
			}
		}
	}
}

// tick performs one classification pass. A not-yet-full window is a skipped
// tick, not an error.
func (w *Worker) tick() error {
	snapshot, ok := w.window.Snapshot()
	if !ok {
		return nil
	}

	times := make([]time.Time, len(snapshot))
	voltages := make([]float64, len(snapshot))
	for i, s := range snapshot {
		times[i] = s.Time
		voltages[i] = s.Voltage
	}
	anchor := snapshot[0].Time

	row, ok, err := w.extractor.Extract(times, voltages, anchor, w.cfg.WindowSeconds)
	if err != nil {
		return eris.Wrap(err, "extract features")
	}
	if !ok {
		return nil
	}

	rows := append(w.history.Items(), row)
	w.history.Add(row)

	label, err := w.classifier.Classify(rows)
	if err != nil {
		return eris.Wrap(err, "classify feature rows")
	}

	w.results.Add(Record{Time: time.Now(), Label: label})

	if w.sink != nil {
		if err := w.sink.AppendClassification(anchor, label); err != nil {
			return eris.Wrap(err, "append classification to log")
		}
	}
	return nil
}
