package classify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/sleepwake/internal/stream"
)

type passthroughExtractor struct{}

func (passthroughExtractor) Extract(times []time.Time, voltages []float64, anchor time.Time, windowSeconds int) (FeatureRow, bool, error) {
	return FeatureRow{Timestamp: anchor, Values: map[string]float64{"n": float64(len(voltages))}}, true, nil
}

type recordingSink struct {
	anchors []time.Time
	labels  []Label
	err     error
}

func (s *recordingSink) AppendClassification(anchor time.Time, label Label) error {
	if s.err != nil {
		return s.err
	}
	s.anchors = append(s.anchors, anchor)
	s.labels = append(s.labels, label)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullWindow(capacity int) *stream.RollingWindow {
	w := stream.NewRollingWindow(1, capacity)
	batch := make([]stream.ProcessedSample, capacity)
	start := time.Now()
	for i := range batch {
		batch[i] = stream.ProcessedSample{Time: start.Add(time.Duration(i) * 10 * time.Millisecond), Voltage: float64(i)}
	}
	w.AddBatch(batch)
	return w
}

func TestWorkerTickSkipsPartialWindow(t *testing.T) {
	window := stream.NewRollingWindow(1, 10)
	results := stream.NewHistory[Record](30)
	w := NewWorker(WorkerConfig{}, window, passthroughExtractor{}, &fixedClassifier{label: LabelAwake}, results, nil, discardLogger())

	require.NoError(t, w.tick())
	assert.Zero(t, results.Len())
}

func TestWorkerTickClassifiesFullWindow(t *testing.T) {
	window := fullWindow(10)
	results := stream.NewHistory[Record](30)
	sink := &recordingSink{}
	classifier := &fixedClassifier{label: LabelCoreSleep}
	w := NewWorker(WorkerConfig{}, window, passthroughExtractor{}, classifier, results, sink, discardLogger())

	require.NoError(t, w.tick())

	records := results.Items()
	require.Len(t, records, 1)
	assert.Equal(t, LabelCoreSleep, records[0].Label)
	require.Len(t, sink.labels, 1)
	assert.Equal(t, LabelCoreSleep, sink.labels[0])

	snap, ok := window.Snapshot()
	require.True(t, ok)
	assert.Equal(t, snap[0].Time, sink.anchors[0])
}

func TestWorkerConcatenatesFeatureHistory(t *testing.T) {
	window := fullWindow(10)
	results := stream.NewHistory[Record](30)

	var seen []int
	classifier := classifierFunc(func(rows []FeatureRow) (Label, error) {
		seen = append(seen, len(rows))
		return LabelAwake, nil
	})

	w := NewWorker(WorkerConfig{HistoryDepth: 3}, window, passthroughExtractor{}, classifier, results, nil, discardLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, w.tick())
	}

	// Row counts grow with history until the look-back depth caps them.
	assert.Equal(t, []int{1, 2, 3, 4, 4}, seen)
}

type classifierFunc func(rows []FeatureRow) (Label, error)

func (f classifierFunc) Classify(rows []FeatureRow) (Label, error) { return f(rows) }

func TestWorkerTickWrapsClassifierError(t *testing.T) {
	window := fullWindow(10)
	results := stream.NewHistory[Record](30)
	w := NewWorker(WorkerConfig{}, window, passthroughExtractor{}, &fixedClassifier{err: eris.New("boom")}, results, nil, discardLogger())

	err := w.tick()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify feature rows")
	assert.Zero(t, results.Len())
}
