package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/stream"
)

// CSVLog is an append-only per-night CSV file. The header row is written the
// first time the file is created.
type CSVLog struct {
	mu     sync.Mutex
	path   string
	header []string
}

// NewCSVLog constructs a log at path with the given header.
func NewCSVLog(path string, header []string) *CSVLog {
	return &CSVLog{path: path, header: header}
}

func (l *CSVLog) append(records [][]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "open csv log %s", l.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(l.header); err != nil {
			return eris.Wrap(err, "write csv header")
		}
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "write csv record")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv log")
}

// RawLog persists processed samples, satisfying stream.SampleSink.
type RawLog struct {
	log *CSVLog
}

// NewRawLog constructs the per-night raw sample log.
func NewRawLog(path string) *RawLog {
	return &RawLog{log: NewCSVLog(path, []string{"datetime", "voltage"})}
}

// AppendSamples implements stream.SampleSink.
func (l *RawLog) AppendSamples(samples []stream.ProcessedSample) error {
	records := make([][]string, len(samples))
	for i, s := range samples {
		records[i] = []string{
			s.Time.Format(TimeLayout),
			strconv.FormatFloat(s.Voltage, 'f', 6, 64),
		}
	}
	return l.log.append(records)
}

// ClassificationLog persists classification records, satisfying
// classify.RecordSink.
type ClassificationLog struct {
	log *CSVLog
}

// NewClassificationLog constructs the per-night classification log.
func NewClassificationLog(path string) *ClassificationLog {
	return &ClassificationLog{log: NewCSVLog(path, []string{"timestamp", "classification"})}
}

// AppendClassification implements classify.RecordSink.
func (l *ClassificationLog) AppendClassification(anchor time.Time, label classify.Label) error {
	return l.log.append([][]string{{anchor.Format(TimeLayout), string(label)}})
}
