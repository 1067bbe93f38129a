package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/stream"
)

func TestRawLogWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	log := NewRawLog(path)

	now := time.Now()
	require.NoError(t, log.AppendSamples([]stream.ProcessedSample{{Time: now, Voltage: 1.5}}))
	require.NoError(t, log.AppendSamples([]stream.ProcessedSample{{Time: now, Voltage: 2.5}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "datetime,voltage", lines[0])
	assert.Contains(t, lines[1], "1.500000")
	assert.Contains(t, lines[2], "2.500000")
}

func TestClassificationLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classification.csv")
	log := NewClassificationLog(path)

	anchor := time.Date(2025, 11, 28, 23, 15, 0, 0, time.Local)
	require.NoError(t, log.AppendClassification(anchor, classify.LabelCoreSleep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timestamp,classification")
	assert.Contains(t, string(data), "2025-11-28 23:15:00.000")
	assert.Contains(t, string(data), `"inBed, Asleep, Core Sleep"`)
}
