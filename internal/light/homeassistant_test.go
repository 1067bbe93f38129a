package light

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHomeAssistantClampsBrightness(t *testing.T) {
	var payloads []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payloads = append(payloads, payload)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/services/light/turn_on", r.URL.Path)
	}))
	defer srv.Close()

	ha := NewHomeAssistant(HomeAssistantConfig{
		BaseURL:  srv.URL,
		Token:    "token-123",
		Entities: []string{"light.bed_light"},
	}, srv.Client(), discardLogger())

	require.NoError(t, ha.SetBrightness(context.Background(), 300))
	require.NoError(t, ha.SetBrightness(context.Background(), -5))

	require.Len(t, payloads, 2)
	assert.Equal(t, float64(255), payloads[0]["brightness"])
	assert.Equal(t, float64(0), payloads[1]["brightness"])
}

func TestHomeAssistantRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	ha := NewHomeAssistant(HomeAssistantConfig{
		BaseURL: srv.URL,
		Backoff: time.Millisecond,
	}, srv.Client(), discardLogger())

	require.NoError(t, ha.SetBrightness(context.Background(), 100))
	assert.Equal(t, 3, calls)
}

func TestHomeAssistantExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ha := NewHomeAssistant(HomeAssistantConfig{
		BaseURL: srv.URL,
		Retries: 2,
		Backoff: time.Millisecond,
	}, srv.Client(), discardLogger())

	err := ha.SetBrightness(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
