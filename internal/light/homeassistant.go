package light

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/utils"
)

// HomeAssistantConfig configures the REST light backend.
type HomeAssistantConfig struct {
	BaseURL  string
	Token    string
	Entities []string
	Retries  int
	Backoff  time.Duration
}

func (c HomeAssistantConfig) withDefaults() HomeAssistantConfig {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	return c
}

// HomeAssistant drives lights through the Home Assistant service API.
type HomeAssistant struct {
	cfg    HomeAssistantConfig
	client *http.Client
	logger *slog.Logger
}

// NewHomeAssistant constructs the backend. client may be nil for a default
// with a short timeout.
func NewHomeAssistant(cfg HomeAssistantConfig, client *http.Client, logger *slog.Logger) *HomeAssistant {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return &HomeAssistant{cfg: cfg.withDefaults(), client: client, logger: logger}
}

// SetBrightness implements Actuator with clamping and bounded retry.
func (h *HomeAssistant) SetBrightness(ctx context.Context, level int) error {
	return h.turnOn(ctx, map[string]any{
		"entity_id":  h.cfg.Entities,
		"brightness": utils.Clamp(level, 0, 255),
	})
}

// SetColor implements ColorActuator.
func (h *HomeAssistant) SetColor(ctx context.Context, r, g, b uint8) error {
	return h.turnOn(ctx, map[string]any{
		"entity_id": h.cfg.Entities,
		"rgb_color": []int{int(r), int(g), int(b)},
	})
}

func (h *HomeAssistant) turnOn(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal service payload")
	}

	var lastErr error
	for attempt := 1; attempt <= h.cfg.Retries; attempt++ {
		if err := h.post(ctx, body); err != nil {
			lastErr = err
			h.logger.Warn("light service call failed",
				slog.Int("attempt", attempt),
				slog.Int("retries", h.cfg.Retries),
				slog.Any("error", err),
			)
			if attempt < h.cfg.Retries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(h.cfg.Backoff):
				}
			}
			continue
		}
		return nil
	}
	return eris.Wrap(lastErr, "light service call exhausted retries")
}

func (h *HomeAssistant) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+"/api/services/light/turn_on", bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "call light service")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("light service returned %s", resp.Status)
	}
	return nil
}
