package light

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/sleepwake/internal/utils"
)

const (
	yeelightLineEnding      = "\r\n"
	yeelightDefaultPort     = "55443"
	yeelightResponseTimeout = 3 * time.Second
)

type yeelightCommand struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type yeelightError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type yeelightResult struct {
	ID     int            `json:"id"`
	Result []string       `json:"result"`
	Error  *yeelightError `json:"error"`
}

// Yeelight drives a bulb directly over its TCP JSON command protocol. It is
// the backend of choice when no Home Assistant instance fronts the bedroom
// lights.
type Yeelight struct {
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	lastID  int
	results chan yeelightResult
}

// NewYeelight constructs the backend for addr (ip[:port], default port
// 55443).
func NewYeelight(addr string, logger *slog.Logger) *Yeelight {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, yeelightDefaultPort)
	}
	return &Yeelight{
		addr:    addr,
		logger:  logger,
		results: make(chan yeelightResult, 4),
	}
}

// Connect dials the bulb and starts the response reader.
func (y *Yeelight) Connect(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", y.addr)
	if err != nil {
		return eris.Wrapf(err, "connect to bulb %s", y.addr)
	}

	y.mu.Lock()
	y.conn = conn
	y.mu.Unlock()

	go y.readResults(conn)
	return nil
}

// Close tears down the bulb connection.
func (y *Yeelight) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.conn == nil {
		return nil
	}
	err := y.conn.Close()
	y.conn = nil
	return err
}

// SetPower switches the bulb on or off with a smooth transition.
func (y *Yeelight) SetPower(ctx context.Context, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	return y.execute(ctx, "set_power", state, "smooth", 250)
}

// SetBrightness implements Actuator. The 0-255 scale is rescaled to the
// bulb's 1-100 range; level 0 turns the bulb off.
func (y *Yeelight) SetBrightness(ctx context.Context, level int) error {
	level = utils.Clamp(level, 0, 255)
	if level == 0 {
		return y.SetPower(ctx, false)
	}
	bright := utils.Clamp(level*100/255, 1, 100)
	return y.execute(ctx, "set_bright", bright, "smooth", 200)
}

// SetColor implements ColorActuator.
func (y *Yeelight) SetColor(ctx context.Context, r, g, b uint8) error {
	return y.execute(ctx, "set_rgb", utils.RGBToInt(r, g, b), "smooth", 200)
}

func (y *Yeelight) execute(ctx context.Context, method string, params ...any) error {
	y.mu.Lock()
	conn := y.conn
	if conn == nil {
		y.mu.Unlock()
		return eris.New("bulb is not connected")
	}
	y.lastID++
	cmd := yeelightCommand{ID: y.lastID, Method: method, Params: params}
	y.mu.Unlock()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return eris.Wrap(err, "marshal bulb command")
	}

	y.logger.Debug("executing bulb command",
		slog.String("addr", y.addr),
		slog.Int("id", cmd.ID),
		slog.String("method", method),
	)

	if _, err := conn.Write(append(payload, yeelightLineEnding...)); err != nil {
		return eris.Wrap(err, "write command to bulb")
	}

	return y.awaitResult(ctx, cmd)
}

func (y *Yeelight) awaitResult(ctx context.Context, cmd yeelightCommand) error {
	timer := time.NewTimer(yeelightResponseTimeout)
	defer timer.Stop()

	for {
		select {
		case result := <-y.results:
			if result.ID != cmd.ID {
				continue
			}
			if result.Error != nil {
				return eris.Errorf("command %s failed: %s (%d)", cmd.Method, result.Error.Message, result.Error.Code)
			}
			return nil
		case <-timer.C:
			return eris.Errorf("command %s timed out", cmd.Method)
		case <-ctx.Done():
			return eris.Wrapf(ctx.Err(), "command %s interrupted", cmd.Method)
		}
	}
}

func (y *Yeelight) readResults(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		var result yeelightResult
		if err := json.Unmarshal(line, &result); err != nil {
			y.logger.Debug("ignoring unparsable bulb message", slog.String("line", string(line)))
			continue
		}
		if result.ID == 0 {
			// Property notification, not a command result.
			continue
		}
		select {
		case y.results <- result:
		default:
			// Reader never blocks on a slow command path.
		}
	}
}
