package stream

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/rotisserie/eris"
)

// ReceiverConfig tunes the UDP ingestion loop.
type ReceiverConfig struct {
	ListenAddr      string
	DatagramSize    int
	ReadBufferBytes int
	ReadTimeout     time.Duration
}

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = ":5005"
	}
	if c.DatagramSize <= 0 {
		c.DatagramSize = 4096
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = 2 * 1024 * 1024
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	return c
}

// Receiver listens for sensor datagrams and feeds decoded samples into the
// ingestion queue. Read timeouts act as a "no data" heartbeat, not an error.
type Receiver struct {
	cfg    ReceiverConfig
	queue  *Queue
	logger *slog.Logger
}

// NewReceiver constructs a Receiver writing into queue.
func NewReceiver(cfg ReceiverConfig, queue *Queue, logger *slog.Logger) *Receiver {
	return &Receiver{
		cfg:    cfg.withDefaults(),
		queue:  queue,
		logger: logger,
	}
}

// Run blocks until the context is done, pushing every decoded datagram into
// the queue with its arrival timestamp.
func (r *Receiver) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", r.cfg.ListenAddr)
	if err != nil {
		return eris.Wrap(err, "resolve listen address")
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return eris.Wrap(err, "listen for sensor datagrams")
	}
	defer conn.Close()

	if err := conn.SetReadBuffer(r.cfg.ReadBufferBytes); err != nil {
		r.logger.Warn("failed to grow socket receive buffer", slog.Any("error", err))
	}

	r.logger.Info("listening for sensor data", slog.String("addr", r.cfg.ListenAddr))

	buf := make([]byte, r.cfg.DatagramSize)
	firstPacket := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout)); err != nil {
			return eris.Wrap(err, "set read deadline")
		}

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				if !firstPacket {
					r.logger.Debug("no data from sensor")
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return eris.Wrap(err, "read datagram")
		}

		if firstPacket {
			r.logger.Info("sensor connected", slog.String("peer", peer.String()))
			firstPacket = false
		}

		values := Decode(buf[:n])
		if len(values) == 0 {
			continue
		}

		now := time.Now()
		samples := make([]RawSample, len(values))
		for i, v := range values {
			samples[i] = RawSample{ArrivalTime: now, Value: v}
		}
		r.queue.Push(samples...)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return eris.As(err, &netErr) && netErr.Timeout()
}
