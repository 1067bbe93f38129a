package stream

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReceiverPushesDecodedDatagrams(t *testing.T) {
	queue := NewQueue(100)
	r := NewReceiver(ReceiverConfig{ListenAddr: "127.0.0.1:0", ReadTimeout: 50 * time.Millisecond}, queue, testLogger())

	// Bind a socket ourselves to learn the port, then run against it.
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())
	r.cfg.ListenAddr = addr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()

	// 6 int16 samples plus a dangling byte.
	payload := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00, 0x05, 0x00, 0x06, 0x00, 0xff}
	deadline := time.Now().Add(2 * time.Second)
	for queue.Len() < 6 && time.Now().Before(deadline) {
		_, err = client.Write(payload)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	drained := queue.Drain()
	require.GreaterOrEqual(t, len(drained), 6)
	assert.Equal(t, int16(1), drained[0].Value)
	assert.Equal(t, int16(6), drained[5].Value)
}
