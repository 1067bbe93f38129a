package light

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBulb accepts one connection and answers every command with an ok
// result, recording the methods seen.
func fakeBulb(t *testing.T) (addr string, methods <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	seen := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var cmd yeelightCommand
			if json.Unmarshal(scanner.Bytes(), &cmd) != nil {
				continue
			}
			seen <- cmd.Method
			fmt.Fprintf(conn, `{"id":%d,"result":["ok"]}`+yeelightLineEnding, cmd.ID)
		}
	}()

	return ln.Addr().String(), seen
}

func TestYeelightSetBrightnessRescales(t *testing.T) {
	addr, methods := fakeBulb(t)

	bulb := NewYeelight(addr, discardLogger())
	require.NoError(t, bulb.Connect(context.Background()))
	defer bulb.Close()

	require.NoError(t, bulb.SetBrightness(context.Background(), 255))
	assert.Equal(t, "set_bright", <-methods)

	// Level 0 powers the bulb off instead of sending an invalid brightness.
	require.NoError(t, bulb.SetBrightness(context.Background(), 0))
	assert.Equal(t, "set_power", <-methods)
}

func TestYeelightSetColor(t *testing.T) {
	addr, methods := fakeBulb(t)

	bulb := NewYeelight(addr, discardLogger())
	require.NoError(t, bulb.Connect(context.Background()))
	defer bulb.Close()

	require.NoError(t, bulb.SetColor(context.Background(), 255, 128, 0))
	assert.Equal(t, "set_rgb", <-methods)
}

func TestYeelightNotConnected(t *testing.T) {
	bulb := NewYeelight("127.0.0.1:1", discardLogger())
	err := bulb.SetBrightness(context.Background(), 50)
	assert.Error(t, err)
}
