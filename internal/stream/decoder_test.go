package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeLittleEndian(t *testing.T) {
	payload := []byte{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80}
	values := Decode(payload)
	assert.Equal(t, []int16{1, 32767, -32768}, values)
}

func TestDecodeDiscardsDanglingByte(t *testing.T) {
	payload := []byte{0x02, 0x00, 0x03, 0x00, 0xaa}
	values := Decode(payload)
	assert.Equal(t, []int16{2, 3}, values)
}

func TestDecodeEmptyAndOddOnly(t *testing.T) {
	assert.Empty(t, Decode(nil))
	assert.Empty(t, Decode([]byte{}))
	assert.Empty(t, Decode([]byte{0x42}))
}
