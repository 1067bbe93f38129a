package stream

import "encoding/binary"

// Decode interprets a raw datagram payload as a sequence of little-endian
// signed 16-bit samples. A dangling odd byte at the end of the payload is
// discarded. An empty or odd-only payload decodes to an empty sequence; it is
// never an error.
func Decode(payload []byte) []int16 {
	count := len(payload) / 2
	if count == 0 {
		return nil
	}

	values := make([]int16, count)
	for i := range values {
		values[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return values
}
