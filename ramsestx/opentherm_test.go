package ramsestx

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// otEncode builds a valid 8-hex-char OpenTherm frame: MM (parity+spare+msgtype)
// DD (data-id) AA BB (data bytes).
func otEncode(t *testing.T, msgType int, dataID int, data uint16) string {
	t.Helper()
	mm := byte(msgType) << 4
	raw := (uint32(mm) << 24) | (uint32(dataID) << 16) | uint32(data)
	if otParity(raw&0x7FFFFFFF) == 1 {
		raw |= 1 << 31
	}
	return hexFromU32(raw)
}

func hexFromU32(v uint32) string {
	const hexDigits = "0123456789ABCDEF"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(b)
}

func TestDecodeOpenThermParity(t *testing.T) {
	frame := otEncode(t, 0b100, 0x01, 0x0FA0) // Read-Ack, ch_setpoint
	ot, err := decodeOpenTherm(frame)
	require.NoError(t, err)
	assert.Equal(t, OtReadAck, ot.MsgType)
	assert.Equal(t, "ch_setpoint", ot.Name)
}

func TestDecodeOpenThermBadParity(t *testing.T) {
	frame := otEncode(t, 0b100, 0x01, 0x0FA0)
	// Flip the parity bit (bit 31) to make it wrong.
	raw, _ := strconv.ParseUint(frame, 16, 32)
	flipped := hexFromU32(uint32(raw) ^ (1 << 31))
	_, err := decodeOpenTherm(flipped)
	assert.Error(t, err)
}

func TestDecodeOpenThermTemperature(t *testing.T) {
	frame := otEncode(t, 0b100, 0x01, 2000) // 2000/100 = 20.00C
	ot, err := decodeOpenTherm(frame)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, ot.Value.(float64), 0.01)
}

func TestDecodeOpenThermUnknownDataID(t *testing.T) {
	frame := otEncode(t, 0b111, 0x50, 0)
	ot, err := decodeOpenTherm(frame)
	require.NoError(t, err)
	assert.Equal(t, OtUnknownDataID, ot.MsgType)
}

func TestDecodeOpenThermRejectsUnknownIDUnlessFlagged(t *testing.T) {
	frame := otEncode(t, 0b100, 0x50, 0) // Read-Ack on an unrecognised id
	_, err := decodeOpenTherm(frame)
	assert.Error(t, err)
}
