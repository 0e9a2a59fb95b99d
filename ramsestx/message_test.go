package ramsestx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageScalarPayload(t *testing.T) {
	p, err := ParsePacketLine("2023-01-15T12:30:00.000000 000 RQ --- 18:013393 01:145038 --:------ 30C9 001 00")
	require.NoError(t, err)

	m, err := DecodeMessage(p)
	require.NoError(t, err)
	assert.Equal(t, "18", m.SrcType)
	assert.Equal(t, "01", m.DstType)

	scalar, ok := m.Payload.Scalar()
	require.True(t, ok)
	assert.Equal(t, "00", scalar["zone_idx"])
}

func TestDecodeMessageUnknownCodeFallsBackToRawHex(t *testing.T) {
	p, err := ParsePacketLine("2023-01-15T12:30:00.000000 RQ --- 18:013393 01:145038 --:------ 0100 002 0000")
	require.NoError(t, err)

	m, err := DecodeMessage(p)
	require.NoError(t, err)
	scalar, ok := m.Payload.Scalar()
	require.True(t, ok)
	assert.Equal(t, "0000", scalar["payload"])
}

func TestMessageHeaderDelegatesToFrame(t *testing.T) {
	p, err := ParsePacketLine("2023-01-15T12:30:00.000000 RQ --- 18:013393 01:145038 --:------ 30C9 001 00")
	require.NoError(t, err)
	m, err := DecodeMessage(p)
	require.NoError(t, err)
	assert.Equal(t, p.Frame.Header(), m.Header())
}

func TestDecodeMessageComputesNextSyncFromReceiptTime(t *testing.T) {
	p, err := ParsePacketLine(
		"2023-01-15T12:30:00.000000  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F",
	)
	require.NoError(t, err)

	m, err := DecodeMessage(p)
	require.NoError(t, err)
	scalar, ok := m.Payload.Scalar()
	require.True(t, ok)
	assert.InDelta(t, 185.5, scalar["remaining_seconds"].(float64), 0.01)
	// 12:30:00 + 185.5s = 12:33:05.5, truncated to second precision.
	assert.Equal(t, "12:33:05", scalar["_next_sync"])
}

func TestPayloadScalarFalseForArray(t *testing.T) {
	p, err := ParsePacketLine(
		"2023-01-15T12:30:00.000000  I --- 01:145038 --:------ 01:145038 000A 012 001002260B86011002260B86",
	)
	require.NoError(t, err)
	m, err := DecodeMessage(p)
	require.NoError(t, err)
	_, ok := m.Payload.Scalar()
	assert.False(t, ok)
	assert.Len(t, m.Payload.Elements, 2)
}
