package ramsestx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacketLineRoundTrip(t *testing.T) {
	line := "2023-01-15T12:30:00.123456 000 RQ --- 18:013393 01:145038 --:------ 30C9 003 000000"
	p, err := ParsePacketLine(line)
	require.NoError(t, err)
	assert.Equal(t, line, p.Render())
}

func TestParsePacketLineNoRSSI(t *testing.T) {
	line := "2023-01-15T12:30:00.123456  I --- 01:145038 --:------ 01:145038 2349 007 0108FC04FFFFFF"
	p, err := ParsePacketLine(line)
	require.NoError(t, err)
	assert.Equal(t, "", p.RSSI)
	assert.Equal(t, line, p.Render())
}

func TestParsePacketLineBadDtm(t *testing.T) {
	_, err := ParsePacketLine("not-a-timestamp RQ --- 18:013393 01:145038 --:------ 30C9 003 000000")
	assert.Error(t, err)
}

func TestPacketLifespan(t *testing.T) {
	mk := func(line string) *Packet {
		p, err := ParsePacketLine("2023-01-15T12:30:00.000000 " + line)
		require.NoError(t, err)
		return p
	}

	assert.Equal(t, time.Duration(0), mk("RQ --- 18:013393 01:145038 --:------ 30C9 003 000000").Lifespan())
	assert.Equal(t, 24*time.Hour, mk(" I --- 01:145038 --:------ 01:145038 10E0 001 00").Lifespan())
	assert.Equal(t, defaultLifespan, mk(" I --- 04:136513 --:------ 01:158182 3150 002 01CA").Lifespan())
}

func TestPacketExpired(t *testing.T) {
	p, err := ParsePacketLine("2000-01-01T00:00:00.000000 RQ --- 18:013393 01:145038 --:------ 30C9 003 000000")
	require.NoError(t, err)
	assert.True(t, p.Expired(time.Now()))
}
