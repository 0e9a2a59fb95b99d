package ramsestx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexToBool(t *testing.T) {
	v, err := hexToBool("FF")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = hexToBool("C8")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	v, err = hexToBool("00")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)

	_, err = hexToBool("7F")
	assert.Error(t, err)
}

func TestHexTempRoundTrip(t *testing.T) {
	for _, temp := range []float64{19.5, -5.0, 0.0, 30.75} {
		hex := hexFromTemp(&temp)
		got, err := hexToTemp(hex)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.InDelta(t, temp, *got, 0.01)
	}
}

func TestHexToTempSentinels(t *testing.T) {
	for _, sentinel := range []string{"31FF", "7FFF"} {
		v, err := hexToTemp(sentinel)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
}

func TestHexToPercent(t *testing.T) {
	v, err := hexToPercent("C8", true)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 1.0, *v, 0.001)

	v, err = hexToPercent("EF", true)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = hexToPercent("64", false)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 1.0, *v, 0.001)
}

func TestHexToFlag8RoundTrip(t *testing.T) {
	flags, err := hexToFlag8("81", false)
	require.NoError(t, err)
	assert.Equal(t, hexFromFlag8(flags, false), "81")
}

func TestHexToStrStripsPadding(t *testing.T) {
	s, err := hexToStr("48656C6C6F7F7F7F")
	require.NoError(t, err)
	assert.Equal(t, "Hello", s)
}

func TestHexToDateSentinel(t *testing.T) {
	v, err := hexToDate("FFFFFFFF")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestHexToDtmSentinel(t *testing.T) {
	v, err := hexToDtm("FFFFFFFFFFFF")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestHexToDtsSentinel(t *testing.T) {
	v, err := hexToDts("00000000007F")
	require.NoError(t, err)
	assert.Nil(t, v)
}
