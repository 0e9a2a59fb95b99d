package ramsestx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameRoundTrip(t *testing.T) {
	lines := []string{
		"RQ --- 18:013393 01:145038 --:------ 000A 002 0000",
		"RP --- 01:145038 18:013393 --:------ 000A 006 031002260B86",
		" I --- 01:145038 --:------ 01:145038 2349 007 0108FC04FFFFFF",
		" I --- 04:136513 --:------ 01:158182 3150 002 01CA",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			f, err := ParseFrame(line)
			require.NoError(t, err)
			assert.Equal(t, line, f.Render())
		})
	}
}

func TestParseFrameBadLength(t *testing.T) {
	_, err := ParseFrame("RQ --- 18:013393 01:145038 --:------ 000A 003 0000")
	assert.Error(t, err)
}

func TestParseFrameBadStructure(t *testing.T) {
	_, err := ParseFrame("not a frame")
	assert.Error(t, err)
}

func TestFrameEqualIgnoresNothingBeyondRender(t *testing.T) {
	a, err := ParseFrame("RQ --- 18:013393 01:145038 --:------ 000A 002 0000")
	require.NoError(t, err)
	b, err := ParseFrame("RQ --- 18:013393 01:145038 --:------ 000A 002 0000")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestFrameHasArray(t *testing.T) {
	single, err := ParseFrame(" I --- 01:145038 --:------ 01:145038 000A 006 001002260B86")
	require.NoError(t, err)
	assert.False(t, single.HasArray())

	array, err := ParseFrame(" I --- 01:145038 --:------ 01:145038 000A 012 001002260B86011002260B86")
	require.NoError(t, err)
	assert.True(t, array.HasArray())
}

func TestFrameHeader1FC9(t *testing.T) {
	f, err := ParseFrame(" I --- 32:123456 --:------ 32:123456 1FC9 006 0031DA797BC3")
	require.NoError(t, err)
	assert.Equal(t, "1FC9| I|63:262142", f.Header())
}

func TestFrameContextDomainID(t *testing.T) {
	f, err := ParseFrame(" I --- 01:145038 --:------ 01:145038 3150 002 FCCA")
	require.NoError(t, err)
	assert.Equal(t, "FC", f.Context())
}
