package ramsestx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	cases := []string{"01:145038", "18:000730", "34:092243", NonDeviceID, AllDeviceID}
	for _, id := range cases {
		t.Run(id, func(t *testing.T) {
			addr, err := NewAddress(id)
			require.NoError(t, err)
			assert.Equal(t, id, addr.ID())

			hex := addr.HexID()
			roundTripped, err := hexToID(hex)
			require.NoError(t, err)
			assert.Equal(t, id, roundTripped)
		})
	}
}

func TestNewAddressInvalid(t *testing.T) {
	for _, id := range []string{"01:14503", "GG:145038", "01145038", ""} {
		_, err := NewAddress(id)
		assert.Error(t, err)
	}
}

func TestAddressStringFriendly(t *testing.T) {
	addr, err := NewAddress("01:145038")
	require.NoError(t, err)
	assert.Equal(t, "CTL:145038", addr.String())

	unknownType, err := NewAddress("99:000001")
	require.NoError(t, err)
	assert.Equal(t, "99:000001", unknownType.String())
}

func TestParseAddressCaches(t *testing.T) {
	a, err := ParseAddress("04:111111")
	require.NoError(t, err)
	b, err := ParseAddress("04:111111")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPktAddrsPatterns(t *testing.T) {
	tests := []struct {
		name    string
		addrs   string
		wantErr bool
	}{
		{"point_to_point", "01:145038 --:------ 18:013393", false},
		{"legacy_point_to_point", "01:145038 18:013393 --:------", false},
		{"broadcast", "--:------ --:------ 01:145038", false},
		{"all_non", "--:------ --:------ --:------", true},
		{"malformed_field_count", "01:145038 --:------", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set, err := pktAddrs(tc.addrs)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, set.Src)
			assert.NotNil(t, set.Dst)
		})
	}
}

func TestPktAddrsAliasesSrcEqualsDst(t *testing.T) {
	set, err := pktAddrs("01:145038 --:------ 01:145038")
	require.NoError(t, err)
	assert.True(t, set.Src.Equal(set.Dst))
}

func TestIdToHexAndBack(t *testing.T) {
	hex := idToHex("01:145038")
	id, err := hexToID(hex)
	require.NoError(t, err)
	assert.Equal(t, "01:145038", id)
}

func TestHexToIDSentinels(t *testing.T) {
	id, err := hexToID("FFFFFE")
	require.NoError(t, err)
	assert.Equal(t, AllDeviceID, id)

	id, err = hexToID("      ")
	require.NoError(t, err)
	assert.Equal(t, NonDeviceID, id)
}
