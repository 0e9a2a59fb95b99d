package ramsestx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownSignatureMatch(t *testing.T) {
	assert.True(t, KnownSignature("0002FF0119FFFFFFFF", "01"))
	assert.True(t, KnownSignature("0001C8810B0700FEFF", "10"))
}

func TestKnownSignatureMismatch(t *testing.T) {
	assert.False(t, KnownSignature("0002FF0119FFFFFFFF", "04"))
}

func TestKnownSignatureUnrecognisedEntry(t *testing.T) {
	assert.False(t, KnownSignature("not-a-real-signature", "01"))
}

func TestGatewayConfidenceScoring(t *testing.T) {
	full := GatewayConfidence{MatchesKnownHGI: true, Signature: "0002FF1E01FFFFFFFF", SignatureKnown: true}
	assert.Equal(t, 1.0, full.Score())

	half := GatewayConfidence{MatchesKnownHGI: true, Signature: "unknown-sig", SignatureKnown: false}
	assert.Equal(t, 0.5, half.Score())

	noSignatureObserved := GatewayConfidence{MatchesKnownHGI: true}
	assert.Equal(t, 1.0, noSignatureObserved.Score())

	none := GatewayConfidence{}
	assert.Equal(t, 0.0, none.Score())
}
