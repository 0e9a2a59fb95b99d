package ramsestx

// deviceSignatures maps a 10E0 "description" signature (oem_code+dates+
// product_id packed as hex, per ramses_tx/fingerprints.py) to the device
// types known to report it. A device type reporting a signature absent
// from its own list is a red flag for GatewayConfidence, but never a hard
// error: RAMSES-II has no way to self-certify a device's type.
var deviceSignatures = map[string][]string{
	"0002FF0119FFFFFFFF": {"01"}, // ATC928-G3 EvoTouch Colour
	"0002FF0163FFFFFFFF": {"01"}, // ATP928-G2 Evo Color
	"0002FF0412FFFFFFFF": {"04"}, // HR92 Radiator Ctrl.
	"0002FF050BFFFFFFFF": {"04"}, // HR91 Radiator Ctrl.
	"0001C8810B0700FEFF": {"10"}, // R8820 OpenTherm Bridge
	"0002FF0A0CFFFFFFFF": {"10"}, // R8810A Bridge
	"0001C8380A0100F1FF": {"34"}, // T87RF2025 Round
	"0001C8380F0100F1FF": {"34"}, // T87RF2025 Round
	"0002FF1E01FFFFFFFF": {"30"}, // Internet Gateway
	"0002FF1E02FFFFFFFF": {"30"}, // Internet Gateway
	"0002FF1E03FFFFFFFF": {"30"}, // Internet Gateway
	"0003FF0203FFFF0001": {"02"}, // HCE80 V3.10 UFH controller
	"0001C89D6E0600FEFF": {"02"}, // HCE100-RADIO UFH controller
}

// KnownSignature reports whether devType is documented to report signature,
// and false if signature is simply absent from the dictionary (an unknown
// signature is neither confirmed nor contradicted).
func KnownSignature(signature, devType string) bool {
	types, ok := deviceSignatures[signature]
	if !ok {
		return false
	}
	for _, t := range types {
		if t == devType {
			return true
		}
	}
	return false
}

// GatewayConfidence scores how much an observed active-gateway device id
// and signature agree with the known_list's declared HGI entry and the
// recognised device-signature dictionary. The caller fills in both checks;
// neither the transport layer nor cmd/ramsesd builds or consults one.
type GatewayConfidence struct {
	DeviceID        string
	Signature       string
	MatchesKnownHGI bool
	SignatureKnown  bool
}

// Score returns a confidence in [0, 1]: 1.0 when the device id matches the
// known_list's declared HGI and (if a signature was observed) that
// signature is recognised for device type 18; 0.5 when only one of the two
// checks passes; 0.0 otherwise.
func (c GatewayConfidence) Score() float64 {
	checks, passed := 0, 0
	checks++
	if c.MatchesKnownHGI {
		passed++
	}
	if c.Signature != "" {
		checks++
		if c.SignatureKnown {
			passed++
		}
	}
	return float64(passed) / float64(checks)
}
