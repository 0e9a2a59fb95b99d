package ramsestx

import "time"

// PayloadValue is one decoded field of a Message's payload. Kept as `any`
// (string/float64/bool/int/[]any/map[string]any) since the per-code schemas
// documented in spec.md §4.4 don't share a common Go type.
type PayloadValue = any

// Payload is a parsed frame body: either a single element (the common case)
// or, for array-form frames (Frame.HasArray), one element per entity index.
// Mirrors the ramses_tx typed_dicts.py distinction between a PayloadDictT
// and a list of them.
type Payload struct {
	Elements []map[string]PayloadValue
}

// Scalar reports whether this payload has exactly one element, and returns
// it if so.
func (p *Payload) Scalar() (map[string]PayloadValue, bool) {
	if p == nil || len(p.Elements) != 1 {
		return nil, false
	}
	return p.Elements[0], true
}

// Message is a Packet with its payload decoded against the code's parser.
type Message struct {
	DTM     time.Time
	Frame   *Frame
	Payload *Payload

	// SrcType/DstType mirror Frame.Src.Type()/Dst.Type() for convenient
	// logging; the authoritative values remain on Frame.
	SrcType string
	DstType string
}

// DecodeMessage parses a Packet's payload using the registered parser for
// its code, producing a Message. Unknown codes produce a Message whose
// Payload has a single element holding the raw hex under the "payload" key,
// matching the "unknown code" fallback behavior of ramses_tx/parsers.py.
func DecodeMessage(p *Packet) (*Message, error) {
	payload, err := ParsePayload(p.Frame)
	if err != nil {
		return nil, err
	}
	if p.Frame.Code == "1F09" {
		for _, elem := range payload.Elements {
			if seconds, ok := elem["remaining_seconds"].(float64); ok {
				due := p.DTM.Add(time.Duration(seconds * float64(time.Second)))
				elem["_next_sync"] = due.Format("15:04:05")
			}
		}
	}
	return &Message{
		DTM:     p.DTM,
		Frame:   p.Frame,
		Payload: payload,
		SrcType: p.Frame.Src.Type(),
		DstType: p.Frame.Dst.Type(),
	}, nil
}

// Header returns the message's QoS fingerprint, delegating to its Frame.
func (m *Message) Header() string { return m.Frame.Header() }
