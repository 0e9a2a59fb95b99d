package ramsestx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Verb is one of the four RAMSES-II verbs. Note the leading space on I_ and
// W_: it is significant in the wire format.
type Verb string

const (
	VerbI  Verb = " I"
	VerbRQ Verb = "RQ"
	VerbRP Verb = "RP"
	VerbW  Verb = " W"
)

// frameFieldsRegex matches a frame's verb/seqn/addr/code/len/payload fields.
// It has no RSSI field: ParsePacketLine strips the optional leading RSSI
// before calling ParseFrame, so this single pattern serves both Frame and
// Packet parsing.
var frameFieldsRegex = regexp.MustCompile(
	`^( I|RQ|RP| W) (-{3}|\d{3}) (-{2}:-{6}|\d{2}:\d{6}) (-{2}:-{6}|\d{2}:\d{6}) (-{2}:-{6}|\d{2}:\d{6}) ([0-9A-Fa-f]{4}) (\d{3}) (([0-9A-Fa-f]{2}){1,48})$`,
)

// Frame is the smallest syntactically valid RAMSES-II unit: one ASCII line,
// decoded and validated per spec.md §3/§4.2.
type Frame struct {
	raw string

	Verb    Verb
	Seqn    string
	Code    string
	Len     int
	Payload string

	Src, Dst         *Address
	Addr0, Addr1, Addr2 *Address

	hdr       *string
	ctx       ctxValue
	ctxCached bool
	hasArray  *bool
}

// ctxValue represents the tri-state _ctx/_idx result: a 2-char index
// string, "is an array" (true), or "no context" (false).
type ctxValue struct {
	str     string
	isArray bool
	isNone  bool
}

// ParseFrame decodes line (without its RSSI prefix) into a Frame, validating
// structure, payload length, and the address-set invariant.
func ParseFrame(line string) (*Frame, error) {
	m := frameFieldsRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, newPacketInvalid("bad frame: invalid structure: >>>%s<<<", line)
	}

	length, err := strconv.Atoi(m[7])
	if err != nil || length > 48 {
		return nil, newPacketInvalid("bad frame: invalid length: >>>%s<<<", line)
	}

	f := &Frame{
		raw:     line,
		Verb:    Verb(m[1]),
		Seqn:    m[2],
		Code:    strings.ToUpper(m[6]),
		Len:     length,
		Payload: strings.ToUpper(m[8]),
	}

	if len(f.Payload) != f.Len*2 {
		return nil, newPacketInvalid(
			"bad frame: invalid payload: len(%s) is not int(%d)*2", f.Payload, f.Len,
		)
	}

	addrs, err := pktAddrs(strings.Join([]string{m[3], m[4], m[5]}, " "))
	if err != nil {
		return nil, newPacketInvalid("bad frame: invalid address set: %v", err)
	}
	f.Src, f.Dst = addrs.Src, addrs.Dst
	f.Addr0, f.Addr1, f.Addr2 = addrs.Addr0, addrs.Addr1, addrs.Addr2

	return f, nil
}

// Render reproduces the wire-format line for this frame. It is the inverse
// of ParseFrame: ParseFrame(f.Render()).Render() == f.Render().
func (f *Frame) Render() string {
	return fmt.Sprintf("%s %s %s %s %s %s %03d %s",
		f.Verb, f.Seqn, f.Addr0.ID(), f.Addr1.ID(), f.Addr2.ID(), f.Code, f.Len, f.Payload)
}

// Equal compares frames ignoring the RSSI field (which only Packet, not
// Frame, carries): frame[4:] == frame[4:].
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Render() == other.Render()
}

// codeArrayElementLen gives the per-element byte length for opcodes that can
// carry an array payload on an I verb, per the ramses schema (§4.2).
var codeArrayElementLen = map[string]int{
	"000A": 6, "2309": 3, "30C9": 3, "0009": 3, "1060": 3, "1100": 5,
	"3150": 2, "22C9": 6, "2249": 7,
}

// codesControllerClass are device types allowed to originate an array frame.
var codesControllerClass = map[string]bool{"01": true, "23": true, "12": true, "22": true, "34": true}

// HasArray reports whether this frame's payload is an array (one element
// per `len`/elementLen repeats), memoised on first call.
func (f *Frame) HasArray() bool {
	if f.hasArray != nil {
		return *f.hasArray
	}
	result := f.computeHasArray()
	f.hasArray = &result
	return result
}

func (f *Frame) computeHasArray() bool {
	if f.Code == "1FC9" {
		return f.Verb != VerbRQ
	}
	if f.Verb != VerbI {
		return false
	}
	elemLen, ok := codeArrayElementLen[f.Code]
	if !ok {
		return false
	}
	if f.Len == elemLen {
		return false // a single element is indistinguishable from a scalar frame
	}
	return elemLen > 0 && f.Len%elemLen == 0 &&
		(f.Src == f.Dst || codesControllerClass[f.Src.Type()] || f.Src.Equal(f.Dst))
}

// Context returns the frame's _ctx value: a 2-char index string if present,
// or "" if the payload has no per-entity context.
func (f *Frame) Context() string {
	ctx := f.context()
	if ctx.isArray || ctx.isNone {
		return ""
	}
	return ctx.str
}

func (f *Frame) context() ctxValue {
	if f.ctxCached {
		return f.ctx
	}
	f.ctxCached = true

	switch f.Code {
	case "0005", "000C":
		if len(f.Payload) >= 4 {
			f.ctx = ctxValue{str: f.Payload[:4]}
		}
	case "0404":
		idx := f.idx()
		if !idx.isNone && !idx.isArray && len(f.Payload) >= 12 {
			f.ctx = ctxValue{str: idx.str + f.Payload[10:12]}
		} else {
			f.ctx = idx
		}
	default:
		f.ctx = f.idx()
	}
	return f.ctx
}

// domainIDs are the well-known FCxx-range domain identifiers that may appear
// in place of a zone_idx in the payload's first byte.
var domainIDs = map[string]bool{"F8": true, "F9": true, "FA": true, "FC": true}

// idx returns the frame's _idx value per the rules condensed from
// ramses_tx/frame.py's _pkt_idx: most opcodes carry a 2-hex-digit
// zone/domain index as payload[:2]; a handful of opcodes are special-cased;
// array frames carry no single index (isArray=true).
func (f *Frame) idx() ctxValue {
	switch f.Code {
	case "0005":
		return ctxValue{isArray: f.HasArray()}
	case "000C":
		return ctxValue{str: f.Payload[:2]}
	case "0418":
		if len(f.Payload) >= 6 {
			return ctxValue{str: f.Payload[4:6]}
		}
	case "1100":
		if len(f.Payload) >= 2 && f.Payload[:1] == "F" {
			return ctxValue{str: f.Payload[:2]}
		}
		return ctxValue{isNone: true}
	case "3220":
		if len(f.Payload) >= 6 {
			return ctxValue{str: f.Payload[4:6]}
		}
	}

	if f.HasArray() {
		return ctxValue{isArray: true}
	}

	if len(f.Payload) >= 2 {
		head := f.Payload[:2]
		if domainIDs[head] {
			return ctxValue{str: head}
		}
	}

	if f.Code == "31D9" || f.Code == "31DA" {
		if len(f.Payload) >= 2 {
			return ctxValue{str: f.Payload[:2]}
		}
	}

	// Payloads from/to a controller-class device carry a zone_idx at [:2].
	if codesControllerClass[f.Src.Type()] || codesControllerClass[f.Dst.Type()] || f.Src.Equal(f.Dst) {
		if len(f.Payload) >= 2 {
			return ctxValue{str: f.Payload[:2]}
		}
	}

	return ctxValue{isNone: true}
}

// Header computes the QoS fingerprint (header) of this frame, per spec.md
// §3/§4.2. Memoised on first call.
func (f *Frame) Header() string {
	if f.hdr != nil {
		return *f.hdr
	}
	h := f.computeHeader()
	f.hdr = &h
	return h
}

func (f *Frame) computeHeader() string {
	if f.Code == "1FC9" {
		deviceID := f.Dst.ID()
		if f.Src.Equal(f.Dst) {
			deviceID = AllDeviceID
		}
		return strings.Join([]string{f.Code, string(f.Verb), deviceID}, "|")
	}

	var header string
	if f.Verb == VerbI || f.Verb == VerbRP || f.Src.Equal(f.Dst) {
		header = strings.Join([]string{f.Code, string(f.Verb), f.Src.ID()}, "|")
	} else {
		header = strings.Join([]string{f.Code, string(f.Verb), f.Dst.ID()}, "|")
	}

	ctx := f.Context()
	if ctx != "" {
		return header + "|" + ctx
	}
	return header
}

// RxHeader returns the header of the reply this frame (as a Command) would
// expect, or "" if none is expected. 1FC9 never expects a reply header
// here: the bind handshake is driven by the application (spec.md §4.7).
func (f *Frame) RxHeader() string {
	if f.Code == "1FC9" {
		if f.Src.Equal(f.Dst) {
			return strings.Join([]string{f.Code, string(VerbW), f.Src.ID()}, "|")
		}
		if f.Verb == VerbW {
			return strings.Join([]string{f.Code, string(VerbI), f.Src.ID()}, "|")
		}
		return ""
	}

	if f.Verb == VerbI || f.Verb == VerbRP || f.Src.Equal(f.Dst) {
		return ""
	}
	replyVerb := VerbI
	if f.Verb == VerbRQ {
		replyVerb = VerbRP
	}
	header := strings.Join([]string{f.Code, string(replyVerb), f.Dst.ID()}, "|")
	ctx := f.Context()
	if ctx != "" {
		return header + "|" + ctx
	}
	return header
}
