package ramsestx

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// packetLineRegex splits a packet-log line into its dtm/frame/hint/err/comment
// parts: `dtm ' ' frame [' < hint'] [' * err'] [' # comment']`.
var packetLineRegex = regexp.MustCompile(
	`^(\S{26}) (.*?)(?:\s+<\s+(.*?))?(?:\s+\*\s+(.*?))?(?:\s+#\s+(.*))?$`,
)

// rssiRegex matches the optional leading RSSI field of a received line. The
// RSSI is followed by exactly one space, so a " I" verb keeps its own space.
var rssiRegex = regexp.MustCompile(`^(-{3}|\d{3}) (.*)$`)

// defaultLifespan is the TTL assumed for any code not in lifespanTable.
const defaultLifespan = 60 * time.Minute

// lifespanTable holds the documented exceptions from spec.md §3.
var lifespanTable = map[string]time.Duration{
	"0005": 24 * time.Hour,
	"000C": 24 * time.Hour,
	"10E0": 24 * time.Hour,
	"0404": 24 * time.Hour,
	"0006": 60 * time.Minute,
	"1F09": 360 * time.Second,
	"313F": 3 * time.Second,
}

// arrayLifespan overrides lifespanTable for array-form frames of these codes.
var arrayLifespan = map[string]time.Duration{
	"000A": 360 * time.Second,
	"2309": 30 * time.Minute,
	"30C9": 360 * time.Second,
}

// Packet is a timestamped Frame, as received from the port or a log file.
type Packet struct {
	DTM       time.Time
	Frame     *Frame
	RSSI      string // "---" or 3 digits; "" if not from a live port
	Hint      string // text after " < "
	ErrorText string // text after " * "
	Comment   string // text after " # "
}

// ParsePacketLine decodes one packet-log line of the form
// `dtm frame [< hint] [* err] [# comment]`. Blank lines and lines starting
// with "#" are not packets; callers should skip those before calling this.
func ParsePacketLine(line string) (*Packet, error) {
	m := packetLineRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, newPacketInvalid("bad packet log line: >>>%s<<<", line)
	}

	dtm, err := time.ParseInLocation("2006-01-02T15:04:05.000000", m[1], time.Local)
	if err != nil {
		return nil, newPacketInvalid("bad packet log line: invalid dtm %q: %v", m[1], err)
	}

	frameText := m[2]
	rssi := ""
	if rm := rssiRegex.FindStringSubmatch(frameText); rm != nil {
		rssi = rm[1]
		frameText = rm[2]
	}

	frame, err := ParseFrame(frameText)
	if err != nil {
		return nil, err
	}

	return &Packet{
		DTM:       dtm,
		Frame:     frame,
		RSSI:      rssi,
		Hint:      m[3],
		ErrorText: m[4],
		Comment:   m[5],
	}, nil
}

// Render reproduces the packet-log line for this packet.
func (p *Packet) Render() string {
	var b strings.Builder
	b.WriteString(p.DTM.Format("2006-01-02T15:04:05.000000"))
	b.WriteByte(' ')
	if p.RSSI != "" {
		b.WriteString(p.RSSI)
		b.WriteByte(' ')
	}
	b.WriteString(p.Frame.Render())
	if p.Hint != "" {
		fmt.Fprintf(&b, " < %s", p.Hint)
	}
	if p.ErrorText != "" {
		fmt.Fprintf(&b, " * %s", p.ErrorText)
	}
	if p.Comment != "" {
		fmt.Fprintf(&b, " # %s", p.Comment)
	}
	return b.String()
}

// Lifespan returns how long this packet's payload remains authoritative.
// RQ/W verbs are never cached (lifespan 0); array-form frames of certain
// codes use a shorter TTL than their scalar form.
func (p *Packet) Lifespan() time.Duration {
	f := p.Frame
	if f.Verb == VerbRQ || f.Verb == VerbW {
		return 0
	}
	if f.HasArray() {
		if d, ok := arrayLifespan[f.Code]; ok {
			return d
		}
	}
	if f.Code == "3220" {
		return 21 * time.Minute // 2.1x the 10-minute OpenTherm poll cadence
	}
	if d, ok := lifespanTable[f.Code]; ok {
		return d
	}
	return defaultLifespan
}

// Expired reports whether this packet's lifespan has elapsed as of now.
func (p *Packet) Expired(now time.Time) bool {
	lifespan := p.Lifespan()
	if lifespan <= 0 {
		return true
	}
	return now.After(p.DTM.Add(lifespan))
}
