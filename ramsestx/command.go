package ramsestx

import (
	"fmt"
	"time"
)

// Priority orders jobs in the protocol send queue; lower sorts first.
type Priority int

const (
	PriorityHighest Priority = -4
	PriorityHigh    Priority = -2
	PriorityDefault Priority = 0
	PriorityLow     Priority = 2
	PriorityLowest  Priority = 4
)

// reliableCodes must be QoS-managed even in "selective" mode (spec.md §4.7).
var reliableCodes = map[string]bool{"0006": true, "0404": true, "1FC9": true}

// Command is an application-built Frame together with the QoS metadata the
// protocol FSM needs to manage its transmission: priority, retry budget,
// outer queue-wait timeout, and the header of the reply it expects (if any).
type Command struct {
	Frame *Frame

	Priority   Priority
	MaxRetries int
	Timeout    time.Duration // outer queue-wait timeout, default 30s

	// WaitForReply is nil (unset, resolves per verb: true for RQ, false
	// otherwise), or an explicit true/false override.
	WaitForReply *bool
}

// RxHeader is the header of the reply this command expects, or "" if none.
func (c *Command) RxHeader() string {
	return c.Frame.RxHeader()
}

// ExpectsReply resolves WaitForReply per spec.md §4.7: explicit override if
// set, else true for RQ verbs, else false. 1FC9 never expects one: its
// handshake is driven by the application, not the FSM.
func (c *Command) ExpectsReply() bool {
	if c.Frame.Code == "1FC9" {
		return false
	}
	if c.WaitForReply != nil {
		return *c.WaitForReply
	}
	return c.Frame.Verb == VerbRQ
}

// MustBeReliable reports whether this command's code is on the short list
// that remains QoS-managed even when the protocol is in "selective" mode.
func (c *Command) MustBeReliable() bool {
	return reliableCodes[c.Frame.Code]
}

// newCommand builds a Command from rendered frame fields, applying the
// documented defaults (DEFAULT priority, 3 retries, 30s outer timeout).
func newCommand(verb Verb, src, dst *Address, code string, payload string) (*Command, error) {
	length := len(payload) / 2
	var line string
	if src.Equal(dst) {
		// Self-announce form (e.g. a 1FC9 bind offer): the wire address set
		// is (src, --:------, src), not (src, src, --:------), since the
		// latter satisfies none of the address-set invariant's patterns.
		line = fmt.Sprintf("%s --- %s --:------ %s %s %03d %s",
			verb, src.ID(), src.ID(), code, length, payload)
	} else {
		line = fmt.Sprintf("%s --- %s %s --:------ %s %03d %s",
			verb, src.ID(), dst.ID(), code, length, payload)
	}
	f, err := ParseFrame(line)
	if err != nil {
		return nil, newCommandInvalid("could not build command: %v", err)
	}
	return &Command{
		Frame:      f,
		Priority:   PriorityDefault,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}, nil
}

// CmdGetZoneTemp builds an RQ for a single zone's current temperature
// (code 30C9).
func CmdGetZoneTemp(src, dst *Address, zoneIdx string) (*Command, error) {
	return newCommand(VerbRQ, src, dst, "30C9", zoneIdx)
}

// CmdGetZoneParams builds an RQ for a zone's min/max setpoint configuration
// (code 000A).
func CmdGetZoneParams(src, dst *Address, zoneIdx string) (*Command, error) {
	return newCommand(VerbRQ, src, dst, "000A", zoneIdx)
}

// CmdSetZoneMode builds a W that overrides a zone's setpoint, optionally
// until a given time (code 2349). until == nil means "permanent".
func CmdSetZoneMode(src, dst *Address, zoneIdx string, setpoint float64, until *time.Time) (*Command, error) {
	mode := "02"
	payload := zoneIdx + hexFromTemp(&setpoint) + mode + "FFFFFFFFFFFF"
	if until != nil {
		mode = "04"
		// Unused duration slot (FFFFFF), then until in the 12-char form
		// (no seconds byte): the 13-byte layout parse2349 reads.
		payload = zoneIdx + hexFromTemp(&setpoint) + mode + "FFFFFF" + hexFromDtm(*until)[2:]
	}
	return newCommand(VerbW, src, dst, "2349", payload)
}

// CmdSetSystemMode builds a W that changes the controller's operating mode
// (code 2E04).
func CmdSetSystemMode(src, dst *Address, modeByte string) (*Command, error) {
	return newCommand(VerbW, src, dst, "2E04", modeByte)
}

// CmdGetRelayDemand builds an RQ for a relay's current demand (code 0008).
func CmdGetRelayDemand(src, dst *Address, domainID string) (*Command, error) {
	return newCommand(VerbRQ, src, dst, "0008", domainID)
}

// CmdBindOffer builds the first ( I) frame of a 1FC9 bind handshake,
// offering bindings for the given (idx, code, device) triples.
func CmdBindOffer(src *Address, bindings [][3]string) (*Command, error) {
	var payload string
	for _, b := range bindings {
		payload += b[0] + b[1] + idToHex(b[2])
	}
	return newCommand(VerbI, src, src, "1FC9", payload)
}
