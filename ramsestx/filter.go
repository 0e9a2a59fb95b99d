package ramsestx

import "fmt"

// DeviceInfo is one known_list/block_list entry (spec.md §4.8).
type DeviceInfo struct {
	Alias  string
	Class  string
	Faked  bool
	Scheme string
}

// Filter enforces the device-ID known_list/block_list policy of spec.md
// §4.8 for both inbound packets and outbound commands.
type Filter struct {
	KnownList map[string]DeviceInfo
	BlockList map[string]DeviceInfo
	Enforce   bool
}

// NewFilter validates that known_list and block_list are disjoint and
// returns a ready-to-use Filter.
func NewFilter(known, blocked map[string]DeviceInfo, enforce bool) (*Filter, error) {
	for id := range known {
		if _, ok := blocked[id]; ok {
			return nil, fmt.Errorf("device_id %q is in both known_list and block_list", id)
		}
	}
	return &Filter{KnownList: known, BlockList: blocked, Enforce: enforce}, nil
}

// allowedSentinels are always permitted regardless of list membership.
var allowedSentinels = map[string]bool{NonDeviceID: true, AllDeviceID: true}

// Allow reports whether a frame between src and dst may pass, per the three
// rules of spec.md §4.8: block_list membership always refuses; enforce mode
// requires both ids known (or a sentinel/the active HGI); otherwise accept.
func (f *Filter) Allow(src, dst *Address, activeHGI *Address) bool {
	if f.blocked(src) || f.blocked(dst) {
		return false
	}
	if !f.Enforce {
		return true
	}
	return f.knownOrSentinel(src, activeHGI) && f.knownOrSentinel(dst, activeHGI)
}

func (f *Filter) blocked(addr *Address) bool {
	_, ok := f.BlockList[addr.ID()]
	return ok
}

func (f *Filter) knownOrSentinel(addr *Address, activeHGI *Address) bool {
	if allowedSentinels[addr.ID()] {
		return true
	}
	if activeHGI != nil && addr.Equal(activeHGI) {
		return true
	}
	_, ok := f.KnownList[addr.ID()]
	return ok
}

// HGIEntries returns the known_list ids classed "HGI", for the port layer's
// active-gateway consistency check.
func (f *Filter) HGIEntries() []string {
	var ids []string
	for id, info := range f.KnownList {
		if info.Class == "HGI" {
			ids = append(ids, id)
		}
	}
	return ids
}
