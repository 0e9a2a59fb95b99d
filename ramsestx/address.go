package ramsestx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// deviceIDRegex matches a DeviceId's canonical "TT:NNNNNN" form.
var deviceIDRegex = regexp.MustCompile(`^[0-9]{2}:[0-9]{6}$`)

// NonDeviceID and AllDeviceID are the two sentinel device identifiers.
const (
	NonDeviceID = "--:------"
	AllDeviceID = "63:262142"
	HGIDeviceID = "18:000730" // the generic/unbound HGI id used in Command templates
)

// devTypeSlug maps a 2-digit device type to its short mnemonic, used for the
// "friendly" rendering of an Address (e.g. "CTL:145038"). Unknown types
// render as the numeric type.
var devTypeSlug = map[string]string{
	"00": "TR0", "01": "CTL", "02": "UFC", "03": "HCW", "04": "TRV",
	"07": "DHW", "08": "JIM", "10": "OTB", "12": "DTS", "13": "BDR",
	"17": "OUT", "18": "HGI", "22": "DT2", "23": "PRG", "30": "RFG",
	"31": "JST", "34": "RND",
}

// Address is an immutable, interned wrapper over a DeviceId.
type Address struct {
	id   string
	typ  string
	hex  string
	once sync.Once
}

// NewAddress validates and constructs an Address. It does not consult the
// LRU cache; callers that want caching should use ParseAddress.
func NewAddress(id string) (*Address, error) {
	if !isValidDeviceID(id) {
		return nil, fmt.Errorf("invalid device_id: %q", id)
	}
	return &Address{id: id, typ: id[:2]}, nil
}

func isValidDeviceID(id string) bool {
	return id == NonDeviceID || deviceIDRegex.MatchString(id)
}

// ID returns the canonical "TT:NNNNNN" device id.
func (a *Address) ID() string { return a.id }

// Type returns the 2-digit device type.
func (a *Address) Type() string { return a.typ }

// String renders the friendly form, e.g. "CTL:145038".
func (a *Address) String() string {
	if a.id == NonDeviceID {
		return ""
	}
	typ, serial, _ := strings.Cut(a.id, ":")
	if slug, ok := devTypeSlug[typ]; ok {
		return fmt.Sprintf("%s:%s", slug, serial)
	}
	return a.id
}

// HexID returns the packed 6-hex-digit form, computed and memoised once.
func (a *Address) HexID() string {
	a.once.Do(func() {
		a.hex = idToHex(a.id)
	})
	return a.hex
}

// Equal compares two Addresses (or nil) by device id.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}

// idToHex converts (say) "01:145038" to "06368E". NonDeviceID becomes six
// spaces, AllDeviceID becomes "FFFFFE".
func idToHex(id string) string {
	if id == NonDeviceID {
		return "      "
	}
	typ, serial, _ := strings.Cut(id, ":")
	t, _ := strconv.Atoi(typ)
	s, _ := strconv.Atoi(serial)
	packed := (t << 18) | s
	return fmt.Sprintf("%06X", packed)
}

// hexToID converts (say) "06368E" to "01:145038". The well-known encodings
// for NonDeviceID ("      ") and AllDeviceID ("FFFFFE") are handled first.
func hexToID(hex string) (string, error) {
	if hex == "FFFFFE" {
		return AllDeviceID, nil
	}
	if strings.TrimSpace(hex) == "" {
		return NonDeviceID, nil
	}
	if len(hex) != 6 {
		return "", fmt.Errorf("invalid hex id: %q", hex)
	}
	packed, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "", fmt.Errorf("invalid hex id: %q: %w", hex, err)
	}
	typ := (packed & 0xFC0000) >> 18
	serial := packed & 0x03FFFF
	return fmt.Sprintf("%02d:%06d", typ, serial), nil
}

// addressCache interns Address values by device id, mirroring the Python
// side's @lru_cache(maxsize=256) on id_to_address.
var addressCache = newAddressCache(256)

type addrCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Address]
}

func newAddressCache(size int) *addrCache {
	c, err := lru.New[string, *Address](size)
	if err != nil {
		panic(err) // size is always a positive literal at call sites
	}
	return &addrCache{cache: c}
}

func (c *addrCache) get(id string) (*Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr, ok := c.cache.Get(id); ok {
		return addr, nil
	}
	addr, err := NewAddress(id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, addr)
	return addr, nil
}

// ParseAddress returns an interned Address for id, validating it first.
func ParseAddress(id string) (*Address, error) {
	return addressCache.get(id)
}

// AddrSet is the decoded src/dst/addr0..2 tuple produced by pkt_addrs.
type AddrSet struct {
	Src, Dst         *Address
	Addr0, Addr1, Addr2 *Address
}

// addrSetCache caches pkt_addrs results keyed on the raw "a0 a1 a2" fragment.
var addrSetCache = newAddrSetCache(256)

type addrSetCacheT struct {
	mu    sync.Mutex
	cache *lru.Cache[string, AddrSet]
}

func newAddrSetCache(size int) *addrSetCacheT {
	c, err := lru.New[string, AddrSet](size)
	if err != nil {
		panic(err)
	}
	return &addrSetCacheT{cache: c}
}

// pktAddrs decodes the three address fields of a frame, enforcing the
// address-set invariant of spec.md §3. addrFragment is "a0 a1 a2" (space
// separated, as they appear on the wire).
func pktAddrs(addrFragment string) (AddrSet, error) {
	addrSetCache.mu.Lock()
	if set, ok := addrSetCache.cache.Get(addrFragment); ok {
		addrSetCache.mu.Unlock()
		return set, nil
	}
	addrSetCache.mu.Unlock()

	fields := strings.Fields(addrFragment)
	if len(fields) != 3 {
		return AddrSet{}, newPacketAddrSetInvalid("invalid address set: %q", addrFragment)
	}

	addrs := make([]*Address, 3)
	for i, f := range fields {
		a, err := ParseAddress(f)
		if err != nil {
			return AddrSet{}, newPacketAddrSetInvalid("invalid address set: %q: %v", addrFragment, err)
		}
		addrs[i] = a
	}

	nonAddr, _ := ParseAddress(NonDeviceID)
	allAddr, _ := ParseAddress(AllDeviceID)

	isNonOrAll := func(a *Address) bool { return a.Equal(nonAddr) || a.Equal(allAddr) }

	valid := false
	switch {
	// a0 in dev, a1 == NON, a2 in dev (point-to-point)
	case !isNonOrAll(addrs[0]) && addrs[1].Equal(nonAddr) && !addrs[2].Equal(nonAddr):
		valid = true
	// a0 in dev, a1 in dev (!= a0), a2 == NON (point-to-point, legacy)
	case !isNonOrAll(addrs[0]) && !addrs[1].Equal(nonAddr) && !addrs[1].Equal(addrs[0]) && addrs[2].Equal(nonAddr):
		valid = true
	// a0 == NON, a1 == NON, a2 in dev (broadcast/addr-2-only)
	case addrs[0].Equal(nonAddr) && addrs[1].Equal(nonAddr) && !addrs[2].Equal(nonAddr):
		valid = true
	}
	if !valid {
		return AddrSet{}, newPacketAddrSetInvalid("invalid address set: %q", addrFragment)
	}

	var deviceAddrs []*Address
	for _, a := range addrs {
		if a.Type() != "--" {
			deviceAddrs = append(deviceAddrs, a)
		}
	}
	src := deviceAddrs[0]
	dst := nonAddr
	if len(deviceAddrs) > 1 {
		dst = deviceAddrs[1]
	}
	if src.Equal(dst) {
		src = dst
	}

	set := AddrSet{Src: src, Dst: dst, Addr0: addrs[0], Addr1: addrs[1], Addr2: addrs[2]}

	addrSetCache.mu.Lock()
	addrSetCache.cache.Add(addrFragment, set)
	addrSetCache.mu.Unlock()

	return set, nil
}
