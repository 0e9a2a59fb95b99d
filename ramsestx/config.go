package ramsestx

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DisableQos mirrors the tri-state `disable_qos` config key: false=full QoS,
// true=QoS off, unset=selective.
type DisableQos struct {
	set   bool
	value bool
}

// UnmarshalYAML decodes a YAML bool, or leaves DisableQos unset if the key
// is absent (yaml.v3 simply never calls this in that case).
func (d *DisableQos) UnmarshalYAML(node *yaml.Node) error {
	var v bool
	if err := node.Decode(&v); err != nil {
		return err
	}
	d.set, d.value = true, v
	return nil
}

// Mode resolves the tri-state to a QosMode.
func (d DisableQos) Mode() QosMode {
	switch {
	case !d.set:
		return QosSelective
	case d.value:
		return QosNone
	default:
		return QosFull
	}
}

// RegexRule is one entry of use_regex.{inbound,outbound}.
type RegexRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// PacketLogConfig mirrors the packet_log.* config keys.
type PacketLogConfig struct {
	File          string `yaml:"file"`
	RotateBytes   int64  `yaml:"rotate_bytes"`
	RotateBackups int    `yaml:"rotate_backups"`
	RotateDaily   bool   `yaml:"rotate_daily"`
}

// PortConfig mirrors port_config.*.
type PortConfig struct {
	Baud int `yaml:"baud"`
}

// KnownListEntry mirrors one known_list/block_list config value.
type KnownListEntry struct {
	Alias  string `yaml:"alias"`
	Class  string `yaml:"class"`
	Faked  bool   `yaml:"faked"`
	Scheme string `yaml:"scheme"`
}

// Config is the root of the engine's YAML configuration (spec.md §6).
type Config struct {
	Port              string                      `yaml:"port"`
	DisableSending    bool                        `yaml:"disable_sending"`
	DisableQos        DisableQos                  `yaml:"disable_qos"`
	EnforceKnownList  bool                        `yaml:"enforce_known_list"`
	EvofwFlag         string                      `yaml:"evofw_flag"`
	UseRegex          map[string][]RegexRule      `yaml:"use_regex"`
	PacketLog         PacketLogConfig             `yaml:"packet_log"`
	PortConfig        PortConfig                  `yaml:"port_config"`
	KnownList         map[string]KnownListEntry   `yaml:"known_list"`
	BlockList         map[string]KnownListEntry   `yaml:"block_list"`
}

// LoadConfig reads and validates a Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newErrConfigInvalid("cannot read config %q: %v", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, newErrConfigInvalid("cannot parse config %q: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the known_list/block_list disjointness invariant and that
// known_list contains at most one HGI-classed entry (spec.md §4.8).
func (c *Config) Validate() error {
	known := make(map[string]DeviceInfo, len(c.KnownList))
	for id, e := range c.KnownList {
		known[id] = DeviceInfo{Alias: e.Alias, Class: e.Class, Faked: e.Faked, Scheme: e.Scheme}
	}
	blocked := make(map[string]DeviceInfo, len(c.BlockList))
	for id, e := range c.BlockList {
		blocked[id] = DeviceInfo{Alias: e.Alias, Class: e.Class, Faked: e.Faked, Scheme: e.Scheme}
	}
	filter, err := NewFilter(known, blocked, c.EnforceKnownList)
	if err != nil {
		return newErrConfigInvalid("%v", err)
	}
	if hgis := filter.HGIEntries(); len(hgis) > 1 {
		return newErrConfigInvalid("known_list has %d entries classed HGI, want at most 1: %v", len(hgis), hgis)
	}
	return nil
}

// Filter builds the Filter described by this config.
func (c *Config) Filter() (*Filter, error) {
	known := make(map[string]DeviceInfo, len(c.KnownList))
	for id, e := range c.KnownList {
		known[id] = DeviceInfo{Alias: e.Alias, Class: e.Class, Faked: e.Faked, Scheme: e.Scheme}
	}
	blocked := make(map[string]DeviceInfo, len(c.BlockList))
	for id, e := range c.BlockList {
		blocked[id] = DeviceInfo{Alias: e.Alias, Class: e.Class, Faked: e.Faked, Scheme: e.Scheme}
	}
	return NewFilter(known, blocked, c.EnforceKnownList)
}
