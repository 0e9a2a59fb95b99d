package ramsestx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDisableQosModeResolution(t *testing.T) {
	var unset DisableQos
	assert.Equal(t, QosSelective, unset.Mode())

	var trueNode yaml.Node
	require.NoError(t, trueNode.Encode(true))
	var disabled DisableQos
	require.NoError(t, disabled.UnmarshalYAML(&trueNode))
	assert.Equal(t, QosNone, disabled.Mode())

	var falseNode yaml.Node
	require.NoError(t, falseNode.Encode(false))
	var full DisableQos
	require.NoError(t, full.UnmarshalYAML(&falseNode))
	assert.Equal(t, QosFull, full.Mode())
}

func TestLoadConfigParsesKnownList(t *testing.T) {
	path := writeConfig(t, `
port: /dev/ttyUSB0
enforce_known_list: true
known_list:
  18:013393:
    alias: gateway
    class: HGI
  01:145038:
    alias: controller
    class: CTL
port_config:
  baud: 115200
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, 115200, cfg.PortConfig.Baud)
	assert.Equal(t, "HGI", cfg.KnownList["18:013393"].Class)
	assert.Equal(t, QosSelective, cfg.DisableQos.Mode())
}

func TestLoadConfigRejectsOverlappingLists(t *testing.T) {
	path := writeConfig(t, `
known_list:
  01:145038:
    class: CTL
block_list:
  01:145038:
    class: CTL
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsMultipleHGIEntries(t *testing.T) {
	path := writeConfig(t, `
known_list:
  18:013393:
    class: HGI
  18:013394:
    class: HGI
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigFilterBuildsUsableFilter(t *testing.T) {
	path := writeConfig(t, `
enforce_known_list: true
known_list:
  18:013393:
    class: HGI
  01:145038:
    class: CTL
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	filter, err := cfg.Filter()
	require.NoError(t, err)

	hgi, _ := ParseAddress("18:013393")
	ctl, _ := ParseAddress("01:145038")
	assert.True(t, filter.Allow(hgi, ctl, nil))
}
