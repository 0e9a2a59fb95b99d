package ramsestx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPacket(t *testing.T, line string) *Packet {
	t.Helper()
	p, err := ParsePacketLine(line)
	require.NoError(t, err)
	return p
}

func TestPacketLogWriterAppendsLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packets.log")

	w, err := NewPacketLogWriter(path, 0, false)
	require.NoError(t, err)
	defer w.Close()

	p := mustPacket(t, "2023-01-15T12:30:00.000000 000 RQ --- 18:013393 01:145038 --:------ 30C9 001 00")
	require.NoError(t, w.Write(p))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "30C9")
}

func TestPacketLogWriterRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packets.log")

	w, err := NewPacketLogWriter(path, 1, false)
	require.NoError(t, err)
	defer w.Close()

	p := mustPacket(t, "2023-01-15T12:30:00.000000 000 RQ --- 18:013393 01:145038 --:------ 30C9 001 00")
	require.NoError(t, w.Write(p))
	require.NoError(t, w.Write(p))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1, "expected the oversized log to have been rotated aside")
}

func TestPacketLogWriterReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packets.log")

	w, err := NewPacketLogWriter(path, 0, false)
	require.NoError(t, err)
	p := mustPacket(t, "2023-01-15T12:30:00.000000 000 RQ --- 18:013393 01:145038 --:------ 30C9 001 00")
	require.NoError(t, w.Write(p))
	require.NoError(t, w.Close())

	w2, err := NewPacketLogWriter(path, 0, false)
	require.NoError(t, err)
	defer w2.Close()
	require.NoError(t, w2.Write(p))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
