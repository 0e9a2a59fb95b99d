package ramsestx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PacketLogWriter appends Packets to a packet-log file, one line per
// packet, in the format ParsePacketLine understands. It supports two
// rotation strategies, mirroring ramses_tx/logger.py's TimedRotatingFileHandler
// wrapper: a size cap, and/or a daily boundary.
type PacketLogWriter struct {
	mu sync.Mutex

	path        string
	maxBytes    int64 // 0 disables size rotation
	rotateDaily bool

	f          *os.File
	written    int64
	openedDate string // "2006-01-02", for daily rotation
}

// NewPacketLogWriter opens (creating if necessary) the log file at path.
func NewPacketLogWriter(path string, maxBytes int64, rotateDaily bool) (*PacketLogWriter, error) {
	w := &PacketLogWriter{path: path, maxBytes: maxBytes, rotateDaily: rotateDaily}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *PacketLogWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return newTransportSourceInvalid("cannot open packet log %q: %v", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return newTransportSourceInvalid("cannot stat packet log %q: %v", w.path, err)
	}
	w.f = f
	w.written = info.Size()
	w.openedDate = time.Now().Format("2006-01-02")
	return nil
}

// Write appends p's rendered log line, rotating first if the active file
// has exceeded maxBytes or has crossed a day boundary since it was opened.
func (w *PacketLogWriter) Write(p *Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.needsRotation() {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	line := p.Render() + "\n"
	n, err := w.f.WriteString(line)
	w.written += int64(n)
	if err != nil {
		return fmt.Errorf("packet log write failed: %w", err)
	}
	return nil
}

func (w *PacketLogWriter) needsRotation() bool {
	if w.maxBytes > 0 && w.written >= w.maxBytes {
		return true
	}
	if w.rotateDaily && time.Now().Format("2006-01-02") != w.openedDate {
		return true
	}
	return false
}

// rotate closes the current file, renames it with a timestamp suffix, and
// opens a fresh file at the original path.
func (w *PacketLogWriter) rotate() error {
	w.f.Close()

	ext := filepath.Ext(w.path)
	base := w.path[:len(w.path)-len(ext)]
	archived := fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102-150405"), ext)
	if err := os.Rename(w.path, archived); err != nil {
		return fmt.Errorf("packet log rotation failed: %w", err)
	}
	return w.open()
}

// Close flushes and closes the underlying file.
func (w *PacketLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
