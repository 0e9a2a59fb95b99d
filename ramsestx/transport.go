package ramsestx

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "go.bug.st/serial"
)

// Source is anything that can yield a stream of raw packet-log lines and
// accept frame lines for transmission: a serial port, an MQTT bridge, or a
// packet-log replay.
type Source interface {
	// Lines delivers raw (unparsed) lines as they arrive. Closed when the
	// source is exhausted or ctx is cancelled.
	Lines(ctx context.Context) <-chan string
	// WriteFrame transmits one rendered frame line.
	WriteFrame(ctx context.Context, line string) error
	Close() error
}

// --- Serial transport -------------------------------------------------

// SerialConfig mirrors spec.md §6's port_config.* keys.
type SerialConfig struct {
	Baud int // 115200 (default) or 57600
}

// SerialSource is a Source backed by a local serial port, talking
// to an HGI80 or evofw3-flashed gateway.
type SerialSource struct {
	port serial.Port
	log  *slog.Logger

	writeMu       sync.Mutex
	lastWriteAt   time.Time
	dutyBucket    *dutyCycleBucket
	syncObserved  []time.Time // next-sync due times decoded from I|1F09|003, capped at 3 controllers
	syncObservedM sync.Mutex
}

// OpenSerial opens portName (a local device path, e.g. "/dev/ttyUSB0") at
// the configured baud rate, 8N1, with DTR and RTS cleared. The name is passed
// to go.bug.st/serial unchanged, so "rfc2217://" and "alt://" names are not
// handled, and XON/XOFF is left at the driver default.
func OpenSerial(portName string, cfg SerialConfig, log *slog.Logger) (*SerialSource, error) {
	if log == nil {
		log = slog.Default()
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, newTransportSerialError("cannot open %q: %v", portName, err)
	}
	_ = port.SetDTR(false)
	_ = port.SetRTS(false)
	// go.bug.st/serial has no direct XON/XOFF toggle on all platforms;
	// evofw3/HGI80 gateways tolerate flow control being left to the driver
	// default, so we don't fail OpenSerial if this isn't supported.

	return &SerialSource{
		port:       port,
		log:        log,
		dutyBucket: newDutyCycleBucket(),
	}, nil
}

// Lines reads the serial port line-by-line, reassembling partial reads.
func (s *SerialSource) Lines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(s.port)
		for scanner.Scan() {
			line := scanner.Text()
			select {
			case <-ctx.Done():
				return
			case out <- line:
				s.trackSync(line)
			}
		}
	}()
	return out
}

// trackSync decodes an I|1F09|003 sync-burst announcement and records its
// next-sync due time (pkt.dtm + remaining_seconds), per spec.md §4.6.6/§4.7.
// Any other code, or a malformed 1F09, is ignored.
func (s *SerialSource) trackSync(line string) {
	f, err := ParseFrame(line)
	if err != nil || f.Verb != VerbI || f.Code != "1F09" {
		return
	}
	payload, err := ParsePayload(f)
	if err != nil {
		return
	}
	elem, ok := payload.Scalar()
	if !ok {
		return
	}
	seconds, ok := elem["remaining_seconds"].(float64)
	if !ok {
		return
	}
	due := time.Now().Add(time.Duration(seconds * float64(time.Second)))
	s.noteSyncCycle(due)
}

// noteSyncCycle records due as a controller's next-sync deadline, pruning
// already-past deadlines and capping at 3 controllers (spec.md §4.6.6).
func (s *SerialSource) noteSyncCycle(due time.Time) {
	s.syncObservedM.Lock()
	defer s.syncObservedM.Unlock()
	now := time.Now()
	fresh := s.syncObserved[:0]
	for _, t := range s.syncObserved {
		if t.After(now) {
			fresh = append(fresh, t)
		}
	}
	s.syncObserved = append(fresh, due)
	if len(s.syncObserved) > 3 {
		s.syncObserved = s.syncObserved[len(s.syncObserved)-3:]
	}
}

// nearSyncCycle reports whether now falls within [-8ms, +44ms] of any
// recently observed sync-cycle triplet.
func (s *SerialSource) nearSyncCycle(now time.Time) bool {
	s.syncObservedM.Lock()
	defer s.syncObservedM.Unlock()
	for _, t := range s.syncObserved {
		if now.After(t.Add(-8*time.Millisecond)) && now.Before(t.Add(44*time.Millisecond)) {
			return true
		}
	}
	return false
}

// frameDutyCycleBits estimates the RF airtime of line as
// 330 + 10*len(payload_hex) bits (spec.md §4.6.5b/§8): a fixed overhead
// for preamble/header/checksum plus 10 bits per payload hex character.
// Falls back to the whole line's bit length if it doesn't parse as
// a frame, so a malformed write still gets charged something.
func frameDutyCycleBits(line string) int {
	f, err := ParseFrame(line)
	if err != nil {
		return len(line) * 8
	}
	return 330 + 10*len(f.Payload)
}

const interWriteGap = 50 * time.Millisecond

// WriteFrame pads a minimum inter-write gap, defers momentarily to avoid
// colliding with an observed sync cycle, and spends duty-cycle budget
// before writing line.
func (s *SerialSource) WriteFrame(ctx context.Context, line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if wait := interWriteGap - time.Since(s.lastWriteAt); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	now := time.Now()
	if s.nearSyncCycle(now) {
		select {
		case <-time.After(44 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.dutyBucket.Spend(ctx, frameDutyCycleBits(line)); err != nil {
		return err
	}

	if _, err := s.port.Write([]byte(line + "\r\n")); err != nil {
		return newTransportSerialError("write failed: %v", err)
	}
	s.lastWriteAt = time.Now()
	return nil
}

func (s *SerialSource) Close() error { return s.port.Close() }

// dutyCycleBucket enforces the RF duty-cycle limit of 23040 bits per
// rolling 60s window, refilling continuously at 384 bit/s.
type dutyCycleBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens/sec
	last     time.Time
}

func newDutyCycleBucket() *dutyCycleBucket {
	return &dutyCycleBucket{tokens: 23040, capacity: 23040, rate: 384, last: time.Now()}
}

// Spend blocks until bits tokens are available, then deducts them.
func (b *dutyCycleBucket) Spend(ctx context.Context, bits int) error {
	for {
		b.mu.Lock()
		now := time.Now()
		b.tokens += now.Sub(b.last).Seconds() * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
		if b.tokens >= float64(bits) {
			b.tokens -= float64(bits)
			b.mu.Unlock()
			return nil
		}
		deficit := float64(bits) - b.tokens
		wait := time.Duration(deficit/b.rate*1000) * time.Millisecond
		b.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// --- MQTT transport -----------------------------------------------------

// MQTTConfig describes a paho.mqtt.golang broker connection and the
// tx/rx topic pair of spec.md §6.
type MQTTConfig struct {
	Broker   string
	ClientID string
	TxTopic  string // "{base}/tx"
	RxTopic  string // "{base}/rx"
	QoS      byte
}

type mqttEnvelope struct {
	Ts  string `json:"ts"`
	Msg string `json:"msg"`
}

// MQTTSource bridges the frame stream over MQTT, JSON-encoding each frame
// as {"ts": "<iso>", "msg": "<frame>"}.
type MQTTSource struct {
	client mqtt.Client
	cfg    MQTTConfig
	log    *slog.Logger
	lines  chan string
}

// OpenMQTT connects to cfg.Broker and subscribes to cfg.RxTopic.
func OpenMQTT(cfg MQTTConfig, log *slog.Logger) (*MQTTSource, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &MQTTSource{cfg: cfg, log: log, lines: make(chan string, 64)}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetDefaultPublishHandler(func(c mqtt.Client, m mqtt.Message) {
		var env mqttEnvelope
		if err := json.Unmarshal(m.Payload(), &env); err != nil {
			s.log.Warn("discarding malformed MQTT envelope", "error", err)
			return
		}
		s.lines <- env.Msg
	})

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, newTransportSourceInvalid("mqtt connect failed: %v", tok.Error())
	}
	if tok := client.Subscribe(cfg.RxTopic, cfg.QoS, nil); tok.Wait() && tok.Error() != nil {
		client.Disconnect(250)
		return nil, newTransportSourceInvalid("mqtt subscribe failed: %v", tok.Error())
	}
	s.client = client
	return s, nil
}

func (s *MQTTSource) Lines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case line := <-s.lines:
				out <- line
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *MQTTSource) WriteFrame(ctx context.Context, line string) error {
	env := mqttEnvelope{Ts: time.Now().UTC().Format("2006-01-02T15:04:05.000000"), Msg: line}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("mqtt envelope marshal failed: %w", err)
	}
	tok := s.client.Publish(s.cfg.TxTopic, s.cfg.QoS, false, body)
	tok.Wait()
	return tok.Error()
}

func (s *MQTTSource) Close() error {
	s.client.Disconnect(250)
	return nil
}

// --- Replay / packet-log source -----------------------------------------

// ReplaySource replays a fixed list of packet-log lines, e.g. for tests or
// offline analysis. Writes are recorded but never "sent" anywhere.
type ReplaySource struct {
	lines   []string
	Written []string
}

// NewReplaySource returns a ReplaySource that yields lines in order.
func NewReplaySource(lines []string) *ReplaySource {
	return &ReplaySource{lines: lines}
}

func (r *ReplaySource) Lines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, l := range r.lines {
			select {
			case out <- l:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *ReplaySource) WriteFrame(ctx context.Context, line string) error {
	r.Written = append(r.Written, line)
	return nil
}

func (r *ReplaySource) Close() error { return nil }

// --- Active-gateway signature handshake ----------------------------------

const signatureTries = 24
const signatureInterval = 50 * time.Millisecond

// Signature is the outcome of the puzzle-packet active-gateway handshake.
type Signature struct {
	DeviceID string
	IsHGI80  bool // HGI80 gateways never echo their own puzzle packets with a 7FFF reply of their own
}

// DiscoverSignature writes up to signatureTries puzzle packets (spaced
// signatureInterval apart), watching lines for a 7FFF echo carrying a
// device id distinct from the broadcast/null sentinels, to identify the
// active gateway and distinguish an HGI80 (silent) from an evofw3 (which
// echoes a version string on 7FFF sub-type 10/20).
func DiscoverSignature(ctx context.Context, src Source, ownID *Address) (*Signature, error) {
	const puzzle = " I --- --:------ --:------ 63:262142 7FFF 001 00"
	lines := src.Lines(ctx)

	for attempt := 0; attempt < signatureTries; attempt++ {
		if err := src.WriteFrame(ctx, puzzle); err != nil {
			return nil, err
		}
		select {
		case line, ok := <-lines:
			if !ok {
				return nil, newTransportSourceInvalid("source closed during signature discovery")
			}
			if pkt, err := ParsePacketLine(line); err == nil && pkt.Frame.Code == "7FFF" && !allowedSentinels[pkt.Frame.Src.ID()] {
				return &Signature{DeviceID: pkt.Frame.Src.ID(), IsHGI80: false}, nil
			}
		case <-time.After(signatureInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	// No reply after the full probe budget: treat the source as an HGI80,
	// which is known to never echo its own puzzle packets.
	return &Signature{DeviceID: ownID.ID(), IsHGI80: true}, nil
}
