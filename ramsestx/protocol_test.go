package ramsestx

import (
	"container/heap"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a PortWriter that records every line it was asked to write.
type fakePort struct {
	mu      sync.Mutex
	written []string
	failNext error
}

func (p *fakePort) WriteFrame(ctx context.Context, line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}
	p.written = append(p.written, line)
	return nil
}

func (p *fakePort) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func mustCommand(t *testing.T, verb Verb, src, dst *Address, code, payload string) *Command {
	t.Helper()
	cmd, err := newCommand(verb, src, dst, code, payload)
	require.NoError(t, err)
	return cmd
}

func TestProtocolQosNoneWritesImmediatelyAndResolves(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosNone, nil)

	src, _ := ParseAddress("18:013393")
	dst, _ := ParseAddress("01:145038")
	cmd := mustCommand(t, VerbRQ, src, dst, "30C9", "00")

	ch, err := proto.Send(context.Background(), cmd)
	require.NoError(t, err)

	select {
	case res := <-ch:
		assert.NoError(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("QosNone send never resolved")
	}
	assert.Len(t, port.lines(), 1)
}

func TestProtocolQueueFullReturnsError(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosFull, nil)
	// Protocol never leaves Inactive (no ConnectionMade), so jobs pile up
	// in the queue instead of being popped by kick().
	src, _ := ParseAddress("18:013393")
	dst, _ := ParseAddress("01:145038")

	for i := 0; i < maxQueueDepth; i++ {
		cmd := mustCommand(t, VerbRQ, src, dst, "30C9", "00")
		_, err := proto.Send(context.Background(), cmd)
		require.NoError(t, err)
	}

	overflow := mustCommand(t, VerbRQ, src, dst, "30C9", "00")
	_, err := proto.Send(context.Background(), overflow)
	assert.Error(t, err)
}

func TestJobQueueOrdersByPriorityThenEnqueueTime(t *testing.T) {
	src, _ := ParseAddress("18:013393")
	dst, _ := ParseAddress("01:145038")

	low := mustCommand(t, VerbRQ, src, dst, "30C9", "00")
	low.Priority = PriorityLow
	high := mustCommand(t, VerbRQ, src, dst, "30C9", "00")
	high.Priority = PriorityHigh
	defaultPrio := mustCommand(t, VerbRQ, src, dst, "30C9", "00")

	var q jobQueue
	heap.Init(&q)
	base := time.Now()
	heap.Push(&q, &sendJob{cmd: low, enqueued: base})
	heap.Push(&q, &sendJob{cmd: high, enqueued: base.Add(time.Millisecond)})
	heap.Push(&q, &sendJob{cmd: defaultPrio, enqueued: base.Add(2 * time.Millisecond)})

	first := heap.Pop(&q).(*sendJob)
	second := heap.Pop(&q).(*sendJob)
	third := heap.Pop(&q).(*sendJob)

	assert.Equal(t, PriorityHigh, first.cmd.Priority)
	assert.Equal(t, PriorityDefault, second.cmd.Priority)
	assert.Equal(t, PriorityLow, third.cmd.Priority)
}

func TestProtocolEchoOnlyResolvesWithoutAwaitingReply(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosFull, nil)

	hgi, _ := ParseAddress("18:013393")
	ctl, _ := ParseAddress("01:145038")
	cmd := mustCommand(t, VerbW, hgi, ctl, "2E04", "00")
	require.False(t, cmd.ExpectsReply())

	proto.ConnectionMade(hgi)
	ch, err := proto.Send(context.Background(), cmd)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(port.lines()) == 1 }, time.Second, time.Millisecond)
	echo, parseErr := ParseFrame(port.lines()[0])
	require.NoError(t, parseErr)
	proto.Receive(&Packet{DTM: time.Now(), Frame: echo})

	select {
	case res := <-ch:
		assert.NoError(t, res.Err)
		require.NotNil(t, res.Packet)
	case <-time.After(time.Second):
		t.Fatal("echo-only command never resolved")
	}

	proto.mu.Lock()
	state := proto.state
	proto.mu.Unlock()
	assert.Equal(t, IsInIdle, state)
}

func TestProtocolEchoThenReplyResolves(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosFull, nil)

	hgi, _ := ParseAddress("18:013393")
	ctl, _ := ParseAddress("01:145038")
	cmd := mustCommand(t, VerbRQ, hgi, ctl, "30C9", "00")
	require.True(t, cmd.ExpectsReply())

	proto.ConnectionMade(hgi)
	ch, err := proto.Send(context.Background(), cmd)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(port.lines()) == 1 }, time.Second, time.Millisecond)
	echo, parseErr := ParseFrame(port.lines()[0])
	require.NoError(t, parseErr)
	proto.Receive(&Packet{DTM: time.Now(), Frame: echo})

	reply, parseErr := ParseFrame("RP --- 01:145038 18:013393 --:------ 30C9 003 000898")
	require.NoError(t, parseErr)
	proto.Receive(&Packet{DTM: time.Now(), Frame: reply})

	select {
	case res := <-ch:
		assert.NoError(t, res.Err)
		assert.Equal(t, reply, res.Packet.Frame)
	case <-time.After(time.Second):
		t.Fatal("echo+reply command never resolved")
	}
}

func TestProtocolRetriesExhaustedFailsTheSend(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosFull, nil)

	hgi, _ := ParseAddress("18:013393")
	ctl, _ := ParseAddress("01:145038")
	cmd := mustCommand(t, VerbRQ, hgi, ctl, "30C9", "00")
	cmd.MaxRetries = 0

	proto.ConnectionMade(hgi)
	ch, err := proto.Send(context.Background(), cmd)
	require.NoError(t, err)

	select {
	case res := <-ch:
		require.Error(t, res.Err)
		var sendErr *ProtocolSendFailed
		require.ErrorAs(t, res.Err, &sendErr)
		assert.Equal(t, EchoFailed, sendErr.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("send never failed after retries exhausted")
	}

	proto.mu.Lock()
	state := proto.state
	proto.mu.Unlock()
	assert.Equal(t, IsFailed, state)
}

func TestProtocolRecoversFromFailedStateOnNextSend(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosFull, nil)

	hgi, _ := ParseAddress("18:013393")
	ctl, _ := ParseAddress("01:145038")

	failing := mustCommand(t, VerbRQ, hgi, ctl, "30C9", "00")
	failing.MaxRetries = 0
	proto.ConnectionMade(hgi)
	firstCh, err := proto.Send(context.Background(), failing)
	require.NoError(t, err)
	select {
	case res := <-firstCh:
		require.Error(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("first send never failed")
	}

	proto.mu.Lock()
	require.Equal(t, IsFailed, proto.state)
	proto.mu.Unlock()

	next := mustCommand(t, VerbRQ, hgi, ctl, "30C9", "00")
	secondCh, err := proto.Send(context.Background(), next)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(port.lines()) == 2 }, time.Second, time.Millisecond,
		"queue stayed stalled in IsFailed instead of recovering on the next send")

	echo, parseErr := ParseFrame(port.lines()[1])
	require.NoError(t, parseErr)
	proto.Receive(&Packet{DTM: time.Now(), Frame: echo})

	reply, parseErr := ParseFrame("RP --- 01:145038 18:013393 --:------ 30C9 003 000898")
	require.NoError(t, parseErr)
	proto.Receive(&Packet{DTM: time.Now(), Frame: reply})

	select {
	case res := <-secondCh:
		assert.NoError(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("second send never resolved after recovering from IsFailed")
	}
}

func TestProtocolConnectionLostFailsQueuedJobs(t *testing.T) {
	port := &fakePort{}
	proto := NewProtocol(port, QosFull, nil)

	src, _ := ParseAddress("18:013393")
	dst, _ := ParseAddress("01:145038")
	cmd := mustCommand(t, VerbRQ, src, dst, "30C9", "00")

	ch, err := proto.Send(context.Background(), cmd)
	require.NoError(t, err)

	proto.ConnectionLost(assert.AnError)

	select {
	case res := <-ch:
		assert.Error(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("queued job was not failed on connection loss")
	}
}
