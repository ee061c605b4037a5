package wire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigor.dev/pkg/rigor/internal/adapter"
	m "rigor.dev/pkg/rigor/internal/model"
)

// fakeTransport answers sent envelopes through reply and fails Start once
// failWith is set.
type fakeTransport struct {
	queue *adapter.EnvelopeQueue
	reply func(env m.Envelope) []m.Envelope

	mu       sync.Mutex
	sent     []m.Envelope
	failWith error
	nextID   uint32
}

func newFakeTransport(reply func(env m.Envelope) []m.Envelope) *fakeTransport {
	return &fakeTransport{queue: adapter.NewEnvelopeQueue(), reply: reply}
}

func (f *fakeTransport) Start() error {
	f.mu.Lock()
	err := f.failWith
	f.mu.Unlock()

	if err != nil {
		return err
	}

	time.Sleep(time.Millisecond)

	return nil
}

func (f *fakeTransport) Send(env m.Envelope) (uint32, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.sent = append(f.sent, env)
	f.mu.Unlock()

	if f.reply != nil {
		for _, r := range f.reply(env) {
			f.queue.Enqueue(r)
		}
	}

	return id, nil
}

func (f *fakeTransport) Queue() *adapter.EnvelopeQueue { return f.queue }
func (f *fakeTransport) Connected() bool { return true }
func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failWith = err
}

func TestAgent_CallMatchesCommandAndSession(t *testing.T) {
	transport := newFakeTransport(func(env m.Envelope) []m.Envelope {
		// an unrelated reply for another session arrives first
		return []m.Envelope{
			{SessionID: env.SessionID + 100, Kind: m.KindReply, Command: env.Command, Payload: []byte("other")},
			{SessionID: env.SessionID, Kind: m.KindReply, Command: env.Command, Payload: []byte("mine")},
		}
	})

	agent := NewAgent(transport)

	var unmatched []m.Envelope

	agent.OnMessage(func(env m.Envelope) { unmatched = append(unmatched, env) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = agent.Run(ctx) }()

	reply, err := agent.Call(ctx, m.Envelope{Kind: m.KindRequest, Command: m.CommandCheckAssemblyHash})
	require.NoError(t, err)
	assert.Equal(t, []byte("mine"), reply.Payload)

	cancel()
	<-agent.Done()

	require.Len(t, unmatched, 1)
	assert.Equal(t, []byte("other"), unmatched[0].Payload)
	assert.Zero(t, agent.pending.len())
}

func TestAgent_TelemetryGoesToTelemetryHandlers(t *testing.T) {
	transport := newFakeTransport(nil)
	agent := NewAgent(transport)

	got := make(chan m.Envelope, 1)

	agent.OnTelemetry(func(env m.Envelope) { got <- env })
	agent.OnMessage(func(env m.Envelope) { t.Errorf("unexpected message %s", env) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = agent.Run(ctx) }()

	transport.queue.Enqueue(m.Envelope{SessionID: 3, Kind: m.KindTelemetry, Command: m.CommandRecordTestStart})

	select {
	case env := <-got:
		assert.Equal(t, m.CommandRecordTestStart, env.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry not dispatched")
	}
}

func TestAgent_LoopFailureFailsPendingCalls(t *testing.T) {
	transport := newFakeTransport(nil)
	agent := NewAgent(transport)

	closed := make(chan error, 1)
	agent.OnClose(func(err error) { closed <- err })

	go func() { _ = agent.Run(context.Background()) }()

	callErr := make(chan error, 1)

	go func() {
		_, err := agent.Call(context.Background(), m.Envelope{Kind: m.KindRequest, Command: m.CommandDiscoverTests})
		callErr <- err
	}()

	require.Eventually(t, func() bool { return agent.pending.len() == 1 }, 2*time.Second, time.Millisecond)

	transport.fail(m.ErrNotConnected)

	select {
	case err := <-callErr:
		require.ErrorIs(t, err, m.ErrSessionClosed)
		require.ErrorIs(t, err, m.ErrNotConnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call was not failed")
	}

	assert.ErrorIs(t, <-closed, m.ErrNotConnected)
	assert.ErrorIs(t, agent.Err(), m.ErrNotConnected)

	_, err := agent.Call(context.Background(), m.Envelope{Kind: m.KindRequest, Command: m.CommandDiscoverTests})
	assert.ErrorIs(t, err, m.ErrSessionClosed)
}

func TestAgent_CallReturnsRemoteError(t *testing.T) {
	transport := newFakeTransport(func(env m.Envelope) []m.Envelope {
		return []m.Envelope{{
			SessionID: env.SessionID,
			Kind:      m.KindTelemetry,
			Command:   env.Command,
			Payload:   m.RemoteError{Command: env.Command, Message: "boom"},
		}}
	})

	agent := NewAgent(transport)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = agent.Run(ctx) }()

	_, err := agent.Call(ctx, m.Envelope{Kind: m.KindRequest, Command: m.CommandDiscoverTests})

	var remote m.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "boom", remote.Message)
}

func TestAgent_RunTwice(t *testing.T) {
	agent := NewAgent(newFakeTransport(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = agent.Run(ctx) }()

	require.Eventually(t, func() bool { return agent.running.Load() }, time.Second, time.Millisecond)
	assert.Error(t, agent.Run(ctx))
}

func TestAgent_NewSessionIsUnique(t *testing.T) {
	agent := NewAgent(newFakeTransport(nil))

	seen := map[int32]bool{}

	for range 100 {
		id := agent.NewSession()
		assert.False(t, seen[id])
		assert.Positive(t, id)
		seen[id] = true
	}
}
