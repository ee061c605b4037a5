// Package wire implements the request/reply layer on top of a framed
// transport: the agent shared by both ends, the test server and the client.
package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"rigor.dev/pkg/rigor/internal/adapter"
	m "rigor.dev/pkg/rigor/internal/model"
)

// Handler receives envelopes that did not answer a pending call.
type Handler func(env m.Envelope)

// Agent sends envelopes over a transport and routes what comes back.
//
// Replies that match a pending Call go to that call. Everything else goes to
// the telemetry handlers or the message handlers depending on its kind.
type Agent struct {
	transport adapter.Transporter
	pending   *pendingCalls
	sessions  atomic.Int32

	mu        sync.RWMutex
	telemetry []Handler
	messages  []Handler
	onClose   []func(error)

	running atomic.Bool
	done    chan struct{}
	stopErr error
}

// NewAgent returns an agent bound to transport.
func NewAgent(transport adapter.Transporter) *Agent {
	return &Agent{
		transport: transport,
		pending:   newPendingCalls(),
		done:      make(chan struct{}),
	}
}

// Transport returns the underlying transport.
func (a *Agent) Transport() adapter.Transporter {
	return a.transport
}

// NewSession allocates a session id. Ids start at 1.
func (a *Agent) NewSession() int32 {
	return a.sessions.Add(1)
}

// OnTelemetry registers a handler for telemetry envelopes.
func (a *Agent) OnTelemetry(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.telemetry = append(a.telemetry, h)
}

// OnMessage registers a handler for reply and request envelopes.
func (a *Agent) OnMessage(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.messages = append(a.messages, h)
}

// OnClose registers a function called once when the receive loop stops.
func (a *Agent) OnClose(fn func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.onClose = append(a.onClose, fn)
}

// Send writes env and returns the frame id assigned by the transport.
func (a *Agent) Send(env m.Envelope) (uint32, error) {
	id, err := a.transport.Send(env)
	if err != nil {
		slog.Error("Failed to send envelope", "command", env.Command, "session", env.SessionID, "error", err)
		return 0, fmt.Errorf("failed to send %s: %w", env.Command, err)
	}

	slog.Debug("Sent", "id", id, "command", env.Command, "kind", env.Kind, "session", env.SessionID)

	return id, nil
}

// Call sends env and waits for the envelope answering it: same command, same
// session. A zero SessionID is replaced with a fresh session.
func (a *Agent) Call(ctx context.Context, env m.Envelope) (m.Envelope, error) {
	if env.SessionID == 0 {
		env.SessionID = a.NewSession()
	}

	key := callKey{command: env.Command, session: env.SessionID}

	reply, err := a.pending.register(key)
	if err != nil {
		return m.Envelope{}, fmt.Errorf("%w: %w", m.ErrSessionClosed, err)
	}
	defer a.pending.cancel(key)

	if _, err := a.Send(env); err != nil {
		return m.Envelope{}, err
	}

	select {
	case env, ok := <-reply:
		if !ok {
			return m.Envelope{}, fmt.Errorf("%w: %w", m.ErrSessionClosed, a.pending.err())
		}

		if remote, isRemote := env.Payload.(m.RemoteError); isRemote {
			return env, remote
		}

		return env, nil
	case <-ctx.Done():
		return m.Envelope{}, ctx.Err()
	}
}

// Run pumps the transport and dispatches envelopes until ctx ends or the
// transport fails. It may only be called once.
func (a *Agent) Run(ctx context.Context) error {
	if a.running.Swap(true) {
		return errors.New("agent receive loop already running")
	}

	queue := a.transport.Queue()

	for {
		for {
			env, ok := queue.TryDequeue()
			if !ok {
				break
			}

			a.dispatch(env)
		}

		if ctx.Err() != nil {
			a.stop(m.ErrSessionClosed)
			return nil
		}

		if err := a.transport.Start(); err != nil {
			for {
				env, ok := queue.TryDequeue()
				if !ok {
					break
				}

				a.dispatch(env)
			}

			slog.Error("Receive loop stopped", "error", err)
			a.stop(err)

			return err
		}
	}
}

// Done is closed once the receive loop has stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Err returns the error the receive loop stopped with.
func (a *Agent) Err() error {
	select {
	case <-a.done:
		return a.stopErr
	default:
		return nil
	}
}

func (a *Agent) dispatch(env m.Envelope) {
	if !env.Kind.Has(m.KindRequest) && a.pending.resolve(env) {
		return
	}

	a.mu.RLock()

	handlers := a.messages
	if env.IsTelemetry() {
		handlers = a.telemetry
	}

	a.mu.RUnlock()

	if len(handlers) == 0 {
		slog.Debug("Dropped unhandled envelope", "command", env.Command, "kind", env.Kind, "session", env.SessionID)
	}

	for _, h := range handlers {
		h(env)
	}
}

func (a *Agent) stop(err error) {
	a.stopErr = err
	a.pending.fail(err)

	a.mu.RLock()
	onClose := a.onClose
	a.mu.RUnlock()

	for _, fn := range onClose {
		fn(err)
	}

	close(a.done)
}
