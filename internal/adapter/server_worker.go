package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	m "rigor.dev/pkg/rigor/internal/model"
)

// ServerState is the stage of the server side accept/receive state machine.
type ServerState int

const (
	// StateIdle is the initial state: nothing is bound yet.
	StateIdle ServerState = iota
	// StateListening means the listener is bound.
	StateListening
	// StateAccepting means an accept is pending.
	StateAccepting
	// StateReceiving means a client is connected.
	StateReceiving
	// StateSending is reserved for a dedicated send phase and currently unused.
	StateSending
)

var serverStateNames = map[ServerState]string{
	StateIdle:      "idle",
	StateListening: "listening",
	StateAccepting: "accepting",
	StateReceiving: "receiving",
	StateSending:   "sending",
}

func (s ServerState) String() string {
	if name, ok := serverStateNames[s]; ok {
		return name
	}

	return "unknown"
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// ServerWorker is the listening end of a connection. It serves a single client:
// once a client is accepted the listener is closed and never reopened.
type ServerWorker struct {
	cfg   TransportConfig
	codec *FrameCodec
	queue *EnvelopeQueue

	mu       sync.Mutex
	state    ServerState
	listener net.Listener
	accepted chan acceptResult
	conn     *Conn
}

// NewServerWorker returns an idle server worker.
func NewServerWorker(cfg TransportConfig) (*ServerWorker, error) {
	cfg = cfg.withDefaults()

	codec, err := NewFrameCodec(cfg.Marker)
	if err != nil {
		return nil, err
	}

	return &ServerWorker{
		cfg:   cfg,
		codec: codec,
		queue: NewEnvelopeQueue(),
		state: StateIdle,
	}, nil
}

// Listen binds the listener if the worker is still idle.
func (w *ServerWorker) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateIdle {
		return nil
	}

	listener, err := net.Listen("tcp", w.cfg.Address())
	if err != nil {
		slog.Error("Failed to listen", "address", w.cfg.Address(), "error", err)
		return fmt.Errorf("%w: failed to listen on %s: %w", m.ErrTransportIO, w.cfg.Address(), err)
	}

	w.listener = listener
	w.state = StateListening

	slog.Info("Listening for clients", "address", listener.Addr())

	return nil
}

// Start advances the state machine by one step.
func (w *ServerWorker) Start() error {
	switch w.State() {
	case StateIdle:
		return w.Listen()
	case StateListening:
		w.beginAccept()
		return nil
	case StateAccepting:
		return w.awaitAccept()
	case StateReceiving, StateSending:
		conn := w.currentConn()
		if conn == nil {
			return m.ErrNotConnected
		}

		return conn.Pump()
	}

	return nil
}

func (w *ServerWorker) beginAccept() {
	w.mu.Lock()
	defer w.mu.Unlock()

	accepted := make(chan acceptResult, 1)
	listener := w.listener

	go func() {
		conn, err := listener.Accept()
		accepted <- acceptResult{conn: conn, err: err}
	}()

	w.accepted = accepted
	w.state = StateAccepting
}

func (w *ServerWorker) awaitAccept() error {
	w.mu.Lock()
	accepted := w.accepted
	w.mu.Unlock()

	select {
	case res := <-accepted:
		if res.err != nil {
			if errors.Is(res.err, net.ErrClosed) {
				return m.ErrNotConnected
			}

			slog.Error("Failed to accept client", "error", res.err)

			return fmt.Errorf("%w: failed to accept: %w", m.ErrTransportIO, res.err)
		}

		w.mu.Lock()
		w.conn = NewConn(res.conn, w.codec, w.cfg, w.queue)
		w.state = StateReceiving

		// later clients are refused instead of waiting in the backlog
		if err := w.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("Failed to stop listening", "error", err)
		}
		w.mu.Unlock()

		slog.Info("Client connected", "remote", res.conn.RemoteAddr())

		return nil
	case <-time.After(w.cfg.PollInterval):
		return nil
	}
}

// State returns the current state.
func (w *ServerWorker) State() ServerState {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// Addr returns the bound address, or nil before Listen.
func (w *ServerWorker) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.listener == nil {
		return nil
	}

	return w.listener.Addr()
}

// Send implements Transporter.
func (w *ServerWorker) Send(env m.Envelope) (uint32, error) {
	conn := w.currentConn()
	if conn == nil {
		return 0, fmt.Errorf("%w: no client accepted yet", m.ErrNotConnected)
	}

	return conn.Send(env)
}

// Queue implements Transporter.
func (w *ServerWorker) Queue() *EnvelopeQueue {
	return w.queue
}

// Connected implements Transporter.
func (w *ServerWorker) Connected() bool {
	conn := w.currentConn()
	return conn != nil && conn.Connected()
}

// Close closes the client connection and the listener.
func (w *ServerWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error

	if w.conn != nil {
		errs = append(errs, w.conn.Close())
	}

	if w.listener != nil {
		if err := w.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close listener: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (w *ServerWorker) currentConn() *Conn {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn
}
