package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// ClientWorker is the dialing end of a connection.
type ClientWorker struct {
	cfg   TransportConfig
	codec *FrameCodec
	queue *EnvelopeQueue

	mu   sync.Mutex
	conn *Conn
}

// NewClientWorker returns a worker that connects to cfg.Address on first use.
func NewClientWorker(cfg TransportConfig) (*ClientWorker, error) {
	cfg = cfg.withDefaults()

	codec, err := NewFrameCodec(cfg.Marker)
	if err != nil {
		return nil, err
	}

	return &ClientWorker{
		cfg:   cfg,
		codec: codec,
		queue: NewEnvelopeQueue(),
	}, nil
}

// Connect dials the server unless already connected.
func (w *ClientWorker) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil && w.conn.Connected() {
		return nil
	}

	dialer := net.Dialer{Timeout: w.cfg.ConnectTimeout}

	netConn, err := dialer.DialContext(ctx, "tcp", w.cfg.Address())
	if err != nil {
		slog.Error("Failed to connect", "address", w.cfg.Address(), "error", err)
		return fmt.Errorf("%w: failed to connect to %s: %w", m.ErrTransportIO, w.cfg.Address(), err)
	}

	w.conn = NewConn(netConn, w.codec, w.cfg, w.queue)

	slog.Info("Connected to server", "address", w.cfg.Address())

	return nil
}

// Start connects if needed, then receives at most one chunk.
func (w *ClientWorker) Start() error {
	conn := w.currentConn()
	if conn == nil {
		return w.Connect(context.Background())
	}

	return conn.Pump()
}

// Send implements Transporter.
func (w *ClientWorker) Send(env m.Envelope) (uint32, error) {
	conn := w.currentConn()
	if conn == nil {
		return 0, fmt.Errorf("%w: client is not connected", m.ErrNotConnected)
	}

	return conn.Send(env)
}

// Queue implements Transporter.
func (w *ClientWorker) Queue() *EnvelopeQueue {
	return w.queue
}

// Connected implements Transporter.
func (w *ClientWorker) Connected() bool {
	conn := w.currentConn()
	return conn != nil && conn.Connected()
}

// Close implements Transporter.
func (w *ClientWorker) Close() error {
	conn := w.currentConn()
	if conn == nil {
		return nil
	}

	return conn.Close()
}

func (w *ClientWorker) currentConn() *Conn {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn
}
