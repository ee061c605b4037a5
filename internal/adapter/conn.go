package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	m "rigor.dev/pkg/rigor/internal/model"
)

// Conn carries envelopes over one established socket.
//
// Send may be called from any goroutine. Pump and Receive own the receive
// buffer and must only be called from a single goroutine.
type Conn struct {
	cfg     TransportConfig
	codec   *FrameCodec
	netConn net.Conn
	queue   *EnvelopeQueue

	sendMu sync.Mutex
	nextID atomic.Uint32
	closed atomic.Bool

	buf          []byte
	chunk        []byte
	scanner      *sentinelScanner
	lastProgress time.Time
}

// NewConn wraps netConn. Decoded envelopes are appended to queue.
func NewConn(netConn net.Conn, codec *FrameCodec, cfg TransportConfig, queue *EnvelopeQueue) *Conn {
	cfg = cfg.withDefaults()

	return &Conn{
		cfg:          cfg,
		codec:        codec,
		netConn:      netConn,
		queue:        queue,
		chunk:        make([]byte, cfg.BufferSize),
		scanner:      newSentinelScanner(codec.Sentinel()),
		lastProgress: time.Now(),
	}
}

// Send assigns the next frame id to env and writes it as one frame.
func (c *Conn) Send(env m.Envelope) (uint32, error) {
	if c.closed.Load() {
		return 0, m.ErrNotConnected
	}

	env.ID = c.nextID.Add(1)

	frame, err := c.codec.Encode(env)
	if err != nil {
		slog.Error("Failed to encode envelope", "envelope", env, "error", err)
		return 0, err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.cfg.SendTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout)); err != nil {
			return 0, fmt.Errorf("%w: failed to set write deadline: %w", m.ErrTransportIO, err)
		}
	}

	if _, err := c.netConn.Write(frame); err != nil {
		slog.Error("Failed to send envelope", "envelope", env, "remote", c.netConn.RemoteAddr(), "error", err)
		return 0, fmt.Errorf("%w: failed to send %s: %w", m.ErrTransportIO, env, err)
	}

	slog.Debug("Sent envelope", "envelope", env, "bytes", len(frame))

	return env.ID, nil
}

// Pump decodes every complete frame already buffered, then reads at most one
// chunk, waiting no longer than the poll interval. No data is not an error.
func (c *Conn) Pump() error {
	if c.closed.Load() {
		return m.ErrNotConnected
	}

	if err := c.drainFrames(); err != nil {
		return err
	}

	if err := c.netConn.SetReadDeadline(time.Now().Add(c.cfg.PollInterval)); err != nil {
		return fmt.Errorf("%w: failed to set read deadline: %w", m.ErrTransportIO, err)
	}

	n, err := c.netConn.Read(c.chunk)
	if n > 0 {
		c.buf = append(c.buf, c.chunk[:n]...)
		c.lastProgress = time.Now()

		if derr := c.drainFrames(); derr != nil {
			return derr
		}
	}

	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.checkStalled()
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		slog.Info("Connection closed by peer", "remote", c.netConn.RemoteAddr())
		return fmt.Errorf("%w: connection closed", m.ErrNotConnected)
	}

	slog.Error("Failed to receive", "remote", c.netConn.RemoteAddr(), "error", err)

	return fmt.Errorf("%w: failed to receive: %w", m.ErrTransportIO, err)
}

// Receive pumps until an envelope is available, ctx ends or the connection fails.
func (c *Conn) Receive(ctx context.Context) (m.Envelope, error) {
	for {
		if env, ok := c.queue.TryDequeue(); ok {
			return env, nil
		}

		if err := ctx.Err(); err != nil {
			return m.Envelope{}, err
		}

		if err := c.Pump(); err != nil {
			return m.Envelope{}, err
		}
	}
}

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if err := c.netConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	return nil
}

// Connected reports whether the connection is still open on this side.
func (c *Conn) Connected() bool {
	return !c.closed.Load()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

func (c *Conn) drainFrames() error {
	sentinelLen := len(c.codec.Sentinel())

	for {
		index, ok := c.scanner.Scan(c.buf)
		if !ok {
			return nil
		}

		payload := c.buf[:index+1]
		env, err := c.codec.Decode(payload)

		rest := c.buf[index+1+sentinelLen:]
		c.buf = append(make([]byte, 0, len(rest)), rest...)

		if err != nil {
			slog.Error("Failed to decode frame", "remote", c.netConn.RemoteAddr(), "error", err)
			return err
		}

		slog.Debug("Received envelope", "envelope", env)
		c.queue.Enqueue(env)
	}
}

func (c *Conn) checkStalled() error {
	if len(c.buf) == 0 || c.cfg.ReceiveTimeout <= 0 {
		c.lastProgress = time.Now()
		return nil
	}

	if stalled := time.Since(c.lastProgress); stalled > c.cfg.ReceiveTimeout {
		slog.Error("Partial frame stalled", "remote", c.netConn.RemoteAddr(), "buffered", len(c.buf), "stalled", stalled)
		return fmt.Errorf("%w: partial frame of %d bytes stalled for %s", m.ErrTransportIO, len(c.buf), stalled)
	}

	return nil
}
