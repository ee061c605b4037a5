package adapter

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "rigor.dev/pkg/rigor/internal/model"
)

func TestServerWorker_StateMachine(t *testing.T) {
	server, err := NewServerWorker(testTransportConfig())
	require.NoError(t, err)
	defer server.Close()

	assert.Equal(t, StateIdle, server.State())
	assert.Nil(t, server.Addr())
	assert.False(t, server.Connected())

	_, err = server.Send(m.Envelope{})
	require.ErrorIs(t, err, m.ErrNotConnected)

	require.NoError(t, server.Start())
	assert.Equal(t, StateListening, server.State())
	require.NotNil(t, server.Addr())

	require.NoError(t, server.Start())
	assert.Equal(t, StateAccepting, server.State())

	// Nothing connects: the accept stays pending without blocking the caller.
	require.NoError(t, server.Start())
	assert.Equal(t, StateAccepting, server.State())

	cfg := testTransportConfig()
	cfg.Port = server.Addr().(*net.TCPAddr).Port

	client, err := NewClientWorker(cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return server.Start() == nil && server.State() == StateReceiving
	}, 2*time.Second, time.Millisecond)

	assert.True(t, server.Connected())
	assert.Equal(t, "receiving", server.State().String())

	// a single client per worker: the listener is gone once one is accepted
	late, err := NewClientWorker(cfg)
	require.NoError(t, err)
	defer late.Close()

	require.Error(t, late.Connect(context.Background()))
}

func TestServerWorker_ListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testTransportConfig()
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port

	server, err := NewServerWorker(cfg)
	require.NoError(t, err)

	err = server.Start()
	require.ErrorIs(t, err, m.ErrTransportIO)
	assert.Equal(t, StateIdle, server.State())
}

func TestClientWorker_ConnectFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := testTransportConfig()
	cfg.Port = listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	client, err := NewClientWorker(cfg)
	require.NoError(t, err)

	err = client.Start()
	require.ErrorIs(t, err, m.ErrTransportIO)
	assert.False(t, client.Connected())
}

func TestConn_StalledPartialFrame(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	codec, err := NewFrameCodec("")
	require.NoError(t, err)

	cfg := testTransportConfig()
	cfg.ReceiveTimeout = 30 * time.Millisecond

	conn := NewConn(serverSide, codec, cfg, NewEnvelopeQueue())
	defer conn.Close()

	go func() {
		_, _ = clientSide.Write([]byte("half a frame"))
	}()

	require.Eventually(t, func() bool {
		return conn.Pump() != nil
	}, 2*time.Second, time.Millisecond)

	err = conn.Pump()
	require.ErrorIs(t, err, m.ErrTransportIO)
}
