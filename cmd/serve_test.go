package cmd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigor.dev/pkg/rigor/internal/adapter"
	"rigor.dev/pkg/rigor/internal/selftest"
	"rigor.dev/pkg/rigor/internal/wire"
)

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	return port
}

func TestNewServeDeps(t *testing.T) {
	withSuites := newServeDeps(true)
	assert.Equal(t, []string{selftest.MathSource, selftest.StringSource, selftest.DemoSource}, withSuites.registry.Sources())
	assert.Contains(t, withSuites.functions.Names(), "Counter.Add")

	empty := newServeDeps(false)
	assert.Empty(t, empty.registry.Sources())
	assert.Empty(t, empty.functions.Names())
}

func TestServe_AcceptsClientsInTurn(t *testing.T) {
	cfg := adapter.DefaultTransportConfig()
	cfg.Port = freePort(t)
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ConnectTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	serveCtx, stop := context.WithCancel(ctx)

	served := make(chan error, 1)

	go func() { served <- serve(serveCtx, cfg, newServeDeps(true)) }()

	for range 2 {
		var client *wire.Client

		require.Eventually(t, func() bool {
			worker, err := adapter.NewClientWorker(cfg)
			require.NoError(t, err)

			client = wire.NewClient(worker)

			return client.Start(ctx) == nil
		}, 5*time.Second, 20*time.Millisecond)

		cases, err := client.DiscoverTests(ctx, []string{selftest.StringSource})
		require.NoError(t, err)
		assert.Len(t, cases, 2)

		require.NoError(t, client.Close())
	}

	stop()

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServe_ListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := adapter.DefaultTransportConfig()
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port

	err = serve(context.Background(), cfg, newServeDeps(false))
	require.Error(t, err)
}
