package wire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"rigor.dev/pkg/rigor/internal/adapter"
	m "rigor.dev/pkg/rigor/internal/model"
)

// Connector is a transport that has to be connected before use.
type Connector interface {
	adapter.Transporter
	Connect(ctx context.Context) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLocalHasher sets the hasher used for the local side of CheckSourceHash.
func WithLocalHasher(h adapter.SourceHasher) ClientOption {
	return func(c *Client) {
		c.hasher = h
	}
}

// Client drives a remote server.
type Client struct {
	agent     *Agent
	connector Connector
	hasher    adapter.SourceHasher

	stop context.CancelFunc

	mu    sync.Mutex
	known map[m.NodeID]m.TestCase
	runs  map[int32]*Run
}

// NewClient returns a client that talks through connector.
func NewClient(connector Connector, opts ...ClientOption) *Client {
	c := &Client{
		agent:     NewAgent(connector),
		connector: connector,
		known:     make(map[m.NodeID]m.TestCase),
		runs:      make(map[int32]*Run),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.agent.OnTelemetry(c.handleTelemetry)
	c.agent.OnMessage(c.handleMessage)
	c.agent.OnClose(c.handleClose)

	return c
}

// Start connects and launches the receive loop.
func (c *Client) Start(ctx context.Context) error {
	if err := c.connector.Connect(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stop = cancel

	go func() {
		if err := c.agent.Run(loopCtx); err != nil {
			slog.Warn("Client receive loop ended", "error", err)
		}
	}()

	return nil
}

// Done is closed when the receive loop stops.
func (c *Client) Done() <-chan struct{} {
	return c.agent.Done()
}

// Close stops the receive loop and closes the connection.
func (c *Client) Close() error {
	if c.stop != nil {
		c.stop()
		<-c.agent.Done()
	}

	if err := c.connector.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	return nil
}

// DiscoverTests lists the tests the server finds in sources. No sources means
// every source the server knows.
func (c *Client) DiscoverTests(ctx context.Context, sources []string) ([]m.TestCase, error) {
	reply, err := c.agent.Call(ctx, m.Envelope{
		Kind:    m.KindRequest,
		Command: m.CommandDiscoverTests,
		Payload: m.DiscoverRequest{Sources: sources},
	})
	if err != nil {
		slog.Error("Failed to discover tests", "sources", sources, "error", err)
		return nil, fmt.Errorf("failed to discover tests: %w", err)
	}

	cases, ok := reply.Payload.([]m.TestCase)
	if !ok {
		return nil, fmt.Errorf("%w: DiscoverTests reply is %T", m.ErrProtocolFraming, reply.Payload)
	}

	c.mu.Lock()
	for _, tc := range cases {
		c.known[tc.TestID] = tc
	}
	c.mu.Unlock()

	return cases, nil
}

// RunTests runs the given tests on the server.
func (c *Client) RunTests(ctx context.Context, ids []m.NodeID, opts ...RunOption) (*Run, error) {
	if len(ids) == 0 {
		return nil, errors.New("no test ids to run")
	}

	expected := make([]m.TestCase, 0, len(ids))

	c.mu.Lock()
	for _, id := range ids {
		tc, ok := c.known[id]
		if !ok {
			tc = m.TestCase{TestID: id, DisplayName: id.String()}
		}

		expected = append(expected, tc)
	}
	c.mu.Unlock()

	return c.startRun(ctx, m.RunRequest{IDs: ids}, expected, opts)
}

// RunSources discovers sources to learn the expected tests, then runs all of them.
func (c *Client) RunSources(ctx context.Context, sources []string, opts ...RunOption) (*Run, error) {
	expected, err := c.DiscoverTests(ctx, sources)
	if err != nil {
		return nil, err
	}

	return c.startRun(ctx, m.RunRequest{Sources: sources}, expected, opts)
}

func (c *Client) startRun(ctx context.Context, req m.RunRequest, expected []m.TestCase, opts []RunOption) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := newRun(c.agent.NewSession(), expected, opts...)

	c.mu.Lock()
	c.runs[run.ID] = run
	c.mu.Unlock()

	if err := c.agent.Err(); err != nil {
		c.finishRun(run.ID)
		run.abort(err)

		return run, nil
	}

	_, err := c.agent.Send(m.Envelope{
		SessionID: run.ID,
		Kind:      m.KindRequest | m.KindOnSendTests,
		Command:   m.CommandRunTests,
		Payload:   req,
	})
	if err != nil {
		c.finishRun(run.ID)
		run.abort(err)

		return run, err
	}

	slog.Info("Run started", "run", run.ID, "tests", len(expected))

	return run, nil
}

// CheckSourceHash compares the server's digest of source with the local one.
func (c *Client) CheckSourceHash(ctx context.Context, source string) (m.HashCheck, error) {
	check := m.HashCheck{Source: source}

	if c.hasher == nil {
		return check, errors.New("no local hasher configured")
	}

	local, err := c.hasher.HashSource(source)
	if err != nil {
		return check, fmt.Errorf("failed to hash %s locally: %w", source, err)
	}

	check.Local = local

	reply, err := c.agent.Call(ctx, m.Envelope{
		Kind:    m.KindRequest,
		Command: m.CommandCheckAssemblyHash,
		Payload: m.HashRequest{Source: source},
	})
	if err != nil {
		slog.Error("Failed to get remote hash", "source", source, "error", err)
		return check, fmt.Errorf("failed to get remote hash of %s: %w", source, err)
	}

	remote, ok := reply.Payload.([]byte)
	if !ok || len(remote) == 0 {
		return check, fmt.Errorf("%w: server returned no digest for %s", m.ErrRemoteHashMismatch, source)
	}

	check.Remote = remote
	check.Match = bytes.Equal(local, remote)

	if !check.Match {
		slog.Warn("Source digest differs from server", "source", source)
	}

	return check, nil
}

// Cancel asks the server to stop the run in progress.
func (c *Client) Cancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.agent.Send(m.Envelope{Kind: m.KindRequest, Command: m.CommandCancel})

	return err
}

// CallFunction invokes a registered function on the server without waiting.
func (c *Client) CallFunction(ctx context.Context, spec CallSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if spec.Method == "" {
		return errors.New("method name is required")
	}

	_, err := c.agent.Send(spec.envelope())

	return err
}

func (c *Client) handleTelemetry(env m.Envelope) {
	run := c.activeRun(env.SessionID)
	if run == nil {
		return
	}

	result, ok := env.Payload.(m.TestResult)
	if !ok {
		slog.Warn("Unexpected telemetry payload", "command", env.Command, "payload", fmt.Sprintf("%T", env.Payload))
		return
	}

	switch env.Command {
	case m.CommandRecordTestStart:
		run.emit(RunEvent{Kind: EventStarted, Result: result})
	case m.CommandRecordTestEnd:
		run.emit(RunEvent{Kind: EventEnded, Result: result})
	}
}

func (c *Client) handleMessage(env m.Envelope) {
	run := c.activeRun(env.SessionID)
	if run == nil {
		return
	}

	switch env.Command {
	case m.CommandTakeResults:
		results, ok := env.Payload.([]m.TestResult)
		if !ok {
			slog.Warn("Unexpected results payload", "payload", fmt.Sprintf("%T", env.Payload))
			return
		}

		run.addResults(results)
	case m.CommandRunTests:
		if !env.Kind.Has(m.KindEndOfReply) {
			return
		}

		c.finishRun(run.ID)

		switch payload := env.Payload.(type) {
		case m.RunSummary:
			run.complete(payload, nil)
		case m.RemoteError:
			run.abort(payload)
		default:
			run.abort(fmt.Errorf("%w: RunTests reply is %T", m.ErrProtocolFraming, env.Payload))
		}
	}
}

func (c *Client) handleClose(err error) {
	c.mu.Lock()
	runs := make([]*Run, 0, len(c.runs))
	for id, run := range c.runs {
		runs = append(runs, run)
		delete(c.runs, id)
	}
	c.mu.Unlock()

	for _, run := range runs {
		slog.Warn("Connection lost during run", "run", run.ID, "error", err)
		run.abort(err)
	}
}

func (c *Client) activeRun(id int32) *Run {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.runs[id]
}

func (c *Client) finishRun(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.runs, id)
}
