package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"rigor.dev/pkg/rigor/internal/adapter"
	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSourceHasher sets the hasher answering CheckAssemblyHash.
func WithSourceHasher(h adapter.SourceHasher) ServerOption {
	return func(s *Server) {
		s.hasher = h
	}
}

// WithFunctions sets the table answering CallFunction.
func WithFunctions(t *FunctionTable) ServerOption {
	return func(s *Server) {
		s.functions = t
	}
}

// Server executes requests from a single client against an engine.
//
// A background loop pumps the transport. Cancel requests are handled by the
// loop itself so they can interrupt a run; every other request is handed to a
// single-slot dispatcher, so at most one command executes at a time.
type Server struct {
	agent     *Agent
	engine    domain.Engine
	hasher    adapter.SourceHasher
	functions *FunctionTable

	dispatcher *errgroup.Group

	startOnce sync.Once
	stopLoop  context.CancelFunc
	loopDone  chan struct{}

	mu      sync.Mutex
	loopErr error
	closed  bool
}

// NewServer returns a server that serves engine over transport.
func NewServer(transport adapter.Transporter, engine domain.Engine, opts ...ServerOption) *Server {
	dispatcher := &errgroup.Group{}
	dispatcher.SetLimit(1)

	s := &Server{
		agent:      NewAgent(transport),
		engine:     engine,
		functions:  NewFunctionTable(),
		dispatcher: dispatcher,
		loopDone:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start launches the background loop on first use and then handles at most
// one queued request on the calling goroutine. An error that stopped the loop
// is returned wrapped in ErrServerFault.
func (s *Server) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.stopLoop = cancel

		go s.loop(loopCtx)
	})

	if err := s.loopError(); err != nil {
		return fmt.Errorf("%w: %w", m.ErrServerFault, err)
	}

	s.processMessageIfAny(ctx)

	return nil
}

// Serve starts the server and blocks until ctx ends or the loop fails.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.loopDone:
		return s.Start(ctx)
	}
}

// Done is closed when the background loop stops.
func (s *Server) Done() <-chan struct{} {
	return s.loopDone
}

// Close stops the loop, cancels any run in progress and closes the transport.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.engine.Cancel()

	started := false
	s.startOnce.Do(func() {})

	if s.stopLoop != nil {
		started = true

		s.stopLoop()
		<-s.loopDone
	}

	err := s.agent.Transport().Close()

	if started {
		_ = s.dispatcher.Wait()
	}

	if err != nil {
		return fmt.Errorf("failed to close server transport: %w", err)
	}

	return nil
}

func (s *Server) loop(ctx context.Context) {
	defer close(s.loopDone)

	transport := s.agent.Transport()
	queue := transport.Queue()

	for ctx.Err() == nil {
		if err := transport.Start(); err != nil {
			if ctx.Err() != nil {
				return
			}

			slog.Error("Server loop stopped", "error", err)
			s.setLoopError(err)
			s.engine.Cancel()

			return
		}

		if _, ok := queue.TakeFirst(isCancel); ok {
			slog.Info("Cancellation requested by client")
			s.engine.Cancel()

			continue
		}

		if queue.Len() > 0 {
			s.dispatcher.TryGo(func() error {
				s.processMessageIfAny(ctx)
				return nil
			})
		}
	}
}

func (s *Server) processMessageIfAny(ctx context.Context) {
	env, ok := s.agent.Transport().Queue().TryDequeue()
	if !ok {
		return
	}

	if err := s.processRecovered(ctx, env); err != nil {
		slog.Error("Failed to process request", "command", env.Command, "session", env.SessionID, "error", err)
	}
}

// processRecovered runs process, turning a panic into a failed request.
// Requests that expect an answer get a RemoteError.
func (s *Server) processRecovered(ctx context.Context, env m.Envelope) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		cause := fmt.Errorf("%s panicked: %v", env.Command, r)
		slog.Error("Request panicked", "command", env.Command, "session", env.SessionID, "panic", r, "stack", string(debug.Stack()))

		switch env.Command {
		case m.CommandDiscoverTests:
			err = s.replyError(env, m.KindTelemetry, cause)
		case m.CommandRunTests:
			err = s.replyError(env, m.KindReply|m.KindEndOfReply, cause)
		case m.CommandCheckAssemblyHash:
			err = s.replyError(env, m.KindReply, cause)
		default:
			err = cause
		}
	}()

	return s.process(ctx, env)
}

func (s *Server) process(ctx context.Context, env m.Envelope) error {
	slog.Debug("Processing", "envelope", env)

	switch env.Command {
	case m.CommandCallFunction:
		return s.callFunction(env)
	case m.CommandDiscoverTests:
		return s.discoverTests(ctx, env)
	case m.CommandRunTests:
		return s.runTests(ctx, env)
	case m.CommandCancel:
		s.engine.Cancel()
		return nil
	case m.CommandCheckAssemblyHash:
		return s.checkHash(env)
	default:
		slog.Warn("Ignoring unknown command", "command", env.Command, "kind", env.Kind)
		return fmt.Errorf("%w: %s", m.ErrUnknownCommand, env.Command)
	}
}

func (s *Server) callFunction(env m.Envelope) error {
	spec, err := callSpecFrom(env)
	if err != nil {
		return err
	}

	return s.functions.Call(spec)
}

func (s *Server) discoverTests(ctx context.Context, env m.Envelope) error {
	req, _ := env.Payload.(m.DiscoverRequest)

	cases, err := s.engine.Discover(ctx, req.Sources)
	if err != nil {
		return s.replyError(env, m.KindTelemetry, err)
	}

	if cases == nil {
		cases = []m.TestCase{}
	}

	_, err = s.agent.Send(m.Envelope{
		SessionID: env.SessionID,
		Kind:      m.KindTelemetry,
		Command:   m.CommandDiscoverTests,
		Payload:   cases,
	})

	return err
}

func (s *Server) runTests(ctx context.Context, env m.Envelope) error {
	req, ok := env.Payload.(m.RunRequest)
	if !ok {
		return s.replyError(env, m.KindReply|m.KindEndOfReply,
			fmt.Errorf("%w: RunTests payload is %T", m.ErrProtocolFraming, env.Payload))
	}

	runID := env.SessionID
	reporter := &runReporter{agent: s.agent, runID: runID}

	var (
		summary m.RunSummary
		err     error
	)

	if len(req.IDs) > 0 {
		summary, err = s.engine.RunTests(ctx, runID, req.IDs, reporter)
	} else {
		summary, err = s.engine.RunSources(ctx, runID, req.Sources, reporter)
	}

	if err != nil {
		return s.replyError(env, m.KindReply|m.KindEndOfReply, err)
	}

	slog.Info("Run finished", "run", runID, "total", summary.Total, "cancelled", summary.Cancelled)

	_, err = s.agent.Send(m.Envelope{
		SessionID: runID,
		Kind:      m.KindReply | m.KindEndOfReply,
		Command:   m.CommandRunTests,
		Payload:   summary,
	})

	return err
}

func (s *Server) checkHash(env m.Envelope) error {
	req, _ := env.Payload.(m.HashRequest)

	if s.hasher == nil {
		return s.replyError(env, m.KindReply, errors.New("source hashing is not configured"))
	}

	digest, err := s.hasher.HashSource(req.Source)
	if err != nil {
		return s.replyError(env, m.KindReply, err)
	}

	_, err = s.agent.Send(m.Envelope{
		SessionID: env.SessionID,
		Kind:      m.KindReply,
		Command:   m.CommandCheckAssemblyHash,
		Payload:   digest,
	})

	return err
}

// replyError tells the client a request failed so its call does not wait forever.
func (s *Server) replyError(env m.Envelope, kind m.Kind, cause error) error {
	_, err := s.agent.Send(m.Envelope{
		SessionID: env.SessionID,
		Kind:      kind,
		Command:   env.Command,
		Payload:   m.RemoteError{Command: env.Command, Message: cause.Error()},
	})

	return errors.Join(cause, err)
}

func (s *Server) setLoopError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loopErr = err
}

func (s *Server) loopError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loopErr
}

func isCancel(env m.Envelope) bool {
	return env.Command == m.CommandCancel
}

// runReporter forwards scheduler events of one run to the client. Send
// failures are logged and never reach the scheduler.
type runReporter struct {
	agent *Agent
	runID int32
}

func (r *runReporter) ReportTestStarted(result m.TestResult) {
	r.send(m.KindTelemetry, m.CommandRecordTestStart, result)
}

func (r *runReporter) ReportTestEnded(result m.TestResult) {
	r.send(m.KindTelemetry, m.CommandRecordTestEnd, result)
}

func (r *runReporter) ReportTestResults(results []m.TestResult) {
	r.send(m.KindReply, m.CommandTakeResults, results)
}

func (r *runReporter) send(kind m.Kind, command m.Command, payload any) {
	_, err := r.agent.Send(m.Envelope{
		SessionID: r.runID,
		Kind:      kind,
		Command:   command,
		Payload:   payload,
	})
	if err != nil {
		slog.Warn("Dropped run event", "run", r.runID, "command", command, "error", err)
	}
}
