package wire

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	m "rigor.dev/pkg/rigor/internal/model"
)

// EventKind tells what happened to a test.
type EventKind int

const (
	// EventStarted is sent when a test starts.
	EventStarted EventKind = iota
	// EventEnded is sent when a test ends, before its result is delivered.
	EventEnded
	// EventResult carries a final result.
	EventResult
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	case EventResult:
		return "result"
	}

	return "unknown"
}

// minEventBuffer is the smallest capacity of a run's event channel. Each test
// yields a start, an end and a result per data row.
const minEventBuffer = 256

// RunEvent is one progress notification of a run.
type RunEvent struct {
	Kind   EventKind
	Result m.TestResult
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithObserver registers fn to be called for every event of the run, on the
// receive goroutine. fn must not block.
func WithObserver(fn func(RunEvent)) RunOption {
	return func(r *Run) {
		r.observers = append(r.observers, fn)
	}
}

// Run is a test run in progress on the server.
type Run struct {
	ID int32

	expected  []m.TestCase
	observers []func(RunEvent)
	events    chan RunEvent

	// pubMu orders event delivery against closing the events channel.
	pubMu        sync.Mutex
	eventsClosed bool

	mu       sync.Mutex
	reported map[m.NodeID]bool
	results  []m.TestResult
	summary  m.RunSummary
	err      error
	finished bool
	done     chan struct{}
}

func newRun(id int32, expected []m.TestCase, opts ...RunOption) *Run {
	r := &Run{
		ID:       id,
		expected: expected,
		events:   make(chan RunEvent, max(3*len(expected), minEventBuffer)),
		reported: make(map[m.NodeID]bool, len(expected)),
		summary:  m.RunSummary{RunID: id},
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Expected returns the tests the run is expected to report.
func (r *Run) Expected() []m.TestCase {
	return r.expected
}

// Events streams the progress of the run. The channel is closed when the run
// completes. Events are dropped when its buffer is full; use WithObserver to
// see every event.
func (r *Run) Events() <-chan RunEvent {
	return r.events
}

// Done is closed when the run completes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes or ctx ends.
func (r *Run) Wait(ctx context.Context) ([]m.TestResult, m.RunSummary, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return r.Results(), m.RunSummary{RunID: r.ID, Cancelled: true}, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]m.TestResult(nil), r.results...), r.summary, r.err
}

// Results returns the results received so far.
func (r *Run) Results() []m.TestResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]m.TestResult(nil), r.results...)
}

func (r *Run) emit(event RunEvent) {
	r.mu.Lock()
	finished := r.finished
	r.mu.Unlock()

	if finished {
		return
	}

	r.publish(event)
}

func (r *Run) publish(event RunEvent) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	if r.eventsClosed {
		return
	}

	for _, fn := range r.observers {
		fn(event)
	}

	select {
	case r.events <- event:
	default:
		slog.Warn("Dropped run event", "run", r.ID, "kind", event.Kind, "test", event.Result.DisplayName)
	}
}

func (r *Run) addResults(results []m.TestResult) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}

	for _, result := range results {
		r.reported[result.TestID] = true
	}

	r.results = append(r.results, results...)
	r.mu.Unlock()

	for _, result := range results {
		r.publish(RunEvent{Kind: EventResult, Result: result})
	}
}

func (r *Run) complete(summary m.RunSummary, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}

	r.finished = true
	r.summary = summary
	r.err = err

	r.pubMu.Lock()
	r.eventsClosed = true
	close(r.events)
	r.pubMu.Unlock()

	close(r.done)
}

// abort completes the run with synthesized Error results for every expected
// test that has not been reported yet.
func (r *Run) abort(cause error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}

	now := time.Now()

	var synthesized []m.TestResult

	for _, tc := range r.expected {
		if r.reported[tc.TestID] {
			continue
		}

		result := m.NewTestResult(tc, r.ID)
		result.Outcome = m.OutcomeError
		result.StartTime = now
		result.EndTime = now
		result.Message = "run did not complete"
		result.ErrorText = cause.Error()

		r.reported[tc.TestID] = true
		synthesized = append(synthesized, result)
	}

	r.results = append(r.results, synthesized...)
	r.mu.Unlock()

	for _, result := range synthesized {
		r.publish(RunEvent{Kind: EventResult, Result: result})
	}

	r.complete(m.RunSummary{RunID: r.ID, Total: len(r.Results()), Cancelled: true},
		fmt.Errorf("run %d aborted: %w", r.ID, cause))
}
