package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	m "rigor.dev/pkg/rigor/internal/model"
)

// ErrNoTestsDiscovered is returned when running by id before any discovery.
var ErrNoTestsDiscovered = errors.New("no tests discovered")

// Discoverer produces the fixtures found in a set of sources.
type Discoverer interface {
	Discover(ctx context.Context, sources []string) ([]m.Package, error)
}

// Engine discovers tests and runs them, one run at a time.
type Engine interface {
	Discover(ctx context.Context, sources []string) ([]m.TestCase, error)
	RunTests(ctx context.Context, runID int32, ids []m.NodeID, reporter Reporter) (m.RunSummary, error)
	RunSources(ctx context.Context, runID int32, sources []string, reporter Reporter) (m.RunSummary, error)
	Cancel()
}

type engine struct {
	discoverer Discoverer
	builder    *Builder

	runMu   sync.Mutex
	graphMu sync.RWMutex
	graph   *Graph
}

// NewEngine returns an Engine that discovers through discoverer and names its root domain.
func NewEngine(discoverer Discoverer, domain string) Engine {
	return &engine{
		discoverer: discoverer,
		builder:    NewBuilder(domain),
	}
}

func (e *engine) Discover(ctx context.Context, sources []string) ([]m.TestCase, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	g, err := e.discover(ctx, sources)
	if err != nil {
		return nil, err
	}

	return g.TestCases(), nil
}

func (e *engine) discover(ctx context.Context, sources []string) (*Graph, error) {
	packages, err := e.discoverer.Discover(ctx, sources)
	if err != nil {
		slog.Error("Failed to discover tests", "sources", sources, "error", err)
		return nil, fmt.Errorf("failed to discover tests: %w", err)
	}

	g, err := e.builder.Build(packages)
	if err != nil {
		return nil, err
	}

	e.graphMu.Lock()
	e.graph = g
	e.graphMu.Unlock()

	slog.Info("Discovered tests", "sources", sources, "tests", g.Len())

	return g, nil
}

func (e *engine) RunTests(ctx context.Context, runID int32, ids []m.NodeID, reporter Reporter) (m.RunSummary, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	g := e.currentGraph()
	if g == nil {
		return m.RunSummary{RunID: runID}, ErrNoTestsDiscovered
	}

	var missing []m.TestResult

	for _, id := range ids {
		tc, ok := g.TestContext(id)
		if !ok {
			slog.Warn("Requested test not found", "id", id, "run", runID)
			missing = append(missing, notFoundResult(id, runID))

			continue
		}

		tc.SetActive(g)
	}

	if len(missing) > 0 {
		reporter.ReportTestResults(missing)
	}

	summary, err := e.run(ctx, g, runID, reporter)
	summary.Total += len(missing)

	return summary, err
}

func (e *engine) RunSources(ctx context.Context, runID int32, sources []string, reporter Reporter) (m.RunSummary, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	g, err := e.discover(ctx, sources)
	if err != nil {
		return m.RunSummary{RunID: runID}, err
	}

	g.ActivateAll()

	return e.run(ctx, g, runID, reporter)
}

func (e *engine) run(ctx context.Context, g *Graph, runID int32, reporter Reporter) (m.RunSummary, error) {
	if err := ctx.Err(); err != nil {
		g.Root().Reset()
		return m.RunSummary{RunID: runID, Cancelled: true}, err
	}

	stop := context.AfterFunc(ctx, g.Cancel)
	defer stop()

	return g.Run(runID, reporter), nil
}

func (e *engine) Cancel() {
	if g := e.currentGraph(); g != nil {
		g.Cancel()
	}
}

func (e *engine) currentGraph() *Graph {
	e.graphMu.RLock()
	defer e.graphMu.RUnlock()

	return e.graph
}

func notFoundResult(id m.NodeID, runID int32) m.TestResult {
	now := time.Now()
	result := m.NewTestResult(m.TestCase{TestID: id, DisplayName: id.String()}, runID)
	result.Outcome = m.OutcomeNotFound
	result.StartTime = now
	result.EndTime = now
	result.Message = "test not found: " + id.String()

	return result
}
