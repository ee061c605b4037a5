package domain

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	m "rigor.dev/pkg/rigor/internal/model"
)

// Graph is the scope tree of one discovery, with id lookups for scopes and tests.
// A graph is reused across runs: Run resets every active flag when it returns.
type Graph struct {
	root  *ScopeNode
	nodes map[m.NodeID]*ScopeNode
	tests map[m.NodeID]*TestMethodContext
	order []*TestMethodContext
	token atomic.Pointer[CancellationToken]
}

// NewGraph returns a graph rooted at root.
func NewGraph(root *ScopeNode) *Graph {
	return &Graph{
		root:  root,
		nodes: map[m.NodeID]*ScopeNode{root.ID: root},
		tests: map[m.NodeID]*TestMethodContext{},
	}
}

// Root returns the domain node.
func (g *Graph) Root() *ScopeNode {
	return g.root
}

// Add links node under its parent, which must already be in the graph.
func (g *Graph) Add(node *ScopeNode) error {
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("scope %q (%s) already exists", node.FullName, node.ID)
	}

	parent, ok := g.nodes[node.ParentID]
	if !ok {
		return fmt.Errorf("parent %s of scope %q not found", node.ParentID, node.FullName)
	}

	parent.Children = append(parent.Children, node)
	g.nodes[node.ID] = node

	return nil
}

// AddTestContext attaches tc to its parent scope and registers it for lookup.
func (g *Graph) AddTestContext(tc *TestMethodContext) error {
	if _, exists := g.tests[tc.TestID]; exists {
		return fmt.Errorf("test %q (%s) already exists", tc.FullyQualifiedName, tc.TestID)
	}

	parent, ok := g.nodes[tc.ParentID]
	if !ok {
		return fmt.Errorf("parent %s of test %q not found", tc.ParentID, tc.FullyQualifiedName)
	}

	parent.TestContexts = append(parent.TestContexts, tc)
	g.tests[tc.TestID] = tc
	g.order = append(g.order, tc)

	return nil
}

// Node looks up a scope by id.
func (g *Graph) Node(id m.NodeID) (*ScopeNode, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// TestContext looks up a test by id.
func (g *Graph) TestContext(id m.NodeID) (*TestMethodContext, bool) {
	tc, ok := g.tests[id]
	return tc, ok
}

// TestCases lists every test in discovery order.
func (g *Graph) TestCases() []m.TestCase {
	cases := make([]m.TestCase, 0, len(g.order))
	for _, tc := range g.order {
		cases = append(cases, tc.TestCase)
	}

	return cases
}

// Len returns the number of tests.
func (g *Graph) Len() int {
	return len(g.order)
}

// ActivateAll marks every test as part of the next run.
func (g *Graph) ActivateAll() {
	for _, tc := range g.order {
		tc.SetActive(g)
	}
}

// Run executes the active part of the graph under a fresh cancellation token
// and resets the graph afterwards.
func (g *Graph) Run(runID int32, reporter Reporter) m.RunSummary {
	token := NewCancellationToken()
	g.token.Store(token)

	counter := &countingReporter{next: reporter}

	slog.Info("Starting test run", "run", runID, "tests", g.Len())

	g.root.Start(runID, counter, token)
	g.root.Reset()

	summary := m.RunSummary{
		RunID:     runID,
		Total:     counter.total,
		Cancelled: token.IsCancelled(),
	}

	slog.Info("Finished test run", "run", runID, "results", summary.Total, "cancelled", summary.Cancelled)

	return summary
}

// Cancel sets the token of the current run. It has no effect on later runs.
func (g *Graph) Cancel() {
	if token := g.token.Load(); token != nil {
		token.Cancel()
	}
}
