package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	m "rigor.dev/pkg/rigor/internal/model"
)

// PreparationGroup is the initialize/cleanup pair one type in a fixture's
// hierarchy contributes to a scope.
type PreparationGroup struct {
	Owner      string
	Initialize m.HookFunc
	Cleanup    m.HookFunc
}

// ScopeNode is an interior node of the scope graph.
type ScopeNode struct {
	ID       m.NodeID
	ParentID m.NodeID
	Source   string
	FullName string
	Kind     m.ScopeKind

	Children          []*ScopeNode
	PreparationGroups []PreparationGroup
	TestContexts      []*TestMethodContext
	Active            bool

	cleanups []PreparationGroup
}

// NewScopeNode returns a node whose id is derived from source and fullName.
func NewScopeNode(kind m.ScopeKind, parentID m.NodeID, source, fullName string) *ScopeNode {
	return &ScopeNode{
		ID:       m.NewNodeID(source, fullName),
		ParentID: parentID,
		Source:   source,
		FullName: fullName,
		Kind:     kind,
	}
}

// Start runs the active test contexts of this node, then its active children.
// It returns early once the token is cancelled. Failures are logged and
// reported, never returned.
func (n *ScopeNode) Start(runID int32, reporter Reporter, token *CancellationToken) {
	for i, tc := range n.TestContexts {
		if !tc.Active {
			continue
		}

		if n.CheckCancellation(token) {
			return
		}

		if !n.runTestContext(runID, tc, reporter) {
			n.reportSkipped(n.TestContexts[i+1:], runID, reporter)
			break
		}
	}

	if n.CheckCancellation(token) || len(n.Children) == 0 {
		return
	}

	if err := n.Setup(nil); err != nil {
		n.Cleanup(nil) //nolint:errcheck // failures are logged by Cleanup

		for _, child := range n.Children {
			if child.Active {
				child.reportSkippedTree(runID, reporter, err)
			}
		}

		return
	}

	for _, child := range n.Children {
		if !child.Active {
			continue
		}

		child.Start(runID, reporter, token)
	}

	n.Cleanup(nil) //nolint:errcheck // failures are logged by Cleanup
}

// runTestContext sets up, invokes and cleans up one context. It returns false
// when the setup failed, which stops the remaining contexts of the node.
func (n *ScopeNode) runTestContext(runID int32, tc *TestMethodContext, reporter Reporter) bool {
	tc.TestRunID = runID

	instance, err := tc.newInstance()
	if err != nil {
		slog.Error("Failed to create fixture instance", "test", tc.FullyQualifiedName, "error", err)
		reporter.ReportTestResults([]m.TestResult{setupFailureResult(tc, fmt.Errorf("%w: %w", m.ErrSetupFailure, err))})

		return false
	}

	tc.Instance = instance

	defer func() {
		n.Cleanup(instance) //nolint:errcheck // failures are logged by Cleanup

		tc.Instance = nil
	}()

	if err := n.Setup(instance); err != nil {
		reporter.ReportTestResults([]m.TestResult{setupFailureResult(tc, err)})
		return false
	}

	reporter.ReportTestResults(tc.Invoke(reporter))

	return true
}

// Setup pushes each preparation group on the cleanup stack and then runs its
// initializer. The first failure stops the chain; the groups pushed so far are
// still cleaned up by Cleanup.
func (n *ScopeNode) Setup(instance any) error {
	for _, group := range n.PreparationGroups {
		n.cleanups = append(n.cleanups, group)

		if group.Initialize == nil {
			continue
		}

		slog.Debug("Initializing scope", "scope", n.FullName, "kind", n.Kind, "owner", group.Owner)

		if err := recoverCall(func() error { return group.Initialize(instance) }); err != nil {
			slog.Error("Failed to initialize scope", "scope", n.FullName, "owner", group.Owner, "error", err)
			return fmt.Errorf("%w: %s initialize: %w", m.ErrSetupFailure, group.Owner, err)
		}
	}

	return nil
}

// Cleanup pops the cleanup stack in reverse order of Setup. Every handler runs
// even when an earlier one fails; all failures are returned joined.
func (n *ScopeNode) Cleanup(instance any) error {
	var errs []error

	for i := len(n.cleanups) - 1; i >= 0; i-- {
		group := n.cleanups[i]
		if group.Cleanup == nil {
			continue
		}

		slog.Debug("Cleaning up scope", "scope", n.FullName, "kind", n.Kind, "owner", group.Owner)

		if err := recoverCall(func() error { return group.Cleanup(instance) }); err != nil {
			slog.Error("Failed to clean up scope", "scope", n.FullName, "owner", group.Owner, "error", err)
			errs = append(errs, fmt.Errorf("%s cleanup: %w", group.Owner, err))
		}
	}

	n.cleanups = n.cleanups[:0]

	return errors.Join(errs...)
}

// SetActive marks the node and its ancestors as part of the next run.
func (n *ScopeNode) SetActive(g *Graph) {
	for node := n; node != nil && !node.Active; {
		node.Active = true

		parent, ok := g.Node(node.ParentID)
		if !ok {
			return
		}

		node = parent
	}
}

// Reset clears the active flags of the node, its contexts and all descendants.
func (n *ScopeNode) Reset() {
	n.Active = false

	for _, tc := range n.TestContexts {
		tc.Active = false
		tc.Instance = nil
	}

	for _, child := range n.Children {
		child.Reset()
	}
}

// CheckCancellation reports whether the run was cancelled.
func (n *ScopeNode) CheckCancellation(token *CancellationToken) bool {
	if !token.IsCancelled() {
		return false
	}

	slog.Info("Test run cancelled", "scope", n.FullName, "kind", n.Kind)

	return true
}

func (n *ScopeNode) reportSkipped(contexts []*TestMethodContext, runID int32, reporter Reporter) {
	var results []m.TestResult

	for _, tc := range contexts {
		if !tc.Active {
			continue
		}

		tc.TestRunID = runID
		results = append(results, setupFailureResult(tc, fmt.Errorf("%w: skipped after an earlier setup failure in %s", m.ErrSetupFailure, n.FullName)))
	}

	if len(results) > 0 {
		reporter.ReportTestResults(results)
	}
}

func (n *ScopeNode) reportSkippedTree(runID int32, reporter Reporter, cause error) {
	var results []m.TestResult

	n.walkActive(func(tc *TestMethodContext) {
		tc.TestRunID = runID
		results = append(results, setupFailureResult(tc, cause))
	})

	if len(results) > 0 {
		reporter.ReportTestResults(results)
	}
}

func (n *ScopeNode) walkActive(fn func(tc *TestMethodContext)) {
	for _, tc := range n.TestContexts {
		if tc.Active {
			fn(tc)
		}
	}

	for _, child := range n.Children {
		if child.Active {
			child.walkActive(fn)
		}
	}
}

func setupFailureResult(tc *TestMethodContext, err error) m.TestResult {
	result := tc.newResult(m.NoDataRow)
	result.StartTime = time.Now()
	result.EndTime = result.StartTime
	result.Outcome = m.OutcomeError
	result.Message = err.Error()
	result.ErrorText = fmt.Sprintf("%+v", err)

	return result
}
