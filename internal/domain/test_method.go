package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/pkg/check"
)

// TestMethodContext is a leaf of the scope graph: one test method of a fixture.
type TestMethodContext struct {
	m.TestCase

	ParentID    m.NodeID
	Method      m.TestFunc
	NewInstance func() (any, error)
	Data        m.DataSource
	Active      bool
	TestRunID   int32

	// Instance is set by the owning scope for the duration of one invocation.
	Instance any
}

// SetActive marks the context and every ancestor scope as part of the next run.
func (tc *TestMethodContext) SetActive(g *Graph) {
	tc.Active = true

	if parent, ok := g.Node(tc.ParentID); ok {
		parent.SetActive(g)
	}
}

// Invoke runs the method once, or once per data row, and returns the results.
func (tc *TestMethodContext) Invoke(reporter Reporter) []m.TestResult {
	if tc.Data == nil {
		return []m.TestResult{tc.InvokeOnce(reporter, m.NoDataRow)}
	}

	rows, err := tc.Data.Rows()
	if err == nil && len(rows) == 0 {
		err = m.ErrDataSource
	} else if err != nil {
		err = fmt.Errorf("%w: %w", m.ErrDataSource, err)
	}

	if err != nil {
		slog.Error("Failed to load data rows", "test", tc.FullyQualifiedName, "error", err)

		result := tc.newResult(m.NoDataRow)
		result.StartTime = time.Now()
		result.EndTime = result.StartTime
		result.Outcome = m.OutcomeError
		result.Message = err.Error()
		result.ErrorText = err.Error()

		return []m.TestResult{result}
	}

	results := make([]m.TestResult, 0, len(rows))
	for i, row := range rows {
		results = append(results, tc.InvokeOnce(reporter, i, row...))
	}

	return results
}

// InvokeOnce calls the method with args and classifies the outcome. Assertion
// failures become Failed, any other error or panic becomes Error. The ended
// event is only reported for passing invocations.
func (tc *TestMethodContext) InvokeOnce(reporter Reporter, row int, args ...any) m.TestResult {
	result := tc.newResult(row)
	result.StartTime = time.Now()
	reporter.ReportTestStarted(result)

	err := callTest(tc.Method, tc.Instance, args)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if err == nil {
		result.Outcome = m.OutcomePassed
		reporter.ReportTestEnded(result)

		return result
	}

	if ae, ok := check.IsAssertion(err); ok {
		result.Outcome = m.OutcomeFailed
		result.Message = ae.Message

		return result
	}

	result.Outcome = m.OutcomeError
	result.Message = err.Error()
	result.ErrorText = fmt.Sprintf("%+v", err)

	var pe *panicError
	if errors.As(err, &pe) {
		result.ErrorText += "\n" + pe.stack
	}

	slog.Error("Test method failed", "test", tc.FullyQualifiedName, "row", row, "error", err)

	return result
}

func (tc *TestMethodContext) newResult(row int) m.TestResult {
	result := m.NewTestResult(tc.TestCase, tc.TestRunID)
	result.DataRowIndex = row

	return result
}

func (tc *TestMethodContext) newInstance() (any, error) {
	if tc.NewInstance == nil {
		return nil, nil
	}

	var instance any

	err := recoverCall(func() error {
		var err error

		instance, err = tc.NewInstance()

		return err
	})

	return instance, err
}

func callTest(fn m.TestFunc, instance any, args []any) error {
	if fn == nil {
		return fmt.Errorf("test method is nil")
	}

	return recoverCall(func() error {
		return fn(instance, args...)
	})
}

// panicError is a recovered panic that is not an assertion failure.
type panicError struct {
	err   error
	stack string
}

func (p *panicError) Error() string {
	return p.err.Error()
}

func (p *panicError) Unwrap() error {
	return p.err
}

// recoverCall runs fn and turns a panic into an error.
func recoverCall(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		perr, ok := r.(error)
		if !ok {
			perr = fmt.Errorf("panic: %v", r)
		}

		if _, isAssertion := check.IsAssertion(perr); isAssertion {
			err = perr
			return
		}

		err = &panicError{err: perr, stack: string(debug.Stack())}
	}()

	return fn()
}
