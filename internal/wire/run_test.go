package wire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "rigor.dev/pkg/rigor/internal/model"
)

func expectedCases(names ...string) []m.TestCase {
	cases := make([]m.TestCase, 0, len(names))
	for _, name := range names {
		cases = append(cases, m.TestCase{
			TestID:             m.NewNodeID("unit.suite", "unit.T."+name),
			Source:             "unit.suite",
			FullyQualifiedName: "unit.T." + name,
			DisplayName:        name,
		})
	}

	return cases
}

func TestRun_AbortSynthesizesMissingResults(t *testing.T) {
	cases := expectedCases("A", "B", "C")
	run := newRun(5, cases)

	passed := m.NewTestResult(cases[0], 5)
	passed.Outcome = m.OutcomePassed
	run.addResults([]m.TestResult{passed})

	run.abort(errors.New("connection reset"))

	results, summary, err := run.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 3, summary.Total)

	require.Len(t, results, 3)
	assert.Equal(t, m.OutcomePassed, results[0].Outcome)

	for _, r := range results[1:] {
		assert.Equal(t, m.OutcomeError, r.Outcome)
		assert.Equal(t, int32(5), r.TestRunID)
		assert.Equal(t, "connection reset", r.ErrorText)
	}
}

func TestRun_CompleteIsFinal(t *testing.T) {
	cases := expectedCases("A")
	run := newRun(1, cases)

	run.complete(m.RunSummary{RunID: 1, Total: 0}, nil)
	run.abort(errors.New("late"))
	run.addResults([]m.TestResult{m.NewTestResult(cases[0], 1)})
	run.emit(RunEvent{Kind: EventStarted})

	results, summary, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, summary.Total)

	_, open := <-run.Events()
	assert.False(t, open)
}

func TestRun_WaitHonoursContext(t *testing.T) {
	run := newRun(2, expectedCases("A"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, summary, err := run.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, summary.Cancelled)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "started", EventStarted.String())
	assert.Equal(t, "ended", EventEnded.String())
	assert.Equal(t, "result", EventResult.String())
	assert.Equal(t, "unknown", EventKind(9).String())
}
