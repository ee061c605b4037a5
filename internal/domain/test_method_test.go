package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/pkg/check"
)

func newContext(fn m.TestFunc) *TestMethodContext {
	return &TestMethodContext{
		TestCase: m.TestCase{
			TestID:             m.NewNodeID("src", "ns.Fixture.Method"),
			Source:             "src",
			FullyQualifiedName: "ns.Fixture.Method",
			DisplayName:        "Method",
		},
		Method:    fn,
		TestRunID: 9,
	}
}

func TestTestMethodContext_InvokeOnce(t *testing.T) {
	tests := []struct {
		name        string
		fn          m.TestFunc
		outcome     m.Outcome
		message     string
		errorText   string
		endReported bool
	}{
		{
			name:        "normal return passes",
			fn:          func(any, ...any) error { return nil },
			outcome:     m.OutcomePassed,
			endReported: true,
		},
		{
			name:    "assertion error fails",
			fn:      func(any, ...any) error { return check.Equal(1, 2, "count") },
			outcome: m.OutcomeFailed,
			message: "count: expected 1, got 2",
		},
		{
			name:    "panicking assertion fails",
			fn: func(any, ...any) error {
				check.Must(check.Failf("nope"))
				return nil
			},
			outcome: m.OutcomeFailed,
			message: "nope",
		},
		{
			name:      "other error is an error",
			fn:        func(any, ...any) error { return errors.New("db down") },
			outcome:   m.OutcomeError,
			message:   "db down",
			errorText: "db down",
		},
		{
			name:      "panic is an error with stack",
			fn:        func(any, ...any) error { panic("nil map") },
			outcome:   m.OutcomeError,
			message:   "panic: nil map",
			errorText: "goroutine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reporter := &CollectingReporter{}
			tc := newContext(tt.fn)

			result := tc.InvokeOnce(reporter, m.NoDataRow)

			assert.Equal(t, tt.outcome, result.Outcome)
			assert.Equal(t, int32(9), result.TestRunID)
			assert.Equal(t, m.NoDataRow, result.DataRowIndex)
			assert.False(t, result.StartTime.IsZero())
			assert.False(t, result.EndTime.Before(result.StartTime))

			if tt.message != "" {
				assert.Equal(t, tt.message, result.Message)
			}

			if tt.errorText != "" {
				assert.Contains(t, result.ErrorText, tt.errorText)
			}

			require.Len(t, reporter.Started(), 1)

			if tt.endReported {
				assert.Len(t, reporter.Ended(), 1)
			} else {
				assert.Empty(t, reporter.Ended())
			}
		})
	}
}

func TestTestMethodContext_Invoke(t *testing.T) {
	t.Run("one invocation per data row", func(t *testing.T) {
		var seen []int

		tc := newContext(func(_ any, args ...any) error {
			seen = append(seen, args[0].(int))
			return check.True(args[0].(int) < 3, "below three")
		})
		tc.Data = m.DataRows{{1}, {2}, {3}}

		results := tc.Invoke(NopReporter{})

		require.Len(t, results, 3)
		assert.Equal(t, []int{1, 2, 3}, seen)
		assert.Equal(t, 0, results[0].DataRowIndex)
		assert.Equal(t, m.OutcomePassed, results[1].Outcome)
		assert.Equal(t, m.OutcomeFailed, results[2].Outcome)
		assert.NotEqual(t, results[0].ExecutionID, results[1].ExecutionID)
	})

	t.Run("empty data source fails fast", func(t *testing.T) {
		called := false
		tc := newContext(func(any, ...any) error {
			called = true
			return nil
		})
		tc.Data = m.DataRows{}

		results := tc.Invoke(NopReporter{})

		require.Len(t, results, 1)
		assert.False(t, called)
		assert.Equal(t, m.OutcomeError, results[0].Outcome)
		assert.Contains(t, results[0].ErrorText, m.ErrDataSource.Error())
		assert.Equal(t, results[0].ErrorText, results[0].Message)
	})

	t.Run("data source error fails fast", func(t *testing.T) {
		tc := newContext(func(any, ...any) error { return nil })
		tc.Data = m.DataSourceFunc(func() ([][]any, error) { return nil, errors.New("csv missing") })

		results := tc.Invoke(NopReporter{})

		require.Len(t, results, 1)
		assert.Equal(t, m.OutcomeError, results[0].Outcome)
		assert.Contains(t, results[0].ErrorText, "csv missing")
		assert.Contains(t, results[0].Message, "csv missing")
	})

	t.Run("instance is passed to the method", func(t *testing.T) {
		instance := &fixtureInstance{value: 42}
		tc := newContext(func(inst any, _ ...any) error {
			return check.Equal(42, inst.(*fixtureInstance).value, "value")
		})
		tc.Instance = instance

		results := tc.Invoke(NopReporter{})

		require.Len(t, results, 1)
		assert.Equal(t, m.OutcomePassed, results[0].Outcome)
	})
}
