// Package selftest registers sample suites served by "rigor serve --selftest".
// They exercise every kind of preparation scope, data-driven tests and each
// test outcome, so a client can be checked against a known server.
package selftest

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"rigor.dev/pkg/rigor/internal/adapter"
	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/pkg/check"
)

// Sources registered by Register.
const (
	MathSource   = "selftest/math"
	StringSource = "selftest/strings"
	DemoSource   = "selftest/demo"
)

// Register adds the sample suites to r.
func Register(r *adapter.SuiteRegistry) {
	state := &sharedState{}

	r.RegisterPrep(MathSource, "", m.Prep{
		Owner:      "selftest.Assembly",
		Scope:      m.ScopeAssembly,
		Initialize: state.open,
		Cleanup:    state.close,
	})
	r.Register(MathSource, arithmeticFixture(state), fibonacciFixture())

	r.Register(StringSource, stringsFixture())

	r.RegisterPrep(DemoSource, "demo", m.Prep{
		Owner: "demo.Namespace",
		Scope: m.ScopeNamespace,
		Initialize: func(any) error {
			slog.Debug("Demo namespace initialized")
			return nil
		},
	})
	r.Register(DemoSource, outcomesFixture())
}

// sharedState is opened once per run at assembly scope.
type sharedState struct {
	mu    sync.Mutex
	opened bool
}

func (s *sharedState) open(any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opened = true

	return nil
}

func (s *sharedState) close(any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opened = false

	return nil
}

func (s *sharedState) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opened
}

type calculator struct {
	memory int
}

func arithmeticFixture(state *sharedState) m.Fixture {
	return m.Fixture{
		Namespace: "math",
		Name:      "ArithmeticTest",
		New:       func() (any, error) { return &calculator{}, nil },
		Preps: []m.Prep{{
			Owner: "math.ArithmeticTest",
			Scope: m.ScopeMethod,
			Initialize: func(instance any) error {
				instance.(*calculator).memory = 10
				return nil
			},
		}},
		Tests: []m.Test{
			{Name: "SharedStateIsOpen", Func: func(any, ...any) error {
				return check.True(state.isOpen(), "assembly state should be open")
			}},
			{Name: "MemoryIsInitialized", Func: func(instance any, _ ...any) error {
				return check.Equal(10, instance.(*calculator).memory, "memory")
			}},
			{
				Name: "Adds",
				Data: m.DataRows{{1, 2, 3}, {-4, 4, 0}, {20, 22, 42}},
				Func: func(_ any, args ...any) error {
					return check.Equal(args[2], args[0].(int)+args[1].(int), "sum")
				},
			},
			{Name: "DividesByZero", Func: func(any, ...any) error {
				_, err := divide(1, 0)
				return check.True(errors.Is(err, errDivideByZero), "expected divide by zero")
			}},
		},
	}
}

var errDivideByZero = errors.New("divide by zero")

func divide(a, b int) (int, error) {
	if b == 0 {
		return 0, errDivideByZero
	}

	return a / b, nil
}

func fibonacciFixture() m.Fixture {
	return m.Fixture{
		Namespace: "math",
		Name:      "FibonacciTest",
		Tests: []m.Test{{
			Name: "Sequence",
			Data: m.DataSourceFunc(func() ([][]any, error) {
				rows := make([][]any, 0, 10)
				a, b := 0, 1

				for i := range 10 {
					rows = append(rows, []any{i, a})
					a, b = b, a+b
				}

				return rows, nil
			}),
			Func: func(_ any, args ...any) error {
				return check.Equal(args[1], fib(args[0].(int)), fmt.Sprintf("fib(%d)", args[0]))
			},
		}},
	}
}

func fib(n int) int {
	if n < 2 {
		return n
	}

	return fib(n-1) + fib(n-2)
}

func stringsFixture() m.Fixture {
	return m.Fixture{
		Namespace: "text",
		Name:      "StringsTest",
		Tests: []m.Test{
			{Name: "Upper", Func: func(any, ...any) error {
				return check.Equal("RIGOR", strings.ToUpper("rigor"), "upper")
			}},
			{
				Name: "Fields",
				Data: m.DataRows{{"a b c", 3}, {"", 0}, {"  spaced  out ", 2}},
				Func: func(_ any, args ...any) error {
					return check.Equal(args[1], len(strings.Fields(args[0].(string))), "fields")
				},
			},
		},
	}
}

// outcomesFixture produces one result of every outcome.
func outcomesFixture() m.Fixture {
	return m.Fixture{
		Namespace: "demo",
		Name:      "OutcomesTest",
		Tests: []m.Test{
			{Name: "Passes", Func: func(any, ...any) error { return nil }},
			{Name: "FailsAssertion", Func: func(any, ...any) error {
				return check.Equal([]string{"a", "b"}, []string{"a", "c"}, "letters")
			}},
			{Name: "ReturnsError", Func: func(any, ...any) error {
				return errors.New("unexpected state")
			}},
			{Name: "Panics", Func: func(any, ...any) error {
				panic("deliberate panic")
			}},
			{
				Name: "EmptyData",
				Data: m.DataRows{},
				Func: func(any, ...any) error { return nil },
			},
		},
	}
}
