package wire

import (
	"context"
	"fmt"
	"net"
	"time"

	"rigor.dev/pkg/rigor/internal/adapter"
	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/pkg/check"
)

const (
	calcSource = "calc.suite"
	slowSource = "slow.suite"
	slowTests  = 8
)

func testConfig() adapter.TransportConfig {
	cfg := adapter.DefaultTransportConfig()
	cfg.Port = 0
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ReceiveTimeout = time.Second

	return cfg
}

func portOf(addr net.Addr) int {
	return addr.(*net.TCPAddr).Port
}

func calcFixture() m.Fixture {
	return m.Fixture{
		Namespace: "calc",
		Name:      "CalcTest",
		New:       func() (any, error) { return &struct{}{}, nil },
		Tests: []m.Test{
			{Name: "Adds", Func: func(any, ...any) error {
				return check.Equal(4, 2+2, "sum")
			}},
			{Name: "Fails", Func: func(any, ...any) error {
				return check.Failf("always fails")
			}},
			{Name: "Squares", Data: m.DataRows{{2, 4}, {3, 9}}, Func: func(_ any, args ...any) error {
				n := args[0].(int)
				return check.Equal(args[1], n*n, "square")
			}},
		},
	}
}

func slowFixture(step time.Duration) m.Fixture {
	tests := make([]m.Test, 0, slowTests)

	for i := range slowTests {
		tests = append(tests, m.Test{
			Name: fmt.Sprintf("Step%02d", i),
			Func: func(any, ...any) error {
				time.Sleep(step)
				return nil
			},
		})
	}

	return m.Fixture{
		Namespace: "slow",
		Name:      "SlowTest",
		New:       func() (any, error) { return &struct{}{}, nil },
		Tests:     tests,
	}
}

func newTestRegistry() *adapter.SuiteRegistry {
	registry := adapter.NewSuiteRegistry()
	registry.Register(calcSource, calcFixture())
	registry.Register(slowSource, slowFixture(40*time.Millisecond))

	return registry
}

func waitCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func outcomes(results []m.TestResult) map[string][]m.Outcome {
	out := map[string][]m.Outcome{}
	for _, r := range results {
		out[r.DisplayName] = append(out[r.DisplayName], r.Outcome)
	}

	return out
}
