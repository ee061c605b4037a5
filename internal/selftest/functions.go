package selftest

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"rigor.dev/pkg/rigor/internal/wire"
)

// Counter is the sample call target. Its total survives across calls so a
// client can observe the effect of Add through Report.
type Counter struct {
	start int
}

var (
	totalsMu sync.Mutex
	totals   = map[string]int{}
)

// RegisterFunctions adds the sample callables to t:
//
//	Echo(args...)
//	Counter(start).Add(name, n)
//	Counter(start).Report(name)
func RegisterFunctions(t *wire.FunctionTable) {
	t.Register("", "Echo", func(_ any, args ...any) error {
		slog.Info("Echo", "args", args)
		return nil
	})

	t.RegisterConstructor("Counter", func(args ...any) (any, error) {
		if len(args) == 0 {
			return &Counter{}, nil
		}

		start, err := toInt(args[0])
		if err != nil {
			return nil, err
		}

		return &Counter{start: start}, nil
	})

	t.Register("Counter", "Add", func(target any, args ...any) error {
		if len(args) != 2 {
			return fmt.Errorf("Add takes a name and an amount, got %d args", len(args))
		}

		n, err := toInt(args[1])
		if err != nil {
			return err
		}

		name := fmt.Sprint(args[0])

		totalsMu.Lock()
		defer totalsMu.Unlock()

		if _, ok := totals[name]; !ok {
			totals[name] = target.(*Counter).start
		}

		totals[name] += n

		return nil
	})

	t.Register("Counter", "Report", func(_ any, args ...any) error {
		if len(args) != 1 {
			return fmt.Errorf("Report takes a name, got %d args", len(args))
		}

		slog.Info("Counter total", "name", args[0], "total", Total(fmt.Sprint(args[0])))

		return nil
	})
}

// Total returns the running total of the named counter.
func Total(name string) int {
	totalsMu.Lock()
	defer totalsMu.Unlock()

	return totals[name]
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}

		return i, nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}
