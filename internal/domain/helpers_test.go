package domain

import (
	"context"
	"errors"
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// trace records hook and test invocations in order.
type trace struct {
	mu    sync.Mutex
	lines []string
}

func (tr *trace) add(line string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.lines = append(tr.lines, line)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	return append([]string(nil), tr.lines...)
}

func (tr *trace) hook(line string) m.HookFunc {
	return func(any) error {
		tr.add(line)
		return nil
	}
}

func (tr *trace) failingHook(line string) m.HookFunc {
	return func(any) error {
		tr.add(line)
		return errors.New(line + " failed")
	}
}

func (tr *trace) test(name string) m.TestFunc {
	return func(any, ...any) error {
		tr.add("run " + name)
		return nil
	}
}

// staticDiscoverer returns the same packages for any sources.
type staticDiscoverer struct {
	packages []m.Package
	err      error
	calls    int
}

func (s *staticDiscoverer) Discover(_ context.Context, _ []string) ([]m.Package, error) {
	s.calls++
	return s.packages, s.err
}

type fixtureInstance struct {
	value int
}

func newFixtureInstance() (any, error) {
	return &fixtureInstance{}, nil
}
