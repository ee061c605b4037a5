package wire

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// Constructor builds the target a method is invoked on.
type Constructor func(args ...any) (any, error)

// Function is a callable registered for CallFunction. target is nil for free
// functions.
type Function func(target any, args ...any) error

// CallSpec describes a remote call.
type CallSpec struct {
	Target          string
	Method          string
	ConstructorArgs []any
	Args            []any
}

// FunctionTable resolves CallFunction envelopes to registered Go functions.
type FunctionTable struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	functions    map[string]Function
}

// NewFunctionTable returns an empty table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{
		constructors: make(map[string]Constructor),
		functions:    make(map[string]Function),
	}
}

// RegisterConstructor registers how instances of target are built.
func (t *FunctionTable) RegisterConstructor(target string, ctor Constructor) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.constructors[target] = ctor
}

// Register registers fn under method, or under target.method when target is
// not empty.
func (t *FunctionTable) Register(target, method string, fn Function) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.functions[functionKey(target, method)] = fn
}

// Names lists the registered function keys in order.
func (t *FunctionTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.functions))
	for name := range t.functions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Call builds the target if a constructor is registered for it and invokes the
// method. A panic in the constructor or the method is returned as an error.
func (t *FunctionTable) Call(spec CallSpec) (err error) {
	key := functionKey(spec.Target, spec.Method)

	t.mu.RLock()
	fn, ok := t.functions[key]
	ctor, hasCtor := t.constructors[spec.Target]
	t.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", m.ErrUnknownFunction, key)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Function panicked", "function", key, "panic", r)
			err = fmt.Errorf("call %s panicked: %v", key, r)
		}
	}()

	var target any

	if spec.Target != "" && hasCtor {
		instance, err := ctor(spec.ConstructorArgs...)
		if err != nil {
			slog.Error("Failed to construct call target", "target", spec.Target, "error", err)
			return fmt.Errorf("failed to construct %s: %w", spec.Target, err)
		}

		target = instance
	}

	if err := fn(target, spec.Args...); err != nil {
		return fmt.Errorf("call %s failed: %w", key, err)
	}

	return nil
}

func (s CallSpec) envelope() m.Envelope {
	return m.Envelope{
		Kind:            m.KindRequest,
		Command:         m.CommandCallFunction,
		Payload:         m.CallRequest{Method: s.Method},
		Target:          s.Target,
		ConstructorArgs: s.ConstructorArgs,
		CallArgs:        s.Args,
	}
}

func callSpecFrom(env m.Envelope) (CallSpec, error) {
	req, ok := env.Payload.(m.CallRequest)
	if !ok {
		return CallSpec{}, fmt.Errorf("%w: CallFunction payload is %T", m.ErrProtocolFraming, env.Payload)
	}

	return CallSpec{
		Target:          env.Target,
		Method:          req.Method,
		ConstructorArgs: env.ConstructorArgs,
		Args:            env.CallArgs,
	}, nil
}

func functionKey(target, method string) string {
	if target == "" {
		return method
	}

	return target + "." + method
}
