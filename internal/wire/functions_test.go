package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "rigor.dev/pkg/rigor/internal/model"
)

func TestFunctionTable_FreeFunction(t *testing.T) {
	table := NewFunctionTable()

	var got []any

	table.Register("", "Ping", func(target any, args ...any) error {
		assert.Nil(t, target)
		got = args

		return nil
	})

	require.NoError(t, table.Call(CallSpec{Method: "Ping", Args: []any{"a", 2}}))
	assert.Equal(t, []any{"a", 2}, got)
	assert.Equal(t, []string{"Ping"}, table.Names())
}

func TestFunctionTable_TargetWithConstructor(t *testing.T) {
	table := NewFunctionTable()

	type account struct{ owner string }

	table.RegisterConstructor("Account", func(args ...any) (any, error) {
		return &account{owner: args[0].(string)}, nil
	})

	var owner string

	table.Register("Account", "Close", func(target any, _ ...any) error {
		owner = target.(*account).owner
		return nil
	})

	require.NoError(t, table.Call(CallSpec{Target: "Account", Method: "Close", ConstructorArgs: []any{"ada"}}))
	assert.Equal(t, "ada", owner)
}

func TestFunctionTable_Errors(t *testing.T) {
	table := NewFunctionTable()

	err := table.Call(CallSpec{Method: "Missing"})
	require.ErrorIs(t, err, m.ErrUnknownFunction)

	table.RegisterConstructor("Broken", func(...any) (any, error) {
		return nil, errors.New("no instance")
	})
	table.Register("Broken", "Do", func(any, ...any) error { return nil })

	err = table.Call(CallSpec{Target: "Broken", Method: "Do"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no instance")

	table.Register("", "Fail", func(any, ...any) error { return errors.New("failed inside") })
	assert.ErrorContains(t, table.Call(CallSpec{Method: "Fail"}), "failed inside")
}

func TestFunctionTable_PanicBecomesError(t *testing.T) {
	table := NewFunctionTable()

	table.Register("", "Boom", func(any, ...any) error { panic("boom") })
	assert.ErrorContains(t, table.Call(CallSpec{Method: "Boom"}), "Boom panicked: boom")

	table.RegisterConstructor("Fragile", func(...any) (any, error) { panic("cannot build") })
	table.Register("Fragile", "Do", func(any, ...any) error { return nil })
	assert.ErrorContains(t, table.Call(CallSpec{Target: "Fragile", Method: "Do"}), "cannot build")
}

func TestCallSpec_EnvelopeRoundTrip(t *testing.T) {
	spec := CallSpec{Target: "T", Method: "M", ConstructorArgs: []any{1}, Args: []any{"x"}}

	env := spec.envelope()
	assert.Equal(t, m.CommandCallFunction, env.Command)
	assert.True(t, env.Kind.Has(m.KindRequest))

	back, err := callSpecFrom(env)
	require.NoError(t, err)
	assert.Equal(t, spec, back)

	_, err = callSpecFrom(m.Envelope{Command: m.CommandCallFunction, Payload: "bad"})
	assert.ErrorIs(t, err, m.ErrProtocolFraming)
}
