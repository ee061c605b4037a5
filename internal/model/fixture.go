package model

// TestFunc is the body of a test method. Args carries the current data row, if any.
type TestFunc func(instance any, args ...any) error

// HookFunc initializes or cleans up state at a scope. Instance is nil above method scope.
type HookFunc func(instance any) error

// DataSource supplies the rows of a data-driven test.
type DataSource interface {
	Rows() ([][]any, error)
}

// DataRows is a literal DataSource.
type DataRows [][]any

// Rows implements DataSource.
func (d DataRows) Rows() ([][]any, error) {
	return d, nil
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func() ([][]any, error)

// Rows implements DataSource.
func (f DataSourceFunc) Rows() ([][]any, error) {
	return f()
}

// Prep declares an initialize/cleanup pair attached to a scope.
type Prep struct {
	// Owner names the type that declared the pair, base types first.
	Owner      string
	Scope      ScopeKind
	Initialize HookFunc
	Cleanup    HookFunc
}

// Test declares a test method of a fixture.
type Test struct {
	Name string
	Func TestFunc
	Data DataSource
}

// Fixture describes a test class: its namespace, how to build an instance,
// the preparation chain flattened from its base types and its test methods.
type Fixture struct {
	Namespace string
	Name      string
	New       func() (any, error)
	Preps     []Prep
	Tests     []Test
}

// FullName returns the namespace qualified fixture name.
func (f Fixture) FullName() string {
	if f.Namespace == "" {
		return f.Name
	}

	return f.Namespace + "." + f.Name
}

// Package is the set of fixtures discovered in one source, plus the preparation
// pairs declared at assembly or namespace scope.
type Package struct {
	Source   string
	Preps    []NamespacePrep
	Fixtures []Fixture
}

// NamespacePrep attaches a Prep to a namespace. An empty namespace targets the assembly.
type NamespacePrep struct {
	Namespace string
	Prep      Prep
}
