package model

// ScopeKind is the level a scope node occupies in the scope tree.
type ScopeKind int

const (
	// ScopeDomain is the single root of the tree.
	ScopeDomain ScopeKind = iota
	// ScopeAssembly groups everything discovered from one source.
	ScopeAssembly
	// ScopeNamespace groups fixtures sharing a namespace.
	ScopeNamespace
	// ScopeClass holds a single fixture.
	ScopeClass
	// ScopeMethod holds the test method contexts of a fixture.
	ScopeMethod
)

// NoNamespace is used as the namespace scope name for fixtures declared without one.
const NoNamespace = "<no namespace>"

var scopeKindNames = map[ScopeKind]string{
	ScopeDomain:    "domain",
	ScopeAssembly:  "assembly",
	ScopeNamespace: "namespace",
	ScopeClass:     "class",
	ScopeMethod:    "method",
}

func (k ScopeKind) String() string {
	if name, ok := scopeKindNames[k]; ok {
		return name
	}

	return "unknown"
}
