package domain

import (
	"fmt"
	"log/slog"

	m "rigor.dev/pkg/rigor/internal/model"
)

// DefaultDomainName names the root scope when none is configured.
const DefaultDomainName = "rigor"

// Builder turns discovered packages into a scope graph.
type Builder struct {
	domain string
}

// NewBuilder returns a Builder whose root scope is called domain.
func NewBuilder(domain string) *Builder {
	if domain == "" {
		domain = DefaultDomainName
	}

	return &Builder{domain: domain}
}

// Build creates the domain root, one assembly per package and the namespace,
// class and method scopes of every fixture.
func (b *Builder) Build(packages []m.Package) (*Graph, error) {
	root := NewScopeNode(m.ScopeDomain, m.ZeroID, "", b.domain)
	g := NewGraph(root)

	for _, pkg := range packages {
		if err := b.addPackage(g, root, pkg); err != nil {
			slog.Error("Failed to build scope graph", "source", pkg.Source, "error", err)
			return nil, fmt.Errorf("failed to build scope graph for %s: %w", pkg.Source, err)
		}
	}

	slog.Debug("Built scope graph", "packages", len(packages), "tests", g.Len())

	return g, nil
}

func (b *Builder) addPackage(g *Graph, root *ScopeNode, pkg m.Package) error {
	assembly := NewScopeNode(m.ScopeAssembly, root.ID, pkg.Source, pkg.Source)
	if err := g.Add(assembly); err != nil {
		return err
	}

	for _, np := range pkg.Preps {
		target := assembly

		if np.Namespace != "" {
			ns, err := b.namespace(g, assembly, np.Namespace)
			if err != nil {
				return err
			}

			target = ns
		}

		target.PreparationGroups = append(target.PreparationGroups, groupOf(np.Prep))
	}

	for _, fixture := range pkg.Fixtures {
		if err := b.addFixture(g, assembly, fixture); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) namespace(g *Graph, assembly *ScopeNode, name string) (*ScopeNode, error) {
	if name == "" {
		name = m.NoNamespace
	}

	id := m.NewNodeID(assembly.Source, name)
	if node, ok := g.Node(id); ok {
		return node, nil
	}

	node := NewScopeNode(m.ScopeNamespace, assembly.ID, assembly.Source, name)

	return node, g.Add(node)
}

func (b *Builder) addFixture(g *Graph, assembly *ScopeNode, fixture m.Fixture) error {
	ns, err := b.namespace(g, assembly, fixture.Namespace)
	if err != nil {
		return err
	}

	className := fixture.FullName()

	class := NewScopeNode(m.ScopeClass, ns.ID, assembly.Source, className)
	if err := g.Add(class); err != nil {
		return err
	}

	methods := NewScopeNode(m.ScopeMethod, class.ID, assembly.Source, className+".Methods")
	if err := g.Add(methods); err != nil {
		return err
	}

	for _, prep := range fixture.Preps {
		switch prep.Scope {
		case m.ScopeClass:
			class.PreparationGroups = append(class.PreparationGroups, groupOf(prep))
		case m.ScopeMethod:
			methods.PreparationGroups = append(methods.PreparationGroups, groupOf(prep))
		case m.ScopeDomain, m.ScopeAssembly, m.ScopeNamespace:
			slog.Warn("Ignoring fixture preparation outside class or method scope",
				"fixture", className, "owner", prep.Owner, "scope", prep.Scope)
		}
	}

	for _, test := range fixture.Tests {
		fullName := className + "." + test.Name
		tc := &TestMethodContext{
			TestCase: m.TestCase{
				TestID:             m.NewNodeID(assembly.Source, fullName),
				Source:             assembly.Source,
				FullyQualifiedName: fullName,
				DisplayName:        test.Name,
			},
			ParentID:    methods.ID,
			Method:      test.Func,
			NewInstance: fixture.New,
			Data:        test.Data,
		}

		if err := g.AddTestContext(tc); err != nil {
			return err
		}
	}

	return nil
}

func groupOf(prep m.Prep) PreparationGroup {
	return PreparationGroup{
		Owner:      prep.Owner,
		Initialize: prep.Initialize,
		Cleanup:    prep.Cleanup,
	}
}
