package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "rigor.dev/pkg/rigor/internal/model"
)

func TestBuilder_ScopeTree(t *testing.T) {
	g, err := NewBuilder("suite").Build([]m.Package{cartPackage(&trace{})})
	require.NoError(t, err)

	root := g.Root()
	assert.Equal(t, m.ScopeDomain, root.Kind)
	assert.Equal(t, "suite", root.FullName)
	assert.True(t, root.ParentID.IsZero())

	require.Len(t, root.Children, 1)
	assembly := root.Children[0]
	assert.Equal(t, m.ScopeAssembly, assembly.Kind)
	assert.Len(t, assembly.PreparationGroups, 1)

	require.Len(t, assembly.Children, 1)
	ns := assembly.Children[0]
	assert.Equal(t, "shop", ns.FullName)

	require.Len(t, ns.Children, 1)
	class := ns.Children[0]
	assert.Equal(t, "shop.CartTest", class.FullName)
	assert.Len(t, class.PreparationGroups, 1)

	require.Len(t, class.Children, 1)
	methods := class.Children[0]
	assert.Equal(t, m.ScopeMethod, methods.Kind)
	assert.Equal(t, "shop.CartTest.Methods", methods.FullName)
	require.Len(t, methods.PreparationGroups, 3)
	assert.Equal(t, "BaseFixture", methods.PreparationGroups[0].Owner)
	assert.Equal(t, "CartTest", methods.PreparationGroups[2].Owner)
	assert.Len(t, methods.TestContexts, 2)
}

func TestBuilder_IDsAreDeterministic(t *testing.T) {
	first, err := NewBuilder("").Build([]m.Package{cartPackage(&trace{})})
	require.NoError(t, err)

	second, err := NewBuilder("").Build([]m.Package{cartPackage(&trace{})})
	require.NoError(t, err)

	assert.Equal(t, first.TestCases(), second.TestCases())
	assert.Equal(t, m.NewNodeID("shop.suite", "shop.CartTest.Adds"), first.TestCases()[0].TestID)
}

func TestBuilder_NoNamespace(t *testing.T) {
	pkg := m.Package{
		Source:   "src",
		Fixtures: []m.Fixture{{Name: "Loose", Tests: []m.Test{{Name: "Works"}}}},
	}

	g, err := NewBuilder("").Build([]m.Package{pkg})
	require.NoError(t, err)

	_, ok := g.Node(m.NewNodeID("src", m.NoNamespace))
	assert.True(t, ok)
	assert.Equal(t, "Loose.Works", g.TestCases()[0].FullyQualifiedName)
}

func TestBuilder_DuplicateTestIsRejected(t *testing.T) {
	pkg := m.Package{
		Source: "src",
		Fixtures: []m.Fixture{{
			Name:  "Dup",
			Tests: []m.Test{{Name: "Same"}, {Name: "Same"}},
		}},
	}

	_, err := NewBuilder("").Build([]m.Package{pkg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestBuilder_NamespacePreps(t *testing.T) {
	tr := &trace{}
	pkg := m.Package{
		Source: "src",
		Preps: []m.NamespacePrep{
			{Namespace: "billing", Prep: m.Prep{Owner: "billing", Initialize: tr.hook("init billing"), Cleanup: tr.hook("cleanup billing")}},
		},
		Fixtures: []m.Fixture{{Namespace: "billing", Name: "Invoice", Tests: []m.Test{{Name: "Totals", Func: tr.test("Totals")}}}},
	}

	g, err := NewBuilder("").Build([]m.Package{pkg})
	require.NoError(t, err)

	g.ActivateAll()
	g.Run(1, NopReporter{})

	assert.Equal(t, []string{"init billing", "run Totals", "cleanup billing"}, tr.get())
}
