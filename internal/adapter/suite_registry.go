package adapter

import (
	"context"
	"crypto/sha1" //nolint:gosec // fingerprints share the SHA-1 digest size of the wire protocol
	"fmt"
	"sort"
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// SuiteRegistry holds fixtures registered in code, grouped by source name.
// It is the discovery collaborator of the engine.
type SuiteRegistry struct {
	mu       sync.RWMutex
	packages map[string]*m.Package
	order    []string
}

// NewSuiteRegistry returns an empty registry.
func NewSuiteRegistry() *SuiteRegistry {
	return &SuiteRegistry{packages: map[string]*m.Package{}}
}

// Register adds fixtures to source, creating the source on first use.
func (r *SuiteRegistry) Register(source string, fixtures ...m.Fixture) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pkg := r.packageLocked(source)
	pkg.Fixtures = append(pkg.Fixtures, fixtures...)
}

// RegisterPrep attaches prep to a namespace of source, or to the whole source
// when namespace is empty.
func (r *SuiteRegistry) RegisterPrep(source, namespace string, prep m.Prep) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pkg := r.packageLocked(source)
	pkg.Preps = append(pkg.Preps, m.NamespacePrep{Namespace: namespace, Prep: prep})
}

func (r *SuiteRegistry) packageLocked(source string) *m.Package {
	pkg, ok := r.packages[source]
	if !ok {
		pkg = &m.Package{Source: source}
		r.packages[source] = pkg
		r.order = append(r.order, source)
	}

	return pkg
}

// Sources lists registered sources in registration order.
func (r *SuiteRegistry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Discover implements domain.Discoverer. No sources means every registered source.
func (r *SuiteRegistry) Discover(ctx context.Context, sources []string) ([]m.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		sources = r.Sources()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	packages := make([]m.Package, 0, len(sources))

	for _, source := range sources {
		pkg, ok := r.packages[source]
		if !ok {
			return nil, fmt.Errorf("source %q is not registered", source)
		}

		packages = append(packages, *pkg)
	}

	return packages, nil
}

// Fingerprint digests the shape of a registered source: its fixtures, their
// preparation chains and test names. It reports false for unknown sources.
func (r *SuiteRegistry) Fingerprint(source string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pkg, ok := r.packages[source]
	if !ok {
		return nil, false
	}

	lines := []string{"source " + pkg.Source}

	for _, np := range pkg.Preps {
		lines = append(lines, fmt.Sprintf("prep %s %s", np.Namespace, np.Prep.Owner))
	}

	for _, f := range pkg.Fixtures {
		lines = append(lines, "fixture "+f.FullName())

		for _, p := range f.Preps {
			lines = append(lines, fmt.Sprintf("prep %s %s %s", f.FullName(), p.Scope, p.Owner))
		}

		for _, t := range f.Tests {
			lines = append(lines, fmt.Sprintf("test %s.%s data=%t", f.FullName(), t.Name, t.Data != nil))
		}
	}

	sort.Strings(lines)

	h := sha1.New() //nolint:gosec // see import
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}

	return h.Sum(nil), true
}
