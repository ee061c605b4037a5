package adapter

import (
	"crypto/sha1" //nolint:gosec // the wire protocol exchanges SHA-1 digests
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	m "rigor.dev/pkg/rigor/internal/model"
)

// DigestSize is the length of a source digest.
const DigestSize = sha1.Size

// SourceHasher computes the digest a peer compares to decide whether both
// sides see the same version of a source.
type SourceHasher interface {
	HashSource(source string) ([]byte, error)
}

// LocalSourceHasher hashes registered suites by their shape and anything else
// as a file relative to root. Absolute paths and paths escaping root are refused.
type LocalSourceHasher struct {
	root     string
	registry *SuiteRegistry
}

// NewLocalSourceHasher returns a hasher. registry may be nil.
func NewLocalSourceHasher(root string, registry *SuiteRegistry) *LocalSourceHasher {
	return &LocalSourceHasher{root: root, registry: registry}
}

// HashSource implements SourceHasher.
func (h *LocalSourceHasher) HashSource(source string) ([]byte, error) {
	if h.registry != nil {
		if digest, ok := h.registry.Fingerprint(source); ok {
			return digest, nil
		}
	}

	return h.hashFile(source)
}

// hashFile only reads below root; sources arrive from the remote peer.
func (h *LocalSourceHasher) hashFile(source string) ([]byte, error) {
	if !filepath.IsLocal(source) {
		slog.Warn("Refusing to hash source outside the sources root", "source", source)
		return nil, fmt.Errorf("%w: %s", m.ErrInvalidSourcePath, source)
	}

	path := filepath.Join(h.root, source)

	f, err := os.Open(path)
	if err != nil {
		slog.Error("Failed to open source for hashing", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open source %s: %w", source, err)
	}

	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("Failed to close source", "path", path, "error", err)
		}
	}()

	h1 := sha1.New() //nolint:gosec // see import
	if _, err := io.Copy(h1, f); err != nil {
		return nil, fmt.Errorf("failed to hash source %s: %w", source, err)
	}

	return h1.Sum(nil), nil
}
