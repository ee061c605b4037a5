package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "rigor.dev/pkg/rigor/internal/model"
)

// ResultStore persists run reports.
type ResultStore interface {
	SaveReport(path string, report m.RunReport) error
	LoadReport(path string) (m.RunReport, error)
}

type yamlResultStore struct{}

// NewResultStore returns a ResultStore writing YAML files.
func NewResultStore() ResultStore {
	return &yamlResultStore{}
}

func (s *yamlResultStore) SaveReport(path string, report m.RunReport) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Error("Failed to create report directory", "path", dir, "error", err)
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		slog.Error("Failed to create report", "path", path, "error", err)
		return fmt.Errorf("failed to create report: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)

	if err := enc.Encode(report); err != nil {
		slog.Error("Failed to encode report", "path", path, "error", err)
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}

	slog.Info("Saved run report", "path", path, "results", len(report.Results))

	return nil
}

func (s *yamlResultStore) LoadReport(path string) (m.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read report", "path", path, "error", err)
		return m.RunReport{}, fmt.Errorf("failed to read report: %w", err)
	}

	var report m.RunReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		slog.Error("Failed to decode report", "path", path, "error", err)
		return m.RunReport{}, fmt.Errorf("failed to decode report %s: %w", path, err)
	}

	return report, nil
}
