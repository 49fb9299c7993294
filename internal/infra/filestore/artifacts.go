package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// Artifact file names inside the output directory.
const (
	SolutionFile   = "solution.json"
	ValidationFile = "validation.json"
)

// ArtifactStore writes each artifact as pretty JSON the moment its stage
// succeeds. Failed stages write nothing and earlier files are left intact.
// A new solution always clears the previous validation, so validation.json
// never describes a solution other than the one in solution.json.
type ArtifactStore struct {
	dir    string
	logger logging.Logger
}

// NewArtifactStore returns a store rooted at dir.
func NewArtifactStore(dir string, logger logging.Logger) *ArtifactStore {
	return &ArtifactStore{
		dir:    ResolvePath(dir, "out"),
		logger: logging.OrNop(logger),
	}
}

// Dir returns the resolved output directory.
func (s *ArtifactStore) Dir() string { return s.dir }

// SolutionPath returns where solution.json is written.
func (s *ArtifactStore) SolutionPath() string { return filepath.Join(s.dir, SolutionFile) }

// ValidationPath returns where validation.json is written.
func (s *ArtifactStore) ValidationPath() string { return filepath.Join(s.dir, ValidationFile) }

func (s *ArtifactStore) SolutionReady(_ context.Context, solution *task.Solution) error {
	if err := s.remove(s.ValidationPath()); err != nil {
		return err
	}
	return s.write(s.SolutionPath(), solution)
}

func (s *ArtifactStore) ValidationReady(_ context.Context, validation *task.Validation) error {
	return s.write(s.ValidationPath(), validation)
}

func (s *ArtifactStore) PipelineFailed(_ context.Context, stage task.Stage, err error) {
	s.logger.Debug("No %s artifact written: %v", stage, err)
}

// Retract removes the artifact written for stage. Retracting a solution
// also removes its validation.
func (s *ArtifactStore) Retract(_ context.Context, stage task.Stage) error {
	switch stage {
	case task.StageProducing:
		if err := s.remove(s.ValidationPath()); err != nil {
			return err
		}
		return s.remove(s.SolutionPath())
	case task.StageAuditing:
		return s.remove(s.ValidationPath())
	default:
		return fmt.Errorf("retract: unknown stage %q", stage)
	}
}

func (s *ArtifactStore) remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	s.logger.Info("Removed %s", path)
	return nil
}

func (s *ArtifactStore) write(path string, v any) error {
	data, err := jsonx.MarshalIndentNewline(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := AtomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("Wrote %s", path)
	return nil
}
