// persist/store.go
package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gewnthar/fareprice/features"
	"github.com/gewnthar/fareprice/forest"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is bumped whenever Artifact's encoding changes incompatibly.
const FormatVersion = 1

// ErrFormatVersion is returned when a model file was written by an incompatible version.
var ErrFormatVersion = errors.New("unsupported model file version")

// Artifact is everything needed to score new sheets: the fitted feature
// pipeline, the column schema it produces, and the forest.
type Artifact struct {
	FormatVersion int                    `msgpack:"format_version"`
	CreatedAt     time.Time              `msgpack:"created_at"`
	Kind          string                 `msgpack:"kind"` // "baseline" or "tuned"
	Columns       []string               `msgpack:"columns"`
	Pipeline      features.PipelineState `msgpack:"pipeline"`
	Forest        *forest.Forest         `msgpack:"forest"`
}

// NewArtifact stamps the current format version and time.
func NewArtifact(kind string, p *features.Pipeline, f *forest.Forest) *Artifact {
	return &Artifact{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Kind:          kind,
		Columns:       p.Columns(),
		Pipeline:      p.State(),
		Forest:        f,
	}
}

// Validate checks that the pieces agree with each other.
func (a *Artifact) Validate() error {
	if a.Forest == nil || !a.Forest.Fitted() {
		return errors.New("artifact has no fitted forest")
	}
	if len(a.Columns) != a.Forest.NFeatures {
		return fmt.Errorf("artifact lists %d columns, forest expects %d", len(a.Columns), a.Forest.NFeatures)
	}
	return nil
}

// Save writes the artifact to path via a temporary file and rename, creating
// the parent directory if needed.
func Save(path string, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary model file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}

	depth := 0
	for i := range a.Forest.Trees {
		depth = max(depth, a.Forest.Trees[i].Depth())
	}
	slog.Info("Model saved.", "path", path, "kind", a.Kind, "bytes", len(data), "trees", len(a.Forest.Trees), "max_depth", depth)
	return nil
}

// Load reads an artifact written by Save.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model file %s: %w", path, err)
	}
	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", path, ErrFormatVersion, a.FormatVersion, FormatVersion)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &a, nil
}

// FeaturePipeline rebuilds the fitted feature pipeline stored in the artifact.
func (a *Artifact) FeaturePipeline() *features.Pipeline {
	return features.PipelineFromState(a.Pipeline)
}
