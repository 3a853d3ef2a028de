package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/splat"
	"github.com/google/uuid"
)

const (
	manifestFile = "manifest.yaml"
	modelFile    = "model.bin"

	// Bumped whenever the layout of model.bin changes.
	formatVersion = 1
)

var (
	ErrMissingEntry = errors.New("checkpoint: missing archive entry")
	ErrVersion      = errors.New("checkpoint: unsupported format version")
)

// Manifest describes a checkpoint. It is stored as YAML so it can be
// inspected without decoding the model.
type Manifest struct {
	Version    int             `yaml:"version"`
	RunID      string          `yaml:"run_id"`
	Created    time.Time       `yaml:"created"`
	Iteration  int             `yaml:"iteration"`
	Primitives int             `yaml:"primitives"`
	SHDegree   int             `yaml:"sh_degree"`
	Options    config.Training `yaml:"options"`
}

// A model snapshot together with its manifest.
type Checkpoint struct {
	Manifest Manifest
	Model    *splat.Snapshot
}

// Capture a checkpoint of a model. An empty runID starts a new run.
func New(m *splat.Model, runID string, iteration int, opts config.Training) *Checkpoint {
	if runID == "" {
		runID = uuid.NewString()
	}
	snap := m.Capture()
	return &Checkpoint{
		Manifest: Manifest{
			Version:    formatVersion,
			RunID:      runID,
			Created:    time.Now().UTC(),
			Iteration:  iteration,
			Primitives: len(snap.Kinds),
			SHDegree:   snap.MaxSHDegree,
			Options:    opts,
		},
		Model: snap,
	}
}

// Restore the model stored in the checkpoint.
func (cp *Checkpoint) Restore(opts config.Training) (*splat.Model, error) {
	if cp.Model == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, modelFile)
	}
	return splat.Restore(cp.Model, opts)
}

func (mf *Manifest) validate() error {
	if mf.Version != formatVersion {
		return fmt.Errorf("%w: %d", ErrVersion, mf.Version)
	}
	if _, err := uuid.Parse(mf.RunID); err != nil {
		return fmt.Errorf("checkpoint: invalid run id %q: %w", mf.RunID, err)
	}
	return nil
}
