package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Source of the gradient statistic compared against the densification
// threshold.
type GradientSource string

const (
	// Screen-space gradient norm accumulated by the renderer.
	ScreenGradient GradientSource = "screen"

	// Norm of the averaged 3D position gradient.
	PositionGradient GradientSource = "position"
)

// Learning rates for the optimizable attribute groups.
type LearningRates struct {
	Position   float32 `yaml:"position"`
	Feature    float32 `yaml:"feature"`
	Opacity    float32 `yaml:"opacity"`
	Scaling    float32 `yaml:"scaling"`
	Rotation   float32 `yaml:"rotation"`
	SceneScale float32 `yaml:"scene_scale"`
}

// Options for the optional normal-agreement type classifier.
type Classify struct {
	Enabled           bool    `yaml:"enabled"`
	K                 int     `yaml:"k"`
	MaxAngle          float64 `yaml:"max_angle"`
	DistanceThreshold float32 `yaml:"distance_threshold"`
	DistanceDecay     float32 `yaml:"distance_decay"`
	MinDistance       float32 `yaml:"min_distance"`
}

// Densification and pruning thresholds used by the outer loop.
type Densify struct {
	GradThreshold float32        `yaml:"grad_threshold"`
	MinOpacity    float32        `yaml:"min_opacity"`
	MaxScreenSize float32        `yaml:"max_screen_size"`
	PercentDense  float32        `yaml:"percent_dense"`
	SplitFanOut   int            `yaml:"split_fan_out"`
	Gradient      GradientSource `yaml:"gradient"`
}

// Training holds every option that affects the population manager.
type Training struct {
	SHDegree        int           `yaml:"sh_degree"`
	SpatialLRScale  float32       `yaml:"spatial_lr_scale"`
	LearningRates   LearningRates `yaml:"learning_rates"`
	Densify         Densify       `yaml:"densify"`
	NormalNeighbors int           `yaml:"normal_neighbors"`
	Classify        Classify      `yaml:"classify"`
	Workers         int           `yaml:"workers"`
	Seed            uint64        `yaml:"seed"`
	LogLevel        string        `yaml:"log_level"`
}

// Default returns the stock training options.
func Default() Training {
	return Training{
		SHDegree:       3,
		SpatialLRScale: 1,
		LearningRates: LearningRates{
			Position:   0.00016,
			Feature:    0.0025,
			Opacity:    0.05,
			Scaling:    0.005,
			Rotation:   0.001,
			SceneScale: 0.001,
		},
		Densify: Densify{
			GradThreshold: 0.0002,
			MinOpacity:    0.005,
			MaxScreenSize: 20,
			PercentDense:  0.01,
			SplitFanOut:   2,
			Gradient:      PositionGradient,
		},
		NormalNeighbors: 9,
		Classify: Classify{
			Enabled:           false,
			K:                 4,
			MaxAngle:          0.03,
			DistanceThreshold: 0.03,
			DistanceDecay:     0.0002,
			MinDistance:       0.001,
		},
		Seed:     1,
		LogLevel: "notice",
	}
}

// Validate checks option ranges.
func (t Training) Validate() error {
	var errs []error
	if t.SHDegree < 0 || t.SHDegree > 3 {
		errs = append(errs, fmt.Errorf("sh_degree must be in [0, 3]; got %d", t.SHDegree))
	}
	if t.Densify.PercentDense <= 0 || t.Densify.PercentDense > 1 {
		errs = append(errs, fmt.Errorf("densify.percent_dense must be in (0, 1]; got %g", t.Densify.PercentDense))
	}
	if t.Densify.SplitFanOut < 1 {
		errs = append(errs, fmt.Errorf("densify.split_fan_out must be >= 1; got %d", t.Densify.SplitFanOut))
	}
	if t.Densify.MinOpacity < 0 {
		errs = append(errs, fmt.Errorf("densify.min_opacity must be >= 0; got %g", t.Densify.MinOpacity))
	}
	switch t.Densify.Gradient {
	case ScreenGradient, PositionGradient:
	default:
		errs = append(errs, fmt.Errorf("densify.gradient must be %q or %q; got %q", ScreenGradient, PositionGradient, t.Densify.Gradient))
	}
	if t.NormalNeighbors < 3 {
		errs = append(errs, fmt.Errorf("normal_neighbors must be >= 3; got %d", t.NormalNeighbors))
	}
	if t.Classify.Enabled && t.Classify.K < 2 {
		errs = append(errs, fmt.Errorf("classify.k must be >= 2; got %d", t.Classify.K))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid options: %w", errors.Join(errs...))
}

// Parse reads YAML options on top of the defaults. Unknown keys are
// rejected.
func Parse(r io.Reader) (Training, error) {
	opts := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Training{}, fmt.Errorf("config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Training{}, err
	}
	return opts, nil
}

// Load reads YAML options from a file. An empty path returns the defaults.
func Load(path string) (Training, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Training{}, fmt.Errorf("config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Marshal renders options as YAML.
func (t Training) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}
