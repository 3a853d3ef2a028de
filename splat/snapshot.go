package splat

import (
	"fmt"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/optim"
)

// Snapshot is a deep copy of the model state, including optimizer momentum
// and densification statistics. It is safe to serialize with encoding/gob.
type Snapshot struct {
	ActiveSHDegree int
	MaxSHDegree    int

	Params []optim.ParamSnapshot

	Kinds     []Kind
	Normals   []float32
	Scores    []float32
	StableIDs []int32

	ScreenGradAccum   []float32
	PositionGradAccum []float32
	Denom             []float32
	MaxRadii          []float32

	// Current classifier distance threshold; zero if the classifier is off.
	ClassifierThreshold float32
}

// Capture a snapshot of the model.
func (m *Model) Capture() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Snapshot{
		ActiveSHDegree:    m.activeSHDegree,
		MaxSHDegree:       m.maxSHDegree,
		Params:            m.optimizer.Export(),
		Kinds:             append([]Kind(nil), m.kinds...),
		Normals:           append([]float32(nil), m.normals...),
		Scores:            append([]float32(nil), m.scores...),
		StableIDs:         append([]int32(nil), m.stableIDs...),
		ScreenGradAccum:   append([]float32(nil), m.screenGradAccum...),
		PositionGradAccum: append([]float32(nil), m.positionGradAccum...),
		Denom:             append([]float32(nil), m.denom...),
		MaxRadii:          append([]float32(nil), m.maxRadii...),
	}
	if m.classifier != nil {
		s.ClassifierThreshold = m.classifier.Threshold()
	}
	return s
}

// Restore a model from a snapshot. Learning rates are taken from the
// snapshot; every other option comes from opts.
func Restore(s *Snapshot, opts config.Training) (*Model, error) {
	if s.MaxSHDegree < 0 || s.MaxSHDegree > MaxSHDegree || s.ActiveSHDegree < 0 || s.ActiveSHDegree > s.MaxSHDegree {
		return nil, fmt.Errorf("%w: active %d, max %d", ErrSHDegree, s.ActiveSHDegree, s.MaxSHDegree)
	}
	optimizer, err := optim.Restore(optim.DefaultOptions(), s.Params)
	if err != nil {
		return nil, err
	}

	m := newEmptyModel(opts, s.MaxSHDegree)
	m.activeSHDegree = s.ActiveSHDegree
	m.optimizer = optimizer
	m.bind()
	if m.xyz == nil || m.featuresDC == nil || m.opacity == nil || m.scaling == nil || m.rotation == nil || m.sceneScale == nil {
		return nil, fmt.Errorf("%w: snapshot lacks a required param group", ErrMissingData)
	}
	restOK := m.featuresRest == nil
	if stride := restStride(s.MaxSHDegree); stride > 0 {
		restOK = m.featuresRest != nil && m.featuresRest.Stride == stride
	}
	if !restOK {
		return nil, fmt.Errorf("%w: %q group does not match SH degree %d", ErrSHLayout, ParamFeaturesRest, s.MaxSHDegree)
	}

	attrs := attributes{
		positions:  m.xyz.Data,
		featuresDC: m.featuresDC.Data,
		opacity:    m.opacity.Data,
		scaling:    m.scaling.Data,
		rotation:   m.rotation.Data,
		normals:    s.Normals,
		scores:     s.Scores,
		kinds:      s.Kinds,
	}
	if m.featuresRest != nil {
		attrs.featuresRest = m.featuresRest.Data
	}
	if err = attrs.validate(s.MaxSHDegree); err != nil {
		return nil, err
	}

	n := len(s.Kinds)
	aux := []struct {
		data   int
		stride int
	}{
		{len(s.StableIDs), 1}, {len(s.ScreenGradAccum), 1}, {len(s.PositionGradAccum), 3},
		{len(s.Denom), 1}, {len(s.MaxRadii), 1},
	}
	for _, a := range aux {
		if a.data != n*a.stride {
			return nil, fmt.Errorf("%w: snapshot bookkeeping arrays disagree on primitive count %d", ErrLength, n)
		}
	}

	m.kinds = append([]Kind(nil), s.Kinds...)
	m.normals = append([]float32(nil), s.Normals...)
	m.scores = append([]float32(nil), s.Scores...)
	m.stableIDs = append([]int32(nil), s.StableIDs...)
	m.screenGradAccum = append([]float32(nil), s.ScreenGradAccum...)
	m.positionGradAccum = append([]float32(nil), s.PositionGradAccum...)
	m.denom = append([]float32(nil), s.Denom...)
	m.maxRadii = append([]float32(nil), s.MaxRadii...)
	if m.classifier != nil && s.ClassifierThreshold > 0 {
		m.classifier.SetThreshold(s.ClassifierThreshold)
	}
	return m, nil
}
