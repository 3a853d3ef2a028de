package splat

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/log"
	"github.com/DYH200009/GRAPE/optim"
	"github.com/DYH200009/GRAPE/spatial"
	"github.com/DYH200009/GRAPE/types"
)

// The primitive type controls how the third scale axis is interpreted.
type Kind uint8

const (
	// Ellipsoid with three independent scale axes.
	Volumetric Kind = iota

	// Flat disk whose local z axis follows the surface normal.
	Planar
)

func (k Kind) String() string {
	if k == Planar {
		return "planar"
	}
	return "volumetric"
}

// Optimizer param group names.
const (
	ParamPosition     = "xyz"
	ParamFeaturesDC   = "f_dc"
	ParamFeaturesRest = "f_rest"
	ParamOpacity      = "opacity"
	ParamScaling      = "scaling"
	ParamRotation     = "rotation"
	ParamSceneScale   = "scene_scale"
)

// Max supported spherical harmonics degree.
const MaxSHDegree = 3

// Number of higher order SH values (all color channels) for a degree.
func restStride(degree int) int {
	return 3 * ((degree+1)*(degree+1) - 1)
}

// Model is the primitive store. It owns every per-primitive array and the
// optimizer that tracks the learnable ones. All structural changes go
// through extend and filter which resize every array in one step while the
// write lock is held.
type Model struct {
	mu     sync.RWMutex
	logger log.Logger
	opts   config.Training

	activeSHDegree int
	maxSHDegree    int

	optimizer    *optim.Adam
	xyz          *optim.Param
	featuresDC   *optim.Param
	featuresRest *optim.Param
	opacity      *optim.Param
	scaling      *optim.Param
	rotation     *optim.Param
	sceneScale   *optim.Param

	kinds       []Kind
	normals     []float32
	scores      []float32
	stableIDs   []int32
	modifiedIDs []int32

	// Densification statistics.
	screenGradAccum   []float32
	positionGradAccum []float32
	denom             []float32
	maxRadii          []float32

	indexMu sync.Mutex
	index   *spatial.Index

	classifier *spatial.Classifier
	rng        *rand.Rand
}

// Raw per-primitive values used to assemble a model.
type attributes struct {
	positions    []float32
	featuresDC   []float32
	featuresRest []float32
	opacity      []float32
	scaling      []float32
	rotation     []float32
	normals      []float32
	scores       []float32
	kinds        []Kind
}

func (a *attributes) count() int {
	return len(a.kinds)
}

func (a *attributes) validate(shDegree int) error {
	n := a.count()
	checks := []struct {
		name   string
		data   []float32
		stride int
	}{
		{ParamPosition, a.positions, 3},
		{ParamFeaturesDC, a.featuresDC, 3},
		{ParamFeaturesRest, a.featuresRest, restStride(shDegree)},
		{ParamOpacity, a.opacity, 1},
		{ParamScaling, a.scaling, 3},
		{ParamRotation, a.rotation, 4},
		{"normal", a.normals, 3},
		{"score", a.scores, 1},
	}
	for _, c := range checks {
		if len(c.data) != n*c.stride {
			return fmt.Errorf("%w: %q has %d values; expected %d", ErrLength, c.name, len(c.data), n*c.stride)
		}
	}
	for _, c := range checks[3:6] {
		for _, v := range c.data {
			if !types.IsFinite(v) {
				return fmt.Errorf("%w: %q", ErrNonFinite, c.name)
			}
		}
	}
	for i, kind := range a.kinds {
		if kind > Planar {
			return fmt.Errorf("%w: %d at primitive %d", ErrKind, kind, i)
		}
	}
	return nil
}

// Assemble a model from raw attributes. The attribute slices are owned by
// the model afterwards.
func newModel(opts config.Training, shDegree int, attrs attributes) (*Model, error) {
	if shDegree < 0 || shDegree > MaxSHDegree {
		return nil, fmt.Errorf("%w: %d", ErrSHDegree, shDegree)
	}
	if err := attrs.validate(shDegree); err != nil {
		return nil, err
	}

	lr := opts.LearningRates
	params := []*optim.Param{
		optim.NewGlobalParam(ParamSceneScale, []float32{1}, lr.SceneScale),
		optim.NewParam(ParamPosition, 3, attrs.positions, lr.Position*opts.SpatialLRScale),
		optim.NewParam(ParamFeaturesDC, 3, attrs.featuresDC, lr.Feature),
	}
	// Degree 0 has no higher order coefficients; a zero-width group cannot
	// be resized row-wise so it is not tracked at all.
	if stride := restStride(shDegree); stride > 0 {
		params = append(params, optim.NewParam(ParamFeaturesRest, stride, attrs.featuresRest, lr.Feature/20))
	}
	params = append(params,
		optim.NewParam(ParamOpacity, 1, attrs.opacity, lr.Opacity),
		optim.NewParam(ParamScaling, 3, attrs.scaling, lr.Scaling),
		optim.NewParam(ParamRotation, 4, attrs.rotation, lr.Rotation),
	)

	n := attrs.count()
	m := newEmptyModel(opts, shDegree)
	m.optimizer = optim.NewAdam(optim.DefaultOptions(), params...)
	m.bind()
	m.kinds = attrs.kinds
	m.normals = attrs.normals
	m.scores = attrs.scores
	m.resetStats(n)
	m.resetStableIDs()
	return m, nil
}

func newEmptyModel(opts config.Training, shDegree int) *Model {
	m := &Model{
		logger:      log.New("splat model"),
		opts:        opts,
		maxSHDegree: shDegree,
		rng:         rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	if opts.Classify.Enabled {
		m.classifier = spatial.NewClassifier(spatial.ClassifierOptions{
			K:                 opts.Classify.K,
			MaxAngle:          opts.Classify.MaxAngle,
			DistanceThreshold: opts.Classify.DistanceThreshold,
			DistanceDecay:     opts.Classify.DistanceDecay,
			MinDistance:       opts.Classify.MinDistance,
		})
	}
	return m
}

// Refresh the param pointers after the optimizer installed new identities.
func (m *Model) bind() {
	m.xyz = m.optimizer.Param(ParamPosition)
	m.featuresDC = m.optimizer.Param(ParamFeaturesDC)
	m.featuresRest = m.optimizer.Param(ParamFeaturesRest)
	m.opacity = m.optimizer.Param(ParamOpacity)
	m.scaling = m.optimizer.Param(ParamScaling)
	m.rotation = m.optimizer.Param(ParamRotation)
	m.sceneScale = m.optimizer.Param(ParamSceneScale)
}

// Allocate zeroed densification statistics for n primitives.
func (m *Model) resetStats(n int) {
	m.screenGradAccum = make([]float32, n)
	m.positionGradAccum = make([]float32, 3*n)
	m.denom = make([]float32, n)
	m.maxRadii = make([]float32, n)
}

func (m *Model) resetStableIDs() {
	n := m.len()
	m.stableIDs = make([]int32, n)
	for i := range m.stableIDs {
		m.stableIDs[i] = int32(i)
	}
}

func (m *Model) len() int {
	return len(m.kinds)
}

func (m *Model) position(i int) types.Vec3 {
	return types.Vec3At(m.xyz.Data, i)
}

func (m *Model) scale(i int) types.Vec3 {
	raw := types.Vec3At(m.scaling.Data, i)
	return types.XYZ(types.Exp(raw[0]), types.Exp(raw[1]), types.Exp(raw[2]))
}

func (m *Model) quat(i int) types.Quat {
	return types.QuatFromRaw(m.rotation.Row(i)).Normalize()
}

func (m *Model) positions() []types.Vec3 {
	out := make([]types.Vec3, m.len())
	for i := range out {
		out[i] = m.position(i)
	}
	return out
}

func (m *Model) normalVecs() []types.Vec3 {
	out := make([]types.Vec3, m.len())
	for i := range out {
		out[i] = types.Vec3At(m.normals, i)
	}
	return out
}

// Number of primitives.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.len()
}

// Positions returns a copy of the primitive centers.
func (m *Model) Positions() []types.Vec3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions()
}

// Scaling returns the physical (exp-activated) scale of every primitive.
func (m *Model) Scaling() []types.Vec3 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Vec3, m.len())
	for i := range out {
		out[i] = m.scale(i)
	}
	return out
}

// Opacity returns the physical (sigmoid-activated) opacity of every
// primitive.
func (m *Model) Opacity() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float32, m.len())
	for i, raw := range m.opacity.Data {
		out[i] = types.Sigmoid(raw)
	}
	return out
}

// Rotation returns the normalized rotation of every primitive.
func (m *Model) Rotation() []types.Quat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Quat, m.len())
	for i := range out {
		out[i] = m.quat(i)
	}
	return out
}

// Features returns the SH coefficients of every primitive: the DC term
// followed by the higher order terms, three color channels per
// coefficient. Use FeatureStride to index rows.
func (m *Model) Features() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stride := m.featureStride()
	out := make([]float32, 0, m.len()*stride)
	for i := 0; i < m.len(); i++ {
		out = append(out, m.featuresDC.Row(i)...)
		if m.featuresRest != nil {
			out = append(out, m.featuresRest.Row(i)...)
		}
	}
	return out
}

// Number of feature values per primitive.
func (m *Model) FeatureStride() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.featureStride()
}

func (m *Model) featureStride() int {
	return 3 + restStride(m.maxSHDegree)
}

// Types returns the primitive type of every primitive.
func (m *Model) Types() []Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Kind(nil), m.kinds...)
}

// Normals returns the normals computed by the last normal estimation pass.
func (m *Model) Normals() []types.Vec3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.normalVecs()
}

// Outlier scores assigned at creation time.
func (m *Model) Scores() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float32(nil), m.scores...)
}

// StableIDs maps every primitive to the index it had at the start of the
// last densification cycle. Clones and split children share the id of
// their source.
func (m *Model) StableIDs() []int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int32(nil), m.stableIDs...)
}

// ModifiedIDs lists the stable ids of the primitives that were cloned or
// split by the last densification cycle.
func (m *Model) ModifiedIDs() []int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int32(nil), m.modifiedIDs...)
}

// Running max of the observed screen-space radii.
func (m *Model) MaxScreenRadii() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float32(nil), m.maxRadii...)
}

// Global scene scale tracked by the optimizer.
func (m *Model) SceneScale() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sceneScale.Data[0]
}

// Currently active SH degree.
func (m *Model) ActiveSHDegree() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSHDegree
}

// SH degree the feature arrays are sized for.
func (m *Model) MaxSHDegree() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxSHDegree
}

// Raise the active SH degree by one up to the max degree.
func (m *Model) OneUpSHDegree() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeSHDegree < m.maxSHDegree {
		m.activeSHDegree++
	}
}

// Param returns the optimizer param with the given name so that a renderer
// can fill in its gradient buffer. The returned pointer is only valid until
// the next structural change.
func (m *Model) Param(name string) *optim.Param {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.optimizer.Param(name)
}

// Update the learning rate of a param group.
func (m *Model) SetLearningRate(name string, lr float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optimizer.SetLR(name, lr)
}

// Step applies one optimizer update using the gradients currently stored
// in the param gradient buffers.
func (m *Model) Step() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optimizer.Step()
}

// Momentum state of a named param or nil if the optimizer has not stepped
// it yet.
func (m *Model) OptimizerState(name string) *optim.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.optimizer.Param(name)
	if p == nil {
		return nil
	}
	return m.optimizer.State(p)
}

// ResetOpacity clamps the physical opacity of every primitive to at most
// 0.01. The opacity param is replaced and its momentum zeroed.
func (m *Model) ResetOpacity() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const ceiling = 0.01
	data := make([]float32, len(m.opacity.Data))
	clamped := types.InverseSigmoid(ceiling)
	for i, raw := range m.opacity.Data {
		data[i] = raw
		if types.Sigmoid(raw) > ceiling {
			data[i] = clamped
		}
	}
	if _, err := m.optimizer.Replace(ParamOpacity, data); err != nil {
		return err
	}
	m.bind()
	return nil
}
