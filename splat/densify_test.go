package splat

import (
	"math"
	"testing"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testExtent    = 1.0
	testThreshold = 0.0002
)

// Record a gradient of magnitude g along x, both in screen space and for the
// position, for the primitives in hot.
func accumulate(t *testing.T, m *Model, hot map[int]float32) {
	t.Helper()

	n := m.Len()
	screen := make([]float32, 2*n)
	position := make([]float32, 3*n)
	visible := make([]bool, n)
	for i := range visible {
		visible[i] = true
		screen[2*i] = hot[i]
		position[3*i] = hot[i]
	}
	require.NoError(t, m.AccumulateGradients(screen, position, visible))
}

func TestCloneScenario(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(0, 0, 1), scale: uniform(0.001), opacity: 0.5},
	})
	accumulate(t, m, map[int]float32{1: 0.001, 3: 0.001})

	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))

	require.Equal(t, 6, m.Len())
	assert.Equal(t, []int32{1, 3}, m.ModifiedIDs())
	assert.Equal(t, []int32{0, 1, 2, 3, 1, 3}, m.StableIDs())

	pos := m.Positions()
	assert.Equal(t, pos[1], pos[4], "volumetric clones keep the source position")
	assert.Equal(t, pos[3], pos[5])

	features := m.Features()
	stride := m.FeatureStride()
	assert.Equal(t, features[1*stride:2*stride], features[4*stride:5*stride])
	assertConsistent(t, m)
}

func TestCloneNudgesPlanarPrimitives(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5, kind: Planar},
		{pos: types.XYZ(5, 5, 5), scale: uniform(0.001), opacity: 0.5},
	})
	require.NoError(t, m.AccumulateGradients(
		[]float32{0.001, 0, 0.001, 0},
		[]float32{0.2, 0, 0, 0.4, 0, 0},
		[]bool{true, true},
	))
	require.NoError(t, m.AccumulateGradients(
		[]float32{0.001, 0, 0.001, 0},
		[]float32{0, 0.2, 0, 0.4, 0, 0},
		[]bool{true, true},
	))

	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))
	require.Equal(t, 4, m.Len())

	pos := m.Positions()
	assert.InDelta(t, 0.1, pos[2][0], 1e-6)
	assert.InDelta(t, 0.1, pos[2][1], 1e-6)
	assert.InDelta(t, 0, pos[2][2], 1e-6)
	assert.Equal(t, types.XYZ(5, 5, 5), pos[3], "volumetric clones are not nudged")
	assert.Equal(t, []Kind{Planar, Volumetric, Planar, Volumetric}, m.Types())
}

func TestSplitScenario(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.05), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: types.XYZ(0.2, 0.1, 0.05), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: uniform(0.05), opacity: 0.5},
		{pos: types.XYZ(0, 0, 1), scale: uniform(0.05), opacity: 0.5},
		{pos: types.XYZ(1, 1, 1), scale: uniform(0.05), opacity: 0.5},
	})
	accumulate(t, m, map[int]float32{1: 0.001, 3: 0.001})

	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))

	// Two parents replaced by two children each.
	require.Equal(t, 7, m.Len())
	assert.Equal(t, []int32{1, 3}, m.ModifiedIDs())
	assert.Equal(t, []int32{0, 2, 4, 1, 3, 1, 3}, m.StableIDs())

	pos := m.Positions()
	scales := m.Scaling()
	parents := map[int32]struct {
		pos   types.Vec3
		scale types.Vec3
	}{
		1: {types.XYZ(1, 0, 0), types.XYZ(0.2, 0.1, 0.05)},
		3: {types.XYZ(0, 0, 1), uniform(0.05)},
	}
	for i, id := range m.StableIDs()[3:] {
		child := i + 3
		parent := parents[id]
		for c := 0; c < 3; c++ {
			assert.InDelta(t, parent.scale[c]/1.6, scales[child][c], 1e-6, "child %d axis %d", child, c)
			// Samples beyond 6 sigma are practically impossible.
			assert.InDelta(t, parent.pos[c], pos[child][c], 6*float64(parent.scale[c]), "child %d axis %d", child, c)
		}
	}
	assertConsistent(t, m)
}

func TestSplitFanOut(t *testing.T) {
	opts := testOptions()
	opts.Densify.SplitFanOut = 4
	m := buildModel(t, opts, []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.1), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.1), opacity: 0.5},
	})
	accumulate(t, m, map[int]float32{0: 0.001})

	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, []int32{1, 0, 0, 0, 0}, m.StableIDs())
	assert.InDelta(t, 0.1/3.2, m.Scaling()[1][0], 1e-6)
}

func TestSplitIsDeterministicPerSeed(t *testing.T) {
	run := func() []types.Vec3 {
		m := buildModel(t, testOptions(), []prim{
			{pos: types.XYZ(0, 0, 0), scale: uniform(0.1), opacity: 0.5},
		})
		accumulate(t, m, map[int]float32{0: 0.001})
		require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))
		return m.Positions()
	}
	assert.Equal(t, run(), run())
}

func TestCloneAndSplitInOneCycle(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.1), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: uniform(0.001), opacity: 0.5},
	})
	accumulate(t, m, map[int]float32{0: 0.001, 1: 0.001})

	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))

	// +1 clone, +2 split children, -1 split parent. Clones are never split.
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, []int32{0, 1}, m.ModifiedIDs())
	assert.Equal(t, []int32{0, 2, 0, 1, 1}, m.StableIDs())
	assertConsistent(t, m)
}

func TestMomentumFollowsStructuralChanges(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.1), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: uniform(0.001), opacity: 0.001},
	})
	stepWithGradient(m)
	stepWithGradient(m)
	before := m.OptimizerState(ParamPosition)
	require.NotNil(t, before)
	survivor := append([]float32(nil), before.ExpAvg[0:3]...)

	accumulate(t, m, map[int]float32{0: 0.001, 1: 0.001})
	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))

	// Survivors: 0, clone of 0, two children of 1. Primitive 2 is pruned.
	require.Equal(t, 4, m.Len())
	assert.Equal(t, []int32{0, 0, 1, 1}, m.StableIDs())
	assertConsistent(t, m)

	after := m.OptimizerState(ParamPosition)
	require.NotNil(t, after)
	assert.Equal(t, 2, after.Step)
	assert.Equal(t, survivor, after.ExpAvg[0:3])
	assert.Equal(t, make([]float32, 9), after.ExpAvg[3:], "appended rows start with zero momentum")
	assert.Equal(t, make([]float32, 9), after.ExpAvgSq[3:])

	st := m.OptimizerState(ParamSceneScale)
	require.NotNil(t, st)
	assert.Len(t, st.ExpAvg, 1)
}

func TestInfiniteThresholdIsIdempotent(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.1), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: uniform(0.01), opacity: 0.9},
	})
	accumulate(t, m, map[int]float32{0: 1, 1: 1, 2: 1})
	positions, opacity, scaling := m.Positions(), m.Opacity(), m.Scaling()

	inf := float32(math.Inf(1))
	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, m.DensifyAndPrune(inf, 0, testExtent, 0))
		assert.Equal(t, positions, m.Positions())
		assert.Equal(t, opacity, m.Opacity())
		assert.Equal(t, scaling, m.Scaling())
		assert.Empty(t, m.ModifiedIDs())
	}
}

func TestPruneByOpacity(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.01), opacity: 0.001},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.01), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: uniform(0.01), opacity: 0.9},
	})

	removed, err := m.Prune(0.01, testExtent, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	opacity := m.Opacity()
	require.Len(t, opacity, 2)
	assert.InDelta(t, 0.5, opacity[0], 1e-6)
	assert.InDelta(t, 0.9, opacity[1], 1e-6)
	assertConsistent(t, m)
}

func TestPruneByScreenAndWorldSize(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.01), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.01), opacity: 0.5},
		{pos: types.XYZ(0, 1, 0), scale: types.XYZ(0.01, 0.2, 0.01), opacity: 0.5},
	})
	require.NoError(t, m.ObserveRadii([]float32{5, 30, 5}, []bool{true, true, true}))

	// Size checks only apply when a max screen size is given.
	removed, err := m.Prune(0.005, testExtent, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = m.Prune(0.005, testExtent, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []types.Vec3{types.XYZ(0, 0, 0)}, m.Positions())
}

func TestScreenRadiiSurviveDensifyUntilPrune(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.001), opacity: 0.5},
	})
	accumulate(t, m, map[int]float32{0: 0.001})
	require.NoError(t, m.ObserveRadii([]float32{30, 5}, []bool{true, true}))

	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 20))

	// The clone starts with a zero radius so only the source is pruned.
	assert.Equal(t, []int32{1, 0}, m.StableIDs())
	assert.Equal(t, []float32{0, 0}, m.MaxScreenRadii())
}

func TestPruneAllThenNoop(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.01), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.1), opacity: 0.2},
	})
	stepWithGradient(m)
	accumulate(t, m, map[int]float32{0: 1, 1: 1})

	require.NoError(t, m.DensifyAndPrune(testThreshold, 1, testExtent, 0))
	require.Equal(t, 0, m.Len())
	assertConsistent(t, m)

	require.NoError(t, m.DensifyAndPrune(testThreshold, 1, testExtent, 20))
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Covariance(1))
	assert.Empty(t, m.Positions())
	require.NoError(t, m.AccumulateGradients(nil, nil, nil))
	require.NoError(t, m.EstimateNormals())
	removed, err := m.Prune(0.5, testExtent, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	neighbors, err := m.KNearest(4)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestCloneScenarioWithDefaults(t *testing.T) {
	opts := config.Default()
	opts.Densify.PercentDense = 0.1
	prims := []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.5), opacity: 0.5},
		{pos: types.XYZ(3, 0, 0), scale: uniform(0.5), opacity: 0.5},
		{pos: types.XYZ(0, 3, 0), scale: uniform(0.5), opacity: 0.5},
		{pos: types.XYZ(0, 0, 3), scale: uniform(0.5), opacity: 0.5},
	}
	m := buildModel(t, opts, prims)

	// Average position gradient of 0.02 over two steps on primitives 1 and 3.
	for step := 0; step < 2; step++ {
		require.NoError(t, m.AccumulateGradients(
			make([]float32, 8),
			[]float32{0, 0, 0, 0.02, 0, 0, 0, 0, 0, 0, 0.02, 0},
			[]bool{true, true, true, true},
		))
	}
	require.NoError(t, m.DensifyAndPrune(0.01, 0, 10, 0))

	require.Equal(t, 6, m.Len())
	assert.Equal(t, []int32{1, 3}, m.ModifiedIDs())
	assert.Equal(t, []int32{0, 1, 2, 3, 1, 3}, m.StableIDs())
	assertConsistent(t, m)
}

func TestScreenGradientSource(t *testing.T) {
	opts := testOptions()
	opts.Densify.Gradient = config.ScreenGradient
	m := buildModel(t, opts, []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.001), opacity: 0.5},
	})
	require.NoError(t, m.AccumulateGradients(
		[]float32{0, 0, 0.003, 0.004},
		[]float32{1, 1, 1, 0, 0, 0},
		[]bool{true, true},
	))

	require.NoError(t, m.DensifyAndPrune(0.004, 0.005, testExtent, 0))

	// Only the screen-space gradient norm (0.005) counts.
	assert.Equal(t, []int32{0, 1, 1}, m.StableIDs())
}

func TestPositionGradientSource(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.001), opacity: 0.5},
	})
	require.NoError(t, m.AccumulateGradients(
		[]float32{1, 1, 0, 0},
		[]float32{0, 0, 0, 0, 0.003, 0.004},
		[]bool{true, true},
	))

	require.NoError(t, m.DensifyAndPrune(0.004, 0.005, testExtent, 0))

	// Only the position gradient norm (0.005) counts.
	assert.Equal(t, []int32{0, 1, 1}, m.StableIDs())
}

func TestDensifyRecomputesNormals(t *testing.T) {
	var prims []prim
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			prims = append(prims, prim{pos: types.XYZ(float32(i)*0.1, 0.5, float32(j)*0.1), scale: uniform(0.001), opacity: 0.5})
		}
	}
	m := buildModel(t, testOptions(), prims)
	require.NoError(t, m.DensifyAndPrune(testThreshold, 0.005, testExtent, 0))

	for i, n := range m.Normals() {
		assert.InDelta(t, 1, math.Abs(float64(n[1])), 1e-4, "primitive %d", i)
	}
}

func TestClassifierMarksFlatRegionsPlanar(t *testing.T) {
	opts := testOptions()
	opts.Classify.Enabled = true
	opts.Classify.DistanceThreshold = 1

	var prims []prim
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			prims = append(prims, prim{pos: types.XYZ(float32(i)*0.05, float32(j)*0.05, 0), scale: uniform(0.001), opacity: 0.5})
		}
	}
	m := buildModel(t, opts, prims)
	require.NoError(t, m.EstimateNormals())

	for i, kind := range m.Types() {
		assert.Equal(t, Planar, kind, "primitive %d", i)
	}
	assert.Equal(t, float32(1), m.classifier.Threshold())
}

func TestClassifierThresholdDecaysOncePerCycle(t *testing.T) {
	opts := testOptions()
	opts.Classify.Enabled = true
	opts.Classify.DistanceThreshold = 1
	m := buildModel(t, opts, []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(0.1, 0, 0), scale: uniform(0.001), opacity: 0.5},
		{pos: types.XYZ(0, 0.1, 0), scale: uniform(0.001), opacity: 0.001},
	})

	require.NoError(t, m.EstimateNormals())
	_, err := m.Prune(0.01, testExtent, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), m.classifier.Threshold(), "only densification cycles tighten the threshold")

	inf := float32(math.Inf(1))
	require.NoError(t, m.DensifyAndPrune(inf, 0, testExtent, 0))
	assert.InDelta(t, 1-0.0002, m.classifier.Threshold(), 1e-6)
	require.NoError(t, m.DensifyAndPrune(inf, 0, testExtent, 0))
	assert.InDelta(t, 1-0.0004, m.classifier.Threshold(), 1e-6)
}

func TestKNearestReturnsCopies(t *testing.T) {
	m := buildModel(t, testOptions(), []prim{
		{pos: types.XYZ(0, 0, 0), scale: uniform(0.01), opacity: 0.5},
		{pos: types.XYZ(1, 0, 0), scale: uniform(0.01), opacity: 0.5},
		{pos: types.XYZ(3, 0, 0), scale: uniform(0.01), opacity: 0.5},
	})

	first, err := m.KNearest(2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {1, 0}, {2, 1}}, first)
	first[0][1] = 2
	first[1] = nil

	second, err := m.KNearest(2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {1, 0}, {2, 1}}, second)

	huge, err := m.KNearest(1 << 62)
	require.NoError(t, err)
	assert.Len(t, huge[0], 3)
}
