package splat

import (
	"math"
	"testing"

	"github.com/DYH200009/GRAPE/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planeCloud(n int, kind Kind) *PointCloud {
	pc := &PointCloud{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pc.Positions = append(pc.Positions, types.XYZ(float32(i)*0.1, float32(j)*0.1, 0))
			pc.Normals = append(pc.Normals, types.XYZ(0, 0, 1))
			pc.Colors = append(pc.Colors, types.XYZ(1, 0.5, 0))
			pc.Kinds = append(pc.Kinds, kind)
		}
	}
	return pc
}

func TestFromPointCloudPlanar(t *testing.T) {
	m, err := FromPointCloud(planeCloud(6, Planar), testOptions())
	require.NoError(t, err)
	require.Equal(t, 36, m.Len())
	assertConsistent(t, m)

	// The 3 nearest neighbors of every grid point sit 0.1 away, so the
	// squared distance hits the 0.01 clamp.
	inPlane := float32(math.Sqrt(0.01 / 2))
	scales := m.Scaling()
	rots := m.Rotation()
	for i := range scales {
		assert.InDelta(t, inPlane, scales[i][0], 1e-5, "primitive %d", i)
		assert.InDelta(t, inPlane, scales[i][1], 1e-5, "primitive %d", i)
		assert.InDelta(t, 1e-3, scales[i][2], 1e-7, "primitive %d", i)

		// The thin local axis follows the point normal.
		axis := rots[i].Mat3().Col(2)
		assert.InDelta(t, 1, axis[2], 1e-5, "primitive %d", i)
	}

	for _, op := range m.Opacity() {
		assert.InDelta(t, 0.4, op, 1e-6)
	}

	features := m.Features()
	stride := m.FeatureStride()
	assert.InDelta(t, 0.5/shC0, features[0], 1e-5)
	assert.InDelta(t, 0, features[1], 1e-6)
	assert.InDelta(t, -0.5/shC0, features[2], 1e-5)
	assert.Equal(t, make([]float32, stride-3), features[3:stride], "higher order terms start at zero")

	for _, score := range m.Scores() {
		assert.InDelta(t, 0.1, score, 1e-5)
	}
	for i, n := range m.Normals() {
		assert.InDelta(t, 1, n[2], 1e-4, "normal %d must keep the side of the input normal", i)
	}
	assert.Equal(t, 0, m.ActiveSHDegree())
	assert.Equal(t, 1, m.MaxSHDegree())
}

func TestFromPointCloudVolumetric(t *testing.T) {
	pc := planeCloud(4, Volumetric)
	pc.Kinds = nil
	m, err := FromPointCloud(pc, testOptions())
	require.NoError(t, err)

	for i, s := range m.Scaling() {
		assert.Equal(t, s[1], s[2], "primitive %d", i)
	}
	for _, kind := range m.Types() {
		assert.Equal(t, Volumetric, kind)
	}
}

func TestFromPointCloudIsolatedPoint(t *testing.T) {
	pc := &PointCloud{
		Positions: []types.Vec3{types.XYZ(0, 0, 0)},
		Normals:   []types.Vec3{{}},
		Colors:    []types.Vec3{types.XYZ(0.5, 0.5, 0.5)},
	}
	m, err := FromPointCloud(pc, testOptions())
	require.NoError(t, err)

	// No neighbors: the squared distance is clamped from below.
	s := m.Scaling()[0]
	assert.InDelta(t, math.Sqrt(1e-7/2), s[0], 1e-7)
	assert.Equal(t, types.XYZ(0, 0, 1), m.Normals()[0])
}

func TestFromPointCloudValidates(t *testing.T) {
	pc := planeCloud(2, Volumetric)
	pc.Colors = pc.Colors[:1]
	_, err := FromPointCloud(pc, testOptions())
	assert.ErrorIs(t, err, ErrLength)

	empty, err := FromPointCloud(&PointCloud{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestFrameFromNormal(t *testing.T) {
	normals := []types.Vec3{
		types.XYZ(0, 0, 1),
		types.XYZ(0, 0, -1),
		types.XYZ(1, 0, 0),
		types.XYZ(1, 1, 1).Normalize(),
		types.XYZ(-0.3, 0.2, 0.9).Normalize(),
	}
	for _, n := range normals {
		frame := frameFromNormal(n)
		x, y, z := frame.Col(0), frame.Col(1), frame.Col(2)

		assert.Equal(t, n, z)
		assert.InDelta(t, 1, x.Len(), 1e-5, "normal %v", n)
		assert.InDelta(t, 1, y.Len(), 1e-5, "normal %v", n)
		assert.InDelta(t, 0, x.Dot(y), 1e-5, "normal %v", n)
		assert.InDelta(t, 0, x.Dot(z), 1e-5, "normal %v", n)

		// Right handed frames convert to a quaternion that maps local z
		// back onto the normal.
		q := types.QuatFromMat3(frame)
		got := q.Rotate(types.XYZ(0, 0, 1))
		for c := 0; c < 3; c++ {
			assert.InDelta(t, n[c], got[c], 1e-4, "normal %v", n)
		}
	}
}

func TestRGB2SH(t *testing.T) {
	assert.Equal(t, float32(0), RGB2SH(0.5))
	assert.InDelta(t, 0.8, SH2RGB(RGB2SH(0.8)), 1e-6)
}
