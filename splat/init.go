package splat

import (
	"fmt"
	"math"
	"time"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/spatial"
	"github.com/DYH200009/GRAPE/types"
)

const (
	// Zeroth order SH basis constant.
	shC0 = 0.28209479177387814

	// Opacity assigned to new primitives.
	initialOpacity = 0.4

	// Scale of the normal axis of new primitives.
	initialThinScale = 1e-3

	// Clamp range for the squared neighbor distance used for initial scales.
	minInitialDist2 = 1e-7
	maxInitialDist2 = 0.01

	// Neighbors used for the initial scale estimate.
	initialNeighbors = 3
)

// An oriented, colored point cloud used to seed a model.
type PointCloud struct {
	Positions []types.Vec3
	Normals   []types.Vec3

	// RGB colors in [0, 1].
	Colors []types.Vec3

	// Optional primitive types. A nil slice marks every point volumetric.
	Kinds []Kind
}

// Number of points.
func (pc *PointCloud) Len() int {
	return len(pc.Positions)
}

func (pc *PointCloud) validate() error {
	n := len(pc.Positions)
	if len(pc.Normals) != n || len(pc.Colors) != n || (pc.Kinds != nil && len(pc.Kinds) != n) {
		return fmt.Errorf("%w: point cloud has %d positions, %d normals, %d colors and %d types",
			ErrLength, n, len(pc.Normals), len(pc.Colors), len(pc.Kinds))
	}
	return nil
}

// Convert an RGB value in [0, 1] to the DC spherical harmonics coefficient.
func RGB2SH(rgb float32) float32 {
	return (rgb - 0.5) / shC0
}

// Convert a DC spherical harmonics coefficient to an RGB value.
func SH2RGB(sh float32) float32 {
	return sh*shC0 + 0.5
}

// FromPointCloud creates one primitive per point. Every primitive is
// oriented so that its local z axis follows the point normal. The in-plane
// scales are derived from the mean squared distance to the 3 nearest
// neighbors; the normal axis gets a thin scale for planar points and the
// in-plane scale for volumetric points.
func FromPointCloud(pc *PointCloud, opts config.Training) (*Model, error) {
	if err := pc.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	n := pc.Len()

	dist2, err := spatial.NewIndex(pc.Positions, opts.Workers).MeanNeighborDistance(initialNeighbors)
	if err != nil {
		return nil, err
	}

	attrs := attributes{
		positions:    make([]float32, 0, 3*n),
		featuresDC:   make([]float32, 0, 3*n),
		featuresRest: make([]float32, n*restStride(opts.SHDegree)),
		opacity:      make([]float32, n),
		scaling:      make([]float32, 0, 3*n),
		rotation:     make([]float32, 0, 4*n),
		normals:      make([]float32, 0, 3*n),
		scores:       make([]float32, n),
		kinds:        make([]Kind, n),
	}
	rawOpacity := types.InverseSigmoid(initialOpacity)
	for i, p := range pc.Positions {
		kind := Volumetric
		if pc.Kinds != nil {
			kind = pc.Kinds[i]
		}
		attrs.kinds[i] = kind

		d2 := types.Clamp(dist2[i], minInitialDist2, maxInitialDist2)
		inPlane := types.Log(float32(math.Sqrt(float64(d2 / 2))))
		thin := types.Log(initialThinScale)
		if kind == Volumetric {
			thin = inPlane
		}

		normal := orientation(pc.Normals[i])
		q := types.QuatFromMat3(frameFromNormal(normal)).Raw()
		c := pc.Colors[i]

		attrs.positions = append(attrs.positions, p[0], p[1], p[2])
		attrs.featuresDC = append(attrs.featuresDC, RGB2SH(c[0]), RGB2SH(c[1]), RGB2SH(c[2]))
		attrs.opacity[i] = rawOpacity
		attrs.scaling = append(attrs.scaling, inPlane, inPlane, thin)
		attrs.rotation = append(attrs.rotation, q[:]...)
		attrs.normals = append(attrs.normals, normal[0], normal[1], normal[2])
		attrs.scores[i] = float32(math.Sqrt(float64(d2)))
	}

	m, err := newModel(opts, opts.SHDegree, attrs)
	if err != nil {
		return nil, err
	}
	if err = m.refreshSpatial(); err != nil {
		return nil, err
	}

	m.logger.Noticef("initialized %d primitives from point cloud in %d ms", n, time.Since(start).Nanoseconds()/1e6)
	return m, nil
}

// Normalize an input normal; degenerate normals map to the default normal.
func orientation(n types.Vec3) types.Vec3 {
	n = n.Normalize()
	if n.Len() == 0 || !n.IsFinite() {
		return spatial.DefaultNormal
	}
	return n
}

// Build a right handed orthonormal frame whose third column is the unit
// vector n.
func frameFromNormal(n types.Vec3) types.Mat3 {
	x := n.Cross(types.XYZ(1-n[0], 1-n[1], 1-n[2]))
	if x.Len() < 1e-4 {
		// n is parallel to (1,1,1); any other helper works.
		x = n.Cross(types.XYZ(1, 0, 0))
	}
	x = x.Normalize()
	y := n.Cross(x)
	return types.Mat3FromCols(x, y, n)
}
