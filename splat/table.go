package splat

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/ply"
	"github.com/DYH200009/GRAPE/spatial"
	"github.com/DYH200009/GRAPE/types"
)

const restPrefix = "f_rest_"

// Table exports the raw (pre-activation) primitive attributes as a PLY
// vertex table with the columns
//
//	x y z nx ny nz f_dc_0..2 f_rest_* opacity scale_0..2 rot_0..3 type
//
// Higher order SH coefficients are written channel-major.
func (m *Model) Table() (*ply.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.len()
	t := ply.NewTable(n)
	add := func(name string, data []float32) error {
		return t.AddColumn(name, ply.Float32, data)
	}

	var err error
	for c, name := range []string{"x", "y", "z"} {
		err = firstErr(err, add(name, column(m.xyz.Data, 3, c)))
	}
	for c, name := range []string{"nx", "ny", "nz"} {
		err = firstErr(err, add(name, column(m.normals, 3, c)))
	}
	for c := 0; c < 3; c++ {
		err = firstErr(err, add(fmt.Sprintf("f_dc_%d", c), column(m.featuresDC.Data, 3, c)))
	}
	if m.featuresRest != nil {
		coeffs := m.featuresRest.Stride / 3
		for c := 0; c < 3; c++ {
			for k := 0; k < coeffs; k++ {
				err = firstErr(err, add(fmt.Sprintf("%s%d", restPrefix, c*coeffs+k), column(m.featuresRest.Data, m.featuresRest.Stride, 3*k+c)))
			}
		}
	}
	err = firstErr(err, add("opacity", column(m.opacity.Data, 1, 0)))
	for c := 0; c < 3; c++ {
		err = firstErr(err, add(fmt.Sprintf("scale_%d", c), column(m.scaling.Data, 3, c)))
	}
	for c := 0; c < 4; c++ {
		err = firstErr(err, add(fmt.Sprintf("rot_%d", c), column(m.rotation.Data, 4, c)))
	}
	kinds := make([]float32, n)
	for i, k := range m.kinds {
		kinds[i] = float32(k)
	}
	err = firstErr(err, add("type", kinds))
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FromTable loads a model from a PLY vertex table written by Table. The SH
// degree is inferred from the number of f_rest columns and all SH degrees
// are active. Missing normal columns trigger a normal estimation pass and a
// missing type column marks every primitive volumetric. Outlier scores are
// recomputed from the loaded positions.
func FromTable(t *ply.Table, opts config.Training) (*Model, error) {
	n := t.Count
	restCount := 0
	for _, name := range t.Names() {
		if strings.HasPrefix(name, restPrefix) {
			restCount++
		}
	}
	degree := -1
	for d := 0; d <= MaxSHDegree; d++ {
		if restStride(d) == restCount {
			degree = d
		}
	}
	if degree < 0 {
		return nil, fmt.Errorf("%w: %d %s columns", ErrSHLayout, restCount, restPrefix)
	}

	attrs := attributes{
		featuresRest: make([]float32, n*restCount),
		scores:       make([]float32, n),
		kinds:        make([]Kind, n),
	}
	var err error
	if attrs.positions, err = interleave(t, "x", "y", "z"); err != nil {
		return nil, err
	}
	if attrs.featuresDC, err = interleave(t, "f_dc_0", "f_dc_1", "f_dc_2"); err != nil {
		return nil, err
	}
	if attrs.opacity, err = interleave(t, "opacity"); err != nil {
		return nil, err
	}
	if attrs.scaling, err = interleave(t, "scale_0", "scale_1", "scale_2"); err != nil {
		return nil, err
	}
	if attrs.rotation, err = interleave(t, "rot_0", "rot_1", "rot_2", "rot_3"); err != nil {
		return nil, err
	}

	coeffs := restCount / 3
	for c := 0; c < 3; c++ {
		for k := 0; k < coeffs; k++ {
			col, err := t.MustColumn(restPrefix + strconv.Itoa(c*coeffs+k))
			if err != nil {
				return nil, err
			}
			for i, v := range col {
				attrs.featuresRest[i*restCount+3*k+c] = v
			}
		}
	}

	_, hasNormals := t.Column("nx")
	if hasNormals {
		if attrs.normals, err = interleave(t, "nx", "ny", "nz"); err != nil {
			return nil, err
		}
	} else {
		attrs.normals = make([]float32, 3*n)
	}

	if col, found := t.Column("type"); found {
		for i, v := range col {
			if v > 0.5 {
				attrs.kinds[i] = Planar
			}
		}
	}

	pts := make([]types.Vec3, n)
	for i := range pts {
		pts[i] = types.Vec3At(attrs.positions, i)
	}
	dist2, err := spatial.NewIndex(pts, opts.Workers).MeanNeighborDistance(initialNeighbors)
	if err != nil {
		return nil, err
	}
	for i, d2 := range dist2 {
		attrs.scores[i] = float32(math.Sqrt(float64(types.Clamp(d2, minInitialDist2, maxInitialDist2))))
	}

	m, err := newModel(opts, degree, attrs)
	if err != nil {
		return nil, err
	}
	m.activeSHDegree = degree
	if degree != opts.SHDegree {
		m.logger.Warningf("loaded model uses SH degree %d; configured degree is %d", degree, opts.SHDegree)
	}
	if !hasNormals {
		if err = m.refreshSpatial(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ReadPointCloud extracts an oriented point cloud from a PLY vertex table.
// Positions and normals are required. Colors are optional; integer color
// columns are scaled from [0, 255] to [0, 1] and missing colors default to
// mid gray. An optional type column selects planar points.
func ReadPointCloud(t *ply.Table) (*PointCloud, error) {
	n := t.Count
	pc := &PointCloud{
		Positions: make([]types.Vec3, n),
		Normals:   make([]types.Vec3, n),
		Colors:    make([]types.Vec3, n),
	}

	positions, err := interleave(t, "x", "y", "z")
	if err != nil {
		return nil, err
	}
	normals, err := interleave(t, "nx", "ny", "nz")
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		pc.Positions[i] = types.Vec3At(positions, i)
		pc.Normals[i] = types.Vec3At(normals, i)
		pc.Colors[i] = types.XYZ(0.5, 0.5, 0.5)
	}

	for c, name := range []string{"red", "green", "blue"} {
		col, found := t.Column(name)
		if !found {
			continue
		}
		scale := float32(1)
		if typ := propertyType(t, name); typ != ply.Float32 && typ != ply.Float64 {
			scale = 1.0 / 255
		}
		for i, v := range col {
			pc.Colors[i][c] = v * scale
		}
	}

	if col, found := t.Column("type"); found {
		pc.Kinds = make([]Kind, n)
		for i, v := range col {
			if v > 0.5 {
				pc.Kinds[i] = Planar
			}
		}
	}
	return pc, nil
}

// Extract the values of a strided array at the given column offset.
func column(data []float32, stride, offset int) []float32 {
	if stride == 0 {
		return nil
	}
	out := make([]float32, len(data)/stride)
	for i := range out {
		out[i] = data[i*stride+offset]
	}
	return out
}

// Interleave the named table columns into a strided array.
func interleave(t *ply.Table, names ...string) ([]float32, error) {
	stride := len(names)
	out := make([]float32, t.Count*stride)
	for c, name := range names {
		col, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			out[i*stride+c] = v
		}
	}
	return out, nil
}

func propertyType(t *ply.Table, name string) ply.ScalarType {
	for _, p := range t.Properties {
		if p.Name == name {
			return p.Type
		}
	}
	return ply.Float32
}

func firstErr(err, next error) error {
	if err != nil {
		return err
	}
	return next
}
