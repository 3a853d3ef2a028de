package splat

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/DYH200009/GRAPE/ply"
	"github.com/DYH200009/GRAPE/types"
)

// Sample draws perPrimitive points from the gaussian of every primitive and
// returns them as a point cloud table (x y z nx ny nz red green blue). Each
// sample inherits the normal and base color of its primitive. Samples are
// laid out sample-major: the first sample of every primitive, then the
// second and so on.
func (m *Model) Sample(rng *rand.Rand, perPrimitive int) (*ply.Table, error) {
	if perPrimitive < 1 {
		return nil, fmt.Errorf("splat: samples per primitive must be >= 1; got %d", perPrimitive)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.len()
	total := n * perPrimitive
	pos := make([]float32, 3*total)
	nrm := make([]float32, 3*total)
	rgb := make([]float32, 3*total)

	for rep := 0; rep < perPrimitive; rep++ {
		for i := 0; i < n; i++ {
			j := rep*n + i
			s := m.scale(i)
			offset := types.XYZ(
				float32(rng.NormFloat64())*s[0],
				float32(rng.NormFloat64())*s[1],
				float32(rng.NormFloat64())*s[2],
			)
			types.PutVec3(pos, j, m.quat(i).Mat3().MulVec3(offset).Add(m.position(i)))
			types.PutVec3(nrm, j, types.Vec3At(m.normals, i))

			dc := types.Vec3At(m.featuresDC.Data, i)
			for c := 0; c < 3; c++ {
				rgb[3*j+c] = float32(math.Round(float64(types.Clamp(SH2RGB(dc[c]), 0, 1) * 255)))
			}
		}
	}

	t := ply.NewTable(total)
	var err error
	for c, name := range []string{"x", "y", "z"} {
		err = firstErr(err, t.AddColumn(name, ply.Float32, column(pos, 3, c)))
	}
	for c, name := range []string{"nx", "ny", "nz"} {
		err = firstErr(err, t.AddColumn(name, ply.Float32, column(nrm, 3, c)))
	}
	for c, name := range []string{"red", "green", "blue"} {
		err = firstErr(err, t.AddColumn(name, ply.Uint8, column(rgb, 3, c)))
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
