package spatial

import (
	"fmt"

	"github.com/DYH200009/GRAPE/types"
	"gonum.org/v1/gonum/mat"
)

// Normal assigned to points whose neighborhood is too small or degenerate
// for a plane fit.
var DefaultNormal = types.XYZ(0, 0, 1)

// EstimateNormals fits a plane through the neighborhood of every point and
// returns its unit normal: the eigenvector of the smallest eigenvalue of the
// neighborhood covariance. neighbors[i] lists the indices of the points that
// form the neighborhood of point i (usually obtained via Index.KNearest).
//
// If hints is not nil, each estimated normal is flipped to point into the
// same half-space as hints[i].
func EstimateNormals(points []types.Vec3, neighbors [][]int, hints []types.Vec3, workers int) ([]types.Vec3, error) {
	if len(neighbors) != len(points) {
		return nil, fmt.Errorf("spatial: got %d neighbor lists for %d points", len(neighbors), len(points))
	}
	if hints != nil && len(hints) != len(points) {
		return nil, fmt.Errorf("spatial: got %d normal hints for %d points", len(hints), len(points))
	}

	out := make([]types.Vec3, len(points))
	err := forEachBlock(len(points), workers, func(start, end int) error {
		var (
			cov  = mat.NewSymDense(3, nil)
			eig  mat.EigenSym
			vecs mat.Dense
		)
		for index := start; index < end; index++ {
			list := neighbors[index]
			for _, n := range list {
				if n < 0 || n >= len(points) {
					return fmt.Errorf("spatial: neighbor index %d of point %d out of range", n, index)
				}
			}

			normal, ok := fitPlane(points, list, cov, &eig, &vecs)
			if !ok {
				normal = DefaultNormal
			}
			if hints != nil && normal.Dot(hints[index]) < 0 {
				normal = normal.Mul(-1)
			}
			out[index] = normal
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Fit a plane through the listed points and return its unit normal.
func fitPlane(points []types.Vec3, list []int, cov *mat.SymDense, eig *mat.EigenSym, vecs *mat.Dense) (types.Vec3, bool) {
	if len(list) < 3 {
		return types.Vec3{}, false
	}

	var mean [3]float64
	for _, n := range list {
		for c := 0; c < 3; c++ {
			mean[c] += float64(points[n][c])
		}
	}
	for c := 0; c < 3; c++ {
		mean[c] /= float64(len(list))
	}

	var acc [3][3]float64
	for _, n := range list {
		d := [3]float64{
			float64(points[n][0]) - mean[0],
			float64(points[n][1]) - mean[1],
			float64(points[n][2]) - mean[2],
		}
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				acc[r][c] += d[r] * d[c]
			}
		}
	}
	scale := 1.0 / float64(len(list))
	for r := 0; r < 3; r++ {
		for c := r; c < 3; c++ {
			cov.SetSym(r, c, acc[r][c]*scale)
		}
	}

	if ok := eig.Factorize(cov, true); !ok {
		return types.Vec3{}, false
	}
	eig.VectorsTo(vecs)

	// Eigenvalues are sorted in ascending order.
	normal := types.XYZ(float32(vecs.At(0, 0)), float32(vecs.At(1, 0)), float32(vecs.At(2, 0))).Normalize()
	if normal.Len() == 0 || !normal.IsFinite() {
		return types.Vec3{}, false
	}
	return normal, true
}
