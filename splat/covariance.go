package splat

import "github.com/DYH200009/GRAPE/types"

// Number of values returned per primitive by Covariance.
const CovarianceStride = 6

// Covariance returns the 3D covariance R * diag(modifier*s)^2 * R^T of every
// primitive as its upper triangle (xx, xy, xz, yy, yz, zz).
func (m *Model) Covariance(modifier float32) []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float32, 0, m.len()*CovarianceStride)
	for i := 0; i < m.len(); i++ {
		cov := covariance(m.quat(i), m.scale(i).Mul(modifier))
		out = append(out, cov[:]...)
	}
	return out
}

func covariance(q types.Quat, s types.Vec3) [6]float32 {
	l := q.Mat3().ScaleCols(s)
	return l.Mul(l.Transpose()).UpperTriangle()
}
