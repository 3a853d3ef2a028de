package types

import "math"

// Rotation quaternion. Raw splat rotations are stored as (w, x, y, z).
type Quat struct {
	V Vec3
	W float32
}

// Create identity quaternion.
func QuatIdent() Quat {
	return Quat{
		V: Vec3{},
		W: 1.0,
	}
}

// Create a quaternion from its (w, x, y, z) storage layout.
func QuatFromRaw(raw []float32) Quat {
	return Quat{
		V: Vec3{raw[1], raw[2], raw[3]},
		W: raw[0],
	}
}

// Return the (w, x, y, z) storage layout for this quaternion.
func (q1 Quat) Raw() [4]float32 {
	return [4]float32{q1.W, q1.V[0], q1.V[1], q1.V[2]}
}

// Rotates a vector by the rotation this quaternion represents.
func (q1 Quat) Rotate(v Vec3) Vec3 {
	cross := q1.V.Cross(v)
	// v + 2q_w * (q_v x v) + 2q_v x (q_v x v)
	return v.Add(cross.Mul(2 * q1.W)).Add(q1.V.Mul(2).Cross(cross))
}

// Returns the Length of the quaternion, also known as its Norm.
func (q1 Quat) Len() float32 {
	return float32(math.Sqrt(float64(q1.W*q1.W + q1.V[0]*q1.V[0] + q1.V[1]*q1.V[1] + q1.V[2]*q1.V[2])))
}

// Normalizes the quaternion, returning its versor (unit quaternion). A zero
// quaternion normalizes to the identity rotation.
func (q1 Quat) Normalize() Quat {
	length := q1.Len()

	absDelta := 1 - length
	if absDelta < 0 {
		absDelta = -absDelta
	}

	if absDelta < floatCmpEpsilon {
		return q1
	}
	if length == 0 {
		return QuatIdent()
	}
	if length == float32(math.Inf(1)) {
		length = math.MaxFloat32
	}

	return Quat{q1.V.Mul(1 / length), q1.W * 1 / length}
}

// Returns the row-major 3x3 rotation matrix for this quaternion. The
// quaternion is normalized first.
func (q1 Quat) Mat3() Mat3 {
	q := q1.Normalize()
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	return Mat3{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Build a quaternion from a row-major rotation matrix.
func QuatFromMat3(m Mat3) Quat {
	m00, m01, m02 := float64(m[0]), float64(m[1]), float64(m[2])
	m10, m11, m12 := float64(m[3]), float64(m[4]), float64(m[5])
	m20, m21, m22 := float64(m[6]), float64(m[7]), float64(m[8])

	var w, x, y, z float64
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		w = 0.25 * s
		x = (m21 - m12) / s
		y = (m02 - m20) / s
		z = (m10 - m01) / s
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		w = (m21 - m12) / s
		x = 0.25 * s
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = 0.25 * s
		z = (m12 + m21) / s
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = 0.25 * s
	}

	return Quat{V: Vec3{float32(x), float32(y), float32(z)}, W: float32(w)}.Normalize()
}
