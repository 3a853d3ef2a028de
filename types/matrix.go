package types

// A row-major 3x3 matrix.
type Mat3 [9]float32

// Build a matrix from three column vectors.
func Mat3FromCols(c0, c1, c2 Vec3) Mat3 {
	return Mat3{
		c0[0], c1[0], c2[0],
		c0[1], c1[1], c2[1],
		c0[2], c1[2], c2[2],
	}
}

// Get a column vector.
func (m Mat3) Col(c int) Vec3 {
	return Vec3{m[c], m[3+c], m[6+c]}
}

// Multiply matrix with a column vector.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Multiply two matrices.
func (m Mat3) Mul(m2 Mat3) Mat3 {
	var out Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3]*m2[c] + m[r*3+1]*m2[3+c] + m[r*3+2]*m2[6+c]
		}
	}
	return out
}

// Transpose matrix.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Scale matrix columns by the components of v (m * diag(v)).
func (m Mat3) ScaleCols(v Vec3) Mat3 {
	return Mat3{
		m[0] * v[0], m[1] * v[1], m[2] * v[2],
		m[3] * v[0], m[4] * v[1], m[5] * v[2],
		m[6] * v[0], m[7] * v[1], m[8] * v[2],
	}
}

// Return the upper triangle (xx, xy, xz, yy, yz, zz) of a symmetric matrix.
func (m Mat3) UpperTriangle() [6]float32 {
	return [6]float32{m[0], m[1], m[2], m[4], m[5], m[8]}
}
