package types

import (
	"math"
	"testing"
)

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestQuatMat3RoundTrip(t *testing.T) {
	specs := []Quat{
		QuatIdent(),
		{V: Vec3{1, 0, 0}, W: 0},
		{V: Vec3{0, 1, 0}, W: 0},
		{V: Vec3{0, 0, 1}, W: 0},
		Quat{V: Vec3{0.3, -0.2, 0.5}, W: 0.7}.Normalize(),
		Quat{V: Vec3{-0.9, 0.1, 0.05}, W: 0.2}.Normalize(),
	}

	for index, q := range specs {
		got := QuatFromMat3(q.Mat3())

		// q and -q represent the same rotation
		sign := float32(1)
		if got.W*q.W+got.V.Dot(q.V) < 0 {
			sign = -1
		}
		exp := q.Raw()
		raw := got.Raw()
		for i := 0; i < 4; i++ {
			if !approxEqual(exp[i], sign*raw[i]) {
				t.Fatalf("[spec %d] expected quaternion %v; got %v", index, exp, raw)
			}
		}
	}
}

func TestQuatMat3MatchesRotate(t *testing.T) {
	q := Quat{V: Vec3{0.1, 0.4, -0.3}, W: 0.8}.Normalize()
	v := XYZ(0.5, -1, 2)

	exp := q.Rotate(v)
	got := q.Mat3().MulVec3(v)
	for i := 0; i < 3; i++ {
		if !approxEqual(exp[i], got[i]) {
			t.Fatalf("expected rotated vector %v; got %v", exp, got)
		}
	}
}

func TestQuatNormalizeZero(t *testing.T) {
	q := Quat{}.Normalize()
	if q != QuatIdent() {
		t.Fatalf("expected zero quaternion to normalize to identity; got %v", q)
	}
}

func TestSigmoidInverse(t *testing.T) {
	for _, y := range []float32{0.001, 0.01, 0.4, 0.5, 0.9} {
		if got := Sigmoid(InverseSigmoid(y)); !approxEqual(got, y) {
			t.Fatalf("expected sigmoid(logit(%f)) = %f; got %f", y, y, got)
		}
	}
}
