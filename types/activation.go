package types

import "math"

// Logistic sigmoid.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// Inverse of the logistic sigmoid (logit). Values outside (0, 1) produce
// +/-Inf.
func InverseSigmoid(y float32) float32 {
	return float32(math.Log(float64(y) / float64(1-y)))
}

// Exp for float32 values.
func Exp(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// Log for float32 values.
func Log(x float32) float32 {
	return float32(math.Log(float64(x)))
}

// Returns true if x is neither NaN nor Inf.
func IsFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// Clamp x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
