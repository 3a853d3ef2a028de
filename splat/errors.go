package splat

import "errors"

var (
	ErrLength      = errors.New("splat: array length mismatch")
	ErrNonFinite   = errors.New("splat: non-finite raw attribute")
	ErrSHLayout    = errors.New("splat: unsupported spherical harmonics layout")
	ErrSHDegree    = errors.New("splat: invalid spherical harmonics degree")
	ErrMissingData = errors.New("splat: missing model data")
	ErrKind        = errors.New("splat: unknown primitive type")
)
