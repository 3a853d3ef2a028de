package optim

import "errors"

var (
	ErrMaskLength   = errors.New("optim: mask length does not match the tracked row count")
	ErrRowCount     = errors.New("optim: extension rows do not share the same leading count")
	ErrMissingParam = errors.New("optim: no extension values supplied for tracked param")
	ErrUnknownParam = errors.New("optim: unknown param")
	ErrStride       = errors.New("optim: data length is not a multiple of the param stride")
	ErrStateLength  = errors.New("optim: moment state length does not match param data")
)
