package ply

import "errors"

var (
	ErrNotPly          = errors.New("ply: missing magic number")
	ErrBadHeader       = errors.New("ply: malformed header")
	ErrUnsupported     = errors.New("ply: unsupported feature")
	ErrNoVertices      = errors.New("ply: no vertex element")
	ErrColumnLength    = errors.New("ply: column length mismatch")
	ErrDuplicateColumn = errors.New("ply: duplicate column")
	ErrMissingColumn   = errors.New("ply: missing column")
)
