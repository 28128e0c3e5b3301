package models

import "errors"

var (
	// ErrIndexOutOfRange is returned when an index or region falls outside the
	// bounds of the array it addresses.
	ErrIndexOutOfRange = errors.New("lazystack: index out of range")

	// ErrShapeMismatch is returned when two arrays that must agree in shape do not.
	ErrShapeMismatch = errors.New("lazystack: shape mismatch")

	// ErrUnsupportedDtype is returned for element types the codec cannot handle.
	ErrUnsupportedDtype = errors.New("lazystack: unsupported dtype")
)
