package stack

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFilesFound is returned by Scan when the pattern matches nothing.
	ErrNoFilesFound = errors.New("stack: no files found")

	// ErrDatasetInconsistent is returned by Scan when a file's plane shape,
	// plane count or dtype disagrees with the first file.
	ErrDatasetInconsistent = errors.New("stack: dataset inconsistent")

	// ErrIO is matched by every failure to read a header or a plane.
	ErrIO = errors.New("stack: read failed")

	// ErrUnknownFormat is returned for files whose extension has no reader.
	ErrUnknownFormat = errors.New("stack: unknown file format")
)

// PlaneError records a failed read of one plane (Plane < 0 for header reads).
type PlaneError struct {
	Path  string
	Plane int
	Err   error
}

func (e *PlaneError) Error() string {
	if e.Plane < 0 {
		return fmt.Sprintf("stack: read header of %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("stack: read plane %d of %s: %v", e.Plane, e.Path, e.Err)
}

func (e *PlaneError) Unwrap() error { return e.Err }

// Is makes every PlaneError match ErrIO.
func (e *PlaneError) Is(target error) bool { return target == ErrIO }
