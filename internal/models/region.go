package models

import (
	"fmt"
	"strings"
)

// Region is a rectangular selection over an N-dimensional array.
// Start is inclusive and Stop is exclusive on every axis.
type Region struct {
	Start []int
	Stop  []int
}

// NewRegion copies start and stop into a new Region.
func NewRegion(start, stop []int) Region {
	return Region{
		Start: append([]int(nil), start...),
		Stop:  append([]int(nil), stop...),
	}
}

// Full returns the region covering every element of an array with the given shape.
func Full(shape []int) Region {
	return Region{
		Start: make([]int, len(shape)),
		Stop:  append([]int(nil), shape...),
	}
}

// Rank is the number of axes the region spans.
func (r Region) Rank() int {
	return len(r.Start)
}

// Shape returns the extent of the region along each axis.
func (r Region) Shape() []int {
	shape := make([]int, len(r.Start))
	for i := range shape {
		shape[i] = r.Stop[i] - r.Start[i]
	}
	return shape
}

// Size is the number of elements in the region.
func (r Region) Size() int {
	n := 1
	for _, d := range r.Shape() {
		n *= d
	}
	return n
}

// Validate checks that the region is non-empty and lies inside an array of
// the given shape.
func (r Region) Validate(shape []int) error {
	if len(r.Start) != len(shape) || len(r.Stop) != len(shape) {
		return fmt.Errorf("%w: region rank %d does not match array rank %d",
			ErrIndexOutOfRange, len(r.Start), len(shape))
	}
	for i := range shape {
		if r.Start[i] < 0 || r.Stop[i] > shape[i] || r.Start[i] >= r.Stop[i] {
			return fmt.Errorf("%w: axis %d range [%d, %d) outside [0, %d)",
				ErrIndexOutOfRange, i, r.Start[i], r.Stop[i], shape[i])
		}
	}
	return nil
}

// Pad grows the region by margin[i] on both sides of axis i and clamps the
// result to an array of the given shape. Axes without a margin entry are
// left unchanged.
func (r Region) Pad(margin []int, shape []int) Region {
	out := NewRegion(r.Start, r.Stop)
	for i := range out.Start {
		m := 0
		if i < len(margin) {
			m = margin[i]
		}
		out.Start[i] = max(0, out.Start[i]-m)
		out.Stop[i] = min(shape[i], out.Stop[i]+m)
	}
	return out
}

// Relative expresses r in the coordinate frame of outer, which must contain it.
func (r Region) Relative(outer Region) Region {
	out := NewRegion(r.Start, r.Stop)
	for i := range out.Start {
		out.Start[i] -= outer.Start[i]
		out.Stop[i] -= outer.Start[i]
	}
	return out
}

// Translate shifts the region by offset along each axis.
func (r Region) Translate(offset []int) Region {
	out := NewRegion(r.Start, r.Stop)
	for i := range out.Start {
		out.Start[i] += offset[i]
		out.Stop[i] += offset[i]
	}
	return out
}

// Insert returns a region of rank r.Rank()+1 with [start, stop) placed at axis.
func (r Region) Insert(axis, start, stop int) Region {
	out := Region{
		Start: make([]int, 0, len(r.Start)+1),
		Stop:  make([]int, 0, len(r.Stop)+1),
	}
	out.Start = append(out.Start, r.Start[:axis]...)
	out.Start = append(out.Start, start)
	out.Start = append(out.Start, r.Start[axis:]...)
	out.Stop = append(out.Stop, r.Stop[:axis]...)
	out.Stop = append(out.Stop, stop)
	out.Stop = append(out.Stop, r.Stop[axis:]...)
	return out
}

// Equal reports whether two regions select the same elements.
func (r Region) Equal(o Region) bool {
	return EqualShape(r.Start, o.Start) && EqualShape(r.Stop, o.Stop)
}

func (r Region) String() string {
	parts := make([]string, len(r.Start))
	for i := range r.Start {
		parts[i] = fmt.Sprintf("%d:%d", r.Start[i], r.Stop[i])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// EqualShape reports whether two shapes (or index tuples) are identical.
func EqualShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
