package models

import (
	"fmt"
	"math"
)

// Block is a fully materialized N-dimensional array. Data holds the samples
// in row-major order, the last axis varying fastest. A Block is owned by
// whoever computed it; nothing else keeps a reference.
type Block struct {
	// Shape is the extent along each axis
	Shape []int

	// Data holds Shape[0]*...*Shape[n-1] samples
	Data []float64

	// Dtype is the element type the samples were read as or will be stored as
	Dtype Dtype
}

// NewBlock allocates a zero-filled block.
func NewBlock(shape []int, dt Dtype) *Block {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Block{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, n),
		Dtype: dt,
	}
}

// Rank is the number of axes.
func (b *Block) Rank() int {
	return len(b.Shape)
}

// Len is the number of samples.
func (b *Block) Len() int {
	return len(b.Data)
}

// Strides returns the distance in Data between neighbours along each axis.
func (b *Block) Strides() []int {
	strides := make([]int, len(b.Shape))
	s := 1
	for i := len(b.Shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= b.Shape[i]
	}
	return strides
}

// Offset converts an index tuple into a position in Data.
func (b *Block) Offset(idx ...int) int {
	off := 0
	s := 1
	for i := len(b.Shape) - 1; i >= 0; i-- {
		off += idx[i] * s
		s *= b.Shape[i]
	}
	return off
}

// At returns the sample at idx.
func (b *Block) At(idx ...int) float64 {
	return b.Data[b.Offset(idx...)]
}

// Set stores v at idx.
func (b *Block) Set(v float64, idx ...int) {
	b.Data[b.Offset(idx...)] = v
}

// Sub copies the samples selected by r into a new block.
func (b *Block) Sub(r Region) (*Block, error) {
	if err := r.Validate(b.Shape); err != nil {
		return nil, err
	}
	out := NewBlock(r.Shape(), b.Dtype)
	copyRegion(out, Full(out.Shape), b, r)
	return out, nil
}

// Paste copies src into the region r of b.
func (b *Block) Paste(r Region, src *Block) error {
	if err := r.Validate(b.Shape); err != nil {
		return err
	}
	if !EqualShape(r.Shape(), src.Shape) {
		return fmt.Errorf("%w: region %v vs block %v", ErrShapeMismatch, r.Shape(), src.Shape)
	}
	copyRegion(b, r, src, Full(src.Shape))
	return nil
}

// CopyRegion copies region sr of src into region dr of dst. The regions must
// lie inside their blocks and have the same shape.
func CopyRegion(dst *Block, dr Region, src *Block, sr Region) error {
	if err := dr.Validate(dst.Shape); err != nil {
		return err
	}
	if err := sr.Validate(src.Shape); err != nil {
		return err
	}
	if !EqualShape(dr.Shape(), sr.Shape()) {
		return fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, dr.Shape(), sr.Shape())
	}
	copyRegion(dst, dr, src, sr)
	return nil
}

// Squeeze returns a view of b with every axis of extent 1 removed. The view
// shares Data with b. A block made only of unit axes squeezes to shape [1].
func (b *Block) Squeeze() *Block {
	shape := make([]int, 0, len(b.Shape))
	for _, d := range b.Shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	if len(shape) == 0 {
		shape = append(shape, 1)
	}
	return &Block{Shape: shape, Data: b.Data, Dtype: b.Dtype}
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	return &Block{
		Shape: append([]int(nil), b.Shape...),
		Data:  append([]float64(nil), b.Data...),
		Dtype: b.Dtype,
	}
}

// Equal reports whether two blocks have the same shape and bit-identical samples.
func (b *Block) Equal(o *Block) bool {
	if !EqualShape(b.Shape, o.Shape) || len(b.Data) != len(o.Data) {
		return false
	}
	for i := range b.Data {
		if math.Float64bits(b.Data[i]) != math.Float64bits(o.Data[i]) {
			return false
		}
	}
	return true
}

// copyRegion copies region sr of src into region dr of dst, row by row along
// the last axis. Both regions must have the same shape.
func copyRegion(dst *Block, dr Region, src *Block, sr Region) {
	shape := sr.Shape()
	n := len(shape)
	if n == 0 {
		return
	}
	rowLen := shape[n-1]
	ds, ss := dst.Strides(), src.Strides()
	idx := make([]int, n-1)
	for {
		do, so := dr.Start[n-1], sr.Start[n-1]
		for i := 0; i < n-1; i++ {
			do += (dr.Start[i] + idx[i]) * ds[i]
			so += (sr.Start[i] + idx[i]) * ss[i]
		}
		copy(dst.Data[do:do+rowLen], src.Data[so:so+rowLen])

		k := n - 2
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < shape[k] {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return
		}
	}
}
