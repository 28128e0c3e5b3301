package volume

import (
	"context"
	"fmt"

	"lazystack/internal/models"
)

// BlockFunc transforms a materialized block. It must return a block of the
// same shape; it may modify and return its argument.
type BlockFunc func(b *models.Block) (*models.Block, error)

// MapOption configures Map.
type MapOption func(*mapOptions)

type mapOptions struct {
	margin []int
	dtype  models.Dtype
}

// WithMargin sets the overlap margin per axis, starting at axis 0. Axes
// without an entry get no margin.
func WithMargin(margin ...int) MapOption {
	return func(o *mapOptions) {
		o.margin = append([]int(nil), margin...)
	}
}

// WithDtype sets the element type of the result. Default: the input dtype.
func WithDtype(dt models.Dtype) MapOption {
	return func(o *mapOptions) {
		o.dtype = dt
	}
}

// Map returns a volume whose regions are fn applied to the input. For a
// request r the input is computed over r padded by the margin (clamped at
// the volume bounds), fn is applied, and the margin is trimmed again. A
// neighborhood function whose support fits inside the margin therefore gives
// the same samples as applying it to the whole array.
func Map(v *Volume, fn BlockFunc, opts ...MapOption) (*Volume, error) {
	o := mapOptions{dtype: v.desc.Dtype}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.margin) > v.Rank() {
		return nil, fmt.Errorf("volume: %d margins for rank %d", len(o.margin), v.Rank())
	}
	for i, m := range o.margin {
		if m < 0 {
			return nil, fmt.Errorf("volume: negative margin %d on axis %d", m, i)
		}
	}
	if err := o.dtype.Validate(); err != nil {
		return nil, err
	}
	return newVolume(v.desc.Shape, o.dtype, &mapped{input: v, fn: fn, margin: o.margin, dtype: o.dtype}), nil
}

type mapped struct {
	input  *Volume
	fn     BlockFunc
	margin []int
	dtype  models.Dtype
}

func (m *mapped) kind() string { return "map" }

func (m *mapped) compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error) {
	padded := r.Pad(m.margin, m.input.desc.Shape)
	in, err := m.input.Compute(ctx, ex, padded)
	if err != nil {
		return nil, err
	}
	out, err := m.fn(in)
	if err != nil {
		return nil, err
	}
	if !models.EqualShape(out.Shape, padded.Shape()) {
		return nil, fmt.Errorf("%w: map function returned %v for input %v",
			models.ErrShapeMismatch, out.Shape, padded.Shape())
	}

	trimmed := out
	if !padded.Equal(r) {
		if trimmed, err = out.Sub(r.Relative(padded)); err != nil {
			return nil, err
		}
	}
	return &models.Block{Shape: trimmed.Shape, Data: trimmed.Data, Dtype: m.dtype}, nil
}

// Filter is a neighborhood or element-wise operation together with the
// overlap it needs on each axis.
type Filter interface {
	Apply(b *models.Block) (*models.Block, error)
	Margin() []int
}

// Apply maps f over v with the margin f declares.
func Apply(v *Volume, f Filter) (*Volume, error) {
	return Map(v, f.Apply, WithMargin(f.Margin()...))
}
