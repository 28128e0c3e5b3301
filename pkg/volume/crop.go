package volume

import (
	"context"
	"fmt"

	"lazystack/internal/models"
)

// Crop returns the sub-volume selected by r, re-indexed from zero.
func Crop(v *Volume, r models.Region) (*Volume, error) {
	if err := r.Validate(v.desc.Shape); err != nil {
		return nil, err
	}
	return newVolume(r.Shape(), v.desc.Dtype, &cropped{input: v, offset: append([]int(nil), r.Start...)}), nil
}

type cropped struct {
	input  *Volume
	offset []int
}

func (c *cropped) kind() string { return "crop" }

func (c *cropped) compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error) {
	return c.input.Compute(ctx, ex, r.Translate(c.offset))
}

// Select fixes axis at index and removes it, like indexing a single time
// point or plane out of a stack.
func Select(v *Volume, axis, index int) (*Volume, error) {
	if v.Rank() < 2 {
		return nil, fmt.Errorf("volume: cannot select from a rank %d volume", v.Rank())
	}
	if axis < 0 || axis >= v.Rank() {
		return nil, fmt.Errorf("%w: axis %d of rank %d", ErrIndexOutOfRange, axis, v.Rank())
	}
	if index < 0 || index >= v.desc.Shape[axis] {
		return nil, fmt.Errorf("%w: index %d on axis %d of extent %d",
			ErrIndexOutOfRange, index, axis, v.desc.Shape[axis])
	}

	shape := make([]int, 0, v.Rank()-1)
	shape = append(shape, v.desc.Shape[:axis]...)
	shape = append(shape, v.desc.Shape[axis+1:]...)
	return newVolume(shape, v.desc.Dtype, &selected{input: v, axis: axis, index: index}), nil
}

type selected struct {
	input *Volume
	axis  int
	index int
}

func (s *selected) kind() string { return "select" }

func (s *selected) compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error) {
	b, err := s.input.Compute(ctx, ex, r.Insert(s.axis, s.index, s.index+1))
	if err != nil {
		return nil, err
	}
	return &models.Block{Shape: r.Shape(), Data: b.Data, Dtype: b.Dtype}, nil
}
