package volume

import (
	"context"
	"errors"
	"fmt"

	"lazystack/internal/models"
	"lazystack/pkg/stack"
)

// Build returns the (T, Z, Y, X) volume backed by the files of ix. Only the
// index is kept; no file is opened until a region is computed.
func Build(ix *stack.Index) (*Volume, error) {
	if ix == nil || ix.Len() == 0 {
		return nil, stack.ErrNoFilesFound
	}
	if ix.Reader() == nil {
		return nil, errors.New("volume: index has no reader")
	}
	if err := ix.Dtype.Validate(); err != nil {
		return nil, err
	}
	for _, d := range ix.Shape() {
		if d < 1 {
			return nil, fmt.Errorf("%w: empty axis in shape %v", stack.ErrDatasetInconsistent, ix.Shape())
		}
	}
	return newVolume(ix.Shape(), ix.Dtype, &source{index: ix}), nil
}

// source reads planes straight from the indexed files.
type source struct {
	index *stack.Index
}

func (s *source) kind() string { return "source" }

// compute issues exactly one plane read per (t, z) pair in r. Each read
// task copies its Y/X window into its own slot of the output, so the result
// does not depend on the order in which reads complete.
func (s *source) compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error) {
	out := models.NewBlock(r.Shape(), s.index.Dtype)
	planeShape := []int{1, 1, s.index.Height, s.index.Width}
	window := models.NewRegion(
		[]int{0, 0, r.Start[2], r.Start[3]},
		[]int{1, 1, r.Stop[2], r.Stop[3]},
	)

	nt := r.Stop[0] - r.Start[0]
	nz := r.Stop[1] - r.Start[1]
	err := ex.run(ctx, nt*nz, func(ctx context.Context, i int) error {
		dt, dz := i/nz, i%nz
		samples, err := s.index.ReadPlane(r.Start[0]+dt, r.Start[1]+dz)
		if err != nil {
			return err
		}
		plane := &models.Block{Shape: planeShape, Data: samples, Dtype: s.index.Dtype}
		dst := models.NewRegion(
			[]int{dt, dz, 0, 0},
			[]int{dt + 1, dz + 1, out.Shape[2], out.Shape[3]},
		)
		return models.CopyRegion(out, dst, plane, window)
	})
	if err != nil {
		return nil, err
	}

	ex.logger.Printf("Read %d planes for region %v", nt*nz, r)
	return out, nil
}

// FromBlock wraps an in-memory array as a volume. The block is copied, so
// later changes to b do not show through.
func FromBlock(b *models.Block) *Volume {
	c := b.Clone()
	return newVolume(c.Shape, c.Dtype, &memory{block: c})
}

type memory struct {
	block *models.Block
}

func (m *memory) kind() string { return "memory" }

func (m *memory) compute(_ context.Context, _ *Executor, r models.Region) (*models.Block, error) {
	return m.block.Sub(r)
}
