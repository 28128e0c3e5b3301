package volume

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lazystack/internal/models"
)

// Chunks splits shape into a grid of regions of at most chunk[i] along each
// axis, in row-major grid order. Axes without a chunk entry, or with a
// non-positive one, are not split. An empty shape yields no regions.
func Chunks(shape, chunk []int) []models.Region {
	for _, d := range shape {
		if d < 1 {
			return nil
		}
	}
	size := make([]int, len(shape))
	grid := make([]int, len(shape))
	total := 1
	for i, d := range shape {
		size[i] = d
		if i < len(chunk) && chunk[i] > 0 && chunk[i] < d {
			size[i] = chunk[i]
		}
		grid[i] = (d + size[i] - 1) / size[i]
		total *= grid[i]
	}

	regions := make([]models.Region, 0, total)
	idx := make([]int, len(shape))
	for n := 0; n < total; n++ {
		r := models.Region{Start: make([]int, len(shape)), Stop: make([]int, len(shape))}
		for i := range shape {
			r.Start[i] = idx[i] * size[i]
			r.Stop[i] = min(shape[i], r.Start[i]+size[i])
		}
		regions = append(regions, r)

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < grid[i] {
				break
			}
			idx[i] = 0
		}
	}
	return regions
}

// ComputeChunked computes v one chunk at a time and hands each result to
// visit, in grid order. Each chunk is an independent Compute call.
func ComputeChunked(ctx context.Context, ex *Executor, v *Volume, chunk []int,
	visit func(r models.Region, b *models.Block) error) error {
	for _, r := range Chunks(v.desc.Shape, chunk) {
		b, err := v.Compute(ctx, ex, r)
		if err != nil {
			return fmt.Errorf("chunk %v: %w", r, err)
		}
		if err := visit(r, b); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes the samples of a block.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summarize computes Stats for b. An empty block yields the zero value.
func Summarize(b *models.Block) Stats {
	if len(b.Data) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(b.Data, nil)
	return Stats{
		Min:    floats.Min(b.Data),
		Max:    floats.Max(b.Data),
		Mean:   mean,
		StdDev: std,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("min=%.3f max=%.3f mean=%.3f std=%.3f", s.Min, s.Max, s.Mean, s.StdDev)
}
