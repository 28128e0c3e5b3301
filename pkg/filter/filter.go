// Package filter provides small neighborhood and element-wise operations on
// materialized blocks. Neighborhood filters treat samples beyond the block
// edge as copies of the nearest edge sample, and each filter reports the
// overlap margin it needs so it can be evaluated chunk by chunk.
package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"lazystack/internal/models"
)

// truncate is how many standard deviations a gaussian kernel extends.
const truncate = 4.0

// Gaussian smooths with a separable gaussian kernel. Sigma has one entry per
// axis; a zero entry leaves that axis alone.
type Gaussian struct {
	Sigma []float64
}

func (g Gaussian) radius(axis int) int {
	return int(truncate*g.Sigma[axis] + 0.5)
}

// Margin is the kernel radius on each axis.
func (g Gaussian) Margin() []int {
	m := make([]int, len(g.Sigma))
	for i := range g.Sigma {
		m[i] = g.radius(i)
	}
	return m
}

func (g Gaussian) Apply(b *models.Block) (*models.Block, error) {
	if len(g.Sigma) != b.Rank() {
		return nil, fmt.Errorf("filter: %d sigmas for rank %d", len(g.Sigma), b.Rank())
	}
	out := b
	for axis, sigma := range g.Sigma {
		if sigma < 0 {
			return nil, fmt.Errorf("filter: negative sigma %g on axis %d", sigma, axis)
		}
		if sigma == 0 {
			continue
		}
		kernel := gaussianKernel(sigma, g.radius(axis))
		r := len(kernel) / 2
		out = alongAxis(out, axis, func(dst, src []float64) {
			n := len(src)
			for k := range dst {
				var acc float64
				for j, w := range kernel {
					acc += w * src[clamp(k+j-r, n)]
				}
				dst[k] = acc
			}
		})
	}
	if out == b {
		out = b.Clone()
	}
	return out, nil
}

// gaussianKernel returns 2*radius+1 normalized weights.
func gaussianKernel(sigma float64, radius int) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: sigma}
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		kernel[i] = dist.Prob(float64(i - radius))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// Minimum replaces each sample with the smallest value in a box of Size
// samples around it.
type Minimum struct {
	Size []int
}

func (m Minimum) Margin() []int { return boxMargin(m.Size) }

func (m Minimum) Apply(b *models.Block) (*models.Block, error) {
	return rankFilter(b, m.Size, math.Min)
}

// Maximum replaces each sample with the largest value in a box of Size
// samples around it.
type Maximum struct {
	Size []int
}

func (m Maximum) Margin() []int { return boxMargin(m.Size) }

func (m Maximum) Apply(b *models.Block) (*models.Block, error) {
	return rankFilter(b, m.Size, math.Max)
}

// boxMargin is size/2 per axis: a box of size s spans s/2 samples before the
// centre and (s-1)/2 after it.
func boxMargin(size []int) []int {
	m := make([]int, len(size))
	for i, s := range size {
		m[i] = s / 2
	}
	return m
}

func rankFilter(b *models.Block, size []int, pick func(a, b float64) float64) (*models.Block, error) {
	if len(size) != b.Rank() {
		return nil, fmt.Errorf("filter: %d sizes for rank %d", len(size), b.Rank())
	}
	out := b
	for axis, s := range size {
		if s < 1 {
			return nil, fmt.Errorf("filter: size %d on axis %d", s, axis)
		}
		if s == 1 {
			continue
		}
		before := s / 2
		out = alongAxis(out, axis, func(dst, src []float64) {
			n := len(src)
			for k := range dst {
				v := src[clamp(k-before, n)]
				for j := 1; j < s; j++ {
					v = pick(v, src[clamp(k-before+j, n)])
				}
				dst[k] = v
			}
		})
	}
	if out == b {
		out = b.Clone()
	}
	return out, nil
}

// Threshold maps samples above Level to 1 and the rest to 0.
type Threshold struct {
	Level float64
}

func (Threshold) Margin() []int { return nil }

func (t Threshold) Apply(b *models.Block) (*models.Block, error) {
	out := models.NewBlock(b.Shape, b.Dtype)
	for i, v := range b.Data {
		if v > t.Level {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// Rescale maps [InLow, InHigh] linearly onto [OutLow, OutHigh]. Values
// outside the input range are extrapolated, not clipped.
type Rescale struct {
	InLow, InHigh   float64
	OutLow, OutHigh float64
}

func (Rescale) Margin() []int { return nil }

func (r Rescale) Apply(b *models.Block) (*models.Block, error) {
	if r.InHigh == r.InLow {
		return nil, fmt.Errorf("filter: empty input range [%g, %g]", r.InLow, r.InHigh)
	}
	scale := (r.OutHigh - r.OutLow) / (r.InHigh - r.InLow)
	out := models.NewBlock(b.Shape, b.Dtype)
	for i, v := range b.Data {
		out.Data[i] = r.OutLow + (v-r.InLow)*scale
	}
	return out, nil
}

// alongAxis applies fn to every 1-D line of b parallel to axis and returns
// the results as a new block.
func alongAxis(b *models.Block, axis int, fn func(dst, src []float64)) *models.Block {
	n := b.Shape[axis]
	outer := 1
	for _, d := range b.Shape[:axis] {
		outer *= d
	}
	inner := 1
	for _, d := range b.Shape[axis+1:] {
		inner *= d
	}

	out := models.NewBlock(b.Shape, b.Dtype)
	src := make([]float64, n)
	dst := make([]float64, n)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			for k := 0; k < n; k++ {
				src[k] = b.Data[(o*n+k)*inner+i]
			}
			fn(dst, src)
			for k := 0; k < n; k++ {
				out.Data[(o*n+k)*inner+i] = dst[k]
			}
		}
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
