package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"lazystack/internal/models"
)

// LowPass attenuates high spatial frequencies of every [Y, X] plane with a
// gaussian mask in the frequency domain. Cutoff is the mask's standard
// deviation in cycles per pixel; the plane is treated as periodic.
//
// The filter needs the whole plane, so Margin spans the full Y and X
// extents of Shape, the shape of the volume it is applied to.
type LowPass struct {
	Cutoff float64
	Shape  []int
}

func (l LowPass) Margin() []int {
	m := make([]int, len(l.Shape))
	if n := len(m); n >= 2 {
		m[n-2], m[n-1] = l.Shape[n-2], l.Shape[n-1]
	}
	return m
}

func (l LowPass) Apply(b *models.Block) (*models.Block, error) {
	n := b.Rank()
	if n < 2 {
		return nil, fmt.Errorf("filter: low-pass needs rank >= 2, got %d", n)
	}
	if l.Cutoff <= 0 {
		return nil, fmt.Errorf("filter: cutoff must be positive, got %g", l.Cutoff)
	}

	h, w := b.Shape[n-2], b.Shape[n-1]
	size := h * w
	p := newPlaneFFT(h, w)
	mask := lowPassMask(h, w, l.Cutoff)
	spec := make([]complex128, size)
	scale := 1 / float64(size)

	out := models.NewBlock(b.Shape, b.Dtype)
	for off := 0; off < len(b.Data); off += size {
		for i, v := range b.Data[off : off+size] {
			spec[i] = complex(v, 0)
		}
		p.transform(spec, false)
		for i, m := range mask {
			spec[i] *= complex(m, 0)
		}
		p.transform(spec, true)
		// the inverse transform is unnormalized
		for i, c := range spec {
			out.Data[off+i] = real(c) * scale
		}
	}
	return out, nil
}

// lowPassMask is exp(-f^2 / 2c^2) over the unshifted frequency grid.
func lowPassMask(h, w int, cutoff float64) []float64 {
	mask := make([]float64, h*w)
	denom := 2 * cutoff * cutoff
	for y := 0; y < h; y++ {
		fy := frequency(y, h)
		for x := 0; x < w; x++ {
			fx := frequency(x, w)
			mask[y*w+x] = math.Exp(-(fy*fy + fx*fx) / denom)
		}
	}
	return mask
}

// frequency maps FFT bin k of n onto cycles per sample in [-0.5, 0.5).
func frequency(k, n int) float64 {
	if k > n/2 {
		k -= n
	}
	return float64(k) / float64(n)
}

// planeFFT runs separable 2-D complex transforms, rows first.
type planeFFT struct {
	h, w       int
	rows, cols *fourier.CmplxFFT
	src, dst   []complex128
}

func newPlaneFFT(h, w int) *planeFFT {
	n := max(h, w)
	return &planeFFT{
		h: h, w: w,
		rows: fourier.NewCmplxFFT(w),
		cols: fourier.NewCmplxFFT(h),
		src:  make([]complex128, n),
		dst:  make([]complex128, n),
	}
}

func (p *planeFFT) transform(spec []complex128, inverse bool) {
	src, dst := p.src[:p.w], p.dst[:p.w]
	for y := 0; y < p.h; y++ {
		copy(src, spec[y*p.w:(y+1)*p.w])
		if inverse {
			p.rows.Sequence(dst, src)
		} else {
			p.rows.Coefficients(dst, src)
		}
		copy(spec[y*p.w:(y+1)*p.w], dst)
	}

	src, dst = p.src[:p.h], p.dst[:p.h]
	for x := 0; x < p.w; x++ {
		for y := 0; y < p.h; y++ {
			src[y] = spec[y*p.w+x]
		}
		if inverse {
			p.cols.Sequence(dst, src)
		} else {
			p.cols.Coefficients(dst, src)
		}
		for y := 0; y < p.h; y++ {
			spec[y*p.w+x] = dst[y]
		}
	}
}
