package volume

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lazystack/internal/models"
)

// ReduceOp combines the samples along one axis into a single value.
type ReduceOp string

const (
	Max  ReduceOp = "max"
	Min  ReduceOp = "min"
	Sum  ReduceOp = "sum"
	Mean ReduceOp = "mean"
)

func (op ReduceOp) apply(values []float64) float64 {
	switch op {
	case Max:
		return floats.Max(values)
	case Min:
		return floats.Min(values)
	case Sum:
		return floats.Sum(values)
	default:
		return stat.Mean(values, nil)
	}
}

// Reduce returns a volume with axis removed, each sample being op over the
// full extent of that axis. Max and Min keep the input dtype; Sum and Mean
// produce "<f8".
func Reduce(v *Volume, axis int, op ReduceOp) (*Volume, error) {
	switch op {
	case Max, Min, Sum, Mean:
	default:
		return nil, fmt.Errorf("volume: unknown reduction %q", op)
	}
	if v.Rank() < 2 {
		return nil, fmt.Errorf("volume: cannot reduce a rank %d volume", v.Rank())
	}
	if axis < 0 || axis >= v.Rank() {
		return nil, fmt.Errorf("%w: axis %d of rank %d", ErrIndexOutOfRange, axis, v.Rank())
	}

	shape := make([]int, 0, v.Rank()-1)
	shape = append(shape, v.desc.Shape[:axis]...)
	shape = append(shape, v.desc.Shape[axis+1:]...)

	dt := v.desc.Dtype
	if op == Sum || op == Mean {
		dt = models.Float64
	}
	return newVolume(shape, dt, &reduced{input: v, axis: axis, op: op, dtype: dt}), nil
}

// MaxProjection is Reduce(v, axis, Max).
func MaxProjection(v *Volume, axis int) (*Volume, error) {
	return Reduce(v, axis, Max)
}

type reduced struct {
	input *Volume
	axis  int
	op    ReduceOp
	dtype models.Dtype
}

func (rd *reduced) kind() string { return "reduce" }

// compute requests the full extent of the reduced axis for the same
// sub-region of the other axes, then folds that axis away.
func (rd *reduced) compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error) {
	extent := rd.input.desc.Shape[rd.axis]
	in, err := rd.input.Compute(ctx, ex, r.Insert(rd.axis, 0, extent))
	if err != nil {
		return nil, err
	}

	outer := 1
	for _, d := range in.Shape[:rd.axis] {
		outer *= d
	}
	inner := 1
	for _, d := range in.Shape[rd.axis+1:] {
		inner *= d
	}

	out := models.NewBlock(r.Shape(), rd.dtype)
	column := make([]float64, extent)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			for k := 0; k < extent; k++ {
				column[k] = in.Data[(o*extent+k)*inner+i]
			}
			out.Data[o*inner+i] = rd.op.apply(column)
		}
	}
	return out, nil
}
