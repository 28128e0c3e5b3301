// Package volume builds lazy N-dimensional views over on-disk image stacks.
//
// A Volume describes an array (shape and dtype) without holding its samples.
// Samples are only read when a region is computed, and processing steps such
// as filtering, projecting or cropping return new Volumes that wrap the
// original. No Volume is ever modified after construction, and nothing is
// cached between Compute calls.
package volume

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lazystack/internal/models"
)

// ErrIndexOutOfRange is returned when a region does not fit the volume.
var ErrIndexOutOfRange = models.ErrIndexOutOfRange

// Descriptor is the logical shape and element type of a volume.
type Descriptor struct {
	Shape []int
	Dtype models.Dtype
}

// Volume is a lazy, read-only array.
type Volume struct {
	id   uuid.UUID
	desc Descriptor
	node node
}

// node is one kind of pending computation. Implementations receive regions
// that have already been validated against the volume's shape.
type node interface {
	kind() string
	compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error)
}

func newVolume(shape []int, dt models.Dtype, n node) *Volume {
	return &Volume{
		id: uuid.New(),
		desc: Descriptor{
			Shape: append([]int(nil), shape...),
			Dtype: dt,
		},
		node: n,
	}
}

// ID identifies the volume for logging, tracing and persisted attributes.
func (v *Volume) ID() uuid.UUID {
	return v.id
}

// Shape returns a copy of the logical shape.
func (v *Volume) Shape() []int {
	return append([]int(nil), v.desc.Shape...)
}

// Dtype returns the element type.
func (v *Volume) Dtype() models.Dtype {
	return v.desc.Dtype
}

// Rank is the number of axes.
func (v *Volume) Rank() int {
	return len(v.desc.Shape)
}

// Descriptor returns a copy of the shape and dtype.
func (v *Volume) Descriptor() Descriptor {
	return Descriptor{Shape: v.Shape(), Dtype: v.desc.Dtype}
}

// Kind names the operation the volume performs: "source", "memory", "map",
// "reduce", "crop" or "select".
func (v *Volume) Kind() string {
	return v.node.kind()
}

// Compute materializes region r. The returned block belongs to the caller.
// A nil executor uses NewExecutor().
func (v *Volume) Compute(ctx context.Context, ex *Executor, r models.Region) (*models.Block, error) {
	if ex == nil {
		ex = NewExecutor()
	}
	if err := r.Validate(v.desc.Shape); err != nil {
		return nil, err
	}

	ctx, span := ex.tracer.Start(ctx, "volume.Compute", trace.WithAttributes(
		attribute.String("volume.id", v.id.String()),
		attribute.String("volume.kind", v.node.kind()),
		attribute.String("volume.region", r.String()),
		attribute.Int("volume.elements", r.Size()),
	))
	defer span.End()

	b, err := v.node.compute(ctx, ex, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return b, nil
}

// ComputeAll materializes the whole volume.
func (v *Volume) ComputeAll(ctx context.Context, ex *Executor) (*models.Block, error) {
	return v.Compute(ctx, ex, models.Full(v.desc.Shape))
}

// Plane materializes the 2-D plane spanned by the last two axes at the given
// leading indices, returned with shape [Y, X].
func (v *Volume) Plane(ctx context.Context, ex *Executor, leading ...int) (*models.Block, error) {
	r, err := PlaneRegion(v.desc.Shape, leading)
	if err != nil {
		return nil, err
	}
	b, err := v.Compute(ctx, ex, r)
	if err != nil {
		return nil, err
	}
	n := len(b.Shape)
	return &models.Block{Shape: []int{b.Shape[n-2], b.Shape[n-1]}, Data: b.Data, Dtype: b.Dtype}, nil
}

// PlaneRegion returns the region of the single trailing 2-D plane at the
// given leading indices.
func PlaneRegion(shape []int, leading []int) (models.Region, error) {
	n := len(shape)
	if n < 2 || len(leading) != n-2 {
		return models.Region{}, fmt.Errorf("%w: %d leading indices for rank %d",
			ErrIndexOutOfRange, len(leading), n)
	}
	r := models.Full(shape)
	for i, idx := range leading {
		r.Start[i] = idx
		r.Stop[i] = idx + 1
	}
	if err := r.Validate(shape); err != nil {
		return models.Region{}, err
	}
	return r, nil
}
