package volume

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"lazystack/internal/models"
	"lazystack/pkg/filter"
)

// assembleChunked computes v chunk by chunk and pastes the pieces together
func assembleChunked(t *testing.T, ex *Executor, v *Volume, chunk []int) *models.Block {
	t.Helper()
	out := models.NewBlock(v.Shape(), v.Dtype())
	err := ComputeChunked(context.Background(), ex, v, chunk, func(r models.Region, b *models.Block) error {
		return out.Paste(r, b)
	})
	if err != nil {
		t.Fatalf("ComputeChunked failed: %v", err)
	}
	return out
}

// TestMapOverlapMatchesWholeArray checks chunked neighborhood filtering
// against the filter applied to the fully materialized array
func TestMapOverlapMatchesWholeArray(t *testing.T) {
	v, _, _ := buildDataset(t, 4, 3, 12, 12)
	ctx := context.Background()
	ex := NewExecutor(WithWorkers(4))

	whole, err := v.ComputeAll(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}

	filters := map[string]Filter{
		"gaussian": filter.Gaussian{Sigma: []float64{0, 0.8, 1.2, 1}},
		"maximum":  filter.Maximum{Size: []int{1, 3, 3, 4}},
		"minimum":  filter.Minimum{Size: []int{2, 1, 5, 3}},
		"lowpass":  filter.LowPass{Cutoff: 0.15, Shape: v.Shape()},
	}
	chunkings := [][]int{
		{2, 2, 5, 5},
		{1, 1, 4, 7},
		{3, 3, 12, 3},
	}

	for name, f := range filters {
		want, err := f.Apply(whole)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		lazy, err := Apply(v, f)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if lazy.Kind() != "map" {
			t.Errorf("%s: expected kind map, got %s", name, lazy.Kind())
		}

		for _, chunk := range chunkings {
			got := assembleChunked(t, ex, lazy, chunk)
			if !got.Equal(want) {
				t.Errorf("%s with chunks %v differs from the whole-array result", name, chunk)
			}
		}
	}
}

// TestMapWithoutMarginShowsSeams is the control for the overlap test
func TestMapWithoutMarginShowsSeams(t *testing.T) {
	v, _, _ := buildDataset(t, 1, 1, 12, 12)
	ex := NewExecutor()
	f := filter.Gaussian{Sigma: []float64{0, 0, 1, 1}}

	whole, err := v.ComputeAll(context.Background(), ex)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := f.Apply(whole)

	noMargin, err := Map(v, f.Apply)
	if err != nil {
		t.Fatal(err)
	}
	got := assembleChunked(t, ex, noMargin, []int{1, 1, 4, 4})
	if got.Equal(want) {
		t.Error("Expected seams when chunks are filtered without overlap")
	}
}

// TestMapShapeMismatch rejects functions that change the block shape
func TestMapShapeMismatch(t *testing.T) {
	v := FromBlock(models.NewBlock([]int{4, 4}, models.Uint8))
	shrink := func(b *models.Block) (*models.Block, error) {
		return b.Sub(models.NewRegion([]int{0, 0}, []int{1, 1}))
	}
	m, err := Map(v, shrink)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ComputeAll(context.Background(), nil); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}

	if _, err := Map(v, shrink, WithMargin(1, 1, 1)); err == nil {
		t.Error("Expected error for more margins than axes")
	}
	if _, err := Map(v, shrink, WithMargin(-1)); err == nil {
		t.Error("Expected error for negative margin")
	}
}

// TestMapDtype sets the result dtype without touching the input
func TestMapDtype(t *testing.T) {
	src := models.NewBlock([]int{2, 3}, models.Uint8)
	for i := range src.Data {
		src.Data[i] = float64(i)
	}
	v := FromBlock(src)
	half := func(b *models.Block) (*models.Block, error) {
		for i := range b.Data {
			b.Data[i] /= 2
		}
		return b, nil
	}
	m, err := Map(v, half, WithDtype(models.Float32))
	if err != nil {
		t.Fatal(err)
	}
	if m.Dtype() != models.Float32 || v.Dtype() != models.Uint8 {
		t.Errorf("Expected float32 over uint8, got %s over %s", m.Dtype(), v.Dtype())
	}

	b, err := m.ComputeAll(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.Dtype != models.Float32 || b.At(1, 2) != 2.5 {
		t.Errorf("Unexpected result %s %v", b.Dtype, b.Data)
	}

	// the wrapped volume still yields the original samples
	orig, _ := v.ComputeAll(context.Background(), nil)
	if !orig.Equal(src) {
		t.Error("Map modified its input volume")
	}
}

// TestMaxProjectionComposes checks projection of sub-regions against the
// reduction of the full-depth slab
func TestMaxProjectionComposes(t *testing.T) {
	v, _, _ := buildDataset(t, 3, 4, 6, 6)
	ctx := context.Background()
	ex := NewExecutor(WithWorkers(2))

	proj, err := MaxProjection(v, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !models.EqualShape(proj.Shape(), []int{3, 6, 6}) {
		t.Fatalf("Expected shape [3 6 6], got %v", proj.Shape())
	}

	sub := models.NewRegion([]int{1, 2, 1}, []int{3, 5, 4})
	got, err := proj.Compute(ctx, ex, sub)
	if err != nil {
		t.Fatal(err)
	}

	slab, err := v.Compute(ctx, ex, models.NewRegion([]int{1, 0, 2, 1}, []int{3, 4, 5, 4}))
	if err != nil {
		t.Fatal(err)
	}
	for ti := 0; ti < 2; ti++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				want := slab.At(ti, 0, y, x)
				for z := 1; z < 4; z++ {
					want = max(want, slab.At(ti, z, y, x))
				}
				if g := got.At(ti, y, x); g != want {
					t.Errorf("(%d,%d,%d): expected %f, got %f", ti, y, x, want, g)
				}
			}
		}
	}

	// chunked projection equals the whole projection
	whole, err := proj.ComputeAll(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	if !assembleChunked(t, ex, proj, []int{2, 4, 4}).Equal(whole) {
		t.Error("Chunked projection differs from whole projection")
	}
}

// TestReduceOps covers the remaining reductions on a small block
func TestReduceOps(t *testing.T) {
	b := models.NewBlock([]int{2, 3}, models.Uint8)
	copy(b.Data, []float64{1, 5, 3, 7, 2, 6})
	v := FromBlock(b)

	cases := []struct {
		op    ReduceOp
		axis  int
		want  []float64
		dtype models.Dtype
	}{
		{Max, 0, []float64{7, 5, 6}, models.Uint8},
		{Min, 1, []float64{1, 2}, models.Uint8},
		{Sum, 1, []float64{9, 15}, models.Float64},
		{Mean, 0, []float64{4, 3.5, 4.5}, models.Float64},
	}
	for _, c := range cases {
		r, err := Reduce(v, c.axis, c.op)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		out, err := r.ComputeAll(context.Background(), nil)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if out.Dtype != c.dtype {
			t.Errorf("%s: expected dtype %s, got %s", c.op, c.dtype, out.Dtype)
		}
		for i, w := range c.want {
			if out.Data[i] != w {
				t.Errorf("%s axis %d at %d: expected %f, got %f", c.op, c.axis, i, w, out.Data[i])
			}
		}
	}

	if _, err := Reduce(v, 2, Max); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange for bad axis, got %v", err)
	}
	if _, err := Reduce(v, 0, "median"); err == nil {
		t.Error("Expected error for unknown reduction")
	}
	line := FromBlock(models.NewBlock([]int{4}, models.Uint8))
	if _, err := Reduce(line, 0, Max); err == nil {
		t.Error("Expected error reducing a rank 1 volume")
	}
}

// TestCropAndSelect re-index sub-volumes from zero
func TestCropAndSelect(t *testing.T) {
	v, reader, _ := buildDataset(t, 3, 3, 5, 5)
	ctx := context.Background()

	c, err := Crop(v, models.NewRegion([]int{1, 1, 1, 2}, []int{3, 2, 4, 5}))
	if err != nil {
		t.Fatal(err)
	}
	if !models.EqualShape(c.Shape(), []int{2, 1, 3, 3}) {
		t.Fatalf("Expected shape [2 1 3 3], got %v", c.Shape())
	}
	b, err := c.ComputeAll(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.At(1, 0, 2, 0), sampleValue(2, 1, 3, 2); got != want {
		t.Errorf("Expected %f, got %f", want, got)
	}
	if n := len(reader.calls()); n != 2 {
		t.Errorf("Expected 2 plane reads for the crop, got %d", n)
	}

	if _, err := Crop(v, models.NewRegion([]int{0, 0, 0, 0}, []int{4, 1, 1, 1})); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}

	s, err := Select(v, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !models.EqualShape(s.Shape(), []int{3, 5, 5}) {
		t.Fatalf("Expected shape [3 5 5], got %v", s.Shape())
	}
	plane, err := s.Plane(ctx, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := plane.At(4, 3), sampleValue(2, 1, 4, 3); got != want {
		t.Errorf("Expected %f, got %f", want, got)
	}

	if _, err := Select(v, 1, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

// TestChunks checks grid order and ragged edges
func TestChunks(t *testing.T) {
	regions := Chunks([]int{5, 4}, []int{2, 3})
	want := []models.Region{
		models.NewRegion([]int{0, 0}, []int{2, 3}),
		models.NewRegion([]int{0, 3}, []int{2, 4}),
		models.NewRegion([]int{2, 0}, []int{4, 3}),
		models.NewRegion([]int{2, 3}, []int{4, 4}),
		models.NewRegion([]int{4, 0}, []int{5, 3}),
		models.NewRegion([]int{4, 3}, []int{5, 4}),
	}
	if len(regions) != len(want) {
		t.Fatalf("Expected %d chunks, got %d", len(want), len(regions))
	}
	for i := range want {
		if !regions[i].Equal(want[i]) {
			t.Errorf("Chunk %d: expected %v, got %v", i, want[i], regions[i])
		}
	}

	if n := len(Chunks([]int{3, 3}, nil)); n != 1 {
		t.Errorf("Expected a single chunk without chunk sizes, got %d", n)
	}

	if n := len(Chunks([]int{0, 3, 3}, []int{1, 1, 1})); n != 0 {
		t.Errorf("Expected no chunks for an empty shape, got %d", n)
	}
}

// TestComputeChunkedEmpty visits nothing for a volume with a zero extent
func TestComputeChunkedEmpty(t *testing.T) {
	v := FromBlock(models.NewBlock([]int{0, 3, 3}, models.Uint8))
	visited := 0
	err := ComputeChunked(context.Background(), NewExecutor(), v, []int{1, 2, 2},
		func(models.Region, *models.Block) error {
			visited++
			return nil
		})
	if err != nil {
		t.Fatalf("ComputeChunked failed: %v", err)
	}
	if visited != 0 {
		t.Errorf("Expected no chunks visited, got %d", visited)
	}
}

// TestSummarize computes block statistics
func TestSummarize(t *testing.T) {
	b := models.NewBlock([]int{4}, models.Float64)
	copy(b.Data, []float64{2, 4, 4, 6})
	s := Summarize(b)
	if s.Min != 2 || s.Max != 6 || s.Mean != 4 {
		t.Errorf("Unexpected stats %v", s)
	}
	if s.StdDev <= 0 {
		t.Errorf("Expected positive standard deviation, got %f", s.StdDev)
	}
	if (Summarize(&models.Block{}) != Stats{}) {
		t.Error("Expected zero stats for an empty block")
	}
}

// TestComputeSpans records one span per Compute in the chain
func TestComputeSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ex := NewExecutor(WithTracerProvider(tp))

	src := models.NewBlock([]int{3, 4}, models.Uint8)
	proj, err := MaxProjection(FromBlock(src), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := proj.ComputeAll(context.Background(), ex); err != nil {
		t.Fatal(err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	kinds := map[string]bool{}
	for _, s := range spans {
		if s.Name() != "volume.Compute" {
			t.Errorf("Unexpected span name %q", s.Name())
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "volume.kind" {
				kinds[kv.Value.AsString()] = true
			}
		}
	}
	if !kinds["reduce"] || !kinds["memory"] {
		t.Errorf("Expected reduce and memory spans, got %v", kinds)
	}
}
