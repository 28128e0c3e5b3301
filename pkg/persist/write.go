package persist

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"lazystack/internal/models"
	"lazystack/pkg/volume"
)

// WriteOption configures Write.
type WriteOption func(*writeOptions)

type writeOptions struct {
	compressor *Compressor
	attrs      Attributes
	logger     *log.Logger
}

// WithGzip compresses every chunk with gzip at the given level.
func WithGzip(level int) WriteOption {
	return func(o *writeOptions) {
		o.compressor = &Compressor{ID: "gzip", Level: level}
	}
}

// WithAttributes adds entries to ".zattrs".
func WithAttributes(attrs Attributes) WriteOption {
	return func(o *writeOptions) {
		for k, v := range attrs {
			o.attrs[k] = v
		}
	}
}

// WithLogger reports progress to l.
func WithLogger(l *log.Logger) WriteOption {
	return func(o *writeOptions) {
		o.logger = l
	}
}

// Write stores v as a zarr v2 array below p. Each chunk is computed with its
// own Compute call, so at most one chunk of v is held in memory at a time.
// Chunk sizes that are missing, non-positive or larger than the array span
// the whole axis. Edge chunks are padded with the fill value to full size.
func Write(ctx context.Context, ex *volume.Executor, v *volume.Volume, store Store, p string,
	chunks []int, opts ...WriteOption) (*ArrayMeta, error) {
	o := writeOptions{attrs: Attributes{}, logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(&o)
	}
	if len(chunks) > v.Rank() {
		return nil, fmt.Errorf("persist: %d chunk sizes for rank %d", len(chunks), v.Rank())
	}

	shape := v.Shape()
	meta := &ArrayMeta{
		ZarrFormat:         zarrFormat,
		Shape:              shape,
		Chunks:             make([]int, len(shape)),
		Dtype:              v.Dtype(),
		Compressor:         o.compressor,
		Order:              "C",
		DimensionSeparator: ".",
	}
	for i, d := range shape {
		meta.Chunks[i] = d
		if i < len(chunks) && chunks[i] > 0 && chunks[i] < d {
			meta.Chunks[i] = chunks[i]
		}
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	if err := putJSON(store, join(p, ArrayKey), meta); err != nil {
		return nil, fmt.Errorf("write %s: %w", ArrayKey, err)
	}
	attrs := Attributes{
		"volume_id":   v.ID().String(),
		"volume_kind": v.Kind(),
	}
	for k, val := range o.attrs {
		attrs[k] = val
	}
	if err := putJSON(store, join(p, AttrsKey), attrs); err != nil {
		return nil, fmt.Errorf("write %s: %w", AttrsKey, err)
	}

	start := time.Now()
	n := 0
	err := volume.ComputeChunked(ctx, ex, v, meta.Chunks, func(r models.Region, b *models.Block) error {
		idx := make([]int, len(r.Start))
		for i := range idx {
			idx[i] = r.Start[i] / meta.Chunks[i]
		}
		if err := writeChunk(store, meta, meta.ChunkKey(p, idx), b); err != nil {
			return fmt.Errorf("chunk %v: %w", idx, err)
		}
		n++
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Printf("Wrote %d chunks of %v to %s in %v", n, meta.Chunks, store.Type(), time.Since(start))
	return meta, nil
}

// writeChunk pads b to the full chunk shape and stores it.
func writeChunk(store Store, meta *ArrayMeta, key string, b *models.Block) error {
	full := b
	if !models.EqualShape(b.Shape, meta.Chunks) {
		full = models.NewBlock(meta.Chunks, meta.Dtype)
		if meta.FillValue != 0 {
			for i := range full.Data {
				full.Data[i] = meta.FillValue
			}
		}
		if err := models.CopyRegion(full, models.Full(b.Shape), b, models.Full(b.Shape)); err != nil {
			return err
		}
	}

	raw := make([]byte, len(full.Data)*meta.Dtype.Size)
	if err := meta.Dtype.Encode(raw, full.Data); err != nil {
		return err
	}
	if meta.Compressor == nil {
		return store.Put(key, bytes.NewReader(raw))
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, meta.Compressor.Level)
	if err != nil {
		return err
	}
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return store.Put(key, &buf)
}

// ReadChunk loads chunk idx of the array below p. The block always has the
// full chunk shape, including any padding past the array edge.
func ReadChunk(store Store, p string, meta *ArrayMeta, idx []int) (*models.Block, error) {
	if _, err := meta.ChunkRegion(idx); err != nil {
		return nil, err
	}
	rc, err := store.Get(meta.ChunkKey(p, idx))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if meta.Compressor != nil {
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	b := models.NewBlock(meta.Chunks, meta.Dtype)
	if err := meta.Dtype.Decode(b.Data, raw); err != nil {
		return nil, fmt.Errorf("chunk %v: %w", idx, err)
	}
	return b, nil
}

// Read loads the whole array below p, dropping edge padding.
func Read(store Store, p string) (*models.Block, *ArrayMeta, error) {
	meta, err := ReadMeta(store, p)
	if err != nil {
		return nil, nil, err
	}
	out := models.NewBlock(meta.Shape, meta.Dtype)
	for _, r := range volume.Chunks(meta.Shape, meta.Chunks) {
		idx := make([]int, len(r.Start))
		for i := range idx {
			idx[i] = r.Start[i] / meta.Chunks[i]
		}
		chunk, err := ReadChunk(store, p, meta, idx)
		if err != nil {
			return nil, nil, err
		}
		if err := models.CopyRegion(out, r, chunk, models.Full(r.Shape())); err != nil {
			return nil, nil, err
		}
	}
	return out, meta, nil
}
