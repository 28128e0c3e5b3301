// Package persist writes lazy volumes to chunked zarr v2 arrays and reads
// them back.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"lazystack/internal/models"
)

const (
	// ArrayKey holds the array metadata.
	ArrayKey = ".zarray"
	// AttrsKey holds free-form user attributes.
	AttrsKey = ".zattrs"

	zarrFormat = 2
)

// Compressor names the codec applied to every chunk. A nil *Compressor in
// ArrayMeta means chunks are stored raw.
type Compressor struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// ArrayMeta is the ".zarray" document.
type ArrayMeta struct {
	ZarrFormat         int          `json:"zarr_format"`
	Shape              []int        `json:"shape"`
	Chunks             []int        `json:"chunks"`
	Dtype              models.Dtype `json:"dtype"`
	Compressor         *Compressor  `json:"compressor"`
	FillValue          float64      `json:"fill_value"`
	Order              string       `json:"order"`
	Filters            []any        `json:"filters"`
	DimensionSeparator string       `json:"dimension_separator"`
}

// Attributes is the ".zattrs" document.
type Attributes map[string]any

// Validate checks the fields this package relies on.
func (m *ArrayMeta) Validate() error {
	if m.ZarrFormat != zarrFormat {
		return fmt.Errorf("persist: unsupported zarr_format %d", m.ZarrFormat)
	}
	if len(m.Shape) == 0 || len(m.Chunks) != len(m.Shape) {
		return fmt.Errorf("persist: %d chunk sizes for shape %v", len(m.Chunks), m.Shape)
	}
	for i := range m.Shape {
		if m.Shape[i] < 1 || m.Chunks[i] < 1 {
			return fmt.Errorf("persist: bad extent on axis %d: shape %v chunks %v", i, m.Shape, m.Chunks)
		}
	}
	if m.Order != "C" {
		return fmt.Errorf("persist: unsupported order %q", m.Order)
	}
	if len(m.Filters) != 0 {
		return errors.New("persist: filters are not supported")
	}
	if m.Compressor != nil && m.Compressor.ID != "gzip" {
		return fmt.Errorf("persist: unsupported compressor %q", m.Compressor.ID)
	}
	return m.Dtype.Validate()
}

// Grid is the number of chunks along each axis.
func (m *ArrayMeta) Grid() []int {
	g := make([]int, len(m.Shape))
	for i := range g {
		g[i] = (m.Shape[i] + m.Chunks[i] - 1) / m.Chunks[i]
	}
	return g
}

// ChunkRegion is the part of the array covered by chunk idx, clipped to
// the array bounds.
func (m *ArrayMeta) ChunkRegion(idx []int) (models.Region, error) {
	grid := m.Grid()
	if len(idx) != len(grid) {
		return models.Region{}, fmt.Errorf("%w: chunk index %v for grid %v", models.ErrIndexOutOfRange, idx, grid)
	}
	r := models.Region{Start: make([]int, len(idx)), Stop: make([]int, len(idx))}
	for i, c := range idx {
		if c < 0 || c >= grid[i] {
			return models.Region{}, fmt.Errorf("%w: chunk index %v for grid %v", models.ErrIndexOutOfRange, idx, grid)
		}
		r.Start[i] = c * m.Chunks[i]
		r.Stop[i] = min(m.Shape[i], r.Start[i]+m.Chunks[i])
	}
	return r, nil
}

func (m *ArrayMeta) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// ChunkKey is the store key of chunk idx below array path p.
func (m *ArrayMeta) ChunkKey(p string, idx []int) string {
	parts := make([]string, len(idx))
	for i, c := range idx {
		parts[i] = strconv.Itoa(c)
	}
	return join(p, strings.Join(parts, m.separator()))
}

func join(p, key string) string {
	if p == "" {
		return key
	}
	return path.Join(p, key)
}

func putJSON(store Store, key string, v any) error {
	d, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return store.Put(key, bytes.NewReader(d))
}

func getJSON(store Store, key string, v any) error {
	rc, err := store.Get(key)
	if err != nil {
		return err
	}
	defer rc.Close()
	d, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(d, v); err != nil {
		return fmt.Errorf("reading %q: %w", key, err)
	}
	return nil
}

// ReadMeta loads and validates the array metadata below p.
func ReadMeta(store Store, p string) (*ArrayMeta, error) {
	m := &ArrayMeta{}
	if err := getJSON(store, join(p, ArrayKey), m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadAttrs loads the user attributes below p.
func ReadAttrs(store Store, p string) (Attributes, error) {
	attrs := Attributes{}
	if err := getJSON(store, join(p, AttrsKey), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
