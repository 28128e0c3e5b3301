// Package stack locates multi-frame image files on disk and reads single
// planes out of them without touching the rest of the file.
package stack

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"lazystack/internal/models"
)

// FileInfo is the header-level description of one multi-frame file.
type FileInfo struct {
	Path   string
	Planes int
	Height int
	Width  int
	Dtype  models.Dtype
}

// PlaneShape returns the (height, width) of one plane.
func (fi FileInfo) PlaneShape() []int {
	return []int{fi.Height, fi.Width}
}

// Reader opens multi-frame image files.
//
// Probe must only read file metadata. ReadPlane must return exactly
// Height*Width samples of the requested plane in row-major order, and must
// not read other planes.
type Reader interface {
	Probe(path string) (FileInfo, error)
	ReadPlane(path string, plane int) ([]float64, error)
}

// Formats dispatches to a Reader based on the file extension.
type Formats struct {
	mu    sync.RWMutex
	byExt map[string]Reader
}

var _ Reader = (*Formats)(nil)

// DefaultFormats knows the raw stack format and the single-plane image formats.
func DefaultFormats() *Formats {
	f := &Formats{byExt: map[string]Reader{}}
	f.Register(StackExt, RawStack{})
	img := ImageFile{}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"} {
		f.Register(ext, img)
	}
	return f
}

// Register associates ext (with its leading dot, any case) with r.
func (f *Formats) Register(ext string, r Reader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byExt[strings.ToLower(ext)] = r
}

func (f *Formats) lookup(path string) (Reader, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ext := strings.ToLower(filepath.Ext(path))
	r, ok := f.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return r, nil
}

func (f *Formats) Probe(path string) (FileInfo, error) {
	r, err := f.lookup(path)
	if err != nil {
		return FileInfo{}, err
	}
	return r.Probe(path)
}

func (f *Formats) ReadPlane(path string, plane int) ([]float64, error) {
	r, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	return r.ReadPlane(path, plane)
}
