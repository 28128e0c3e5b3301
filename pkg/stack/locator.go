package stack

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"lazystack/internal/models"
)

// Index is the ordered set of files making up a dataset. Files are in
// lexicographic path order; that order is the time axis. Every file has the
// same plane count, plane shape and dtype.
type Index struct {
	// Files lists each file with its header information
	Files []FileInfo

	// Planes is the number of planes per file (the depth axis)
	Planes int

	// Height and Width are the plane dimensions
	Height int
	Width  int

	// Dtype is the common element type
	Dtype models.Dtype

	reader Reader
}

// Len is the number of files (time points).
func (ix *Index) Len() int {
	return len(ix.Files)
}

// Shape returns (T, Z, Y, X).
func (ix *Index) Shape() []int {
	return []int{len(ix.Files), ix.Planes, ix.Height, ix.Width}
}

// Reader returns the reader the index was built with.
func (ix *Index) Reader() Reader {
	return ix.reader
}

// Locate maps a (t, z) pair onto the file and plane that hold it.
func (ix *Index) Locate(t, z int) (string, int, error) {
	if t < 0 || t >= len(ix.Files) || z < 0 || z >= ix.Planes {
		return "", 0, fmt.Errorf("%w: (t=%d, z=%d) outside (%d, %d)",
			models.ErrIndexOutOfRange, t, z, len(ix.Files), ix.Planes)
	}
	return ix.Files[t].Path, z, nil
}

// ReadPlane reads the single plane at (t, z).
func (ix *Index) ReadPlane(t, z int) ([]float64, error) {
	path, plane, err := ix.Locate(t, z)
	if err != nil {
		return nil, err
	}
	samples, err := ix.reader.ReadPlane(path, plane)
	if err != nil {
		return nil, err
	}
	if len(samples) != ix.Height*ix.Width {
		return nil, &PlaneError{Path: path, Plane: plane,
			Err: fmt.Errorf("%w: got %d samples, want %d", models.ErrShapeMismatch, len(samples), ix.Height*ix.Width)}
	}
	return samples, nil
}

// ScanOption configures Scan.
type ScanOption func(*scanOptions)

type scanOptions struct {
	reader Reader
	logger *log.Logger
}

// WithReader replaces the default extension-based reader.
func WithReader(r Reader) ScanOption {
	return func(o *scanOptions) {
		o.reader = r
	}
}

// WithLogger reports the indexed dataset to l.
func WithLogger(l *log.Logger) ScanOption {
	return func(o *scanOptions) {
		o.logger = l
	}
}

// Scan finds the files in dir whose names match pattern (filepath.Match
// syntax), sorts them lexicographically and reads their headers.
//
// Patterns with a numeric part must be zero-padded for lexicographic order
// to equal numeric order.
func Scan(dir, pattern string, opts ...ScanOption) (*Index, error) {
	o := scanOptions{
		reader: DefaultFormats(),
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("stack: pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrIO, dir, err)
	}

	var paths []string
	for _, e := range entries {
		ok, _ := filepath.Match(pattern, e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			st, err := os.Stat(path)
			if err != nil {
				return nil, &PlaneError{Path: path, Plane: -1, Err: err}
			}
			mode = st.Mode().Type()
		}
		if mode.IsRegular() {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoFilesFound, pattern, dir)
	}
	sort.Strings(paths)

	ix := &Index{
		Files:  make([]FileInfo, 0, len(paths)),
		reader: o.reader,
	}
	for i, path := range paths {
		fi, err := o.reader.Probe(path)
		if err != nil {
			return nil, err
		}
		fi.Path = path

		if i == 0 {
			ix.Planes = fi.Planes
			ix.Height = fi.Height
			ix.Width = fi.Width
			ix.Dtype = fi.Dtype
		} else if err := ix.check(fi); err != nil {
			return nil, err
		}
		ix.Files = append(ix.Files, fi)
	}

	o.logger.Printf("Indexed %d files with %d planes of %dx%d %s", len(ix.Files), ix.Planes, ix.Height, ix.Width, ix.Dtype)
	return ix, nil
}

func (ix *Index) check(fi FileInfo) error {
	first := ix.Files[0]
	switch {
	case fi.Height != ix.Height || fi.Width != ix.Width:
		return fmt.Errorf("%w: %s has planes of %dx%d, %s has %dx%d",
			ErrDatasetInconsistent, fi.Path, fi.Height, fi.Width, first.Path, ix.Height, ix.Width)
	case fi.Dtype != ix.Dtype:
		return fmt.Errorf("%w: %s has dtype %s, %s has %s",
			ErrDatasetInconsistent, fi.Path, fi.Dtype, first.Path, ix.Dtype)
	case fi.Planes != ix.Planes:
		return fmt.Errorf("%w: %s has %d planes, %s has %d",
			ErrDatasetInconsistent, fi.Path, fi.Planes, first.Path, ix.Planes)
	}
	return nil
}
