package browser

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/floats"

	"lazystack/internal/models"
)

// Renderer displays or stores one 2-D plane.
type Renderer interface {
	Render(b *models.Block) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(b *models.Block) error

func (f RendererFunc) Render(b *models.Block) error { return f(b) }

// ToImage converts a [Y, X] block into a 16-bit grayscale image, stretching
// the block's own min..max onto the full range. A constant block maps to 0.
func ToImage(b *models.Block) (*image.Gray16, error) {
	if b.Rank() != 2 {
		return nil, fmt.Errorf("browser: cannot draw a rank %d block", b.Rank())
	}
	height, width := b.Shape[0], b.Shape[1]
	img := image.NewGray16(image.Rect(0, 0, width, height))
	if len(b.Data) == 0 {
		return img, nil
	}

	lo, hi := floats.Min(b.Data), floats.Max(b.Data)
	scale := 0.0
	if hi > lo {
		scale = 65535 / (hi - lo)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := (b.Data[y*width+x] - lo) * scale
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(v))))})
		}
	}
	return img, nil
}

// FileRenderer writes each rendered plane to Dir as <Prefix>_NNN.<Format>,
// numbering planes in the order they are rendered.
type FileRenderer struct {
	Dir     string
	Prefix  string
	Format  string // "jpeg" or "png"
	Quality int    // JPEG only

	mu    sync.Mutex
	count int
	paths []string
}

// NewFileRenderer creates dir and returns a renderer writing into it.
func NewFileRenderer(dir, prefix, format string, quality int) (*FileRenderer, error) {
	switch format {
	case "jpeg", "jpg", "png":
	default:
		return nil, fmt.Errorf("browser: unsupported image format %q", format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &FileRenderer{Dir: dir, Prefix: prefix, Format: format, Quality: quality}, nil
}

// Render writes b to the next file in the sequence.
func (r *FileRenderer) Render(b *models.Block) error {
	img, err := ToImage(b)
	if err != nil {
		return err
	}

	r.mu.Lock()
	n := r.count
	r.count++
	r.mu.Unlock()

	ext := "png"
	if r.Format != "png" {
		ext = "jpg"
	}
	path := filepath.Join(r.Dir, fmt.Sprintf("%s_%03d.%s", r.Prefix, n, ext))
	if err := SaveImage(img, path, r.Quality); err != nil {
		return err
	}

	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return nil
}

// Paths lists the files written so far.
func (r *FileRenderer) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// SaveImage writes img to path, choosing PNG or JPEG from the extension.
func SaveImage(img image.Image, path string, quality int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(file, img)
	default:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: quality})
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
