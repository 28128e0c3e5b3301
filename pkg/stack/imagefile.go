package stack

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"lazystack/internal/models"
)

// ImageFile reads ordinary single-plane images (PNG, JPEG, TIFF) as
// grayscale. 16-bit color models are read as "<u2", everything else as "|u1".
type ImageFile struct{}

var _ Reader = ImageFile{}

func (ImageFile) Probe(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, &PlaneError{Path: path, Plane: -1, Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return FileInfo{}, &PlaneError{Path: path, Plane: -1, Err: err}
	}
	return FileInfo{
		Path:   path,
		Planes: 1,
		Height: cfg.Height,
		Width:  cfg.Width,
		Dtype:  dtypeOf(cfg.ColorModel),
	}, nil
}

func (ImageFile) ReadPlane(path string, plane int) ([]float64, error) {
	if plane != 0 {
		return nil, &PlaneError{Path: path, Plane: plane,
			Err: fmt.Errorf("%w: single-plane image", models.ErrIndexOutOfRange)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &PlaneError{Path: path, Plane: plane, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &PlaneError{Path: path, Plane: plane, Err: err}
	}
	return grayValues(img, dtypeOf(img.ColorModel())), nil
}

func dtypeOf(m color.Model) models.Dtype {
	switch m {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return models.Uint16
	default:
		return models.Uint8
	}
}

// grayValues converts img to row-major gray samples in the range of dt.
func grayValues(img image.Image, dt models.Dtype) []float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if dt == models.Uint16 {
				result[y*width+x] = float64(color.Gray16Model.Convert(c).(color.Gray16).Y)
			} else {
				result[y*width+x] = float64(color.GrayModel.Convert(c).(color.Gray).Y)
			}
		}
	}
	return result
}
