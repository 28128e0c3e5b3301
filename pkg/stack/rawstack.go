package stack

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lazystack/internal/models"
)

// StackExt is the file extension of the raw multi-plane format.
const StackExt = ".vstk"

// Raw stack layout: a fixed header followed by the planes back to back, each
// plane Height*Width samples in row-major order.
//
//	0  magic "VSTK"
//	4  version uint16
//	6  dtype typestr, NUL padded to 4 bytes
//	10 planes uint32
//	14 height uint32
//	18 width uint32
//	22 reserved
const (
	stackHeaderSize = 32
	stackVersion    = 1
)

var stackMagic = [4]byte{'V', 'S', 'T', 'K'}

var errBadHeader = errors.New("not a raw stack file")

// RawStack reads files in the raw stack format.
type RawStack struct{}

var _ Reader = RawStack{}

func (RawStack) Probe(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, &PlaneError{Path: path, Plane: -1, Err: err}
	}
	defer f.Close()

	fi, err := openStackHeader(f)
	if err != nil {
		return FileInfo{}, &PlaneError{Path: path, Plane: -1, Err: err}
	}
	fi.Path = path
	return fi, nil
}

func (RawStack) ReadPlane(path string, plane int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PlaneError{Path: path, Plane: plane, Err: err}
	}
	defer f.Close()

	fi, err := openStackHeader(f)
	if err != nil {
		return nil, &PlaneError{Path: path, Plane: plane, Err: err}
	}
	if plane < 0 || plane >= fi.Planes {
		return nil, &PlaneError{Path: path, Plane: plane,
			Err: fmt.Errorf("%w: file has %d planes", models.ErrIndexOutOfRange, fi.Planes)}
	}

	n := fi.Height * fi.Width
	raw := make([]byte, n*fi.Dtype.Size)
	off := int64(stackHeaderSize) + int64(plane)*int64(len(raw))
	if _, err := f.ReadAt(raw, off); err != nil {
		return nil, &PlaneError{Path: path, Plane: plane, Err: err}
	}

	samples := make([]float64, n)
	if err := fi.Dtype.Decode(samples, raw); err != nil {
		return nil, &PlaneError{Path: path, Plane: plane, Err: err}
	}
	return samples, nil
}

// openStackHeader reads the header of f and checks that the file is large
// enough to hold every plane it declares.
func openStackHeader(f *os.File) (FileInfo, error) {
	fi, err := readStackHeader(f)
	if err != nil {
		return FileInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		return FileInfo{}, err
	}
	if err := checkStackSize(fi, st.Size()); err != nil {
		return FileInfo{}, err
	}
	return fi, nil
}

// checkStackSize rejects headers whose planes need more bytes than size.
// The product is built one factor at a time so it never overflows.
func checkStackSize(fi FileInfo, size int64) error {
	avail := size - stackHeaderSize
	need := int64(fi.Dtype.Size)
	for _, d := range []int{fi.Width, fi.Height, fi.Planes} {
		if d == 0 {
			return nil
		}
		if int64(d) > avail/need {
			return fmt.Errorf("%w: %d planes of %dx%d %s exceed file size %d",
				errBadHeader, fi.Planes, fi.Height, fi.Width, fi.Dtype, size)
		}
		need *= int64(d)
	}
	return nil
}

func readStackHeader(r io.Reader) (FileInfo, error) {
	var hdr [stackHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return FileInfo{}, err
	}
	if !bytes.Equal(hdr[0:4], stackMagic[:]) {
		return FileInfo{}, errBadHeader
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != stackVersion {
		return FileInfo{}, fmt.Errorf("unsupported raw stack version %d", v)
	}
	dt, err := models.ParseDtype(string(bytes.TrimRight(hdr[6:10], "\x00")))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Planes: int(binary.LittleEndian.Uint32(hdr[10:14])),
		Height: int(binary.LittleEndian.Uint32(hdr[14:18])),
		Width:  int(binary.LittleEndian.Uint32(hdr[18:22])),
		Dtype:  dt,
	}, nil
}

// WriteStack writes planes to path in the raw stack format. Every plane must
// hold height*width samples; samples are encoded as dt. The file is written
// under a temporary name and renamed into place, so a failed write leaves
// nothing at path.
func WriteStack(path string, dt models.Dtype, height, width int, planes [][]float64) error {
	if err := dt.Validate(); err != nil {
		return err
	}
	for i, p := range planes {
		if len(p) != height*width {
			return fmt.Errorf("%w: plane %d has %d samples, want %d",
				models.ErrShapeMismatch, i, len(p), height*width)
		}
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := writeStackData(f, dt, height, width, planes); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeStackData(f *os.File, dt models.Dtype, height, width int, planes [][]float64) error {
	if err := f.Chmod(0644); err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	var hdr [stackHeaderSize]byte
	copy(hdr[0:4], stackMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], stackVersion)
	copy(hdr[6:10], dt.String())
	binary.LittleEndian.PutUint32(hdr[10:14], uint32(len(planes)))
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(height))
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(width))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	buf := make([]byte, height*width*dt.Size)
	for _, p := range planes {
		if err := dt.Encode(buf, p); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}
