package stack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"lazystack/internal/models"
)

// planeValue gives every sample of the dataset a distinct, predictable value
func planeValue(t, z, y, x int) float64 {
	return float64(t*1000 + z*100 + y*10 + x)
}

// writeDataset writes files named img_000.vstk ... with the given geometry
func writeDataset(t *testing.T, dir string, files, planes, height, width int) {
	t.Helper()
	for f := 0; f < files; f++ {
		data := make([][]float64, planes)
		for z := range data {
			data[z] = make([]float64, height*width)
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					data[z][y*width+x] = planeValue(f, z, y, x)
				}
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("img_%03d.vstk", f))
		if err := WriteStack(path, models.Uint16, height, width, data); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
}

// TestScan indexes five files of three 10x10 planes
func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 5, 3, 10, 10)

	// files that must be ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "img_999.vstk"), 0755); err != nil {
		t.Fatal(err)
	}

	ix, err := Scan(dir, "img_*.vstk")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if !models.EqualShape(ix.Shape(), []int{5, 3, 10, 10}) {
		t.Errorf("Expected shape [5 3 10 10], got %v", ix.Shape())
	}
	if ix.Dtype != models.Uint16 {
		t.Errorf("Expected dtype %s, got %s", models.Uint16, ix.Dtype)
	}
	for i, fi := range ix.Files {
		want := filepath.Join(dir, fmt.Sprintf("img_%03d.vstk", i))
		if fi.Path != want {
			t.Errorf("File %d: expected %s, got %s", i, want, fi.Path)
		}
	}

	path, plane, err := ix.Locate(2, 1)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if path != ix.Files[2].Path || plane != 1 {
		t.Errorf("Expected (%s, 1), got (%s, %d)", ix.Files[2].Path, path, plane)
	}
	if _, _, err := ix.Locate(5, 0); !errors.Is(err, models.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

// TestScanLexicographicOrder checks the sort is by path string, not by number
func TestScanLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_10.vstk", "b_2.vstk", "b_1.vstk"} {
		plane := [][]float64{make([]float64, 4)}
		if err := WriteStack(filepath.Join(dir, name), models.Uint8, 2, 2, plane); err != nil {
			t.Fatal(err)
		}
	}

	ix, err := Scan(dir, "b_*.vstk")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := []string{"b_1.vstk", "b_10.vstk", "b_2.vstk"}
	for i, fi := range ix.Files {
		if filepath.Base(fi.Path) != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], filepath.Base(fi.Path))
		}
	}
}

// TestScanNoFiles covers an empty directory and a pattern that matches nothing
func TestScanNoFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Scan(dir, "img_*.vstk"); !errors.Is(err, ErrNoFilesFound) {
		t.Errorf("Expected ErrNoFilesFound for empty dir, got %v", err)
	}

	writeDataset(t, dir, 2, 1, 4, 4)
	if _, err := Scan(dir, "other_*.vstk"); !errors.Is(err, ErrNoFilesFound) {
		t.Errorf("Expected ErrNoFilesFound for unmatched pattern, got %v", err)
	}

	if _, err := Scan(filepath.Join(dir, "missing"), "*.vstk"); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO for missing dir, got %v", err)
	}

	if _, err := Scan(dir, "[img"); err == nil {
		t.Error("Expected error for malformed pattern")
	}
}

// TestScanInconsistent makes one file of five disagree with the rest
func TestScanInconsistent(t *testing.T) {
	cases := []struct {
		name   string
		dtype  models.Dtype
		planes int
		height int
		width  int
	}{
		{"shape", models.Uint16, 3, 10, 12},
		{"dtype", models.Float32, 3, 10, 10},
		{"planes", models.Uint16, 2, 10, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDataset(t, dir, 5, 3, 10, 10)

			planes := make([][]float64, tc.planes)
			for i := range planes {
				planes[i] = make([]float64, tc.height*tc.width)
			}
			odd := filepath.Join(dir, "img_003.vstk")
			if err := WriteStack(odd, tc.dtype, tc.height, tc.width, planes); err != nil {
				t.Fatal(err)
			}

			ix, err := Scan(dir, "img_*.vstk")
			if !errors.Is(err, ErrDatasetInconsistent) {
				t.Fatalf("Expected ErrDatasetInconsistent, got %v", err)
			}
			if ix != nil {
				t.Error("Expected no index on failure")
			}
		})
	}
}

// TestScanCorruptHeader surfaces header failures as ErrIO
func TestScanCorruptHeader(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 2, 1, 4, 4)
	if err := os.WriteFile(filepath.Join(dir, "img_005.vstk"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Scan(dir, "img_*.vstk")
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
	var pe *PlaneError
	if !errors.As(err, &pe) || filepath.Base(pe.Path) != "img_005.vstk" {
		t.Errorf("Expected PlaneError for img_005.vstk, got %v", err)
	}

	// a well-formed header declaring planes far larger than the file
	dir = t.TempDir()
	writeDataset(t, dir, 2, 1, 2, 2)
	patchDims(t, filepath.Join(dir, "img_001.vstk"), 0xFFFFFFFF, 0xFFFFFFFF)

	ix, err := Scan(dir, "img_*.vstk")
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO for oversized dimensions, got %v (index %v)", err, ix)
	}
	if !errors.As(err, &pe) || pe.Plane != -1 || filepath.Base(pe.Path) != "img_001.vstk" {
		t.Errorf("Expected header PlaneError for img_001.vstk, got %v", err)
	}
}

// TestScanFollowsSymlinks indexes frame files reached through symlinks
func TestScanFollowsSymlinks(t *testing.T) {
	src := t.TempDir()
	writeDataset(t, src, 3, 2, 4, 4)

	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("img_%03d.vstk", i)
		if err := os.Symlink(filepath.Join(src, name), filepath.Join(dir, name)); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "img_999.vstk"), 0755); err != nil {
		t.Fatal(err)
	}

	ix, err := Scan(dir, "img_*.vstk")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if ix.Len() != 3 {
		t.Errorf("Expected 3 files, got %d", ix.Len())
	}
	p, err := ix.ReadPlane(2, 1)
	if err != nil {
		t.Fatalf("ReadPlane failed: %v", err)
	}
	if p[5] != planeValue(2, 1, 1, 1) {
		t.Errorf("Expected %v, got %v", planeValue(2, 1, 1, 1), p[5])
	}
}
