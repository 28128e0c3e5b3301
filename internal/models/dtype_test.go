package models

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestParseDtype covers the typestrs the readers and writers emit
func TestParseDtype(t *testing.T) {
	cases := map[string]Dtype{
		"|u1": Uint8,
		"<u1": Uint8,
		"<u2": Uint16,
		"<i2": Int16,
		"<f4": Float32,
		"<f8": Float64,
		">u2": {Order: BigEndian, Kind: Unsigned, Size: 2},
	}
	for s, want := range cases {
		got, err := ParseDtype(s)
		if err != nil {
			t.Errorf("ParseDtype(%q) failed: %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDtype(%q): expected %s, got %s", s, want, got)
		}
	}

	for _, s := range []string{"", "<u", "<u3", "|u2", "<c8", "?u1"} {
		if _, err := ParseDtype(s); !errors.Is(err, ErrUnsupportedDtype) {
			t.Errorf("ParseDtype(%q): expected ErrUnsupportedDtype, got %v", s, err)
		}
	}
}

// TestDtypeCodec checks saturation and rounding on encode and exact decode
func TestDtypeCodec(t *testing.T) {
	src := []float64{-3, 0.4, 1.6, 300, 65535, 70000}

	buf := make([]byte, len(src)*Uint16.Size)
	if err := Uint16.Encode(buf, src); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got := make([]float64, len(src))
	if err := Uint16.Decode(got, buf); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0, 0, 2, 300, 65535, 65535}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], got[i])
		}
	}

	i16 := []float64{-40000, -5, 5, 40000}
	buf = make([]byte, len(i16)*2)
	if err := Int16.Encode(buf, i16); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got = make([]float64, len(i16))
	if err := Int16.Decode(got, buf); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want = []float64{-32768, -5, 5, 32767}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Int16 sample %d: expected %f, got %f", i, want[i], got[i])
		}
	}

	if err := Float32.Decode(make([]float64, 2), make([]byte, 7)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestDtypeJSON checks the typestr form is used on the wire
func TestDtypeJSON(t *testing.T) {
	d, err := json.Marshal(Float32)
	if err != nil {
		t.Fatal(err)
	}
	if string(d) != `"<f4"` {
		t.Errorf(`Expected "<f4", got %s`, d)
	}
	var dt Dtype
	if err := json.Unmarshal([]byte(`"|u1"`), &dt); err != nil {
		t.Fatal(err)
	}
	if dt != Uint8 {
		t.Errorf("Expected %s, got %s", Uint8, dt)
	}
}
