package models

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Dtype describes how one sample is laid out on disk. Its string form follows
// the NumPy array protocol typestr: a byte order character, a kind character
// and a size in bytes, e.g. "<u2" for little-endian 16-bit unsigned integers.
type Dtype struct {
	Order ByteOrder
	Kind  Kind
	Size  int
}

// ByteOrder is the first character of a typestr.
type ByteOrder byte

const (
	NotRelevant  ByteOrder = '|'
	LittleEndian ByteOrder = '<'
	BigEndian    ByteOrder = '>'
)

// Kind is the second character of a typestr.
type Kind byte

const (
	Unsigned Kind = 'u'
	Signed   Kind = 'i'
	Float    Kind = 'f'
)

var (
	Uint8   = Dtype{Order: NotRelevant, Kind: Unsigned, Size: 1}
	Uint16  = Dtype{Order: LittleEndian, Kind: Unsigned, Size: 2}
	Uint32  = Dtype{Order: LittleEndian, Kind: Unsigned, Size: 4}
	Int8    = Dtype{Order: NotRelevant, Kind: Signed, Size: 1}
	Int16   = Dtype{Order: LittleEndian, Kind: Signed, Size: 2}
	Int32   = Dtype{Order: LittleEndian, Kind: Signed, Size: 4}
	Float32 = Dtype{Order: LittleEndian, Kind: Float, Size: 4}
	Float64 = Dtype{Order: LittleEndian, Kind: Float, Size: 8}
)

var (
	_ json.Marshaler   = Dtype{}
	_ json.Unmarshaler = (*Dtype)(nil)
)

// ParseDtype parses a typestr such as "|u1", "<u2" or ">f4".
func ParseDtype(s string) (Dtype, error) {
	if len(s) < 3 {
		return Dtype{}, fmt.Errorf("%w: %q is too short", ErrUnsupportedDtype, s)
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return Dtype{}, fmt.Errorf("%w: %q: bad size", ErrUnsupportedDtype, s)
	}
	dt := Dtype{Order: ByteOrder(s[0]), Kind: Kind(s[1]), Size: size}
	if dt.Size == 1 && (dt.Order == LittleEndian || dt.Order == BigEndian) {
		dt.Order = NotRelevant
	}
	if err := dt.Validate(); err != nil {
		return Dtype{}, err
	}
	return dt, nil
}

// Validate reports whether the codec can handle dt.
func (dt Dtype) Validate() error {
	switch dt.Order {
	case NotRelevant, LittleEndian, BigEndian:
	default:
		return fmt.Errorf("%w: byte order %q", ErrUnsupportedDtype, rune(dt.Order))
	}
	ok := false
	switch dt.Kind {
	case Unsigned, Signed:
		ok = dt.Size == 1 || dt.Size == 2 || dt.Size == 4
	case Float:
		ok = dt.Size == 4 || dt.Size == 8
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedDtype, dt)
	}
	if dt.Size > 1 && dt.Order == NotRelevant {
		return fmt.Errorf("%w: %s needs a byte order", ErrUnsupportedDtype, dt)
	}
	return nil
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%c%c%d", dt.Order, dt.Kind, dt.Size)
}

// IsZero reports whether dt is the zero value.
func (dt Dtype) IsZero() bool {
	return dt == Dtype{}
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	parsed, err := ParseDtype(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// Range returns the smallest and largest representable sample values.
func (dt Dtype) Range() (lo, hi float64) {
	bits := uint(dt.Size * 8)
	switch dt.Kind {
	case Unsigned:
		return 0, float64(uint64(1)<<bits - 1)
	case Signed:
		return -float64(int64(1) << (bits - 1)), float64(int64(1)<<(bits-1) - 1)
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

func (dt Dtype) byteOrder() binary.ByteOrder {
	if dt.Order == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Decode converts raw samples in src into dst. len(src) must equal
// len(dst)*dt.Size.
func (dt Dtype) Decode(dst []float64, src []byte) error {
	if len(src) != len(dst)*dt.Size {
		return fmt.Errorf("%w: %d bytes for %d samples of %s", ErrShapeMismatch, len(src), len(dst), dt)
	}
	bo := dt.byteOrder()
	for i := range dst {
		p := src[i*dt.Size : (i+1)*dt.Size]
		switch dt.Kind {
		case Unsigned:
			switch dt.Size {
			case 1:
				dst[i] = float64(p[0])
			case 2:
				dst[i] = float64(bo.Uint16(p))
			case 4:
				dst[i] = float64(bo.Uint32(p))
			}
		case Signed:
			switch dt.Size {
			case 1:
				dst[i] = float64(int8(p[0]))
			case 2:
				dst[i] = float64(int16(bo.Uint16(p)))
			case 4:
				dst[i] = float64(int32(bo.Uint32(p)))
			}
		case Float:
			switch dt.Size {
			case 4:
				dst[i] = float64(math.Float32frombits(bo.Uint32(p)))
			case 8:
				dst[i] = math.Float64frombits(bo.Uint64(p))
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedDtype, dt)
		}
	}
	return nil
}

// Encode converts src into raw samples in dst. Integer types are rounded to
// the nearest value and saturated at the ends of their range.
func (dt Dtype) Encode(dst []byte, src []float64) error {
	if len(dst) != len(src)*dt.Size {
		return fmt.Errorf("%w: %d bytes for %d samples of %s", ErrShapeMismatch, len(dst), len(src), dt)
	}
	bo := dt.byteOrder()
	lo, hi := dt.Range()
	for i, v := range src {
		p := dst[i*dt.Size : (i+1)*dt.Size]
		switch dt.Kind {
		case Unsigned, Signed:
			if math.IsNaN(v) {
				v = 0
			}
			v = math.Max(lo, math.Min(hi, math.Round(v)))
			switch dt.Size {
			case 1:
				if dt.Kind == Signed {
					p[0] = byte(int8(v))
				} else {
					p[0] = byte(v)
				}
			case 2:
				if dt.Kind == Signed {
					bo.PutUint16(p, uint16(int16(v)))
				} else {
					bo.PutUint16(p, uint16(v))
				}
			case 4:
				if dt.Kind == Signed {
					bo.PutUint32(p, uint32(int32(v)))
				} else {
					bo.PutUint32(p, uint32(v))
				}
			}
		case Float:
			switch dt.Size {
			case 4:
				bo.PutUint32(p, math.Float32bits(float32(v)))
			case 8:
				bo.PutUint64(p, math.Float64bits(v))
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedDtype, dt)
		}
	}
	return nil
}
