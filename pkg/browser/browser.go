// Package browser steps through the leading axes of a lazy volume one 2-D
// plane at a time.
//
// A Browser keeps a current index for every axis except the last two. Each
// index change materializes exactly the plane at the new index tuple, and
// only one such render may be in flight at a time.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lazystack/internal/models"
	"lazystack/pkg/volume"
)

var (
	// ErrIndexOutOfRange is returned for an unknown axis or an index outside
	// its extent.
	ErrIndexOutOfRange = models.ErrIndexOutOfRange

	// ErrBusy is returned when an index change arrives while a render is in
	// flight.
	ErrBusy = errors.New("browser: render in progress")

	// ErrRank is returned when the volume has no axes to browse.
	ErrRank = errors.New("browser: volume must have more than 2 axes")
)

// State is the render state of a Browser.
type State int

const (
	Idle State = iota
	Rendering
)

func (s State) String() string {
	if s == Rendering {
		return "rendering"
	}
	return "idle"
}

// Axis describes one browsable axis.
type Axis struct {
	Name     string
	Extent   int
	Position int
}

// Browser holds the current position over a volume's leading axes.
type Browser struct {
	vol   *volume.Volume
	ex    *volume.Executor
	names []string

	mu       sync.Mutex
	position []int
	state    State
}

// Option configures Attach.
type Option func(*Browser)

// WithAxisNames names the leading axes, outermost first.
func WithAxisNames(names ...string) Option {
	return func(b *Browser) {
		if len(names) == len(b.position) {
			b.names = append([]string(nil), names...)
		}
	}
}

// Attach starts browsing v at index 0 on every leading axis. A nil executor
// uses volume.NewExecutor().
func Attach(v *volume.Volume, ex *volume.Executor, opts ...Option) (*Browser, error) {
	if v.Rank() <= 2 {
		return nil, fmt.Errorf("%w: got rank %d", ErrRank, v.Rank())
	}
	if ex == nil {
		ex = volume.NewExecutor()
	}
	n := v.Rank() - 2
	b := &Browser{
		vol:      v,
		ex:       ex,
		names:    defaultNames(n),
		position: make([]int, n),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// defaultNames follows the (T, Z, Y, X) convention: the axis just before the
// plane is "z", the one before that "t".
func defaultNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		switch n - i {
		case 1:
			names[i] = "z"
		case 2:
			names[i] = "t"
		default:
			names[i] = fmt.Sprintf("axis%d", i)
		}
	}
	return names
}

// Volume returns the browsed volume.
func (b *Browser) Volume() *volume.Volume {
	return b.vol
}

// Axes reports every leading axis with its extent and current index.
func (b *Browser) Axes() []Axis {
	b.mu.Lock()
	defer b.mu.Unlock()
	shape := b.vol.Shape()
	axes := make([]Axis, len(b.position))
	for i := range axes {
		axes[i] = Axis{Name: b.names[i], Extent: shape[i], Position: b.position[i]}
	}
	return axes
}

// Position returns a copy of the current index tuple.
func (b *Browser) Position() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.position...)
}

// State reports whether a render is in flight.
func (b *Browser) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// AxisIndex resolves an axis name to its position among the leading axes.
func (b *Browser) AxisIndex(name string) (int, error) {
	for i, n := range b.names {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no axis %q", ErrIndexOutOfRange, name)
}

// SetIndex moves axis to value and returns the [Y, X] plane at the new
// position. On any error the position is left as it was.
func (b *Browser) SetIndex(ctx context.Context, axis, value int) (*models.Block, error) {
	b.mu.Lock()
	if axis < 0 || axis >= len(b.position) {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: axis %d of %d", ErrIndexOutOfRange, axis, len(b.position))
	}
	next := append([]int(nil), b.position...)
	next[axis] = value
	return b.move(ctx, next)
}

// Seek moves every leading axis at once and renders only the plane at the
// final position. On any error the position is left as it was.
func (b *Browser) Seek(ctx context.Context, position ...int) (*models.Block, error) {
	if len(position) != len(b.names) {
		return nil, fmt.Errorf("%w: %d indices for %d axes", ErrIndexOutOfRange, len(position), len(b.names))
	}
	b.mu.Lock()
	return b.move(ctx, append([]int(nil), position...))
}

// move renders the plane at next and makes it the position. b.mu must be
// held on entry; move releases it.
func (b *Browser) move(ctx context.Context, next []int) (*models.Block, error) {
	shape := b.vol.Shape()
	for i, v := range next {
		if v < 0 || v >= shape[i] {
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: index %d on axis %s of extent %d",
				ErrIndexOutOfRange, v, b.names[i], shape[i])
		}
	}
	if b.state == Rendering {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	prev := b.position
	b.position = next
	b.state = Rendering
	b.mu.Unlock()

	plane, err := b.vol.Plane(ctx, b.ex, next...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Idle
	if err != nil {
		b.position = prev
		return nil, err
	}
	return plane, nil
}

// Current renders the plane at the current position.
func (b *Browser) Current(ctx context.Context) (*models.Block, error) {
	b.mu.Lock()
	if b.state == Rendering {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	pos := append([]int(nil), b.position...)
	b.state = Rendering
	b.mu.Unlock()

	plane, err := b.vol.Plane(ctx, b.ex, pos...)

	b.mu.Lock()
	b.state = Idle
	b.mu.Unlock()
	return plane, err
}

// SaveSequence walks axis from 0 to its extent, rendering every plane with
// r. The other axes stay where they are, and axis is left at its last index.
func (b *Browser) SaveSequence(ctx context.Context, axis int, r Renderer) error {
	axes := b.Axes()
	if axis < 0 || axis >= len(axes) {
		return fmt.Errorf("%w: axis %d of %d", ErrIndexOutOfRange, axis, len(axes))
	}
	for i := 0; i < axes[axis].Extent; i++ {
		plane, err := b.SetIndex(ctx, axis, i)
		if err != nil {
			return fmt.Errorf("%s=%d: %w", axes[axis].Name, i, err)
		}
		if err := r.Render(plane); err != nil {
			return fmt.Errorf("render %s=%d: %w", axes[axis].Name, i, err)
		}
	}
	return nil
}
