package volume

import (
	"context"
	"fmt"
	"io"
	"log"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Scheduler selects how the independent plane reads of one Compute call run.
type Scheduler string

const (
	// Parallel runs up to Workers reads at once on goroutines. Plane payloads
	// stay in shared memory, so no copying between workers is needed.
	Parallel Scheduler = "parallel"

	// Sequential runs reads one at a time in logical index order.
	Sequential Scheduler = "sequential"
)

// ParseScheduler accepts "parallel" or "sequential".
func ParseScheduler(s string) (Scheduler, error) {
	switch Scheduler(s) {
	case Parallel, Sequential:
		return Scheduler(s), nil
	default:
		return "", fmt.Errorf("volume: unknown scheduler %q", s)
	}
}

// Executor is the execution context passed to Compute. It is safe for
// concurrent use and holds no per-call state.
type Executor struct {
	scheduler Scheduler
	workers   int
	logger    *log.Logger
	tracer    trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithScheduler selects the scheduler. Default: Parallel.
func WithScheduler(s Scheduler) ExecutorOption {
	return func(ex *Executor) {
		ex.scheduler = s
	}
}

// WithWorkers bounds the number of concurrent reads. Values below 1 are
// ignored. Default: runtime.NumCPU().
func WithWorkers(n int) ExecutorOption {
	return func(ex *Executor) {
		if n >= 1 {
			ex.workers = n
		}
	}
}

// WithLogger sends progress lines to l.
func WithLogger(l *log.Logger) ExecutorOption {
	return func(ex *Executor) {
		if l != nil {
			ex.logger = l
		}
	}
}

// WithTracerProvider uses tp instead of the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) ExecutorOption {
	return func(ex *Executor) {
		if tp != nil {
			ex.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "lazystack/volume"

// NewExecutor returns an executor with the given options applied.
func NewExecutor(opts ...ExecutorOption) *Executor {
	ex := &Executor{
		scheduler: Parallel,
		workers:   runtime.NumCPU(),
		logger:    log.New(io.Discard, "", 0),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// Scheduler returns the configured scheduler.
func (ex *Executor) Scheduler() Scheduler {
	return ex.scheduler
}

// Workers returns the concurrency bound used by the Parallel scheduler.
func (ex *Executor) Workers() int {
	return ex.limit()
}

func (ex *Executor) limit() int {
	if ex.scheduler == Sequential {
		return 1
	}
	return ex.workers
}

// run executes task for i in [0, n). The first error cancels tasks that
// have not started yet and is returned once every started task has finished.
func (ex *Executor) run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.limit())
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
