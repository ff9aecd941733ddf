package sim

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/odeint/internal/dynamo"
)

// AdaptiveTask is one independent adaptive integration.
type AdaptiveTask struct {
	System dynamo.System
	Config dynamo.StepConfig
	Y0     []float64
	X0     float64
	XEnd   float64
}

// PredefinedTask is one independent checkpoint integration writing into Out.
type PredefinedTask struct {
	System dynamo.System
	Config dynamo.StepConfig
	Y0     []float64
	Xs     []float64
	Out    []float64
}

// TaskReport describes a finished task.
type TaskReport struct {
	Index   int
	ID      string
	Err     error
	Elapsed time.Duration
}

type FanOutOption func(*FanOut)

func WithFanOutLogger(l logrus.FieldLogger) FanOutOption {
	return func(f *FanOut) { f.log = l }
}

// WithDriverOptions applies opts to every driver the fan-out creates.
func WithDriverOptions(opts ...Option) FanOutOption {
	return func(f *FanOut) { f.driverOpts = append(f.driverOpts, opts...) }
}

// OnTaskDone registers a hook called from the worker goroutine as each task
// finishes. It must be safe for concurrent use.
func OnTaskDone(fn func(TaskReport)) FanOutOption {
	return func(f *FanOut) { f.onDone = fn }
}

// FanOut runs independent integrations on a fixed number of workers.
// Results keep input order. Every task runs to completion; if any failed,
// the lowest-index failure is returned as a *dynamo.TaskError and no
// results are returned.
type FanOut struct {
	workers    int
	log        logrus.FieldLogger
	driverOpts []Option
	onDone     func(TaskReport)
}

func NewFanOut(workers int, opts ...FanOutOption) *FanOut {
	if workers <= 0 {
		workers = 1
	}
	f := &FanOut{workers: workers}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		f.log = l
	}
	return f
}

func (f *FanOut) Workers() int { return f.workers }

func (f *FanOut) RunAdaptive(tasks []AdaptiveTask) ([]*Result, error) {
	systems := make([]dynamo.System, len(tasks))
	for i, t := range tasks {
		systems[i] = t.System
	}
	return f.run(systems, func(i int, log logrus.FieldLogger) (*Result, error) {
		t := tasks[i]
		d, err := NewDriver(t.System, t.Config, f.taskOptions(log)...)
		if err != nil {
			return nil, err
		}
		return d.Adaptive(t.X0, t.XEnd, t.Y0)
	})
}

func (f *FanOut) RunPredefined(tasks []PredefinedTask) ([]*Result, error) {
	systems := make([]dynamo.System, len(tasks))
	for i, t := range tasks {
		systems[i] = t.System
	}
	return f.run(systems, func(i int, log logrus.FieldLogger) (*Result, error) {
		t := tasks[i]
		d, err := NewDriver(t.System, t.Config, f.taskOptions(log)...)
		if err != nil {
			return nil, err
		}
		return d.Predefined(t.Xs, t.Y0, t.Out)
	})
}

func (f *FanOut) taskOptions(log logrus.FieldLogger) []Option {
	opts := make([]Option, 0, len(f.driverOpts)+1)
	opts = append(opts, f.driverOpts...)
	return append(opts, WithLogger(log))
}

func (f *FanOut) run(systems []dynamo.System, body func(int, logrus.FieldLogger) (*Result, error)) ([]*Result, error) {
	if err := distinctHandles(systems); err != nil {
		return nil, err
	}

	n := len(systems)
	results := make([]*Result, n)
	errs := make([]error, n)
	ids := make([]string, n)

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i := 0; i < n; i++ {
		ids[i] = uuid.NewString()
		g.Go(func() error {
			log := f.log.WithFields(logrus.Fields{"task": i, "id": ids[i]})
			start := time.Now()
			results[i], errs[i] = safeRun(func() (*Result, error) { return body(i, log) })
			if f.onDone != nil {
				f.onDone(TaskReport{Index: i, ID: ids[i], Err: errs[i], Elapsed: time.Since(start)})
			}
			return nil
		})
	}
	// Task bodies record their own errors and always return nil.
	g.Wait()

	var first error
	for i, err := range errs {
		if err == nil {
			continue
		}
		f.log.WithFields(logrus.Fields{"task": i, "id": ids[i]}).WithError(err).Error("task failed")
		if first == nil {
			first = &dynamo.TaskError{Index: i, ID: ids[i], Err: err}
		}
	}
	if first != nil {
		return nil, first
	}
	return results, nil
}

// safeRun turns a panic in host callbacks into an error for that task.
func safeRun(fn func() (*Result, error)) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// distinctHandles rejects tasks sharing a handle. Handles whose dynamic
// value cannot be hashed (a value type carrying a slice, map or func) are
// assumed distinct.
func distinctHandles(systems []dynamo.System) error {
	seen := make(map[dynamo.System]int, len(systems))
	for i, s := range systems {
		if s == nil || !reflect.ValueOf(s).Comparable() {
			continue
		}
		if j, ok := seen[s]; ok {
			return dynamo.Configf("tasks %d and %d share a system handle", j, i)
		}
		seen[s] = i
	}
	return nil
}
