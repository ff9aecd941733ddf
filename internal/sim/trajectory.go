package sim

import (
	"fmt"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Trajectory is an ordered list of samples with states stored row-major in
// Y, so len(Y) == len(X)*NY.
type Trajectory struct {
	NY int
	X  []float64
	Y  []float64
}

func NewTrajectory(ny int) *Trajectory {
	return &Trajectory{NY: ny}
}

func (t *Trajectory) Len() int { return len(t.X) }

// Append copies y into the trajectory.
func (t *Trajectory) Append(x float64, y []float64) {
	t.X = append(t.X, x)
	t.Y = append(t.Y, y[:t.NY]...)
}

// Row returns a view of the i-th state.
func (t *Trajectory) Row(i int) []float64 {
	return t.Y[i*t.NY : (i+1)*t.NY]
}

// Last returns the final sample. It panics on an empty trajectory.
func (t *Trajectory) Last() (float64, []float64) {
	n := t.Len() - 1
	return t.X[n], t.Row(n)
}

func (t *Trajectory) Clone() *Trajectory {
	c := &Trajectory{NY: t.NY}
	c.X = append(c.X, t.X...)
	c.Y = append(c.Y, t.Y...)
	return c
}

// Merge appends continuation to prefix and returns the result. The
// continuation's first sample is dropped when it repeats the prefix's last
// abscissa. The prefix is not re-validated; a nil prefix yields a copy of
// the continuation.
func Merge(prefix, continuation *Trajectory) *Trajectory {
	if prefix == nil {
		return continuation.Clone()
	}
	out := prefix.Clone()
	start := 0
	if out.Len() > 0 && continuation.Len() > 0 {
		if lx, _ := out.Last(); continuation.X[0] == lx {
			start = 1
		}
	}
	out.X = append(out.X, continuation.X[start:]...)
	out.Y = append(out.Y, continuation.Y[start*continuation.NY:]...)
	return out
}

// StepCounter caps accepted steps per run attempt or checkpoint segment.
type StepCounter struct {
	n   int
	max int
}

func NewStepCounter(max int) *StepCounter {
	return &StepCounter{max: max}
}

// Tick accounts for one more accepted step. The step that would exceed the
// cap fails and is not counted.
func (c *StepCounter) Tick() error {
	if c.n >= c.max {
		return fmt.Errorf("%w (%d)", dynamo.ErrStepCountExceeded, c.max)
	}
	c.n++
	return nil
}

func (c *StepCounter) Count() int { return c.n }
func (c *StepCounter) Reset()     { c.n = 0 }

// Buffer collects the samples of one run attempt and enforces its step cap.
type Buffer struct {
	traj    *Trajectory
	counter *StepCounter
}

func NewBuffer(ny, maxSteps int) *Buffer {
	return &Buffer{
		traj:    NewTrajectory(ny),
		counter: NewStepCounter(maxSteps),
	}
}

// Reset clears all samples and zeroes the step counter.
func (b *Buffer) Reset() {
	b.traj.X = b.traj.X[:0]
	b.traj.Y = b.traj.Y[:0]
	b.counter.Reset()
}

// Seed records the starting sample of an attempt without counting a step.
func (b *Buffer) Seed(x float64, y []float64) {
	b.traj.Append(x, y)
}

// Record is the stepper observer: it counts the step, then stores it.
func (b *Buffer) Record(x float64, y []float64) error {
	if err := b.counter.Tick(); err != nil {
		return err
	}
	b.traj.Append(x, y)
	return nil
}

func (b *Buffer) Steps() int { return b.counter.Count() }

func (b *Buffer) Trajectory() *Trajectory { return b.traj }

// CheckpointRows returns how many leading rows of a checkpoint buffer with
// nxs checkpoints hold states. It differs from Reached on failure, where
// Reached indexes the last written row.
func CheckpointRows(res *Result, nxs int) int {
	if res == nil {
		return 0
	}
	return min(res.Rows, nxs)
}

// CheckpointTrajectory views the written rows of a checkpoint buffer as a
// trajectory.
func CheckpointTrajectory(xs, out []float64, ny int, res *Result) *Trajectory {
	tr := NewTrajectory(ny)
	for i := 0; i < CheckpointRows(res, len(xs)); i++ {
		tr.Append(xs[i], out[i*ny:(i+1)*ny])
	}
	return tr
}
