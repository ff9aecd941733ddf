package sim

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/integrators"
)

// Phase is the lifecycle position of a driver within one top-level call.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseRecovering
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseRecovering:
		return "recovering"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Run-info keys written to the system after every top-level call.
const (
	InfoSteps    = "n_steps"
	InfoNFev     = "nfev"
	InfoNJev     = "njev"
	InfoRestarts = "n_restarts"
	InfoWall     = "time_wall"
	// InfoCPU is measured process-wide, so under a FanOut it includes the
	// CPU time of tasks running concurrently on other workers.
	InfoCPU = "time_cpu"
)

// Stats summarises one top-level call, summed across restarts.
type Stats struct {
	Steps    int
	NFev     int64
	NJev     int64
	Restarts int
	Wall     time.Duration
	// CPU is process-wide; see InfoCPU.
	CPU time.Duration
}

// Result is what a driver returns, complete or partial. Adaptive runs fill
// Trajectory; checkpoint runs fill Reached, Rows and the caller's buffer.
type Result struct {
	Trajectory *Trajectory
	Reached    int
	// Rows is the number of leading checkpoint rows holding states.
	Rows  int
	Stats Stats
}

type Option func(*Driver)

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = l }
}

func WithRegistry(r *integrators.Registry) Option {
	return func(d *Driver) { d.registry = r }
}

// WithSystemCheck runs dynamo.CheckSystem on the initial point before
// any stepping.
func WithSystemCheck() Option {
	return func(d *Driver) { d.checkSystem = true }
}

// Driver runs one stepper against one system. It is not safe for
// concurrent use; the system is borrowed exclusively while a call runs.
type Driver struct {
	sys         dynamo.System
	cfg         dynamo.StepConfig
	registry    *integrators.Registry
	stepper     integrators.Stepper
	log         logrus.FieldLogger
	phase       Phase
	checkSystem bool
}

// NewDriver resolves the configured method. Unknown methods and implicit
// methods on a system without a Jacobian fail with dynamo.ErrConfiguration.
func NewDriver(sys dynamo.System, cfg dynamo.StepConfig, opts ...Option) (*Driver, error) {
	d := &Driver{
		sys:      sys,
		cfg:      cfg,
		registry: integrators.DefaultRegistry,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}

	if sys == nil {
		return nil, dynamo.Configf("nil system")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stepper, err := d.registry.Lookup(cfg.Method)
	if err != nil {
		return nil, err
	}
	if d.registry.RequiresJacobian(cfg.Method) {
		if _, ok := sys.(dynamo.JacobianSystem); !ok {
			return nil, dynamo.Configf("method %s requires a jacobian but the system provides none", cfg.Method)
		}
	}
	d.stepper = stepper
	return d, nil
}

func (d *Driver) Phase() Phase { return d.phase }

func (d *Driver) Method() string { return d.stepper.Name() }

// problem exposes the system to the stepper, counting every evaluation.
func (d *Driver) problem() integrators.Problem {
	sys := d.sys
	c := sys.Counters()
	p := integrators.Problem{
		NY: sys.NY(),
		RHS: func(x float64, y, dydx []float64) dynamo.Status {
			c.AddRHS()
			return sys.RHS(x, y, dydx)
		},
	}
	if js, ok := sys.(dynamo.JacobianSystem); ok {
		p.Jac = func(x float64, y, jac, dfdx []float64) dynamo.Status {
			c.AddJacobian()
			return js.DenseJacobian(x, y, jac, dfdx)
		}
	}
	return p
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRecoverable
	outcomeFatal
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case dynamo.Recoverable(err):
		return outcomeRecoverable
	default:
		return outcomeFatal
	}
}

// run carries the bookkeeping of one top-level call.
type run struct {
	cfg      dynamo.StepConfig
	budget   int
	restarts int
	steps    int
	nfev0    int64
	njev0    int64
	wall0    time.Time
	cpu0     time.Duration
}

func (d *Driver) start(x0 float64, y0 []float64) (*run, error) {
	d.phase = PhaseRunning
	r := &run{
		nfev0: d.sys.Counters().NFev(),
		njev0: d.sys.Counters().NJev(),
		wall0: time.Now(),
		cpu0:  cpuTime(),
	}
	if len(y0) != d.sys.NY() {
		return r, dynamo.Configf("initial state has %d components, system expects %d", len(y0), d.sys.NY())
	}
	if d.checkSystem {
		if err := dynamo.CheckSystem(d.sys, x0, y0); err != nil {
			return r, err
		}
	}
	r.cfg = d.cfg.Resolve(d.sys, x0, y0)
	r.budget = r.cfg.Autorestart
	return r, nil
}

func (r *run) options(dx0 float64) integrators.Options {
	return integrators.Options{Dx0: dx0, DxMax: r.cfg.DxMax, Atol: r.cfg.Atol, Rtol: r.cfg.Rtol}
}

// retry decides whether a recoverable failure is retried. It consumes
// one unit of budget when it returns nil.
func (d *Driver) retry(r *run, cause error, progress bool, x float64) error {
	if r.budget == 0 {
		return cause
	}
	if !progress {
		return fmt.Errorf("%w: %w", dynamo.ErrPartialProgressUnavailable, cause)
	}
	d.phase = PhaseRecovering
	r.budget--
	r.restarts++
	d.log.WithFields(logrus.Fields{
		"method":    d.stepper.Name(),
		"x":         x,
		"remaining": r.budget,
	}).WithError(cause).Warn("autorestart")
	d.phase = PhaseRunning
	return nil
}

// finish writes statistics and the run info, and applies ReturnOnError.
func (d *Driver) finish(r *run, res *Result, err error) (*Result, error) {
	wall := time.Since(r.wall0)
	cpu := cpuTime() - r.cpu0
	if cpu <= 0 && !cpuTimeSupported {
		cpu = wall
	}
	c := d.sys.Counters()
	res.Stats = Stats{
		Steps:    r.steps,
		NFev:     c.NFev() - r.nfev0,
		NJev:     c.NJev() - r.njev0,
		Restarts: r.restarts,
		Wall:     wall,
		CPU:      cpu,
	}

	info := d.sys.Info()
	info.Clear()
	info.Ints[InfoSteps] = int64(res.Stats.Steps)
	info.Ints[InfoNFev] = res.Stats.NFev
	info.Ints[InfoNJev] = res.Stats.NJev
	info.Ints[InfoRestarts] = int64(res.Stats.Restarts)
	info.Floats[InfoWall] = wall.Seconds()
	info.Floats[InfoCPU] = cpu.Seconds()

	if err == nil {
		d.phase = PhaseCompleted
		return res, nil
	}
	d.phase = PhaseFailed
	if d.cfg.ReturnOnError && !errors.Is(err, dynamo.ErrConfiguration) {
		d.log.WithError(err).WithField("method", d.stepper.Name()).Error("integration failed, returning partial result")
		return res, nil
	}
	return res, err
}

// Adaptive integrates from x0 to xend, recording every accepted step. The
// trajectory starts with (x0, y0) and ends exactly at xend. On failure the
// partial result is returned together with the error.
func (d *Driver) Adaptive(x0, xend float64, y0 []float64) (*Result, error) {
	res := &Result{}
	r, err := d.start(x0, y0)
	if err != nil {
		return d.finish(r, res, err)
	}
	if math.IsNaN(x0) || math.IsNaN(xend) || math.IsInf(x0, 0) || math.IsInf(xend, 0) {
		return d.finish(r, res, dynamo.Configf("integration bounds must be finite, got [%g, %g]", x0, xend))
	}

	p := d.problem()
	ny := d.sys.NY()
	xs := x0
	ys := dynamo.State(y0).Clone()
	dx := r.cfg.Dx0
	var traj *Trajectory

	for attempt := 1; ; attempt++ {
		buf := NewBuffer(ny, r.cfg.MaxSteps)
		buf.Seed(xs, ys)
		y := ys.Clone()
		d.log.WithFields(logrus.Fields{"attempt": attempt, "x0": xs, "xend": xend}).Debug("adaptive integration")

		_, stepErr := d.stepper.AdvanceAdaptive(p, y, xs, xend, r.options(dx), buf.Record)
		traj = Merge(traj, buf.Trajectory())
		r.steps += buf.Steps()
		res.Trajectory = traj

		if classify(stepErr) == outcomeSuccess {
			return d.finish(r, res, nil)
		}
		lx, ly := traj.Last()
		stepErr = &dynamo.IntegrationError{X: lx, Steps: r.steps, Attempt: attempt, Wrapped: stepErr}
		if classify(stepErr) == outcomeFatal {
			return d.finish(r, res, stepErr)
		}
		if err := d.retry(r, stepErr, traj.Len() > 1, lx); err != nil {
			return d.finish(r, res, err)
		}
		xs = lx
		ys = dynamo.State(ly).Clone()
		if n := traj.Len(); n > 1 {
			dx = math.Abs(traj.X[n-1] - traj.X[n-2])
		}
	}
}

// Predefined integrates through the checkpoints xs and writes the state at
// xs[i] into out[i*ny:(i+1)*ny]. Row 0 is y0. The step cap applies per
// segment. On success Reached is len(xs); otherwise it is the index of the
// last written row. Rows always counts the written rows.
func (d *Driver) Predefined(xs, y0, out []float64) (*Result, error) {
	res := &Result{}
	r, err := d.start(firstOr(xs, 0), y0)
	if err != nil {
		return d.finish(r, res, err)
	}
	ny := d.sys.NY()
	if err := checkCheckpoints(xs); err != nil {
		return d.finish(r, res, err)
	}
	if len(out) < len(xs)*ny {
		return d.finish(r, res, dynamo.Configf("output buffer holds %d values, need %d", len(out), len(xs)*ny))
	}

	copy(out[:ny], y0)
	res.Rows = 1
	p := d.problem()
	counter := NewStepCounter(r.cfg.MaxSteps)
	dx := r.cfg.Dx0
	y := make([]float64, ny)

	for i := 1; i < len(xs); i++ {
		segX := xs[i-1]
		segY := dynamo.State(out[(i-1)*ny : i*ny]).Clone()

		for attempt := 1; ; attempt++ {
			counter.Reset()
			goodX := segX
			goodY := segY.Clone()
			lastH := 0.0
			observe := func(x float64, yy []float64) error {
				if err := counter.Tick(); err != nil {
					return err
				}
				lastH = math.Abs(x - goodX)
				goodX = x
				copy(goodY, yy)
				return nil
			}

			copy(y, segY)
			hNext, stepErr := d.stepper.AdvanceTo(p, y, segX, xs[i], r.options(dx), observe)
			r.steps += counter.Count()

			if classify(stepErr) == outcomeSuccess {
				copy(out[i*ny:(i+1)*ny], y)
				res.Rows = i + 1
				if hNext > 0 {
					dx = hNext
				}
				break
			}
			res.Reached = i - 1
			stepErr = &dynamo.IntegrationError{X: goodX, Steps: r.steps, Attempt: attempt, Wrapped: stepErr}
			if classify(stepErr) == outcomeFatal {
				return d.finish(r, res, stepErr)
			}
			if err := d.retry(r, stepErr, i-1 > 0, goodX); err != nil {
				return d.finish(r, res, err)
			}
			segX = goodX
			segY = goodY
			if lastH > 0 {
				dx = lastH
			}
		}
	}

	res.Reached = len(xs)
	return d.finish(r, res, nil)
}

func firstOr(xs []float64, def float64) float64 {
	if len(xs) == 0 {
		return def
	}
	return xs[0]
}

func checkCheckpoints(xs []float64) error {
	if len(xs) == 0 {
		return dynamo.Configf("no checkpoints")
	}
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return dynamo.Configf("checkpoints must be finite")
		}
	}
	if len(xs) < 2 {
		return nil
	}
	dir := xs[1] - xs[0]
	for i := 1; i < len(xs); i++ {
		step := xs[i] - xs[i-1]
		if step == 0 || (step > 0) != (dir > 0) {
			return dynamo.Configf("checkpoints must be strictly monotonic (index %d)", i)
		}
	}
	return nil
}
