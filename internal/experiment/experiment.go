package experiment

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/odeint/internal/config"
	"github.com/san-kum/odeint/internal/metrics"
	"github.com/san-kum/odeint/internal/models"
	"github.com/san-kum/odeint/internal/sim"
)

// Outcome is the result of one run file.
type Outcome struct {
	System string
	Method string
	Result *sim.Result
	// Checkpoints and Out are set for predefined runs.
	Checkpoints []float64
	Out         []float64
	Metrics     map[string]float64
	Err         error
}

// Experiment turns a run file into a driver call.
type Experiment struct {
	cfg      *config.Config
	registry *Registry
	log      logrus.FieldLogger
	opts     []sim.Option
}

func New(cfg *config.Config, registry *Registry, log logrus.FieldLogger) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry, log: log}
}

// WithDriverOptions appends options passed to the driver.
func (e *Experiment) WithDriverOptions(opts ...sim.Option) *Experiment {
	e.opts = append(e.opts, opts...)
	return e
}

// System builds the configured system and its initial state.
func (e *Experiment) System() (models.Model, []float64, error) {
	m, err := e.registry.GetSystem(e.cfg.System, e.cfg.Params)
	if err != nil {
		return nil, nil, err
	}
	y0 := e.cfg.Y0
	if len(y0) == 0 {
		y0 = m.DefaultState()
	}
	return m, append([]float64(nil), y0...), nil
}

// Run integrates the configured system. Integration failures are returned
// both as the error and in Outcome.Err, alongside any partial result.
func (e *Experiment) Run() (*Outcome, error) {
	m, y0, err := e.System()
	if err != nil {
		return nil, err
	}
	opts := e.opts
	if e.log != nil {
		opts = append([]sim.Option{sim.WithLogger(e.log.WithField("system", e.cfg.System))}, opts...)
	}
	d, err := sim.NewDriver(m, e.cfg.StepConfig(), opts...)
	if err != nil {
		return nil, err
	}

	out := &Outcome{System: e.cfg.System, Method: d.Method()}
	if e.cfg.Predefined() {
		xs := e.cfg.Checkpoints
		out.Checkpoints = xs
		out.Out = make([]float64, len(xs)*m.NY())
		out.Result, out.Err = d.Predefined(xs, y0, out.Out)
		if sim.CheckpointRows(out.Result, len(xs)) > 0 {
			tr := sim.CheckpointTrajectory(xs, out.Out, m.NY(), out.Result)
			out.Metrics = metrics.Evaluate(tr, metrics.Defaults(m, xs[0], y0)...)
		}
	} else {
		out.Result, out.Err = d.Adaptive(e.cfg.X0, e.cfg.XEnd, y0)
		if out.Result != nil && out.Result.Trajectory != nil {
			out.Metrics = metrics.Evaluate(out.Result.Trajectory, metrics.Defaults(m, e.cfg.X0, y0)...)
		}
	}
	if out.Err != nil {
		return out, fmt.Errorf("%s/%s: %w", e.cfg.System, d.Method(), out.Err)
	}
	return out, nil
}
