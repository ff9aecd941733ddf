package automation

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/odeint/internal/config"
	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/experiment"
	"github.com/san-kum/odeint/internal/metrics"
	"github.com/san-kum/odeint/internal/models"
	"github.com/san-kum/odeint/internal/sim"
)

// Scenario is a batch of independent runs read from one YAML file.
type Scenario struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Runs        []*config.Config `yaml:"-"`
}

type scenarioFile struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Runs        []yaml.Node `yaml:"runs"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario. Every run is decoded over the default
// run file, so runs only list what they change.
func ParseScenario(data []byte) (*Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	s := &Scenario{Name: f.Name, Description: f.Description}
	for i := range f.Runs {
		cfg := config.DefaultConfig()
		if err := f.Runs[i].Decode(cfg); err != nil {
			return nil, err
		}
		s.Runs = append(s.Runs, cfg)
	}
	if len(s.Runs) == 0 {
		return nil, dynamo.Configf("scenario %q has no runs", f.Name)
	}
	return s, nil
}

// Runner executes batches on a fan-out.
type Runner struct {
	Registry *experiment.Registry
	// Workers defaults to the ODEINT_NUM_THREADS environment setting.
	Workers int
	Log     logrus.FieldLogger
	// OnTaskDone is forwarded to the fan-out.
	OnTaskDone func(sim.TaskReport)
}

func (r *Runner) registry() *experiment.Registry {
	if r.Registry == nil {
		return experiment.NewRegistry()
	}
	return r.Registry
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.WarnLevel)
		return l
	}
	return r.Log
}

func (r *Runner) fanOut() *sim.FanOut {
	workers := r.Workers
	if workers <= 0 {
		workers = config.WorkersFromEnv()
	}
	opts := []sim.FanOutOption{sim.WithFanOutLogger(r.logger())}
	if r.OnTaskDone != nil {
		opts = append(opts, sim.OnTaskDone(r.OnTaskDone))
	}
	return sim.NewFanOut(workers, opts...)
}

// job is one prepared run.
type job struct {
	cfg   *config.Config
	model models.Model
	y0    []float64
}

func (r *Runner) prepare(cfgs []*config.Config) ([]job, error) {
	reg := r.registry()
	jobs := make([]job, len(cfgs))
	for i, cfg := range cfgs {
		m, y0, err := experiment.New(cfg, reg, nil).System()
		if err != nil {
			return nil, &dynamo.TaskError{Index: i, Err: err}
		}
		jobs[i] = job{cfg: cfg, model: m, y0: y0}
	}
	return jobs, nil
}

// RunScenario runs every scenario entry. Adaptive and checkpoint runs
// go through separate fan-outs; outcomes keep scenario order. When any
// run fails the lowest-index failure is returned, indexed by scenario
// position.
func (r *Runner) RunScenario(s *Scenario) ([]*experiment.Outcome, error) {
	jobs, err := r.prepare(s.Runs)
	if err != nil {
		return nil, err
	}
	log := r.logger().WithField("scenario", s.Name)
	log.WithField("runs", len(jobs)).Info("running scenario")

	var adaptive []sim.AdaptiveTask
	var predefined []sim.PredefinedTask
	var adaptiveIdx, predefinedIdx []int
	outcomes := make([]*experiment.Outcome, len(jobs))

	for i, j := range jobs {
		outcomes[i] = &experiment.Outcome{System: j.cfg.System, Method: j.cfg.Method}
		if j.cfg.Predefined() {
			out := make([]float64, len(j.cfg.Checkpoints)*j.model.NY())
			outcomes[i].Checkpoints = j.cfg.Checkpoints
			outcomes[i].Out = out
			predefined = append(predefined, sim.PredefinedTask{
				System: j.model, Config: j.cfg.StepConfig(), Y0: j.y0, Xs: j.cfg.Checkpoints, Out: out,
			})
			predefinedIdx = append(predefinedIdx, i)
			continue
		}
		adaptive = append(adaptive, sim.AdaptiveTask{
			System: j.model, Config: j.cfg.StepConfig(), Y0: j.y0, X0: j.cfg.X0, XEnd: j.cfg.XEnd,
		})
		adaptiveIdx = append(adaptiveIdx, i)
	}

	f := r.fanOut()
	var failures []error
	if len(adaptive) > 0 {
		res, err := f.RunAdaptive(adaptive)
		if err != nil {
			failures = append(failures, reindex(err, adaptiveIdx))
		}
		for k, rr := range res {
			outcomes[adaptiveIdx[k]].Result = rr
		}
	}
	if len(predefined) > 0 {
		res, err := f.RunPredefined(predefined)
		if err != nil {
			failures = append(failures, reindex(err, predefinedIdx))
		}
		for k, rr := range res {
			outcomes[predefinedIdx[k]].Result = rr
		}
	}
	if err := lowest(failures); err != nil {
		return nil, err
	}

	for i, j := range jobs {
		o := outcomes[i]
		if o.Result == nil {
			continue
		}
		if j.cfg.Predefined() {
			o.Metrics = metrics.Evaluate(sim.CheckpointTrajectory(o.Checkpoints, o.Out, j.model.NY(), o.Result),
				metrics.Defaults(j.model, o.Checkpoints[0], j.y0)...)
		} else {
			o.Metrics = metrics.Evaluate(o.Result.Trajectory, metrics.Defaults(j.model, j.cfg.X0, j.y0)...)
		}
	}
	return outcomes, nil
}

// reindex maps a fan-out task index back to its scenario position.
func reindex(err error, idx []int) error {
	var te *dynamo.TaskError
	if errors.As(err, &te) && te.Index < len(idx) {
		return &dynamo.TaskError{Index: idx[te.Index], ID: te.ID, Err: te.Err}
	}
	return err
}

func lowest(errs []error) error {
	var best error
	bestIdx := math.MaxInt
	for _, err := range errs {
		var te *dynamo.TaskError
		if !errors.As(err, &te) {
			return err
		}
		if te.Index < bestIdx {
			best, bestIdx = err, te.Index
		}
	}
	return best
}

// ParameterSweep integrates Base once per value of Param, evenly spaced
// over [Min, Max].
type ParameterSweep struct {
	Base  *config.Config
	Param string
	Min   float64
	Max   float64
	Steps int
}

// SweepResult holds one point of a sweep.
type SweepResult struct {
	ParamValue float64
	FinalState dynamo.State
	Result     *sim.Result
	Metrics    map[string]float64
}

// Values returns the swept parameter values.
func (s *ParameterSweep) Values() []float64 {
	if s.Steps <= 1 {
		return []float64{s.Min}
	}
	vals := make([]float64, s.Steps)
	step := (s.Max - s.Min) / float64(s.Steps-1)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	return vals
}

func (r *Runner) RunSweep(sweep *ParameterSweep) ([]SweepResult, error) {
	if sweep.Base.Predefined() {
		return nil, dynamo.Configf("sweeps integrate adaptively, drop the checkpoints")
	}
	vals := sweep.Values()
	cfgs := make([]*config.Config, len(vals))
	for i, v := range vals {
		cfg := sweep.Base.Clone()
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, 1)
		}
		cfg.Params[sweep.Param] = v
		cfgs[i] = cfg
	}
	jobs, err := r.prepare(cfgs)
	if err != nil {
		return nil, err
	}

	tasks := make([]sim.AdaptiveTask, len(jobs))
	for i, j := range jobs {
		tasks[i] = sim.AdaptiveTask{System: j.model, Config: j.cfg.StepConfig(), Y0: j.y0, X0: j.cfg.X0, XEnd: j.cfg.XEnd}
	}
	r.logger().WithFields(logrus.Fields{"param": sweep.Param, "points": len(tasks)}).Info("running sweep")
	res, err := r.fanOut().RunAdaptive(tasks)
	if err != nil {
		return nil, err
	}

	out := make([]SweepResult, len(res))
	for i, rr := range res {
		_, last := rr.Trajectory.Last()
		out[i] = SweepResult{
			ParamValue: vals[i],
			FinalState: dynamo.State(last).Clone(),
			Result:     rr,
			Metrics:    metrics.Evaluate(rr.Trajectory, metrics.Defaults(jobs[i].model, jobs[i].cfg.X0, jobs[i].y0)...),
		}
	}
	return out, nil
}

// MonteCarloConfig perturbs the initial state of Base uniformly by up to
// Perturbation per component.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	Trials       int
	// Seed of zero seeds from the clock.
	Seed int64
	// Bound is the magnitude above which a trial counts as unstable.
	Bound float64
}

// MonteCarloResult holds the outcome of one trial.
type MonteCarloResult struct {
	TrialID    int
	InitState  dynamo.State
	FinalState dynamo.State
	Reached    float64
	// Stable is set when the trial reached XEnd bounded.
	Stable bool
}

// RunMonteCarlo runs every trial with ReturnOnError set, so a diverging
// trial is reported as unstable instead of failing the batch.
func (r *Runner) RunMonteCarlo(cfg *MonteCarloConfig) ([]MonteCarloResult, error) {
	if cfg.Base.Predefined() {
		return nil, dynamo.Configf("monte carlo trials integrate adaptively, drop the checkpoints")
	}
	bound := cfg.Bound
	if bound <= 0 {
		bound = 1e6
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	base := cfg.Base.Clone()
	base.ReturnOnError = true
	cfgs := make([]*config.Config, cfg.Trials)
	for i := range cfgs {
		cfgs[i] = base.Clone()
	}
	jobs, err := r.prepare(cfgs)
	if err != nil {
		return nil, err
	}

	tasks := make([]sim.AdaptiveTask, len(jobs))
	inits := make([]dynamo.State, len(jobs))
	for i, j := range jobs {
		init := make(dynamo.State, len(j.y0))
		for k, v := range j.y0 {
			init[k] = v + (rng.Float64()-0.5)*2*cfg.Perturbation
		}
		inits[i] = init
		tasks[i] = sim.AdaptiveTask{System: j.model, Config: j.cfg.StepConfig(), Y0: init, X0: j.cfg.X0, XEnd: j.cfg.XEnd}
	}
	r.logger().WithFields(logrus.Fields{"trials": len(tasks), "seed": seed}).Info("running monte carlo")
	res, err := r.fanOut().RunAdaptive(tasks)
	if err != nil {
		return nil, err
	}

	out := make([]MonteCarloResult, len(res))
	for i, rr := range res {
		mc := MonteCarloResult{TrialID: i, InitState: inits[i]}
		if rr.Trajectory != nil && rr.Trajectory.Len() > 0 {
			x, last := rr.Trajectory.Last()
			mc.Reached = x
			mc.FinalState = dynamo.State(last).Clone()
			mc.Stable = x == cfg.Base.XEnd && mc.FinalState.IsValid() && mc.FinalState.MaxAbs() <= bound
		}
		out[i] = mc
	}
	return out, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
