package sim

import (
	"github.com/san-kum/odeint/internal/config"
	"github.com/san-kum/odeint/internal/dynamo"
)

// SimpleAdaptive integrates one system from x0 to xend and returns every
// accepted step.
func SimpleAdaptive(sys dynamo.System, cfg dynamo.StepConfig, y0 []float64, x0, xend float64, opts ...Option) (*Result, error) {
	d, err := NewDriver(sys, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return d.Adaptive(x0, xend, y0)
}

// SimplePredefined integrates one system through the checkpoints xs,
// writing states into out, and returns the number of rows reached.
func SimplePredefined(sys dynamo.System, cfg dynamo.StepConfig, y0, xs, out []float64, opts ...Option) (int, error) {
	d, err := NewDriver(sys, cfg, opts...)
	if err != nil {
		return 0, err
	}
	res, err := d.Predefined(xs, y0, out)
	return res.Reached, err
}

// MultiAdaptive runs one adaptive integration per system on a fan-out
// sized by ODEINT_NUM_THREADS. dx0s and dxMaxs may be nil to use cfg.
func MultiAdaptive(systems []dynamo.System, cfg dynamo.StepConfig, y0s [][]float64, x0s, xends, dx0s, dxMaxs []float64, opts ...FanOutOption) ([]*Result, error) {
	n := len(systems)
	if err := sameLengths(n, len(y0s), len(x0s), len(xends)); err != nil {
		return nil, err
	}
	if err := optionalLengths(n, dx0s, dxMaxs); err != nil {
		return nil, err
	}
	tasks := make([]AdaptiveTask, n)
	for i := range tasks {
		tasks[i] = AdaptiveTask{
			System: systems[i],
			Config: taskConfig(cfg, i, dx0s, dxMaxs),
			Y0:     y0s[i],
			X0:     x0s[i],
			XEnd:   xends[i],
		}
	}
	return NewFanOut(config.WorkersFromEnv(), opts...).RunAdaptive(tasks)
}

// MultiPredefined is the checkpoint counterpart of MultiAdaptive. It
// returns the reached count of every task.
func MultiPredefined(systems []dynamo.System, cfg dynamo.StepConfig, y0s, xss, outs [][]float64, dx0s, dxMaxs []float64, opts ...FanOutOption) ([]int, error) {
	n := len(systems)
	if err := sameLengths(n, len(y0s), len(xss), len(outs)); err != nil {
		return nil, err
	}
	if err := optionalLengths(n, dx0s, dxMaxs); err != nil {
		return nil, err
	}
	tasks := make([]PredefinedTask, n)
	for i := range tasks {
		tasks[i] = PredefinedTask{
			System: systems[i],
			Config: taskConfig(cfg, i, dx0s, dxMaxs),
			Y0:     y0s[i],
			Xs:     xss[i],
			Out:    outs[i],
		}
	}
	results, err := NewFanOut(config.WorkersFromEnv(), opts...).RunPredefined(tasks)
	if err != nil {
		return nil, err
	}
	reached := make([]int, n)
	for i, r := range results {
		reached[i] = r.Reached
	}
	return reached, nil
}

func taskConfig(cfg dynamo.StepConfig, i int, dx0s, dxMaxs []float64) dynamo.StepConfig {
	if dx0s != nil {
		cfg.Dx0 = dx0s[i]
	}
	if dxMaxs != nil {
		cfg.DxMax = dxMaxs[i]
	}
	return cfg
}

func sameLengths(n int, lens ...int) error {
	for _, l := range lens {
		if l != n {
			return dynamo.Configf("per-task inputs have mismatched lengths (%d systems, got %d)", n, l)
		}
	}
	return nil
}

func optionalLengths(n int, slices ...[]float64) error {
	for _, s := range slices {
		if s != nil && len(s) != n {
			return dynamo.Configf("per-task step sizes have %d entries, want %d", len(s), n)
		}
	}
	return nil
}
