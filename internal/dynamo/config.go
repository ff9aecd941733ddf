package dynamo

import "math"

// DefaultMaxSteps caps accepted steps per run attempt or checkpoint segment
// when StepConfig.MaxSteps is zero.
const DefaultMaxSteps = 500

// StepConfig is the immutable per-run configuration of a driver.
// Zero values of Dx0, DxMax and MaxSteps are filled by Resolve.
type StepConfig struct {
	Method        string
	Atol          float64
	Rtol          float64
	Dx0           float64
	DxMax         float64
	MaxSteps      int
	Autorestart   int
	ReturnOnError bool
}

func DefaultConfig() StepConfig {
	return StepConfig{
		Method:   "dopri5",
		Atol:     1e-8,
		Rtol:     1e-8,
		MaxSteps: DefaultMaxSteps,
	}
}

func (c StepConfig) Validate() error {
	switch {
	case c.Atol < 0 || c.Rtol < 0:
		return Configf("tolerances must be non-negative, got atol=%g rtol=%g", c.Atol, c.Rtol)
	case c.Atol == 0 && c.Rtol == 0:
		return Configf("atol and rtol cannot both be zero")
	case c.MaxSteps < 0:
		return Configf("max steps must be non-negative, got %d", c.MaxSteps)
	case c.Autorestart < 0:
		return Configf("autorestart budget must be non-negative, got %d", c.Autorestart)
	case c.Dx0 < 0 || c.DxMax < 0:
		return Configf("step sizes must be non-negative, got dx0=%g dx_max=%g", c.Dx0, c.DxMax)
	case math.IsNaN(c.Dx0) || math.IsNaN(c.DxMax):
		return Configf("step sizes must not be NaN")
	}
	return nil
}

// Resolve fills zero-valued step settings from the system hints. It is
// called once at the start of a top-level run.
func (c StepConfig) Resolve(sys System, x0 float64, y0 []float64) StepConfig {
	if c.Dx0 == 0 {
		c.Dx0 = sys.InitialStepHint(x0, y0)
	}
	if !(c.Dx0 > 0) || math.IsInf(c.Dx0, 0) {
		c.Dx0 = 100 * epsilon
		if x0 != 0 {
			c.Dx0 *= math.Abs(x0)
		}
	}
	if c.DxMax == 0 {
		c.DxMax = sys.MaxStepHint(x0, y0)
	}
	if !(c.DxMax > 0) {
		c.DxMax = math.Inf(1)
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// epsilon is the float64 machine epsilon (2^-52).
const epsilon = 0x1p-52
