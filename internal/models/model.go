package models

import "github.com/san-kum/odeint/internal/dynamo"

// Configurable is implemented by systems with named scalar parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Analytic is implemented by systems with a closed-form solution.
type Analytic interface {
	Exact(x0 float64, y0 []float64, x float64, out []float64)
}

// Model is a host system from the catalogue.
type Model interface {
	dynamo.System
	Configurable
	DefaultState() dynamo.State
}

// ApplyParams sets every entry of params on m, stopping at the first
// unknown name.
func ApplyParams(m Configurable, params map[string]float64) error {
	for name, v := range params {
		if err := m.SetParam(name, v); err != nil {
			return err
		}
	}
	return nil
}

func unknownParam(model, name string) error {
	return dynamo.Configf("%s has no parameter %q", model, name)
}
