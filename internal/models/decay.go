package models

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Decay is first order exponential decay dy/dx = -k*y.
type Decay struct {
	dynamo.Base
	K float64
}

func NewDecay(k float64) *Decay {
	return &Decay{K: k}
}

func (d *Decay) NY() int { return 1 }

func (d *Decay) RHS(_ float64, y, dydx []float64) dynamo.Status {
	dydx[0] = -d.K * y[0]
	return dynamo.StatusSuccess
}

func (d *Decay) DenseJacobian(_ float64, _, jac, dfdx []float64) dynamo.Status {
	jac[0] = -d.K
	dfdx[0] = 0
	return dynamo.StatusSuccess
}

func (d *Decay) Exact(x0 float64, y0 []float64, x float64, out []float64) {
	out[0] = y0[0] * math.Exp(-d.K*(x-x0))
}

func (d *Decay) DefaultState() dynamo.State { return dynamo.State{1} }

func (d *Decay) GetParams() map[string]float64 {
	return map[string]float64{"k": d.K}
}

func (d *Decay) SetParam(name string, value float64) error {
	if name != "k" {
		return unknownParam("decay", name)
	}
	d.K = value
	return nil
}
