package models

import "github.com/san-kum/odeint/internal/dynamo"

// VanDerPol implements the Van der Pol oscillator.
// State: [x, y] where y = dx/dt
// Equations:
//
//	dx/dt = y
//	dy/dt = μ(1 - x²)y - x
//
// Large μ makes the system stiff.
type VanDerPol struct {
	dynamo.Base
	Mu float64
}

func NewVanDerPol(mu float64) *VanDerPol {
	return &VanDerPol{Mu: mu}
}

func (v *VanDerPol) NY() int { return 2 }

func (v *VanDerPol) RHS(_ float64, s, dydx []float64) dynamo.Status {
	x, y := s[0], s[1]
	dydx[0] = y
	dydx[1] = v.Mu*(1-x*x)*y - x
	return dynamo.StatusSuccess
}

func (v *VanDerPol) DenseJacobian(_ float64, s, jac, dfdx []float64) dynamo.Status {
	x, y := s[0], s[1]
	jac[0], jac[1] = 0, 1
	jac[2], jac[3] = -2*v.Mu*x*y-1, v.Mu*(1-x*x)
	dfdx[0], dfdx[1] = 0, 0
	return dynamo.StatusSuccess
}

func (v *VanDerPol) DefaultState() dynamo.State {
	return dynamo.State{2.0, 0.0}
}

func (v *VanDerPol) GetParams() map[string]float64 {
	return map[string]float64{"mu": v.Mu}
}

func (v *VanDerPol) SetParam(name string, value float64) error {
	if name != "mu" {
		return unknownParam("vanderpol", name)
	}
	v.Mu = value
	return nil
}
