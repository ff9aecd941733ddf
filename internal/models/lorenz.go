package models

import "github.com/san-kum/odeint/internal/dynamo"

// Lorenz is the Lorenz attractor. Chaotic for the classic parameters, so
// long runs are only comparable between methods in a statistical sense.
type Lorenz struct {
	dynamo.Base
	Sigma, Rho, Beta float64
}

func NewLorenz() *Lorenz { return &Lorenz{Sigma: 10, Rho: 28, Beta: 8.0 / 3.0} }

func (l *Lorenz) NY() int { return 3 }

func (l *Lorenz) RHS(_ float64, s, dydx []float64) dynamo.Status {
	dydx[0] = l.Sigma * (s[1] - s[0])
	dydx[1] = s[0]*(l.Rho-s[2]) - s[1]
	dydx[2] = s[0]*s[1] - l.Beta*s[2]
	return dynamo.StatusSuccess
}

func (l *Lorenz) DenseJacobian(_ float64, s, jac, dfdx []float64) dynamo.Status {
	jac[0], jac[1], jac[2] = -l.Sigma, l.Sigma, 0
	jac[3], jac[4], jac[5] = l.Rho-s[2], -1, -s[0]
	jac[6], jac[7], jac[8] = s[1], s[0], -l.Beta
	dfdx[0], dfdx[1], dfdx[2] = 0, 0, 0
	return dynamo.StatusSuccess
}

func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{1, 1, 1} }

func (l *Lorenz) GetParams() map[string]float64 {
	return map[string]float64{"sigma": l.Sigma, "rho": l.Rho, "beta": l.Beta}
}

func (l *Lorenz) SetParam(name string, v float64) error {
	switch name {
	case "sigma":
		l.Sigma = v
	case "rho":
		l.Rho = v
	case "beta":
		l.Beta = v
	default:
		return unknownParam("lorenz", name)
	}
	return nil
}
