package models

import "github.com/san-kum/odeint/internal/dynamo"

// Robertson is the classic stiff three-species kinetics problem
//
//	A -> B        (k1)
//	B + B -> C + B (k2)
//	B + C -> A + C (k3)
//
// The total concentration is conserved.
type Robertson struct {
	dynamo.Base
	K1, K2, K3 float64
}

func NewRobertson() *Robertson {
	return &Robertson{K1: 0.04, K2: 3e7, K3: 1e4}
}

func (r *Robertson) NY() int { return 3 }

func (r *Robertson) RHS(_ float64, y, f []float64) dynamo.Status {
	if y[0] < -1e-6 || y[1] < -1e-6 || y[2] < -1e-6 {
		return dynamo.StatusRecoverable
	}
	a := r.K1 * y[0]
	b := r.K2 * y[1] * y[1]
	c := r.K3 * y[1] * y[2]
	f[0] = -a + c
	f[1] = a - b - c
	f[2] = b
	return dynamo.StatusSuccess
}

func (r *Robertson) DenseJacobian(_ float64, y, j, dfdx []float64) dynamo.Status {
	j[0], j[1], j[2] = -r.K1, r.K3*y[2], r.K3*y[1]
	j[3], j[4], j[5] = r.K1, -2*r.K2*y[1]-r.K3*y[2], -r.K3*y[1]
	j[6], j[7], j[8] = 0, 2*r.K2*y[1], 0
	dfdx[0], dfdx[1], dfdx[2] = 0, 0, 0
	return dynamo.StatusSuccess
}

// InitialStepHint keeps the first step inside the fast transient.
func (r *Robertson) InitialStepHint(float64, []float64) float64 { return 1e-6 }

func (r *Robertson) DefaultState() dynamo.State { return dynamo.State{1, 0, 0} }

func (r *Robertson) Total(y []float64) float64 { return y[0] + y[1] + y[2] }

func (r *Robertson) GetParams() map[string]float64 {
	return map[string]float64{"k1": r.K1, "k2": r.K2, "k3": r.K3}
}

func (r *Robertson) SetParam(name string, value float64) error {
	switch name {
	case "k1":
		r.K1 = value
	case "k2":
		r.K2 = value
	case "k3":
		r.K3 = value
	default:
		return unknownParam("robertson", name)
	}
	return nil
}
