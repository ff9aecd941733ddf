package models

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Oscillator is a damped linear oscillator: d²x/dt² + 2ζω dx/dt + ω²x = 0.
// State: [x, v]
type Oscillator struct {
	dynamo.Base
	Omega float64
	Zeta  float64
}

func NewOscillator(omega, zeta float64) *Oscillator {
	return &Oscillator{Omega: omega, Zeta: zeta}
}

func (o *Oscillator) NY() int { return 2 }

func (o *Oscillator) RHS(_ float64, y, dydx []float64) dynamo.Status {
	dydx[0] = y[1]
	dydx[1] = -2*o.Zeta*o.Omega*y[1] - o.Omega*o.Omega*y[0]
	return dynamo.StatusSuccess
}

func (o *Oscillator) DenseJacobian(_ float64, _, jac, dfdx []float64) dynamo.Status {
	jac[0], jac[1] = 0, 1
	jac[2], jac[3] = -o.Omega*o.Omega, -2*o.Zeta*o.Omega
	dfdx[0], dfdx[1] = 0, 0
	return dynamo.StatusSuccess
}

// MaxStepHint limits steps to a fraction of the period.
func (o *Oscillator) MaxStepHint(float64, []float64) float64 {
	if o.Omega == 0 {
		return math.Inf(1)
	}
	return 2 * math.Pi / math.Abs(o.Omega) / 8
}

// Exact is the closed-form solution of the undamped case; with damping it
// is the underdamped solution and requires Zeta < 1.
func (o *Oscillator) Exact(x0 float64, y0 []float64, x float64, out []float64) {
	t := x - x0
	w := o.Omega
	if o.Zeta == 0 {
		out[0] = y0[0]*math.Cos(w*t) + y0[1]/w*math.Sin(w*t)
		out[1] = -y0[0]*w*math.Sin(w*t) + y0[1]*math.Cos(w*t)
		return
	}
	zw := o.Zeta * w
	wd := w * math.Sqrt(1-o.Zeta*o.Zeta)
	a := y0[0]
	b := (y0[1] + zw*y0[0]) / wd
	e := math.Exp(-zw * t)
	c, s := math.Cos(wd*t), math.Sin(wd*t)
	out[0] = e * (a*c + b*s)
	out[1] = e * ((-zw*a+wd*b)*c + (-zw*b-wd*a)*s)
}

func (o *Oscillator) Energy(y []float64) float64 {
	return 0.5 * (y[1]*y[1] + o.Omega*o.Omega*y[0]*y[0])
}

func (o *Oscillator) DefaultState() dynamo.State { return dynamo.State{1, 0} }

func (o *Oscillator) GetParams() map[string]float64 {
	return map[string]float64{"omega": o.Omega, "zeta": o.Zeta}
}

func (o *Oscillator) SetParam(name string, value float64) error {
	switch name {
	case "omega":
		o.Omega = value
	case "zeta":
		o.Zeta = value
	default:
		return unknownParam("oscillator", name)
	}
	return nil
}
