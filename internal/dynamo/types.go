package dynamo

import (
	"math"
	"sync/atomic"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MaxAbs returns the largest absolute component.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Status is what a host callback reports back to the stepper.
type Status int

const (
	StatusSuccess Status = iota
	// StatusRecoverable asks the stepper to reject the trial step and retry
	// with a smaller one.
	StatusRecoverable
	StatusUnrecoverable
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRecoverable:
		return "recoverable"
	case StatusUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// System is the host-owned ODE right-hand side dy/dx = f(x, y).
//
// A System is borrowed exclusively by one driver for the duration of a run.
// The driver increments the evaluation counters itself; implementations
// should not.
type System interface {
	NY() int
	RHS(x float64, y, dydx []float64) Status
	InitialStepHint(x0 float64, y0 []float64) float64
	MaxStepHint(x0 float64, y0 []float64) float64
	Counters() *Counters
	Info() *RunInfo
}

// JacobianSystem is a System that can also evaluate the dense Jacobian
// df/dy (row-major, ny*ny) and the explicit derivative df/dx.
type JacobianSystem interface {
	System
	DenseJacobian(x float64, y, jac, dfdx []float64) Status
}

// Counters tracks host callback evaluations. Safe for concurrent reads.
type Counters struct {
	nfev atomic.Int64
	njev atomic.Int64
}

func (c *Counters) AddRHS()      { c.nfev.Add(1) }
func (c *Counters) AddJacobian() { c.njev.Add(1) }
func (c *Counters) NFev() int64  { return c.nfev.Load() }
func (c *Counters) NJev() int64  { return c.njev.Load() }
func (c *Counters) Reset()       { c.nfev.Store(0); c.njev.Store(0) }

// RunInfo holds the statistics a driver writes after a top-level call.
type RunInfo struct {
	Ints   map[string]int64
	Floats map[string]float64
}

func NewRunInfo() *RunInfo {
	return &RunInfo{
		Ints:   make(map[string]int64),
		Floats: make(map[string]float64),
	}
}

func (r *RunInfo) Clear() {
	clear(r.Ints)
	clear(r.Floats)
}

// Base provides counters, run info and default hints. Embed it in a host
// system and implement NY and RHS.
type Base struct {
	counters Counters
	info     *RunInfo
}

func (b *Base) Counters() *Counters { return &b.counters }

func (b *Base) Info() *RunInfo {
	if b.info == nil {
		b.info = NewRunInfo()
	}
	return b.info
}

func (b *Base) InitialStepHint(x0 float64, y0 []float64) float64 { return 0 }

func (b *Base) MaxStepHint(x0 float64, y0 []float64) float64 { return math.Inf(1) }

// RHSFunc and JacFunc are the closure forms of the host callbacks.
type (
	RHSFunc func(x float64, y, dydx []float64) Status
	JacFunc func(x float64, y, jac, dfdx []float64) Status
)

// FuncSystem adapts closures into a System. When Jac is nil the result
// does not satisfy JacobianSystem; use NewFuncSystem to get the right type.
type FuncSystem struct {
	Base
	N int
	F RHSFunc
}

func (f *FuncSystem) NY() int { return f.N }

func (f *FuncSystem) RHS(x float64, y, dydx []float64) Status { return f.F(x, y, dydx) }

type funcJacSystem struct {
	FuncSystem
	J JacFunc
}

func (f *funcJacSystem) DenseJacobian(x float64, y, jac, dfdx []float64) Status {
	return f.J(x, y, jac, dfdx)
}

// NewFuncSystem wraps rhs (and jac, which may be nil) as a System.
func NewFuncSystem(ny int, rhs RHSFunc, jac JacFunc) System {
	if jac == nil {
		return &FuncSystem{N: ny, F: rhs}
	}
	return &funcJacSystem{FuncSystem: FuncSystem{N: ny, F: rhs}, J: jac}
}
