package metrics

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Energetic is a system with a conserved or dissipated energy.
type Energetic interface {
	Energy(y []float64) float64
}

// EnergyDrift is the largest relative energy change from the first sample.
type EnergyDrift struct {
	name          string
	sys           Energetic
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(sys Energetic) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		sys:  sys,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(_ float64, y dynamo.State) {
	energy := e.sys.Energy(y)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	drift := math.Abs(energy - e.initialEnergy)
	if e.initialEnergy != 0 {
		drift /= math.Abs(e.initialEnergy)
	}
	e.maxDrift = math.Max(e.maxDrift, drift)
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
