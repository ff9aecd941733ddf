package metrics

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// StepSize is the mean absolute distance between consecutive samples.
type StepSize struct {
	name    string
	sum     float64
	last    float64
	samples int
}

func NewStepSize() *StepSize {
	return &StepSize{
		name: "mean_step",
	}
}

func (s *StepSize) Name() string {
	return s.name
}

func (s *StepSize) Observe(x float64, _ dynamo.State) {
	if s.samples > 0 {
		s.sum += math.Abs(x - s.last)
	}
	s.last = x
	s.samples++
}

func (s *StepSize) Value() float64 {
	if s.samples < 2 {
		return 0
	}
	return s.sum / float64(s.samples-1)
}

func (s *StepSize) Reset() {
	s.sum = 0
	s.samples = 0
}
