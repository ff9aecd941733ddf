package metrics

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Stability is the fraction of samples whose components all stay within
// the threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(_ float64, y dynamo.State) {
	s.samples++
	if !y.IsValid() || y.MaxAbs() > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Peak is the largest component magnitude seen.
type Peak struct {
	max float64
}

func NewPeak() *Peak { return &Peak{} }

func (p *Peak) Name() string { return "peak" }

func (p *Peak) Observe(_ float64, y dynamo.State) {
	p.max = math.Max(p.max, y.MaxAbs())
}

func (p *Peak) Value() float64 { return p.max }
func (p *Peak) Reset()         { p.max = 0 }
