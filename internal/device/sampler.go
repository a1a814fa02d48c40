package device

import (
	"math"
	"math/rand/v2"

	"dropcheck/internal/health"
)

// Sampler produces the lab values a simulated test reads.
type Sampler interface {
	Sample() health.LabValues
}

// RandomSampler draws plausible values around the reference ranges.
type RandomSampler struct {
	rng *rand.Rand
}

func NewRandomSampler() *RandomSampler {
	return &RandomSampler{}
}

// NewSeededSampler returns a RandomSampler with a reproducible sequence.
func NewSeededSampler(seed uint64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomSampler) float() float64 {
	if s.rng == nil {
		return rand.Float64()
	}
	return s.rng.Float64()
}

func (s *RandomSampler) Sample() health.LabValues {
	return health.LabValues{
		Hemoglobin: round1(10.5 + s.float()*6.0),
		Glucose:    math.Round(65 + s.float()*70),
		CRP:        round1(0.2 + s.float()*11.8),
	}
}

// FixedSampler always returns the same values.
type FixedSampler health.LabValues

func (f FixedSampler) Sample() health.LabValues {
	return health.LabValues(f)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
