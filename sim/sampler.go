package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Sampler draws one value for a user-defined attribute.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// NormalSampler draws from a Gaussian distribution.
type NormalSampler struct {
	Mu, Sigma float64
}

func (s *NormalSampler) Sample(rng *rand.Rand) float64 {
	return rng.NormFloat64()*s.Sigma + s.Mu
}

// FixedSampler always returns the same value.
type FixedSampler struct {
	Value float64
}

func (s *FixedSampler) Sample(_ *rand.Rand) float64 {
	return s.Value
}

// BernoulliSampler returns 1 with probability P, otherwise 0.
type BernoulliSampler struct {
	P float64
}

func (s *BernoulliSampler) Sample(rng *rand.Rand) float64 {
	if rng.Float64() < s.P {
		return 1
	}
	return 0
}

// UniformSampler draws uniformly from [Low, High).
type UniformSampler struct {
	Low, High float64
}

func (s *UniformSampler) Sample(rng *rand.Rand) float64 {
	return s.Low + rng.Float64()*(s.High-s.Low)
}

// PoissonSampler draws from a Poisson distribution (Knuth's method).
type PoissonSampler struct {
	Lambda float64
}

func (s *PoissonSampler) Sample(rng *rand.Rand) float64 {
	limit := math.Exp(-s.Lambda)
	k := 0
	prod := rng.Float64()
	for prod > limit {
		k++
		prod *= rng.Float64()
	}
	return float64(k)
}

// ExponentialSampler draws from an exponential distribution with the
// given mean.
type ExponentialSampler struct {
	Mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() * s.Mean
}

// LogNormalSampler draws from a log-normal distribution where Mu and
// Sigma describe ln(X).
type LogNormalSampler struct {
	Mu, Sigma float64
}

func (s *LogNormalSampler) Sample(rng *rand.Rand) float64 {
	return math.Exp(s.Mu + s.Sigma*rng.NormFloat64())
}

// ChiSquareSampler draws from a chi-square distribution with K degrees
// of freedom. K may be fractional; sampling goes through the gamma
// distribution (chi2(k) = 2 * Gamma(k/2, 1)).
type ChiSquareSampler struct {
	K float64
}

func (s *ChiSquareSampler) Sample(rng *rand.Rand) float64 {
	return 2 * gammaSample(s.K/2, rng)
}

// StudentTSampler draws from Student's t-distribution with K degrees of
// freedom.
type StudentTSampler struct {
	K float64
}

func (s *StudentTSampler) Sample(rng *rand.Rand) float64 {
	chi2 := 2 * gammaSample(s.K/2, rng)
	if chi2 == 0 {
		return 0
	}
	return rng.NormFloat64() / math.Sqrt(chi2/s.K)
}

// BinomialSampler draws the number of successes in N Bernoulli trials
// with success probability P.
type BinomialSampler struct {
	N int
	P float64
}

func (s *BinomialSampler) Sample(rng *rand.Rand) float64 {
	k := 0
	for i := 0; i < s.N; i++ {
		if rng.Float64() < s.P {
			k++
		}
	}
	return float64(k)
}

// userSampler adapts a registered DistFunc to the Sampler interface.
type userSampler struct {
	fn     DistFunc
	params []float64
}

func (s *userSampler) Sample(rng *rand.Rand) float64 {
	return s.fn(rng, s.params)
}

// gammaSample draws from Gamma(shape, 1) using the Marsaglia-Tsang
// squeeze method. Shapes below 1 are boosted via the standard
// Gamma(a) = Gamma(a+1) * U^(1/a) identity.
func gammaSample(shape float64, rng *rand.Rand) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return gammaSample(shape+1, rng) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// paramCount maps predefined distribution identifiers to the number of
// parameters they require.
var paramCount = map[string]int{
	"n": 2, // normal(mu, sigma)
	"f": 1, // fixed(value)
	"b": 1, // bernoulli(p)
	"u": 2, // uniform(low, high)
	"p": 1, // poisson(lambda)
	"e": 1, // exponential(mean)
	"l": 2, // lognormal(mu, sigma)
	"c": 1, // chi-square(k)
	"t": 1, // student-t(k)
	"i": 2, // binomial(n, p)
}

// newSampler creates a Sampler from an attribute spec. User-registered
// identifiers from the registry take over where the predefined catalog
// ends; predefined identifiers cannot be shadowed (see
// Registry.RegisterDistribution).
func newSampler(spec AttrSpec, reg *Registry) (Sampler, error) {
	if want, ok := paramCount[spec.Ident]; ok && len(spec.Params) != want {
		return nil, fmt.Errorf("distribution %q requires %d parameter(s), got %d",
			spec.Ident, want, len(spec.Params))
	}
	switch spec.Ident {
	case "n":
		return &NormalSampler{Mu: spec.Params[0], Sigma: spec.Params[1]}, nil
	case "f":
		return &FixedSampler{Value: spec.Params[0]}, nil
	case "b":
		return &BernoulliSampler{P: spec.Params[0]}, nil
	case "u":
		return &UniformSampler{Low: spec.Params[0], High: spec.Params[1]}, nil
	case "p":
		return &PoissonSampler{Lambda: spec.Params[0]}, nil
	case "e":
		return &ExponentialSampler{Mean: spec.Params[0]}, nil
	case "l":
		return &LogNormalSampler{Mu: spec.Params[0], Sigma: spec.Params[1]}, nil
	case "c":
		return &ChiSquareSampler{K: spec.Params[0]}, nil
	case "t":
		return &StudentTSampler{K: spec.Params[0]}, nil
	case "i":
		return &BinomialSampler{N: int(spec.Params[0]), P: spec.Params[1]}, nil
	default:
		if reg != nil {
			if fn, ok := reg.Distribution(spec.Ident); ok {
				return &userSampler{fn: fn, params: spec.Params}, nil
			}
		}
		return nil, fmt.Errorf("unknown distribution identifier %q", spec.Ident)
	}
}
