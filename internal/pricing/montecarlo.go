package pricing

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/option-pricing/internal/simulate"
)

// SimulationResult is the output of MonteCarloEngine.SimulatePrices.
type SimulationResult = simulate.Result

// Estimate is a Monte Carlo price together with its standard error.
type Estimate struct {
	Price       float64 `json:"price"`
	StdErr      float64 `json:"std_err"`
	Simulations int     `json:"simulations"`
}

// MonteCarloEngine prices European options by simulating terminal prices
// under risk-neutral GBM and discounting the mean payoff.
//
// Lifecycle: Price and Estimate fail with ErrNotSimulated until
// SimulatePrices has succeeded once. Every SimulatePrices call replaces the
// stored result. Parameters are fixed at construction, so stored paths always
// belong to the engine's own parameters.
//
// A MonteCarloEngine is not safe for concurrent use.
type MonteCarloEngine struct {
	params OptionParameters
	sim    *simulate.Simulator
	result *SimulationResult
}

// NewMonteCarloEngine binds the engine to p. Options configure the path
// simulator (seed, steps, retained paths, workers).
func NewMonteCarloEngine(p OptionParameters, opts ...simulate.Option) *MonteCarloEngine {
	return &MonteCarloEngine{
		params: p,
		sim:    simulate.New(opts...),
	}
}

// Params returns the parameters the engine was built with.
func (e *MonteCarloEngine) Params() OptionParameters { return e.params }

// SimulatePrices draws numSimulations terminal prices and stores them,
// discarding any earlier result. Runtime is linear in numSimulations; values
// between 1e2 and 1e6 are practical.
//
// Returns ErrInvalidParameter for numSimulations <= 0 or bad parameters, and
// the context error if ctx is cancelled mid-run. A failed run leaves the
// previous result in place.
func (e *MonteCarloEngine) SimulatePrices(ctx context.Context, numSimulations int) (*SimulationResult, error) {
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	if numSimulations <= 0 {
		return nil, &ParamError{Field: "num_simulations", Value: numSimulations, Reason: "must be > 0"}
	}

	res, err := e.sim.Run(ctx, simulate.GBM{
		Spot:     e.params.spot,
		Rate:     e.params.rate,
		Sigma:    e.params.sigma,
		Maturity: e.params.Maturity(),
	}, numSimulations)
	if err != nil {
		return nil, err
	}
	e.result = res
	return res, nil
}

// Simulated reports whether a result is available for pricing.
func (e *MonteCarloEngine) Simulated() bool { return e.result != nil }

// Price returns exp(-rT) * mean(payoff) over the stored terminal prices.
func (e *MonteCarloEngine) Price(kind OptionKind) (float64, error) {
	payoffs, err := e.payoffs(kind)
	if err != nil {
		return 0, err
	}
	price := e.params.discount() * stat.Mean(payoffs, nil)
	if !finite(price) {
		return 0, fmt.Errorf("%w: %s %s", ErrNonFinitePrice, kind, e.params)
	}
	return price, nil
}

// Estimate returns the price together with its standard error
// exp(-rT) * sd(payoff) / sqrt(n).
func (e *MonteCarloEngine) Estimate(kind OptionKind) (Estimate, error) {
	payoffs, err := e.payoffs(kind)
	if err != nil {
		return Estimate{}, err
	}
	df := e.params.discount()
	n := len(payoffs)

	est := Estimate{Simulations: n}
	if n < 2 {
		est.Price = df * payoffs[0]
	} else {
		mean, sd := stat.MeanStdDev(payoffs, nil)
		est.Price = df * mean
		est.StdErr = df * stat.StdErr(sd, float64(n))
	}
	if !finite(est.Price) || !finite(est.StdErr) {
		return Estimate{}, fmt.Errorf("%w: %s %s", ErrNonFinitePrice, kind, e.params)
	}
	return est, nil
}

// Paths returns a copy of the stored terminal prices, or nil before the
// first simulation.
func (e *MonteCarloEngine) Paths() []float64 {
	if e.result == nil {
		return nil
	}
	return append([]float64(nil), e.result.Terminal...)
}

// SamplePaths returns up to n stored trajectories for plotting.
func (e *MonteCarloEngine) SamplePaths(n int) [][]float64 {
	if e.result == nil {
		return nil
	}
	return e.result.Sample(n)
}

func (e *MonteCarloEngine) payoffs(kind OptionKind) ([]float64, error) {
	if err := kind.check(); err != nil {
		return nil, err
	}
	if e.result == nil || e.result.Len() == 0 {
		return nil, ErrNotSimulated
	}

	K := e.params.strike
	out := make([]float64, e.result.Len())
	for i, st := range e.result.Terminal {
		if kind == Call {
			out[i] = math.Max(st-K, 0)
		} else {
			out[i] = math.Max(K-st, 0)
		}
	}
	return out, nil
}
