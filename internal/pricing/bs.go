package pricing

import (
	"math"
)

// BlackScholesEngine prices European options with the closed-form
// Black-Scholes formula (no dividends).
type BlackScholesEngine struct {
	params OptionParameters
}

// Greeks are the closed-form sensitivities of a Black-Scholes price.
//
// Vega is per unit of volatility, Theta per year and Rho per unit of rate;
// callers scale them (e.g. /100, /365) for display.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// NewBlackScholesEngine binds the engine to an immutable parameter set.
func NewBlackScholesEngine(p OptionParameters) *BlackScholesEngine {
	return &BlackScholesEngine{params: p}
}

// Params returns the parameters the engine was built with.
func (e *BlackScholesEngine) Params() OptionParameters { return e.params }

// Price calculates the theoretical price of a European option.
//
//	call = S*N(d1) - K*e^(-rT)*N(d2)
//	put  = K*e^(-rT)*N(-d2) - S*N(-d1)
//
// The put is evaluated from its own formula, not through put-call parity.
//
// Returns:
//   - ErrInvalidParameter if the parameters were not built by NewOptionParameters
//   - ErrUnsupportedOptionKind for any kind other than Call or Put
func (e *BlackScholesEngine) Price(kind OptionKind) (float64, error) {
	if err := e.params.Validate(); err != nil {
		return 0, err
	}
	if err := kind.check(); err != nil {
		return 0, err
	}

	p := e.params
	d1, d2 := calcD1D2(p)
	df := p.discount()

	if kind == Call {
		return p.spot*normCDF(d1) - p.strike*df*normCDF(d2), nil
	}
	return p.strike*df*normCDF(-d2) - p.spot*normCDF(-d1), nil
}

// Greeks returns delta, gamma, vega, theta and rho for the given kind.
func (e *BlackScholesEngine) Greeks(kind OptionKind) (Greeks, error) {
	if err := e.params.Validate(); err != nil {
		return Greeks{}, err
	}
	if err := kind.check(); err != nil {
		return Greeks{}, err
	}

	p := e.params
	T := p.Maturity()
	sqrtT := math.Sqrt(T)
	d1, d2 := calcD1D2(p)
	df := p.discount()
	pdf := normPDF(d1)

	g := Greeks{
		Gamma: pdf / (p.spot * p.sigma * sqrtT),
		Vega:  p.spot * pdf * sqrtT,
	}
	decay := -p.spot * pdf * p.sigma / (2 * sqrtT)

	if kind == Call {
		g.Delta = normCDF(d1)
		g.Theta = decay - p.rate*p.strike*df*normCDF(d2)
		g.Rho = p.strike * T * df * normCDF(d2)
	} else {
		g.Delta = normCDF(d1) - 1
		g.Theta = decay + p.rate*p.strike*df*normCDF(-d2)
		g.Rho = -p.strike * T * df * normCDF(-d2)
	}
	return g, nil
}

// calcD1D2 returns
//
//	d1 = (ln(S/K) + (r + sigma^2/2)T) / (sigma*sqrt(T))
//	d2 = d1 - sigma*sqrt(T)
//
// K = 0 yields d1 = d2 = +Inf, which the CDF maps to exactly 1.
func calcD1D2(p OptionParameters) (float64, float64) {
	T := p.Maturity()
	volT := p.sigma * math.Sqrt(T)
	d1 := (math.Log(p.spot/p.strike) + (p.rate+0.5*p.sigma*p.sigma)*T) / volT
	return d1, d1 - volT
}
