// Package pricing values European call and put options.
//
// Two engines share one immutable parameter bundle:
//   - BlackScholesEngine evaluates the closed-form Black-Scholes formula
//   - MonteCarloEngine simulates terminal prices under risk-neutral GBM and
//     discounts the mean payoff
//
// Both engines validate their inputs at the call boundary and never return
// NaN or Inf as a price.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DaysPerYear converts calendar days to years.
const DaysPerYear = 365.0

// maxExponent bounds |r|*T and sigma^2*T so that exp stays finite.
const maxExponent = 700.0

//
// ==========================
// Error taxonomy
// ==========================
//

var (
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrUnsupportedOptionKind = errors.New("unsupported option kind")
	ErrNotSimulated          = errors.New("prices not simulated")
	ErrNonFinitePrice        = errors.New("price is not finite")
)

// ParamError names the input that failed validation.
// errors.Is(err, ErrInvalidParameter) holds for every ParamError.
type ParamError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s=%v %s", ErrInvalidParameter, e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

//
// ==========================
// Option kind
// ==========================
//

// OptionKind selects the payoff direction. The zero value is not a valid kind.
type OptionKind int

const (
	Call OptionKind = iota + 1
	Put
)

func (k OptionKind) String() string {
	switch k {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return fmt.Sprintf("OptionKind(%d)", int(k))
}

// Valid reports whether k is Call or Put.
func (k OptionKind) Valid() bool { return k == Call || k == Put }

func (k OptionKind) check() error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedOptionKind, int(k))
	}
	return nil
}

// ParseOptionKind accepts "call", "c", "call option", "put", "p" and
// "put option" in any case.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "call option":
		return Call, nil
	case "put", "p", "put option":
		return Put, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedOptionKind, s)
}

func (k OptionKind) MarshalText() ([]byte, error) {
	if err := k.check(); err != nil {
		return nil, err
	}
	return []byte(k.String()), nil
}

func (k *OptionKind) UnmarshalText(b []byte) error {
	v, err := ParseOptionKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

//
// ==========================
// Option parameters
// ==========================
//

// OptionParameters is the immutable input shared by both engines.
// Build it with NewOptionParameters; fields cannot change afterwards.
type OptionParameters struct {
	spot   float64
	strike float64
	days   int
	rate   float64
	sigma  float64
}

// NewOptionParameters validates and bundles the pricing inputs.
//
// Parameters:
//   - spot: current underlying price, > 0
//   - strike: contract strike, >= 0
//   - daysToMaturity: calendar days until expiry, > 0
//   - riskFreeRate: continuously compounded annual rate as a decimal (0.10 = 10%)
//   - sigma: annualized volatility as a decimal, > 0
//
// Returns a *ParamError wrapping ErrInvalidParameter for the first bad field.
func NewOptionParameters(spot, strike float64, daysToMaturity int, riskFreeRate, sigma float64) (OptionParameters, error) {
	p := OptionParameters{
		spot:   spot,
		strike: strike,
		days:   daysToMaturity,
		rate:   riskFreeRate,
		sigma:  sigma,
	}
	if err := p.Validate(); err != nil {
		return OptionParameters{}, err
	}
	return p, nil
}

// Validate re-checks every field. The zero value fails on spot_price.
func (p OptionParameters) Validate() error {
	switch {
	case !finite(p.spot) || p.spot <= 0:
		return &ParamError{Field: "spot_price", Value: p.spot, Reason: "must be > 0"}
	case !finite(p.strike) || p.strike < 0:
		return &ParamError{Field: "strike_price", Value: p.strike, Reason: "must be >= 0"}
	case p.days <= 0:
		return &ParamError{Field: "days_to_maturity", Value: p.days, Reason: "must be > 0"}
	case !finite(p.rate):
		return &ParamError{Field: "risk_free_rate", Value: p.rate, Reason: "must be finite"}
	case !finite(p.sigma) || p.sigma <= 0:
		return &ParamError{Field: "volatility", Value: p.sigma, Reason: "must be > 0"}
	case math.Abs(p.rate)*p.Maturity() > maxExponent:
		return &ParamError{Field: "risk_free_rate", Value: p.rate, Reason: fmt.Sprintf("|rate|*years must be <= %g", maxExponent)}
	case p.sigma*p.sigma*p.Maturity() > maxExponent:
		return &ParamError{Field: "volatility", Value: p.sigma, Reason: fmt.Sprintf("sigma^2*years must be <= %g", maxExponent)}
	}
	return nil
}

func (p OptionParameters) Spot() float64 { return p.spot }
func (p OptionParameters) Strike() float64 { return p.strike }
func (p OptionParameters) DaysToMaturity() int { return p.days }
func (p OptionParameters) RiskFreeRate() float64 { return p.rate }
func (p OptionParameters) Volatility() float64 { return p.sigma }

// Maturity is the time to expiry in years.
func (p OptionParameters) Maturity() float64 { return float64(p.days) / DaysPerYear }

// discount is e^(-rT).
func (p OptionParameters) discount() float64 { return math.Exp(-p.rate * p.Maturity()) }

func (p OptionParameters) String() string {
	return fmt.Sprintf("S=%.4f K=%.4f days=%d r=%.4f sigma=%.4f", p.spot, p.strike, p.days, p.rate, p.sigma)
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
