// Package valuation turns a Config into option prices. It fetches history,
// derives spot and volatility, resolves the strike and runs the selected
// pricing engines.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/contactkeval/option-pricing/internal/data"
	"github.com/contactkeval/option-pricing/internal/logger"
	"github.com/contactkeval/option-pricing/internal/pricing"
	"github.com/contactkeval/option-pricing/internal/simulate"
	"github.com/contactkeval/option-pricing/internal/strike"
)

const (
	VolatilityConfigured = "configured"
	VolatilityHistorical = "historical"
)

type Engine struct {
	cfg  *Config
	prov data.Provider
	now  func() time.Time
}

// BlackScholesResult holds closed-form prices.
type BlackScholesResult struct {
	Call       float64         `json:"call"`
	Put        float64         `json:"put"`
	CallGreeks *pricing.Greeks `json:"call_greeks,omitempty"`
	PutGreeks  *pricing.Greeks `json:"put_greeks,omitempty"`
}

// MonteCarloResult holds simulated prices and the run settings that produced
// them.
type MonteCarloResult struct {
	Call        pricing.Estimate `json:"call"`
	Put         pricing.Estimate `json:"put"`
	Simulations int              `json:"simulations"`
	Steps       int              `json:"steps"`
	Seed        uint64           `json:"seed"`
	Elapsed     time.Duration    `json:"-"`
}

// Result is the outcome of one valuation.
type Result struct {
	Ticker           string              `json:"ticker"`
	AsOf             time.Time           `json:"as_of"`
	SpotDate         time.Time           `json:"spot_date"`
	Spot             float64             `json:"spot"`
	Strike           float64             `json:"strike"`
	DaysToMaturity   int                 `json:"days_to_maturity"`
	RiskFreeRate     float64             `json:"risk_free_rate"`
	Volatility       float64             `json:"volatility"`
	VolatilitySource string              `json:"volatility_source"`
	BlackScholes     *BlackScholesResult `json:"black_scholes,omitempty"`
	MonteCarlo       *MonteCarloResult   `json:"monte_carlo,omitempty"`
	Paths            [][]float64         `json:"-"`
}

// NewEngine binds cfg to prov. cfg is validated and defaulted by Run.
func NewEngine(cfg *Config, prov data.Provider) *Engine {
	return &Engine{cfg: cfg, prov: prov, now: time.Now}
}

// Run executes one valuation.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// fill defaults
	cfg.applyDefaults()

	asOf, err := cfg.asOfDate(e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: as_of: %v", ErrInvalidConfig, err)
	}

	// fetch bars
	from := asOf.AddDate(0, 0, -cfg.HistoryDays)
	bars, err := e.prov.GetBars(ctx, cfg.Ticker, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", cfg.Ticker, err)
	}
	data.SortBars(bars)

	spot, spotDate, err := data.SpotAt(bars, asOf, cfg.DateMatchType)
	if err != nil {
		return nil, fmt.Errorf("spot for %s: %w", cfg.Ticker, err)
	}
	logger.Infof("event=spot ticker=%s date=%s spot=%.4f bars=%d", cfg.Ticker, spotDate.Format(dateLayout), spot, len(bars))

	// volatility: configured, else historical up to the spot date
	sigma, sigmaSource := cfg.Volatility, VolatilityConfigured
	if sigma == 0 {
		var hist []data.Bar
		for _, b := range bars {
			if !b.Date.After(spotDate) {
				hist = append(hist, b)
			}
		}
		sigma, sigmaSource = data.AnnualizedVolatility(data.Closes(hist)), VolatilityHistorical
	}
	logger.Infof("event=volatility source=%s sigma=%.2f%%", sigmaSource, sigma*100)

	k, err := strike.Resolve(cfg.StrikeRule, spot, cfg.StrikeInterval)
	if err != nil {
		return nil, err
	}

	days, err := cfg.daysToMaturity(asOf)
	if err != nil {
		return nil, err
	}

	params, err := pricing.NewOptionParameters(spot, k, days, cfg.RiskFreeRate, sigma)
	if err != nil {
		return nil, err
	}
	logger.Debugf("event=params %s", params)

	res := &Result{
		Ticker:           cfg.Ticker,
		AsOf:             asOf,
		SpotDate:         spotDate,
		Spot:             spot,
		Strike:           k,
		DaysToMaturity:   days,
		RiskFreeRate:     cfg.RiskFreeRate,
		Volatility:       sigma,
		VolatilitySource: sigmaSource,
	}

	if cfg.runsBlackScholes() {
		bs, err := e.blackScholes(params)
		if err != nil {
			return nil, err
		}
		res.BlackScholes = bs
	}
	if cfg.runsMonteCarlo() {
		mc, paths, err := e.monteCarlo(ctx, params)
		if err != nil {
			return nil, err
		}
		res.MonteCarlo = mc
		res.Paths = paths
	}
	return res, nil
}

func (e *Engine) blackScholes(p pricing.OptionParameters) (*BlackScholesResult, error) {
	eng := pricing.NewBlackScholesEngine(p)
	call, err := eng.Price(pricing.Call)
	if err != nil {
		return nil, err
	}
	put, err := eng.Price(pricing.Put)
	if err != nil {
		return nil, err
	}
	out := &BlackScholesResult{Call: call, Put: put}

	if e.cfg.Greeks {
		cg, err := eng.Greeks(pricing.Call)
		if err != nil {
			return nil, err
		}
		pg, err := eng.Greeks(pricing.Put)
		if err != nil {
			return nil, err
		}
		out.CallGreeks, out.PutGreeks = &cg, &pg
	}
	logger.Infof("event=black_scholes call=%.4f put=%.4f", call, put)
	return out, nil
}

func (e *Engine) monteCarlo(ctx context.Context, p pricing.OptionParameters) (*MonteCarloResult, [][]float64, error) {
	cfg := e.cfg
	opts := []simulate.Option{
		simulate.WithSteps(cfg.Steps),
		simulate.WithKeepPaths(cfg.SamplePaths),
	}
	if cfg.Workers > 0 {
		opts = append(opts, simulate.WithWorkers(cfg.Workers))
	}
	if cfg.Seed != nil {
		opts = append(opts, simulate.WithSeed(*cfg.Seed))
	}
	eng := pricing.NewMonteCarloEngine(p, opts...)

	start := time.Now()
	sim, err := eng.SimulatePrices(ctx, cfg.Simulations)
	if err != nil {
		return nil, nil, fmt.Errorf("monte carlo: %w", err)
	}
	elapsed := time.Since(start)

	call, err := eng.Estimate(pricing.Call)
	if err != nil {
		return nil, nil, err
	}
	put, err := eng.Estimate(pricing.Put)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof(
		"event=monte_carlo n=%d steps=%d call=%.4f±%.4f put=%.4f±%.4f elapsed=%v",
		sim.Len(), sim.Steps, call.Price, call.StdErr, put.Price, put.StdErr, elapsed,
	)

	return &MonteCarloResult{
		Call:        call,
		Put:         put,
		Simulations: sim.Len(),
		Steps:       sim.Steps,
		Seed:        sim.Seed,
		Elapsed:     elapsed,
	}, eng.SamplePaths(cfg.SamplePaths), nil
}
