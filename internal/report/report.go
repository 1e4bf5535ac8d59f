package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-pricing/internal/pricing"
	"github.com/contactkeval/option-pricing/internal/valuation"
)

const (
	PricesFile = "prices.json"
	PathsFile  = "paths.csv"

	pricePlaces = 4
	greekPlaces = 6
)

// PriceReport is the on-disk form of a valuation.Result with prices rounded
// half away from zero.
type PriceReport struct {
	Ticker           string         `json:"ticker"`
	AsOf             string         `json:"as_of"`
	SpotDate         string         `json:"spot_date"`
	Spot             string         `json:"spot"`
	Strike           string         `json:"strike"`
	DaysToMaturity   int            `json:"days_to_maturity"`
	RiskFreeRate     string         `json:"risk_free_rate"`
	Volatility       string         `json:"volatility"`
	VolatilitySource string         `json:"volatility_source"`
	BlackScholes     *ClosedForm    `json:"black_scholes,omitempty"`
	MonteCarlo       *SimulatedForm `json:"monte_carlo,omitempty"`
}

type ClosedForm struct {
	Call       string            `json:"call"`
	Put        string            `json:"put"`
	CallGreeks map[string]string `json:"call_greeks,omitempty"`
	PutGreeks  map[string]string `json:"put_greeks,omitempty"`
}

type SimulatedForm struct {
	Call        string `json:"call"`
	CallStdErr  string `json:"call_std_err"`
	Put         string `json:"put"`
	PutStdErr   string `json:"put_std_err"`
	Simulations int    `json:"simulations"`
	Steps       int    `json:"steps"`
	Seed        uint64 `json:"seed"`
}

// NewPriceReport converts res for export.
func NewPriceReport(res *valuation.Result) PriceReport {
	out := PriceReport{
		Ticker:           res.Ticker,
		AsOf:             res.AsOf.Format("2006-01-02"),
		SpotDate:         res.SpotDate.Format("2006-01-02"),
		Spot:             fixed(res.Spot, pricePlaces),
		Strike:           fixed(res.Strike, pricePlaces),
		DaysToMaturity:   res.DaysToMaturity,
		RiskFreeRate:     fixed(res.RiskFreeRate, greekPlaces),
		Volatility:       fixed(res.Volatility, greekPlaces),
		VolatilitySource: res.VolatilitySource,
	}
	if bs := res.BlackScholes; bs != nil {
		out.BlackScholes = &ClosedForm{
			Call:       fixed(bs.Call, pricePlaces),
			Put:        fixed(bs.Put, pricePlaces),
			CallGreeks: greeks(bs.CallGreeks),
			PutGreeks:  greeks(bs.PutGreeks),
		}
	}
	if mc := res.MonteCarlo; mc != nil {
		out.MonteCarlo = &SimulatedForm{
			Call:        fixed(mc.Call.Price, pricePlaces),
			CallStdErr:  fixed(mc.Call.StdErr, pricePlaces),
			Put:         fixed(mc.Put.Price, pricePlaces),
			PutStdErr:   fixed(mc.Put.StdErr, pricePlaces),
			Simulations: mc.Simulations,
			Steps:       mc.Steps,
			Seed:        mc.Seed,
		}
	}
	return out
}

// WriteJSON writes prices.json into outdir, creating it if needed.
func WriteJSON(res *valuation.Result, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(NewPriceReport(res), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, PricesFile), b, 0644)
}

// WritePathsCSV writes one row per point of every sampled trajectory:
// path index, step index, price.
func WritePathsCSV(paths [][]float64, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(outdir, PathsFile))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"path", "step", "price"}); err != nil {
		return err
	}
	for i, path := range paths {
		for step, px := range path {
			row := []string{strconv.Itoa(i), strconv.Itoa(step), fixed(px, pricePlaces)}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("writing path %d: %w", i, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).Round(places).StringFixed(places)
}

func greeks(g *pricing.Greeks) map[string]string {
	if g == nil {
		return nil
	}
	return map[string]string{
		"delta": fixed(g.Delta, greekPlaces),
		"gamma": fixed(g.Gamma, greekPlaces),
		"vega":  fixed(g.Vega, greekPlaces),
		"theta": fixed(g.Theta, greekPlaces),
		"rho":   fixed(g.Rho, greekPlaces),
	}
}
