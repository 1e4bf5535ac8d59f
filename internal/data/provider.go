// Package data supplies historical daily bars for an underlying.
//
// Providers form a fallback chain: each may carry a secondary Provider that
// is asked when its own source fails or returns nothing. The chain built by
// the CLI is
//
//	redis cache -> massive -> local CSV -> synthetic
//
// with every link optional except the last.
package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/option-pricing/internal/logger"
)

var ErrNoBars = errors.New("no bars")

// DefaultVolatility is returned by AnnualizedVolatility when the history is
// too short to estimate anything.
const DefaultVolatility = 0.30

// TradingDaysPerYear annualizes daily log-return volatility.
const TradingDaysPerYear = 252.0

// Provider supplies market data.
type Provider interface {
	Name() string
	Secondary() Provider
	GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error)
}

type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // target, else the next available date
	MatchLower   DateMatchType = "lower"   // target, else the last available date before it
	MatchNearest DateMatchType = "nearest" // closest available date
)

// Bar is one daily OHLCV record.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// fallback asks p's secondary after p itself failed.
func fallback(ctx context.Context, p Provider, ticker string, fromDate, toDate time.Time, cause error) ([]Bar, error) {
	next := p.Secondary()
	if next == nil {
		return nil, cause
	}
	logger.Infof("event=provider_fallback from=%s to=%s ticker=%s cause=%q", p.Name(), next.Name(), ticker, cause)
	return next.GetBars(ctx, ticker, fromDate, toDate)
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// SortBars orders bars by date in place.
func SortBars(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// Closes extracts closing prices in bar order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		out = append(out, b.Close)
	}
	return out
}

// LastClose is the spot price used for valuation: the close of the latest bar.
func LastClose(bars []Bar) (float64, time.Time, error) {
	if len(bars) == 0 {
		return 0, time.Time{}, ErrNoBars
	}
	last := bars[0]
	for _, b := range bars[1:] {
		if b.Date.After(last.Date) {
			last = b
		}
	}
	return last.Close, last.Date, nil
}

// SpotAt returns the close of the bar matched to asOf under mode.
func SpotAt(bars []Bar, asOf time.Time, mode DateMatchType) (float64, time.Time, error) {
	if len(bars) == 0 {
		return 0, time.Time{}, ErrNoBars
	}
	byDate := make(map[time.Time]Bar, len(bars))
	dates := make([]time.Time, 0, len(bars))
	for _, b := range bars {
		d := truncateDay(b.Date)
		byDate[d] = b
		dates = append(dates, d)
	}
	d := MatchBarDate(truncateDay(asOf), dates, mode)
	if d.IsZero() {
		return 0, time.Time{}, fmt.Errorf("%w: none matching %s (%s)", ErrNoBars, asOf.Format("2006-01-02"), mode)
	}
	b := byDate[d]
	return b.Close, b.Date, nil
}

// AnnualizedVolatility estimates sigma from daily closes as the sample
// standard deviation of log returns scaled by sqrt(252).
func AnnualizedVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return DefaultVolatility
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	if len(rets) < 2 {
		return DefaultVolatility
	}
	return stat.StdDev(rets, nil) * math.Sqrt(TradingDaysPerYear)
}

// MatchBarDate picks a date from dates relative to d.
func MatchBarDate(d time.Time, dates []time.Time, mode DateMatchType) time.Time {

	var (
		exact  time.Time
		lower  time.Time
		higher time.Time
	)

	// default to MatchNearest
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
	default:
		mode = MatchNearest
	}

	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for _, dt := range sorted {
		if dt.Equal(d) {
			exact = dt
		}
		if dt.Before(d) {
			lower = dt // keeps last < d
		}
		if dt.After(d) && higher.IsZero() {
			higher = dt
		}
	}

	switch mode {

	case MatchExact:
		return exact

	case MatchLower:
		if !exact.IsZero() {
			return exact
		}
		return lower

	case MatchHigher:
		if !exact.IsZero() {
			return exact
		}
		return higher

	case MatchNearest:
		if !exact.IsZero() {
			return exact
		}
		switch {
		case !lower.IsZero() && !higher.IsZero():
			if d.Sub(lower) <= higher.Sub(d) {
				return lower
			}
			return higher
		case !lower.IsZero():
			return lower
		case !higher.IsZero():
			return higher
		}
	}

	return time.Time{}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func inRange(d, fromDate, toDate time.Time) bool {
	d = truncateDay(d)
	return !d.Before(truncateDay(fromDate)) && !d.After(truncateDay(toDate))
}
