// Package strike converts a strike rule into a concrete strike price.
//
// Supported rules:
//   - ATM            spot rounded to the strike interval
//   - ATM:+10        spot plus an absolute offset
//   - ATM:-5%        spot plus a percentage offset
//   - ABS:300, 300   literal strike
//   - {SPOT}*1.1     arithmetic on the spot price
//
// Results are rounded to the nearest strike interval when one is given.
package strike

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/option-pricing/internal/logger"
)

var (
	ErrInvalidStrikeExpression = errors.New("invalid strike expression")
	ErrNegativeStrike          = errors.New("strike resolves below zero")
)

// Resolve evaluates rule against spot. interval <= 0 disables rounding.
//
// Parameters:
//   - rule: strike rule, empty means ATM
//   - spot: underlying price at valuation
//   - interval: strike grid spacing (e.g. 5 for $5 strikes)
//
// Returns:
//   - float64: resolved strike, >= 0
//   - error: ErrInvalidStrikeExpression or ErrNegativeStrike
func Resolve(rule string, spot, interval float64) (float64, error) {
	expr := strings.ToUpper(strings.TrimSpace(rule))
	logger.Debugf("event=resolve_strike expr=%q spot=%.4f interval=%.4f", expr, spot, interval)

	var (
		target float64
		err    error
	)
	switch {
	case expr == "" || expr == "ATM":
		target = spot

	case strings.HasPrefix(expr, "ATM:"):
		target, err = resolveATMOffset(strings.TrimPrefix(expr, "ATM:"), spot)

	case strings.HasPrefix(expr, "ABS:"):
		target, err = strconv.ParseFloat(strings.TrimPrefix(expr, "ABS:"), 64)

	default:
		if v, perr := strconv.ParseFloat(expr, 64); perr == nil {
			target = v
		} else {
			target, err = evaluateSpotExpression(expr, spot)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeExpression, rule, err)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidStrikeExpression, rule)
	}

	strike := roundToInterval(target, interval)
	if strike < 0 {
		return 0, fmt.Errorf("%w: %s -> %.4f", ErrNegativeStrike, rule, strike)
	}
	return strike, nil
}

// resolveATMOffset applies an absolute (+10) or percentage (-5%) offset.
func resolveATMOffset(offset string, spot float64) (float64, error) {
	if strings.HasSuffix(offset, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(offset, "%"), 64)
		if err != nil {
			return 0, err
		}
		return math.Round((spot+spot*pct/100)*100) / 100, nil
	}

	abs, err := strconv.ParseFloat(offset, 64)
	if err != nil {
		return 0, err
	}
	return math.Round((spot+abs)*100) / 100, nil
}

// evaluateSpotExpression evaluates arithmetic with SPOT or {SPOT} bound to spot.
func evaluateSpotExpression(expr string, spot float64) (float64, error) {
	expr = strings.ReplaceAll(expr, "{SPOT}", "SPOT")
	if !strings.Contains(expr, "SPOT") {
		return 0, errors.New("expression must reference SPOT")
	}

	evalExpr, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, err
	}
	result, err := evalExpr.Evaluate(map[string]interface{}{"SPOT": spot})
	if err != nil {
		return 0, err
	}

	f, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("expression yields %T", result)
	}
	return f, nil
}

func roundToInterval(v, interval float64) float64 {
	if interval <= 0 {
		return v
	}
	return math.Round(v/interval) * interval
}
