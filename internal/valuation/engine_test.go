package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-pricing/internal/data"
	"github.com/contactkeval/option-pricing/internal/pricing"
	"github.com/contactkeval/option-pricing/internal/strike"
)

var fixedNow = time.Date(2025, 1, 15, 18, 0, 0, 0, time.UTC)

func seed(v uint64) *uint64 { return &v }

func newTestEngine(cfg *Config, prov data.Provider) *Engine {
	e := NewEngine(cfg, prov)
	e.now = func() time.Time { return fixedNow }
	return e
}

func synthetic() data.Provider {
	return data.NewSyntheticProvider(data.SyntheticConfig{Seed: 17})
}

// failingProvider always errors.
type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Secondary() data.Provider { return nil }
func (failingProvider) GetBars(context.Context, string, time.Time, time.Time) ([]data.Bar, error) {
	return nil, errors.New("upstream down")
}

func TestRunBothModels(t *testing.T) {
	cfg := &Config{
		Ticker:         "SPY",
		StrikeRule:     "ATM",
		DaysToMaturity: 180,
		RiskFreeRate:   0.05,
		Volatility:     0.25,
		Simulations:    50_000,
		SamplePaths:    5,
		Steps:          4,
		Seed:           seed(1),
		Greeks:         true,
	}
	res, err := newTestEngine(cfg, synthetic()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "SPY", res.Ticker)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), res.AsOf)
	assert.Equal(t, res.AsOf, res.SpotDate)
	assert.Greater(t, res.Spot, 0.0)
	assert.Equal(t, res.Spot, res.Strike)
	assert.Equal(t, 180, res.DaysToMaturity)
	assert.Equal(t, VolatilityConfigured, res.VolatilitySource)

	require.NotNil(t, res.BlackScholes)
	require.NotNil(t, res.BlackScholes.CallGreeks)
	require.NotNil(t, res.BlackScholes.PutGreeks)
	assert.Greater(t, res.BlackScholes.Call, res.BlackScholes.Put)

	require.NotNil(t, res.MonteCarlo)
	mc := res.MonteCarlo
	assert.Equal(t, 50_000, mc.Simulations)
	assert.Equal(t, 4, mc.Steps)
	assert.Equal(t, uint64(1), mc.Seed)
	assert.InDelta(t, res.BlackScholes.Call, mc.Call.Price, 5*mc.Call.StdErr)
	assert.InDelta(t, res.BlackScholes.Put, mc.Put.Price, 5*mc.Put.StdErr)

	require.Len(t, res.Paths, 5)
	for _, p := range res.Paths {
		require.Len(t, p, 5)
		assert.Equal(t, res.Spot, p[0])
	}
}

func TestRunMatchesDirectPricing(t *testing.T) {
	cfg := &Config{
		Ticker:         "AAPL",
		AsOf:           "2025-01-10",
		StrikeRule:     "ATM:+5%",
		DaysToMaturity: 90,
		RiskFreeRate:   0.03,
		Volatility:     0.30,
		Model:          ModelBlackScholes,
	}
	res, err := newTestEngine(cfg, synthetic()).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.MonteCarlo)
	assert.Nil(t, res.Paths)

	wantStrike, err := strike.Resolve("ATM:+5%", res.Spot, 0)
	require.NoError(t, err)
	assert.Equal(t, wantStrike, res.Strike)

	p, err := pricing.NewOptionParameters(res.Spot, res.Strike, 90, 0.03, 0.30)
	require.NoError(t, err)
	call, err := pricing.NewBlackScholesEngine(p).Price(pricing.Call)
	require.NoError(t, err)
	assert.Equal(t, call, res.BlackScholes.Call)
	assert.Nil(t, res.BlackScholes.CallGreeks)
}

func TestRunHistoricalVolatility(t *testing.T) {
	cfg := &Config{Ticker: "QQQ", Model: ModelBlackScholes, HistoryDays: 730}
	prov := synthetic()
	res, err := newTestEngine(cfg, prov).Run(context.Background())
	require.NoError(t, err)

	bars, err := prov.GetBars(context.Background(), "QQQ", res.AsOf.AddDate(0, 0, -730), res.AsOf)
	require.NoError(t, err)

	assert.Equal(t, VolatilityHistorical, res.VolatilitySource)
	assert.Equal(t, data.AnnualizedVolatility(data.Closes(bars)), res.Volatility)
	assert.Equal(t, DefaultDaysToMaturity, res.DaysToMaturity)
}

func TestRunSeededIsReproducible(t *testing.T) {
	run := func() *Result {
		cfg := &Config{
			Ticker: "SPY", Volatility: 0.2, Model: ModelMonteCarlo,
			Simulations: 20_000, Seed: seed(77), Workers: 3,
		}
		res, err := newTestEngine(cfg, synthetic()).Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.MonteCarlo.Call, b.MonteCarlo.Call)
	assert.Equal(t, a.MonteCarlo.Put, b.MonteCarlo.Put)
	assert.Nil(t, a.BlackScholes)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		prov data.Provider
		want error
	}{
		{"missing ticker", Config{}, synthetic(), ErrInvalidConfig},
		{"unknown model", Config{Ticker: "SPY", Model: "binomial"}, synthetic(), ErrInvalidConfig},
		{"negative simulations", Config{Ticker: "SPY", Simulations: -5}, synthetic(), ErrInvalidConfig},
		{"bad expiry format", Config{Ticker: "SPY", Expiry: "14/07/2025"}, synthetic(), ErrInvalidConfig},
		{"expiry and days", Config{Ticker: "SPY", Expiry: "2025-07-14", DaysToMaturity: 30}, synthetic(), ErrInvalidConfig},
		{"expired option", Config{Ticker: "SPY", Expiry: "2025-01-15", Volatility: 0.2}, synthetic(), pricing.ErrInvalidParameter},
		{"bad strike rule", Config{Ticker: "SPY", StrikeRule: "DELTA:30", Volatility: 0.2}, synthetic(), strike.ErrInvalidStrikeExpression},
		{"no bars before as_of", Config{Ticker: "SPY", AsOf: "2025-01-04", HistoryDays: 1, DateMatchType: data.MatchExact}, synthetic(), data.ErrNoBars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			_, err := newTestEngine(&cfg, tt.prov).Run(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := newTestEngine(&Config{Ticker: "SPY"}, failingProvider{}).Run(context.Background())
	assert.ErrorContains(t, err, "upstream down")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := &Config{Ticker: "SPY", Volatility: 0.2, Model: ModelMonteCarlo, Simulations: 100_000}
	_, err := newTestEngine(cfg, synthetic()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("testdata/config.json")
	require.NoError(t, err)

	assert.Equal(t, "SPY", cfg.Ticker)
	assert.Equal(t, ModelBlackScholes, cfg.Model)
	assert.Equal(t, data.MatchLower, cfg.DateMatchType)
	assert.Equal(t, DefaultSimulations, cfg.Simulations)
	assert.Equal(t, DefaultReportDir, cfg.ReportDir)
	assert.Equal(t, 0, cfg.DaysToMaturity)

	res, err := newTestEngine(cfg, synthetic()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 180, res.DaysToMaturity)
	assert.Equal(t, 0.18, res.Volatility)

	_, err = LoadConfig("testdata/invalid.json")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LoadConfig("testdata/missing.json")
	assert.Error(t, err)
}
