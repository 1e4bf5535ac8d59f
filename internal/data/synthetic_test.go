package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticWeekdaysOnly(t *testing.T) {
	prov := NewSyntheticProvider(SyntheticConfig{Seed: 1})

	// 2025-01-01 is a Wednesday; the range spans two weekends
	bars, err := prov.GetBars(context.Background(), "SPY", day(2025, 1, 1), day(2025, 1, 14))
	require.NoError(t, err)
	require.Len(t, bars, 10)

	for i, b := range bars {
		assert.NotEqual(t, time.Saturday, b.Date.Weekday())
		assert.NotEqual(t, time.Sunday, b.Date.Weekday())
		assert.Greater(t, b.Close, 0.0)
		assert.GreaterOrEqual(t, b.High, b.Close)
		assert.GreaterOrEqual(t, b.High, b.Open)
		assert.LessOrEqual(t, b.Low, b.Close)
		assert.LessOrEqual(t, b.Low, b.Open)
		if i > 0 {
			assert.Equal(t, bars[i-1].Close, b.Open, "bars chain close to open")
			assert.True(t, b.Date.After(bars[i-1].Date))
		}
	}
	assert.Equal(t, 150.0, bars[0].Open)
}

func TestSyntheticDeterministic(t *testing.T) {
	ctx := context.Background()
	from, to := day(2024, 1, 1), day(2024, 12, 31)

	a, err := NewSyntheticProvider(SyntheticConfig{Seed: 9}).GetBars(ctx, "AAPL", from, to)
	require.NoError(t, err)
	b, err := NewSyntheticProvider(SyntheticConfig{Seed: 9}).GetBars(ctx, "aapl", from, to)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := NewSyntheticProvider(SyntheticConfig{Seed: 9}).GetBars(ctx, "MSFT", from, to)
	require.NoError(t, err)
	assert.NotEqual(t, Closes(a), Closes(other))
}

func TestSyntheticVolatilityRecovered(t *testing.T) {
	prov := NewSyntheticProvider(SyntheticConfig{Seed: 3, Volatility: 0.40})
	bars, err := prov.GetBars(context.Background(), "QQQ", day(2015, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)

	// ten years of daily bars pin the estimate within a few points
	assert.InDelta(t, 0.40, AnnualizedVolatility(Closes(bars)), 0.03)
}

func TestSyntheticEmptyRange(t *testing.T) {
	prov := NewSyntheticProvider(SyntheticConfig{})
	_, err := prov.GetBars(context.Background(), "SPY", day(2025, 1, 4), day(2025, 1, 5))
	assert.ErrorIs(t, err, ErrNoBars)
	assert.Nil(t, prov.Secondary())
}
