package data

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCSVGetBars(t *testing.T) {
	prov := NewLocalCSVDataProvider("testdata", nil)

	bars, err := prov.GetBars(context.Background(), "aapl", day(2025, 1, 3), day(2025, 1, 10))
	require.NoError(t, err)

	require.Len(t, bars, 5)
	assert.Equal(t, day(2025, 1, 3), bars[0].Date)
	assert.Equal(t, 243.36, bars[0].Close)
	assert.Equal(t, day(2025, 1, 10), bars[4].Date)
	assert.Equal(t, 236.85, bars[4].Close)
	assert.Equal(t, 61710900.0, bars[4].Volume)
}

func TestLocalCSVFallsBack(t *testing.T) {
	ctx := context.Background()
	next := &stubProvider{name: "next", bars: []Bar{{Date: day(2025, 1, 2), Close: 1}}}

	tests := []struct {
		name   string
		ticker string
		from   int
		to     int
	}{
		{"missing file", "MSFT", 2, 10},
		{"bad header", "BROKEN", 2, 10},
		{"empty range", "AAPL", 20, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next.calls = 0
			prov := NewLocalCSVDataProvider("testdata", next)
			bars, err := prov.GetBars(ctx, tt.ticker, day(2025, 1, tt.from), day(2025, 1, tt.to))
			require.NoError(t, err)
			assert.Equal(t, 1, next.calls)
			assert.Equal(t, 1.0, bars[0].Close)
		})
	}

	_, err := NewLocalCSVDataProvider("testdata", nil).GetBars(ctx, "AAPL", day(2025, 2, 1), day(2025, 2, 5))
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestReadBarsCSV(t *testing.T) {
	in := "close,DATE\n10.5,2025-03-04\n0,2025-03-05\n11,2025-03-06T00:00:00Z\n"
	bars, err := readBarsCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, bars, 2)
	assert.Equal(t, day(2025, 3, 4), bars[0].Date)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 0.0, bars[0].Open)
	assert.Equal(t, day(2025, 3, 6), bars[1].Date)

	_, err = readBarsCSV(strings.NewReader(""))
	assert.Error(t, err)
}
