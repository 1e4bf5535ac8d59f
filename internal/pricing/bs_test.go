package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParams(t *testing.T, spot, strike float64, days int, rate, sigma float64) OptionParameters {
	t.Helper()
	p, err := NewOptionParameters(spot, strike, days, rate, sigma)
	require.NoError(t, err)
	return p
}

func TestBlackScholesReferencePrices(t *testing.T) {
	tests := []struct {
		name              string
		spot, strike      float64
		days              int
		rate, sigma       float64
		wantCall, wantPut float64
	}{
		{"textbook atm", 100, 100, 365, 0.05, 0.20, 10.450583572185565, 5.573526022256971},
		{"300 atm 10pct rate", 300, 300, 365, 0.10, 0.20, 39.80902975398271, 11.260255164770527},
		{"300 atm zero rate", 300, 300, 365, 0, 0.20, 23.89670236621737, 23.89670236621737},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewBlackScholesEngine(mustParams(t, tt.spot, tt.strike, tt.days, tt.rate, tt.sigma))

			call, err := e.Price(Call)
			require.NoError(t, err)
			put, err := e.Price(Put)
			require.NoError(t, err)

			assert.InDelta(t, tt.wantCall, call, 1e-9)
			assert.InDelta(t, tt.wantPut, put, 1e-9)
		})
	}
}

func TestBlackScholesDeterministic(t *testing.T) {
	e := NewBlackScholesEngine(mustParams(t, 300, 310, 120, 0.04, 0.35))
	first, err := e.Price(Call)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Price(Call)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPutCallParity(t *testing.T) {
	cases := []struct {
		spot, strike float64
		days         int
		rate, sigma  float64
	}{
		{300, 300, 365, 0.10, 0.20},
		{100, 80, 30, 0.03, 0.25},
		{100, 130, 700, -0.01, 0.60},
		{50, 50, 1, 0.05, 0.10},
		{2500, 1800, 90, 0.07, 0.45},
	}

	for _, c := range cases {
		p := mustParams(t, c.spot, c.strike, c.days, c.rate, c.sigma)
		e := NewBlackScholesEngine(p)
		call, err := e.Price(Call)
		require.NoError(t, err)
		put, err := e.Price(Put)
		require.NoError(t, err)

		rhs := c.spot - c.strike*math.Exp(-c.rate*p.Maturity())
		assert.InDelta(t, rhs, call-put, 1e-8, "parity for %s", p)
	}
}

func TestBlackScholesLimits(t *testing.T) {
	t.Run("deep in the money call S=500 K=100", func(t *testing.T) {
		call, err := NewBlackScholesEngine(mustParams(t, 500, 100, 365, 0.10, 0.20)).Price(Call)
		require.NoError(t, err)
		assert.InDelta(t, 500-100*math.Exp(-0.10), call, 1e-6)
	})

	t.Run("deep out of the money call S=100 K=500", func(t *testing.T) {
		call, err := NewBlackScholesEngine(mustParams(t, 100, 500, 365, 0.10, 0.20)).Price(Call)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, call, 0.0)
		assert.Less(t, call, 1e-9)
	})

	t.Run("deep in the money call", func(t *testing.T) {
		p := mustParams(t, 300, 10, 365, 0.05, 0.20)
		call, err := NewBlackScholesEngine(p).Price(Call)
		require.NoError(t, err)
		assert.InDelta(t, 300-10*math.Exp(-0.05), call, 1e-6)
	})

	t.Run("deep out of the money call", func(t *testing.T) {
		p := mustParams(t, 300, 3000, 30, 0.05, 0.20)
		call, err := NewBlackScholesEngine(p).Price(Call)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, call, 0.0)
		assert.Less(t, call, 1e-9)
	})

	t.Run("zero strike", func(t *testing.T) {
		e := NewBlackScholesEngine(mustParams(t, 300, 0, 365, 0.05, 0.20))
		call, err := e.Price(Call)
		require.NoError(t, err)
		put, err := e.Price(Put)
		require.NoError(t, err)
		assert.Equal(t, 300.0, call)
		assert.Equal(t, 0.0, put)
	})

	t.Run("tiny sigma gives discounted intrinsic", func(t *testing.T) {
		p := mustParams(t, 300, 250, 365, 0.05, 1e-8)
		call, err := NewBlackScholesEngine(p).Price(Call)
		require.NoError(t, err)
		assert.InDelta(t, 300-250*math.Exp(-0.05), call, 1e-6)
	})
}

func TestBlackScholesUnsupportedKind(t *testing.T) {
	e := NewBlackScholesEngine(mustParams(t, 300, 300, 365, 0.10, 0.20))
	for _, k := range []OptionKind{0, 3, 99} {
		_, err := e.Price(k)
		assert.ErrorIs(t, err, ErrUnsupportedOptionKind)
		_, err = e.Greeks(k)
		assert.ErrorIs(t, err, ErrUnsupportedOptionKind)
	}
}

func TestGreeks(t *testing.T) {
	e := NewBlackScholesEngine(mustParams(t, 100, 100, 365, 0.05, 0.20))

	call, err := e.Greeks(Call)
	require.NoError(t, err)
	assert.InDelta(t, 0.6368306511756191, call.Delta, 1e-9)
	assert.InDelta(t, 0.018762017345846895, call.Gamma, 1e-9)
	assert.InDelta(t, 37.52403469169379, call.Vega, 1e-7)
	assert.InDelta(t, -6.414027546438197, call.Theta, 1e-7)
	assert.InDelta(t, 53.232481545376345, call.Rho, 1e-7)

	put, err := e.Greeks(Put)
	require.NoError(t, err)
	assert.InDelta(t, -0.3631693488243809, put.Delta, 1e-9)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
	assert.InDelta(t, call.Vega, put.Vega, 1e-12)
	assert.InDelta(t, -1.657880423934626, put.Theta, 1e-7)
	assert.InDelta(t, -41.89046090469506, put.Rho, 1e-7)
}

func TestNormCDFTails(t *testing.T) {
	// reference values of Phi(-x) for the lower tail
	tests := []struct {
		x    float64
		want float64
	}{
		{-5, 2.866515718791939e-07},
		{-8, 6.22096057427178e-16},
		{-10, 7.619853024160527e-24},
	}
	for _, tt := range tests {
		got := normCDF(tt.x)
		assert.InEpsilon(t, tt.want, got, 1e-9, "x=%v", tt.x)
		assert.InEpsilon(t, 1-tt.want, normCDF(-tt.x), 1e-12, "x=%v", -tt.x)
	}
	assert.Equal(t, 0.5, normCDF(0))
}
