package data

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	massive "github.com/massive-com/client-go/v2/rest"
	"github.com/massive-com/client-go/v2/rest/models"

	"github.com/contactkeval/option-pricing/internal/logger"
)

// maxAggsLimit is the largest page Massive serves for aggregates.
const maxAggsLimit = 50000

// massiveDataProvider fetches split-adjusted daily aggregates through the
// Massive REST SDK.
type massiveDataProvider struct {
	client    *massive.Client
	secondary Provider
}

// NewMassiveDataProvider constructs a Massive-backed provider.
//
// Parameters:
//   - apiKey: Massive API key
//   - secondary: optional fallback asked when Massive fails or returns no bars
func NewMassiveDataProvider(apiKey string, secondary Provider) Provider {
	logger.Infof("event=provider_init name=massive")
	return &massiveDataProvider{
		client:    massive.New(apiKey),
		secondary: secondary,
	}
}

// newMassiveDataProviderWithClient lets tests route the SDK through an
// httptest server.
func newMassiveDataProviderWithClient(apiKey string, hc *http.Client, secondary Provider) *massiveDataProvider {
	return &massiveDataProvider{
		client:    massive.NewWithClient(apiKey, hc),
		secondary: secondary,
	}
}

func (p *massiveDataProvider) Name() string { return "massive" }
func (p *massiveDataProvider) Secondary() Provider { return p.secondary }

// GetBars retrieves daily bars for ticker in [fromDate, toDate], oldest
// first. The SDK iterator follows next_url pagination.
func (p *massiveDataProvider) GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	logger.Debugf(
		"event=fetch_bars provider=massive ticker=%s from=%s to=%s",
		ticker,
		fromDate.Format("2006-01-02"),
		toDate.Format("2006-01-02"),
	)

	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(fromDate),
		To:         models.Millis(toDate),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(maxAggsLimit)

	var out []Bar
	iter := p.client.ListAggs(ctx, params)
	for iter.Next() {
		agg := iter.Item()
		out = append(out, Bar{
			Date:   time.Time(agg.Timestamp).UTC(),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		logger.Errorf("event=fetch_bars_failed provider=massive ticker=%s err=%v", ticker, err)
		return fallback(ctx, p, ticker, fromDate, toDate, fmt.Errorf("massive aggs %s: %w", ticker, err))
	}
	if len(out) == 0 {
		return fallback(ctx, p, ticker, fromDate, toDate, fmt.Errorf("massive aggs %s: %w", ticker, ErrNoBars))
	}

	SortBars(out)
	logger.Tracef("event=bars_received provider=massive ticker=%s count=%d", ticker, len(out))
	return out, nil
}
