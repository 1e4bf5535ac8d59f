package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contactkeval/option-pricing/internal/logger"
)

// DefaultCacheTTL keeps fetched history for one day.
const DefaultCacheTTL = 24 * time.Hour

// cachedProvider is a read-through Redis cache in front of its secondary.
// Redis failures are logged and bypassed; they never fail a fetch that the
// secondary can serve.
type cachedProvider struct {
	client    redis.Cmdable
	ttl       time.Duration
	secondary Provider
}

// NewCachedProvider wraps secondary with a Redis cache. A non-positive ttl
// selects DefaultCacheTTL.
func NewCachedProvider(client redis.Cmdable, ttl time.Duration, secondary Provider) Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &cachedProvider{client: client, ttl: ttl, secondary: secondary}
}

func (p *cachedProvider) Name() string { return "redis" }
func (p *cachedProvider) Secondary() Provider { return p.secondary }

func (p *cachedProvider) GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error) {
	key := barsKey(ticker, fromDate, toDate)

	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []Bar
		if jerr := json.Unmarshal(raw, &bars); jerr == nil && len(bars) > 0 {
			logger.Debugf("event=cache_hit key=%s count=%d", key, len(bars))
			return bars, nil
		}
		logger.Errorf("event=cache_corrupt key=%s", key)
	case errors.Is(err, redis.Nil):
		logger.Debugf("event=cache_miss key=%s", key)
	default:
		logger.Errorf("event=cache_get_failed key=%s err=%v", key, err)
	}

	if p.secondary == nil {
		return nil, fmt.Errorf("cache miss for %s and no secondary provider", key)
	}
	bars, err := p.secondary.GetBars(ctx, ticker, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(bars)
	if err != nil {
		return bars, nil
	}
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		logger.Errorf("event=cache_set_failed key=%s err=%v", key, err)
	}
	return bars, nil
}

func barsKey(ticker string, fromDate, toDate time.Time) string {
	return "bars:" + strings.ToUpper(strings.TrimSpace(ticker)) + ":" +
		fromDate.Format("2006-01-02") + ":" + toDate.Format("2006-01-02")
}
