// Package historical implements the backfill loader that seeds candle
// rings from exchange REST history with rate limiting and retry (§4.3).
package historical

import (
	"context"
	"fmt"
	"time"

	"ictengine/internal/candle"
	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	apperrors "ictengine/pkg/errors"
	"ictengine/pkg/retry"

	"golang.org/x/time/rate"
)

// DefaultMaxPerRequest is the maximum candles fetched in a single call.
const DefaultMaxPerRequest = 1000

// DefaultLoadCount is the default number of candles loaded per
// (symbol,timeframe) when none is specified.
const DefaultLoadCount = 500

// Fetcher is the subset of the exchange contract the loader depends on.
type Fetcher interface {
	GetHistoricalCandles(ctx context.Context, symbol string, tf core.Timeframe, limit int) ([]core.Candle, error)
}

// Loader backfills candle rings, enforcing a sliding-window request-weight
// budget and validating chronological ordering before writing into the
// ring (§4.3).
type Loader struct {
	fetcher Fetcher
	store   *candle.Store
	bus     *eventbus.Bus
	logger  core.ILogger
	limiter *rate.Limiter
	policy  retry.Policy
	weight  int // weight consumed per request
}

// NewLoader constructs a Loader with a per-minute weight budget (default
// 1200, 5 per request) and an exponential retry policy (1s..30s, 5 tries).
func NewLoader(fetcher Fetcher, store *candle.Store, bus *eventbus.Bus, weightPerMinute int, requestWeight int, logger core.ILogger) *Loader {
	if weightPerMinute <= 0 {
		weightPerMinute = 1200
	}
	if requestWeight <= 0 {
		requestWeight = 5
	}
	ratePerSecond := float64(weightPerMinute) / 60.0
	return &Loader{
		fetcher: fetcher,
		store:   store,
		bus:     bus,
		logger:  logger.WithField("component", "historical_loader"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), weightPerMinute),
		policy: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		weight: requestWeight,
	}
}

// Backfill loads up to `count` candles (capped at DefaultMaxPerRequest) for
// (symbol,tf), validates ordering, and writes them into the ring.
func (l *Loader) Backfill(ctx context.Context, symbol string, tf core.Timeframe, count int) error {
	if count <= 0 {
		count = DefaultLoadCount
	}
	if count > DefaultMaxPerRequest {
		count = DefaultMaxPerRequest
	}

	if err := l.limiter.WaitN(ctx, l.weight); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var candles []core.Candle
	err := retry.Do(ctx, l.policy, isTransient, func() error {
		var fetchErr error
		candles, fetchErr = l.fetcher.GetHistoricalCandles(ctx, symbol, tf, count)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("fetch historical candles for %s %s: %w", symbol, tf, err)
	}

	gaps, dups := validateOrdering(candles, tf)
	if gaps > 0 {
		l.logger.Warn("historical backfill detected gaps", "symbol", symbol, "timeframe", tf, "gaps", gaps)
	}
	if dups > 0 {
		l.logger.Warn("historical backfill detected duplicates", "symbol", symbol, "timeframe", tf, "duplicates", dups)
	}

	ring := l.store.Ring(symbol, tf)
	loaded := 0
	var first, last int64
	for i, c := range candles {
		if err := ring.Append(c); err != nil {
			continue
		}
		if i == 0 {
			first = c.OpenTime
		}
		last = c.OpenTime
		loaded++
	}

	return l.bus.Publish(ctx, eventbus.New(eventbus.HistoricalDataLoaded, symbol, last, eventbus.PrioHistoricalLoaded, LoadResult{
		Symbol: symbol, Timeframe: tf, Count: loaded, FirstOpenTime: first, LastOpenTime: last,
	}))
}

// LoadResult is the HISTORICAL_DATA_LOADED event payload.
type LoadResult struct {
	Symbol        string
	Timeframe     core.Timeframe
	Count         int
	FirstOpenTime int64
	LastOpenTime  int64
}

// validateOrdering reports the number of gap intervals and duplicate
// open-times found in a chronologically-expected candle slice.
func validateOrdering(candles []core.Candle, tf core.Timeframe) (gaps, dups int) {
	duration := tf.DurationMs()
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1], candles[i]
		switch {
		case cur.OpenTime == prev.OpenTime:
			dups++
		case cur.OpenTime > prev.OpenTime+duration:
			gaps++
		}
	}
	return gaps, dups
}

func isTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case err == apperrors.ErrNetwork, err == apperrors.ErrRateLimitExceeded, err == apperrors.ErrTimestampOutOfBounds:
		return true
	default:
		return false
	}
}
