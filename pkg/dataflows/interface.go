package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dyike/StockQA/internal/metrics"
)

// MarketSource is the upstream market-data provider.
type MarketSource interface {
	// Name identifies the source in logs and cache keys.
	Name() string
	// LatestQuote returns the latest-quote fields the source knows for symbol.
	LatestQuote(ctx context.Context, symbol string) (QuoteFields, error)
	// History returns closing-price bars in chronological order. An empty slice means no data.
	History(ctx context.Context, symbol string, req HistoryRequest) ([]Bar, error)
}

// Intraday windows used by the history tiers of GetCurrentPrice.
var (
	intradayOneMinute  = HistoryRequest{Period: "1d", Interval: "1m"}
	intradayFiveMinute = HistoryRequest{Period: "1d", Interval: "5m"}
)

// HistoricalCacheTTL is how long a cached price series stays fresh.
const HistoricalCacheTTL = time.Hour

// priceTier is one strategy of the current-price fallback chain.
// ok is false when the strategy ran but produced no usable value.
type priceTier struct {
	name  string
	fetch func(ctx context.Context, symbol string) (price decimal.Decimal, ok bool, err error)
}

// DataFetcher retrieves current and historical prices from a MarketSource.
// It is safe for concurrent use once constructed.
type DataFetcher struct {
	source     MarketSource
	cache      *CacheManager
	fieldOrder []string
	location   *time.Location
	logger     *zap.SugaredLogger
	now        func() time.Time
	tiers      []priceTier
}

type FetcherOption func(*DataFetcher)

// WithCache enables the historical-series file cache.
func WithCache(cache *CacheManager) FetcherOption {
	return func(f *DataFetcher) { f.cache = cache }
}

func WithLogger(logger *zap.SugaredLogger) FetcherOption {
	return func(f *DataFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLocation sets the time zone used to render bar dates.
func WithLocation(loc *time.Location) FetcherOption {
	return func(f *DataFetcher) {
		if loc != nil {
			f.location = loc
		}
	}
}

// WithQuoteFields overrides the candidate field order of the latest-quote tier.
func WithQuoteFields(fields ...string) FetcherOption {
	return func(f *DataFetcher) {
		if len(fields) > 0 {
			f.fieldOrder = fields
		}
	}
}

func WithClock(now func() time.Time) FetcherOption {
	return func(f *DataFetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewDataFetcher creates a fetcher over source.
func NewDataFetcher(source MarketSource, opts ...FetcherOption) *DataFetcher {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	f := &DataFetcher{
		source:     source,
		fieldOrder: QuoteFieldOrder,
		location:   loc,
		logger:     zap.NewNop().Sugar(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.tiers = []priceTier{
		{name: "quote", fetch: f.quoteTier},
		{name: "intraday_1m", fetch: f.historyTier(intradayOneMinute)},
		{name: "intraday_5m", fetch: f.historyTier(intradayFiveMinute)},
	}
	return f
}

func (f *DataFetcher) Source() string {
	return f.source.Name()
}

// GetCurrentPrice walks the price tiers in order and returns the first usable value.
func (f *DataFetcher) GetCurrentPrice(ctx context.Context, symbol string) (*PriceSample, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, &DataUnavailableError{Symbol: symbol, Cause: errors.New("symbol cannot be empty")}
	}
	f.logger.Infow("fetching real-time price", "symbol", symbol, "source", f.source.Name())

	var lastErr error
	for _, tier := range f.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		price, ok, err := tier.fetch(ctx, symbol)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			metrics.PriceTierResults.WithLabelValues(tier.name, "error").Inc()
			f.logger.Warnw("price tier failed", "symbol", symbol, "tier", tier.name, "error", err)
			continue
		case !ok:
			metrics.PriceTierResults.WithLabelValues(tier.name, "empty").Inc()
			f.logger.Debugw("price tier empty", "symbol", symbol, "tier", tier.name)
			continue
		}

		metrics.PriceTierResults.WithLabelValues(tier.name, "hit").Inc()
		sample := &PriceSample{
			Symbol:    symbol,
			Price:     NewPrice(price),
			Tier:      tier.name,
			Timestamp: f.now(),
		}
		f.logger.Infow("price fetched", "symbol", symbol, "tier", tier.name, "price", sample.Price.String())
		return sample, nil
	}

	return nil, &DataUnavailableError{Symbol: symbol, Cause: lastErr}
}

func (f *DataFetcher) quoteTier(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	fields, err := f.source.LatestQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("latest quote: %w", err)
	}
	if _, v, ok := fields.First(f.fieldOrder); ok {
		return decimal.NewFromFloat(v), true, nil
	}
	return decimal.Zero, false, nil
}

func (f *DataFetcher) historyTier(req HistoryRequest) func(context.Context, string) (decimal.Decimal, bool, error) {
	return func(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
		bars, err := f.source.History(ctx, symbol, req)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%s history: %w", req.Interval, err)
		}
		if len(bars) == 0 {
			return decimal.Zero, false, nil
		}
		return bars[len(bars)-1].Close, true, nil
	}
}

// GetHistoricalPrices fetches the closing-price series for symbol over period at interval.
func (f *DataFetcher) GetHistoricalPrices(ctx context.Context, symbol, period, interval string) (*HistoricalPrices, error) {
	symbol = NormalizeSymbol(symbol)
	req := HistoryRequest{
		Period:   strings.TrimSpace(period),
		Interval: strings.TrimSpace(interval),
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	f.logger.Infow("fetching historical data", "symbol", symbol, "period", req.Period, "interval", req.Interval)

	cacheKey := map[string]string{
		"symbol":   symbol,
		"period":   req.Period,
		"interval": req.Interval,
	}
	var cached HistoricalPrices
	if f.cache.Get(f.source.Name(), "historical", cacheKey, &cached) {
		f.logger.Debugw("historical data served from cache", "symbol", symbol)
		return &cached, nil
	}

	bars, err := f.source.History(ctx, symbol, req)
	if err != nil {
		return nil, fmt.Errorf("fetch historical data for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, &NoHistoricalDataError{Symbol: symbol, Period: req.Period, Interval: req.Interval}
	}

	result := NewHistoricalPrices(symbol, req, NewDatePrices(bars, f.location))
	if err := f.cache.Set(f.source.Name(), "historical", cacheKey, result); err != nil {
		f.logger.Warnw("cache historical data failed", "symbol", symbol, "error", err)
	}
	return result, nil
}
