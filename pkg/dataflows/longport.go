package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"
)

// maxLongportCandles is the largest candle count the quote API serves per request.
const maxLongportCandles = 1000

type LongportConfig struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

// LongportClient reads quotes and candlesticks through the Longport quote API.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
	now      func() time.Time
}

func NewLongportClient(cfg LongportConfig) (*LongportClient, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.AppKey, cfg.AppSecret, cfg.AccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{
		quoteCtx: quoteContext,
		now:      time.Now,
	}, nil
}

func (lpc *LongportClient) Name() string {
	return "longport"
}

// LongportSymbol adds the US market suffix to bare tickers ("AAPL" -> "AAPL.US").
func LongportSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

// LatestQuote reports the last traded price of symbol.
func (lpc *LongportClient) LatestQuote(ctx context.Context, symbol string) (QuoteFields, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	quotes, err := lpc.quoteCtx.Quote(ctx, []string{LongportSymbol(symbol)})
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	fields := QuoteFields{}
	for _, q := range quotes {
		if q == nil || q.LastDone == nil {
			continue
		}
		if last, _ := q.LastDone.Float64(); last > 0 {
			fields[FieldLastPrice] = last
			break
		}
	}
	return fields, nil
}

// History returns candle closes for the window described by req.
func (lpc *LongportClient) History(ctx context.Context, symbol string, req HistoryRequest) ([]Bar, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	period, err := longportPeriod(req.Interval)
	if err != nil {
		return nil, err
	}
	count, err := longportCandleCount(req, lpc.now())
	if err != nil {
		return nil, err
	}

	sticks, err := lpc.quoteCtx.Candlesticks(ctx, LongportSymbol(symbol), period, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}

	start, _, _ := PeriodRange(req.Period, lpc.now())
	bars := make([]Bar, 0, len(sticks))
	for _, stick := range sticks {
		if stick == nil {
			continue
		}
		ts := time.Unix(stick.Timestamp, 0).UTC()
		if ts.Before(start) {
			continue
		}
		closePrice, _ := stick.Close.Float64()
		bars = append(bars, Bar{Timestamp: ts, Close: decimal.NewFromFloat(closePrice)})
	}
	return bars, nil
}

func longportPeriod(interval string) (quote.Period, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "1m":
		return quote.PeriodOneMinute, nil
	case "5m":
		return quote.PeriodFiveMinute, nil
	case "15m":
		return quote.PeriodFifteenMinute, nil
	case "30m":
		return quote.PeriodThirtyMinute, nil
	case "60m", "1h":
		return quote.PeriodSixtyMinute, nil
	case "1d":
		return quote.PeriodDay, nil
	case "1wk", "1w":
		return quote.PeriodWeek, nil
	case "1mo":
		return quote.PeriodMonth, nil
	default:
		return 0, fmt.Errorf("unsupported interval for longport: %s", interval)
	}
}

// longportCandleCount estimates how many candles cover the period, capped at the API limit.
func longportCandleCount(req HistoryRequest, now time.Time) (int, error) {
	start, end, err := PeriodRange(req.Period, now)
	if err != nil {
		return 0, err
	}
	width, err := IntervalDuration(req.Interval)
	if err != nil {
		return 0, err
	}

	count := int(end.Sub(start)/width) + 1
	if count > maxLongportCandles {
		count = maxLongportCandles
	}
	return count, nil
}
