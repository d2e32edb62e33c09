package dataflows

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
)

// YahooFinanceClient reads quotes and charts from Yahoo Finance
type YahooFinanceClient struct {
	retry    *RetryConfig
	now      func() time.Time
	getQuote func(symbol string) (*finance.Quote, error)
	getChart func(params *chart.Params) *chart.Iter
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient() *YahooFinanceClient {
	return &YahooFinanceClient{
		retry:    DefaultRetryConfig(),
		now:      time.Now,
		getQuote: quote.Get,
		getChart: chart.Get,
	}
}

func (yf *YahooFinanceClient) Name() string {
	return "yahoo"
}

// LatestQuote reports the regular market price of symbol.
func (yf *YahooFinanceClient) LatestQuote(ctx context.Context, symbol string) (QuoteFields, error) {
	var fields QuoteFields
	err := WithRetry(ctx, yf.retry, func() error {
		q, err := yf.getQuote(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		fields = QuoteFields{}
		if q != nil && q.RegularMarketPrice > 0 {
			fields[FieldRegularMarketPrice] = q.RegularMarketPrice
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// History returns closing prices for the window described by req.
func (yf *YahooFinanceClient) History(ctx context.Context, symbol string, req HistoryRequest) ([]Bar, error) {
	start, end, err := PeriodRange(req.Period, yf.now())
	if err != nil {
		return nil, err
	}
	if _, err := IntervalDuration(req.Interval); err != nil {
		return nil, err
	}

	var bars []Bar
	err = WithRetry(ctx, yf.retry, func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.Interval(req.Interval),
		}

		iter := yf.getChart(params)

		bars = make([]Bar, 0)
		for iter.Next() {
			bar := iter.Bar()
			if bar == nil || bar.Close.IsZero() {
				continue
			}
			bars = append(bars, Bar{
				Timestamp: time.Unix(int64(bar.Timestamp), 0).UTC(),
				Close:     bar.Close,
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}
