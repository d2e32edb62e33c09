package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient handles Finnhub API operations
type FinnhubClient struct {
	client *resty.Client
	apiKey string
	retry  *RetryConfig
	now    func() time.Time
}

// NewFinnhubClient creates a new Finnhub client. baseURL may be empty.
func NewFinnhubClient(apiKey, baseURL string) *FinnhubClient {
	if baseURL == "" {
		baseURL = finnhubBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{
		client: client,
		apiKey: apiKey,
		retry:  DefaultRetryConfig(),
		now:    time.Now,
	}
}

func (fc *FinnhubClient) Name() string {
	return "finnhub"
}

// finnhubQuote is the /quote response
type finnhubQuote struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// finnhubCandles is the /stock/candle response
type finnhubCandles struct {
	Close     []float64 `json:"c"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"`
}

// LatestQuote reports the current price of symbol.
func (fc *FinnhubClient) LatestQuote(ctx context.Context, symbol string) (QuoteFields, error) {
	var q finnhubQuote
	if err := fc.get(ctx, "/quote", map[string]string{"symbol": symbol}, &q); err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	fields := QuoteFields{}
	if q.Current > 0 {
		fields[FieldCurrentPrice] = q.Current
	}
	return fields, nil
}

// History returns candle closes for the window described by req.
func (fc *FinnhubClient) History(ctx context.Context, symbol string, req HistoryRequest) ([]Bar, error) {
	resolution, err := finnhubResolution(req.Interval)
	if err != nil {
		return nil, err
	}
	from, to, err := PeriodRange(req.Period, fc.now())
	if err != nil {
		return nil, err
	}

	var candles finnhubCandles
	err = fc.get(ctx, "/stock/candle", map[string]string{
		"symbol":     symbol,
		"resolution": resolution,
		"from":       strconv.FormatInt(from.Unix(), 10),
		"to":         strconv.FormatInt(to.Unix(), 10),
	}, &candles)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}

	if candles.Status == "no_data" {
		return []Bar{}, nil
	}
	if candles.Status != "ok" {
		return nil, fmt.Errorf("unexpected candle status %q for %s", candles.Status, symbol)
	}
	if len(candles.Close) != len(candles.Timestamp) {
		return nil, fmt.Errorf("malformed candle response for %s: %d closes, %d timestamps",
			symbol, len(candles.Close), len(candles.Timestamp))
	}

	bars := make([]Bar, 0, len(candles.Close))
	for i, c := range candles.Close {
		bars = append(bars, Bar{
			Timestamp: time.Unix(candles.Timestamp[i], 0).UTC(),
			Close:     decimal.NewFromFloat(c),
		})
	}
	return bars, nil
}

func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	if fc.apiKey == "" {
		return fmt.Errorf("finnhub API key not configured")
	}

	return WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("token", fc.apiKey).
			Get(path)
		if err != nil {
			return err
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})
}

// finnhubResolution maps an interval token onto a candle resolution.
func finnhubResolution(interval string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "60m", "1h":
		return "60", nil
	case "1d":
		return "D", nil
	case "1wk", "1w":
		return "W", nil
	case "1mo":
		return "M", nil
	default:
		return "", fmt.Errorf("unsupported interval for finnhub: %s", interval)
	}
}
