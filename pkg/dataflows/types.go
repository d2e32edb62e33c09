package dataflows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Quote field names checked, in order, by the first price tier.
const (
	FieldRegularMarketPrice = "regularMarketPrice"
	FieldCurrentPrice       = "currentPrice"
	FieldLastPrice          = "lastPrice"
)

// QuoteFieldOrder is the candidate order for the latest-quote tier.
var QuoteFieldOrder = []string{FieldRegularMarketPrice, FieldCurrentPrice, FieldLastPrice}

// QuoteFields holds the latest-quote values a source reported, keyed by field name.
// A field that is missing or zero is treated as null.
type QuoteFields map[string]float64

// First returns the first present, non-zero field in order.
func (q QuoteFields) First(order []string) (string, float64, bool) {
	for _, name := range order {
		if v, ok := q[name]; ok && v != 0 {
			return name, v, true
		}
	}
	return "", 0, false
}

// Bar is a single closing price in a time series.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Close     decimal.Decimal `json:"close"`
}

// HistoryRequest selects a window of bars. Both fields are free-text tokens such as "1mo" and "1d".
type HistoryRequest struct {
	Period   string `json:"period"`
	Interval string `json:"interval"`
}

// Price is a price rounded to two decimals that encodes as a JSON number.
// Halves round away from zero on the exact decimal value, so 150.255 is 150.26.
type Price decimal.Decimal

func NewPrice(v decimal.Decimal) Price {
	return Price(v.Round(2))
}

func NewPriceFromFloat(v float64) Price {
	return NewPrice(decimal.NewFromFloat(v))
}

func (p Price) Decimal() decimal.Decimal {
	return decimal.Decimal(p)
}

// String renders the price with exactly two decimals.
func (p Price) String() string {
	return decimal.Decimal(p).StringFixed(2)
}

func (p Price) Equal(other Price) bool {
	return decimal.Decimal(p).Equal(decimal.Decimal(other))
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(p).String()), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*p = Price(d)
	return nil
}

// PriceSample is the result of a current-price lookup.
type PriceSample struct {
	Symbol    string    `json:"symbol"`
	Price     Price     `json:"price"`
	Tier      string    `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *PriceSample) String() string {
	return fmt.Sprintf("Current price of %s is $%s", s.Symbol, s.Price)
}

// DatePrice is one entry of a daily series.
type DatePrice struct {
	Date  string
	Price Price
}

// DatePrices is a date to price mapping kept in chronological order.
// It encodes as a JSON object whose keys appear in that order.
type DatePrices []DatePrice

// NewDatePrices collapses bars to one entry per calendar date. The last close seen for a date wins.
func NewDatePrices(bars []Bar, loc *time.Location) DatePrices {
	if loc == nil {
		loc = time.UTC
	}
	byDate := make(map[string]Price, len(bars))
	for _, bar := range bars {
		byDate[bar.Timestamp.In(loc).Format(DateLayout)] = NewPrice(bar.Close)
	}

	out := make(DatePrices, 0, len(byDate))
	for date, price := range byDate {
		out = append(out, DatePrice{Date: date, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (d DatePrices) Get(date string) (Price, bool) {
	for _, dp := range d {
		if dp.Date == date {
			return dp.Price, true
		}
	}
	return Price{}, false
}

func (d DatePrices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dp := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(dp.Date)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := dp.Price.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *DatePrices) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("date prices: expected object, got %v", tok)
	}

	out := DatePrices{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("date prices: expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var price Price
		if err := price.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("date prices: %s: %w", key, err)
		}
		out = append(out, DatePrice{Date: key, Price: price})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*d = out
	return nil
}

// HistoricalPrices is the summary returned by a historical lookup.
type HistoricalPrices struct {
	Symbol     string     `json:"symbol"`
	Period     string     `json:"period"`
	Interval   string     `json:"interval"`
	DataPoints int        `json:"data_points"`
	FirstDate  string     `json:"first_date"`
	LastDate   string     `json:"last_date"`
	FirstPrice Price      `json:"first_price"`
	LastPrice  Price      `json:"last_price"`
	Data       DatePrices `json:"data"`
}

// NewHistoricalPrices builds the summary from an ordered, non-empty series.
func NewHistoricalPrices(symbol string, req HistoryRequest, data DatePrices) *HistoricalPrices {
	h := &HistoricalPrices{
		Symbol:     symbol,
		Period:     req.Period,
		Interval:   req.Interval,
		DataPoints: len(data),
		Data:       data,
	}
	if len(data) > 0 {
		first, last := data[0], data[len(data)-1]
		h.FirstDate, h.FirstPrice = first.Date, first.Price
		h.LastDate, h.LastPrice = last.Date, last.Price
	}
	return h
}

// Text returns the indented JSON document handed back to the agent.
func (h *HistoricalPrices) Text() (string, error) {
	out, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode historical prices: %w", err)
	}
	return string(out), nil
}
