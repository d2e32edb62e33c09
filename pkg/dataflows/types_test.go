package dataflows

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatePrices_OnePerDateLastCloseWins(t *testing.T) {
	bars := []Bar{
		bar("2024-05-02T14:00:00Z", 11),
		bar("2024-05-01T14:00:00Z", 10),
		bar("2024-05-02T19:00:00Z", 12.345),
	}

	data := NewDatePrices(bars, time.UTC)
	require.Len(t, data, 2)
	assert.Equal(t, "2024-05-01", data[0].Date)
	assert.Equal(t, "2024-05-02", data[1].Date)
	assert.Equal(t, "12.35", data[1].Price.String())
}

func TestNewDatePrices_UsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}

	data := NewDatePrices([]Bar{bar("2024-05-02T02:00:00Z", 1)}, ny)
	require.Len(t, data, 1)
	assert.Equal(t, "2024-05-01", data[0].Date)
}

func TestHistoricalPricesText(t *testing.T) {
	data := NewDatePrices([]Bar{
		bar("2024-05-01T13:30:00Z", 169.3),
		bar("2024-05-03T13:30:00Z", 183.38),
		bar("2024-05-02T13:30:00Z", 173.03),
	}, time.UTC)
	h := NewHistoricalPrices("AAPL", HistoryRequest{Period: "1mo", Interval: "1d"}, data)

	text, err := h.Text()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "{\n  \"symbol\": \"AAPL\""))
	assert.Contains(t, text, `"data_points": 3`)
	assert.Contains(t, text, `"first_price": 169.3`)

	series := text[strings.Index(text, `"data": {`):]
	assert.Less(t, strings.Index(series, `"2024-05-01"`), strings.Index(series, `"2024-05-02"`))
	assert.Less(t, strings.Index(series, `"2024-05-02"`), strings.Index(series, `"2024-05-03"`))

	var decoded HistoricalPrices
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))

	keys := make([]string, 0, len(decoded.Data))
	for _, dp := range decoded.Data {
		keys = append(keys, dp.Date)
	}
	assert.True(t, sort.StringsAreSorted(keys))
	assert.Equal(t, keys[0], decoded.FirstDate)
	assert.Equal(t, keys[len(keys)-1], decoded.LastDate)

	first, ok := decoded.Data.Get(decoded.FirstDate)
	require.True(t, ok)
	last, ok := decoded.Data.Get(decoded.LastDate)
	require.True(t, ok)
	assert.True(t, first.Equal(decoded.FirstPrice))
	assert.True(t, last.Equal(decoded.LastPrice))
}

func TestNewPriceRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "150.26", NewPriceFromFloat(150.255).String())
	assert.Equal(t, "150.25", NewPriceFromFloat(150.254).String())
	assert.Equal(t, "-1.01", NewPriceFromFloat(-1.005).String())
	assert.Equal(t, "42.00", NewPriceFromFloat(42).String())
}

func TestDatePricesUnmarshalRejectsArray(t *testing.T) {
	var d DatePrices
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &d))
}

func TestQuoteFieldsFirst(t *testing.T) {
	q := QuoteFields{FieldCurrentPrice: 0, FieldLastPrice: 3}
	name, v, ok := q.First(QuoteFieldOrder)
	require.True(t, ok)
	assert.Equal(t, FieldLastPrice, name)
	assert.Equal(t, 3.0, v)

	_, _, ok = QuoteFields{}.First(QuoteFieldOrder)
	assert.False(t, ok)
}
