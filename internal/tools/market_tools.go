package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/dyike/StockQA/pkg/dataflows"
	"github.com/dyike/StockQA/pkg/logger"
)

const (
	RealtimePriceToolName   = "get_realtime_stock_price"
	HistoricalPriceToolName = "get_historical_stock_price"
)

// PriceFetcher is the part of dataflows.DataFetcher the price tools need.
type PriceFetcher interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*dataflows.PriceSample, error)
	GetHistoricalPrices(ctx context.Context, symbol, period, interval string) (*dataflows.HistoricalPrices, error)
}

// RealtimePriceTool answers with the current price of a single symbol.
// InvokableRun takes the bare symbol as its input text.
type RealtimePriceTool struct {
	fetcher PriceFetcher
	logger  *zap.SugaredLogger
}

func NewRealtimePriceTool(fetcher PriceFetcher, l *zap.SugaredLogger) *RealtimePriceTool {
	return &RealtimePriceTool{fetcher: fetcher, logger: logger.Nop(l)}
}

func (t *RealtimePriceTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: RealtimePriceToolName,
		Desc: "Get the current stock price for a given symbol. Input should be a stock symbol like 'AAPL' or 'MSFT'",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"symbol": {
				Type:     "string",
				Desc:     "The stock symbol",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun never returns an error; failures are rendered into the observation text.
func (t *RealtimePriceTool) InvokableRun(ctx context.Context, input string, _ ...tool.Option) (string, error) {
	symbol := strings.TrimSpace(input)
	t.logger.Infof("Fetching real-time price for %s", symbol)

	sample, err := t.fetcher.GetCurrentPrice(ctx, symbol)
	if err != nil {
		t.logger.Warnf("real-time price for %s failed: %v", symbol, err)
		return fmt.Sprintf("Error getting real-time price: %v", err), nil
	}
	return sample.String(), nil
}

// HistoricalPriceTool answers with a date to close series.
// InvokableRun takes "SYMBOL,PERIOD,INTERVAL" as its input text.
type HistoricalPriceTool struct {
	fetcher PriceFetcher
	logger  *zap.SugaredLogger
}

func NewHistoricalPriceTool(fetcher PriceFetcher, l *zap.SugaredLogger) *HistoricalPriceTool {
	return &HistoricalPriceTool{fetcher: fetcher, logger: logger.Nop(l)}
}

func (t *HistoricalPriceTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: HistoricalPriceToolName,
		Desc: "Get historical stock prices. Input format: 'AAPL,1mo,1d'",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"input": {
				Type:     "string",
				Desc:     "SYMBOL,PERIOD,INTERVAL, e.g. AAPL,1mo,1d",
				Required: true,
			},
		}),
	}, nil
}

// HistoricalInput is the parsed input of the historical price tool.
type HistoricalInput struct {
	Symbol   string
	Period   string
	Interval string
}

// ParseHistoricalInput splits "SYMBOL,PERIOD,INTERVAL" into its three trimmed parts.
func ParseHistoricalInput(input string) (HistoricalInput, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 3 {
		return HistoricalInput{}, &MalformedToolInputError{
			Tool:   HistoricalPriceToolName,
			Input:  input,
			Reason: fmt.Sprintf("expected 3 comma-separated values SYMBOL,PERIOD,INTERVAL, got %d", len(parts)),
		}
	}

	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return HistoricalInput{}, &MalformedToolInputError{
				Tool:   HistoricalPriceToolName,
				Input:  input,
				Reason: fmt.Sprintf("value %d of SYMBOL,PERIOD,INTERVAL is empty", i+1),
			}
		}
	}
	return HistoricalInput{Symbol: parts[0], Period: parts[1], Interval: parts[2]}, nil
}

// InvokableRun never returns an error; failures are rendered into the observation text.
func (t *HistoricalPriceTool) InvokableRun(ctx context.Context, input string, _ ...tool.Option) (string, error) {
	in, err := ParseHistoricalInput(input)
	if err != nil {
		return fmt.Sprintf("Error parsing input: %v", err), nil
	}
	t.logger.Infof("Fetching historical data for %s over period: %s with interval: %s", in.Symbol, in.Period, in.Interval)

	hist, err := t.fetcher.GetHistoricalPrices(ctx, in.Symbol, in.Period, in.Interval)
	if err != nil {
		t.logger.Warnf("historical data for %s failed: %v", in.Symbol, err)
		return fmt.Sprintf("Error fetching historical data: %v", err), nil
	}

	text, err := hist.Text()
	if err != nil {
		return fmt.Sprintf("Error fetching historical data: %v", err), nil
	}
	return text, nil
}

var (
	_ tool.InvokableTool = (*RealtimePriceTool)(nil)
	_ tool.InvokableTool = (*HistoricalPriceTool)(nil)
)
