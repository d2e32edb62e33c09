package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockQA/config"
	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/pkg/dataflows"
)

type staticSource struct{}

func (staticSource) Name() string { return "static" }

func (staticSource) LatestQuote(context.Context, string) (dataflows.QuoteFields, error) {
	return dataflows.QuoteFields{dataflows.FieldCurrentPrice: 150.25}, nil
}

func (staticSource) History(context.Context, string, dataflows.HistoryRequest) ([]dataflows.Bar, error) {
	return nil, nil
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		LLMProvider:   config.ProviderDeepSeek,
		DataSource:    config.SourceYahoo,
		MaxIterations: 3,
		LLMMaxTokens:  1024,
		DataCacheDir:  t.TempDir(),
		CacheEnabled:  true,
	}
}

func TestBuildEngineWiresPipeline(t *testing.T) {
	oracle := agents.CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Observation: Current price of MSFT") {
			return "Final Answer: MSFT trades at $150.25", nil
		}
		return "Action: get_realtime_stock_price\nAction Input: MSFT", nil
	})

	var steps int
	engine, err := BuildEngine(context.Background(), testConfig(t),
		WithMarketSource(staticSource{}),
		WithCompleter(oracle),
		WithStepObserver(func(int, agents.AgentStep) { steps++ }))
	require.NoError(t, err)

	assert.NotZero(t, engine.Version)
	assert.Equal(t, 3, engine.Loop.MaxIterations())
	assert.Len(t, engine.Registry.Names(), 2)
	assert.Equal(t, "static", engine.Fetcher.Source())

	resp, err := engine.Queries.Handle(context.Background(), "price of microsoft?")
	require.NoError(t, err)
	assert.Equal(t, "MSFT trades at $150.25", resp.Response)
	assert.Equal(t, 1, steps)
}

func TestBuildEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxIterations = 0

	_, err := BuildEngine(context.Background(), cfg, WithMarketSource(staticSource{}))
	assert.ErrorContains(t, err, "max iterations")
}

func TestBuildEngineRequiresAPIKey(t *testing.T) {
	_, err := BuildEngine(context.Background(), testConfig(t), WithMarketSource(staticSource{}))
	assert.ErrorContains(t, err, "API key")
}

func TestNewMarketSource(t *testing.T) {
	src, err := NewMarketSource(&config.Config{DataSource: config.SourceYahoo})
	require.NoError(t, err)
	assert.Equal(t, "yahoo", src.Name())

	src, err = NewMarketSource(&config.Config{DataSource: config.SourceFinnhub, FinnhubAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "finnhub", src.Name())

	_, err = NewMarketSource(&config.Config{DataSource: config.SourceFinnhub})
	assert.Error(t, err)

	_, err = NewMarketSource(&config.Config{DataSource: config.SourceLongport})
	assert.Error(t, err)
}

func TestNewFetcherNeedsNoOracle(t *testing.T) {
	cfg := testConfig(t)
	fetcher, err := NewFetcher(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", fetcher.Source())

	cfg.DataSource = "bloomberg"
	_, err = NewFetcher(&cfg, nil)
	assert.ErrorContains(t, err, "unsupported data source")
}

func TestBuildEngineJournalsQueries(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryEnabled = true
	cfg.DataDir = t.TempDir()

	oracle := agents.CompleterFunc(func(context.Context, string) (string, error) {
		return "Final Answer: no lookup needed", nil
	})
	engine, err := BuildEngine(context.Background(), cfg, WithMarketSource(staticSource{}), WithCompleter(oracle))
	require.NoError(t, err)
	defer engine.Close()
	require.NotNil(t, engine.Journal)

	_, err = engine.Queries.Handle(context.Background(), "hello?")
	require.NoError(t, err)

	recs, err := engine.Journal.ListQueries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "hello?", recs[0].Question)
	assert.Equal(t, "no lookup needed", recs[0].Response)
}
