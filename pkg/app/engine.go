package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/StockQA/config"
	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/internal/service"
	"github.com/dyike/StockQA/internal/storage"
	"github.com/dyike/StockQA/internal/tools"
	"github.com/dyike/StockQA/pkg/dataflows"
	"github.com/dyike/StockQA/pkg/logger"
)

// Engine holds the long-lived handles shared by every query. Everything in it
// is read-only once BuildEngine returns.
type Engine struct {
	Config   config.Config
	BuiltAt  time.Time
	Version  uint64
	Fetcher  *dataflows.DataFetcher
	Registry *tools.Registry
	Loop     *agents.ReasoningLoop
	Queries  *service.QueryService
	// Journal is nil when HISTORY_ENABLED is off.
	Journal  *storage.Store
}

// Close releases the journal.
func (e *Engine) Close() error {
	return e.Journal.Close()
}

var engineSeq atomic.Uint64

type buildOptions struct {
	source    dataflows.MarketSource
	completer agents.Completer
	observer  agents.StepObserver
	logger    *zap.SugaredLogger
}

type BuildOption func(*buildOptions)

// WithMarketSource replaces the source selected by DATA_SOURCE.
func WithMarketSource(src dataflows.MarketSource) BuildOption {
	return func(o *buildOptions) { o.source = src }
}

// WithCompleter replaces the oracle selected by LLM_PROVIDER.
func WithCompleter(c agents.Completer) BuildOption {
	return func(o *buildOptions) { o.completer = c }
}

func WithStepObserver(obs agents.StepObserver) BuildOption {
	return func(o *buildOptions) { o.observer = obs }
}

func WithLogger(l *zap.SugaredLogger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

func BuildEngine(ctx context.Context, cfg config.Config, opts ...BuildOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.Nop(o.logger)

	source := o.source
	if source == nil {
		var err error
		if source, err = NewMarketSource(&cfg); err != nil {
			return nil, err
		}
	}
	fetcher := newFetcher(&cfg, source, log)

	toolLog := log.Named("tools")
	registry, err := tools.NewPriceRegistry(ctx,
		tools.NewRealtimePriceTool(fetcher, toolLog),
		tools.NewHistoricalPriceTool(fetcher, toolLog))
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	completer := o.completer
	if completer == nil {
		if completer, err = agents.NewCompleter(ctx, &cfg); err != nil {
			return nil, err
		}
	}

	loopOpts := []agents.LoopOption{
		agents.WithMaxIterations(cfg.MaxIterations),
		agents.WithLogger(log.Named("agent")),
	}
	if o.observer != nil {
		loopOpts = append(loopOpts, agents.WithStepObserver(o.observer))
	}
	loop, err := agents.NewReasoningLoop(completer, registry, loopOpts...)
	if err != nil {
		return nil, fmt.Errorf("build reasoning loop: %w", err)
	}

	serviceOpts := []service.Option{
		service.WithLogger(log.Named("query")),
		service.WithQueryDelay(cfg.QueryDelay),
	}
	var journal *storage.Store
	if cfg.HistoryEnabled {
		if journal, err = storage.OpenInDataDir(cfg.DataDir); err != nil {
			return nil, fmt.Errorf("open query journal: %w", err)
		}
		serviceOpts = append(serviceOpts, service.WithRecorder(journal))
	}
	queries := service.NewQueryService(loop, serviceOpts...)

	log.Infow("engine built", "provider", cfg.LLMProvider, "model", cfg.ModelName(),
		"source", source.Name(), "max_iterations", loop.MaxIterations())

	return &Engine{
		Config:   cfg,
		BuiltAt:  time.Now(),
		Version:  engineSeq.Add(1),
		Fetcher:  fetcher,
		Registry: registry,
		Loop:     loop,
		Queries:  queries,
		Journal:  journal,
	}, nil
}

// NewFetcher builds a DataFetcher over the configured source without an oracle,
// for commands that only read market data.
func NewFetcher(cfg *config.Config, l *zap.SugaredLogger) (*dataflows.DataFetcher, error) {
	source, err := NewMarketSource(cfg)
	if err != nil {
		return nil, err
	}
	return newFetcher(cfg, source, logger.Nop(l)), nil
}

func newFetcher(cfg *config.Config, source dataflows.MarketSource, log *zap.SugaredLogger) *dataflows.DataFetcher {
	opts := []dataflows.FetcherOption{dataflows.WithLogger(log.Named("dataflows"))}
	if cfg.CacheEnabled {
		opts = append(opts,
			dataflows.WithCache(dataflows.NewCacheManager(cfg.DataCacheDir, dataflows.HistoricalCacheTTL, true)))
	}
	return dataflows.NewDataFetcher(source, opts...)
}

// NewMarketSource builds the source named by cfg.DataSource.
func NewMarketSource(cfg *config.Config) (dataflows.MarketSource, error) {
	switch cfg.DataSource {
	case config.SourceYahoo:
		return dataflows.NewYahooFinanceClient(), nil
	case config.SourceFinnhub:
		if cfg.FinnhubAPIKey == "" {
			return nil, fmt.Errorf("finnhub data source requires STOCKQA_FINNHUB_API_KEY")
		}
		return dataflows.NewFinnhubClient(cfg.FinnhubAPIKey, ""), nil
	case config.SourceLongport:
		client, err := dataflows.NewLongportClient(dataflows.LongportConfig{
			AppKey:      cfg.LongportAppKey,
			AppSecret:   cfg.LongportAppSecret,
			AccessToken: cfg.LongportAccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("create longport client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported data source %q", cfg.DataSource)
	}
}
