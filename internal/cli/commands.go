package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/StockQA/config"
	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/internal/debug"
	"github.com/dyike/StockQA/internal/metrics"
	"github.com/dyike/StockQA/internal/server"
	"github.com/dyike/StockQA/internal/storage"
	"github.com/dyike/StockQA/pkg/app"
	"github.com/dyike/StockQA/pkg/dataflows"
	"github.com/dyike/StockQA/pkg/logger"
)

// Swapped in tests.
var (
	buildEngine = app.BuildEngine
	newFetcher  = app.NewFetcher
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(config.DefaultConfig())
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockqa",
		Short: "StockQA - ask questions about stock prices",
		Long: `StockQA answers free-text questions about stock prices with a ReAct agent
that looks up real-time and historical quotes through market data tools.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debugMode, _ := cmd.Flags().GetBool("debug"); debugMode {
				cfg.Debug = true
				cfg.LogLevel = "debug"
			}
			if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return runInteractiveMode(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	rootCmd.AddCommand(newAskCmd(cfg))
	rootCmd.AddCommand(newPriceCmd(cfg))
	rootCmd.AddCommand(newHistoryCmd(cfg))
	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newQueriesCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")

	return rootCmd
}

func newAskCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [QUESTION]",
		Short: "Ask one question and print the answer",
		Long: `Run the agent once for a free-text question.
Example: stockqa ask "What is the current price of Apple stock?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runAsk(cmd.Context(), cmd.OutOrStdout(), cfg, strings.Join(args, " "), verbose)
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print every reasoning step")
	return cmd
}

func newPriceCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "price [SYMBOL]",
		Short: "Print the current price of a ticker",
		Long: `Look up the current price without involving the agent.
Prompts for the ticker when none is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var symbol string
			if len(args) == 1 {
				symbol = args[0]
			} else {
				var err error
				if symbol, err = promptForTicker(); err != nil {
					return err
				}
			}
			return runPrice(cmd.Context(), cmd.OutOrStdout(), cfg, symbol)
		},
	}
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Print daily closing prices of a ticker",
		Long: `Look up historical closing prices without involving the agent.
Example: stockqa history AAPL --period 1mo --interval 1d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, _ := cmd.Flags().GetString("period")
			interval, _ := cmd.Flags().GetString("interval")
			asJSON, _ := cmd.Flags().GetBool("json")
			return runHistory(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], period, interval, asJSON)
		},
	}
	cmd.Flags().String("period", "1mo", "Lookback period (1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max)")
	cmd.Flags().String("interval", "1d", "Bar interval (1m, 5m, 15m, 30m, 60m, 1h, 1d, 1wk, 1mo)")
	cmd.Flags().Bool("json", false, "Print the same JSON document the agent receives")
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.ServerAddr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to SERVER_ADDR)")
	return cmd
}

func newQueriesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queries [ID]",
		Short: "List journaled queries, or show one with its reasoning steps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runQueries(cmd.Context(), cmd.OutOrStdout(), cfg, id, limit)
		},
	}
	cmd.Flags().Int("limit", 20, "Number of queries to list")
	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "StockQA v%s\n", Version)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cmd.OutOrStdout(), cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), cfg)
		},
	})

	return configCmd
}

func runAsk(ctx context.Context, w io.Writer, cfg *config.Config, question string, verbose bool) error {
	opts := []app.BuildOption{app.WithLogger(logger.Get())}
	if verbose {
		opts = append(opts, app.WithStepObserver(func(iteration int, step agents.AgentStep) {
			renderStep(w, iteration, step)
		}))
	}

	engine, err := buildEngine(ctx, *cfg, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	resp, err := engine.Queries.Handle(ctx, question)
	if err != nil {
		return err
	}
	renderAnswer(w, resp.Response)
	return nil
}

func runPrice(ctx context.Context, w io.Writer, cfg *config.Config, symbol string) error {
	fetcher, err := newFetcher(cfg, logger.Get())
	if err != nil {
		return err
	}

	sample, err := fetcher.GetCurrentPrice(ctx, dataflows.NormalizeSymbol(symbol))
	if err != nil {
		return err
	}
	renderPrice(w, sample)
	return nil
}

func runHistory(ctx context.Context, w io.Writer, cfg *config.Config, symbol, period, interval string, asJSON bool) error {
	fetcher, err := newFetcher(cfg, logger.Get())
	if err != nil {
		return err
	}

	hist, err := fetcher.GetHistoricalPrices(ctx, dataflows.NormalizeSymbol(symbol), period, interval)
	if err != nil {
		return err
	}

	if asJSON {
		text, err := hist.Text()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, text)
		return nil
	}
	renderHistory(w, hist)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	metrics.Init()

	dbg := debug.NewEinoDebugger(cfg, log.Named("debug"))
	if err := dbg.Initialize(ctx); err != nil {
		log.Warnw("eino debug server unavailable", "error", err)
	}

	engine, err := buildEngine(ctx, *cfg, app.WithLogger(log))
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []server.Option
	if engine.Journal != nil {
		opts = append(opts, server.WithJournal(engine.Journal))
	}
	return server.New(cfg.ServerAddr, engine.Queries, log.Named("server"), opts...).Run(ctx)
}

func runQueries(ctx context.Context, w io.Writer, cfg *config.Config, id string, limit int) error {
	journal, err := storage.OpenInDataDir(cfg.DataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	if id != "" {
		rec, err := journal.GetQuery(ctx, id)
		if err != nil {
			return err
		}
		renderQueryRecord(w, rec)
		return nil
	}

	recs, err := journal.ListQueries(ctx, limit)
	if err != nil {
		return err
	}
	renderQueryList(w, recs)
	return nil
}

// showConfig displays the current configuration
func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, titleStyle.Render("StockQA Configuration"))
	fmt.Fprintf(w, "Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Cache Directory:      %s\n", cfg.DataCacheDir)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "Model:                %s\n", cfg.ModelName())
	fmt.Fprintf(w, "Backend URL:          %s\n", cfg.BackendURL)
	fmt.Fprintf(w, "Temperature:          %.2f\n", cfg.LLMTemperature)
	fmt.Fprintf(w, "Max Tokens:           %d\n", cfg.LLMMaxTokens)
	fmt.Fprintf(w, "Max Iterations:       %d\n", cfg.MaxIterations)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Data Source:          %s\n", cfg.DataSource)
	fmt.Fprintf(w, "Cache Enabled:        %t\n", cfg.CacheEnabled)
	fmt.Fprintf(w, "Query Journal:        %t\n", cfg.HistoryEnabled)
	fmt.Fprintf(w, "Server Address:       %s\n", cfg.ServerAddr)
	fmt.Fprintf(w, "Query Delay:          %s\n", cfg.QueryDelay)
	fmt.Fprintf(w, "Log Level:            %s\n", cfg.LogLevel)
	fmt.Fprintf(w, "Debug Mode:           %t\n", cfg.Debug)
	fmt.Fprintf(w, "Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Fprintf(w, "Debug URL:            http://localhost:%d\n", cfg.EinoDebugPort)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("Credentials"))
	fmt.Fprintf(w, "LLM API Key:          %s\n", configured(cfg.APIKey() != ""))
	fmt.Fprintf(w, "Finnhub API:          %s\n", configured(cfg.FinnhubAPIKey != ""))
	fmt.Fprintf(w, "Longport API:         %s\n", configured(cfg.LongportAppKey != "" && cfg.LongportAccessToken != ""))
}

// validateConfig checks settings and the credentials the selected backends need
func validateConfig(w io.Writer, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		DisplayError(w, err)
		return err
	}

	var warnings []string
	if cfg.APIKey() == "" {
		warnings = append(warnings, fmt.Sprintf("no API key configured for llm provider %s", cfg.LLMProvider))
	}
	switch cfg.DataSource {
	case config.SourceFinnhub:
		if cfg.FinnhubAPIKey == "" {
			warnings = append(warnings, "finnhub data source selected but STOCKQA_FINNHUB_API_KEY is not set")
		}
	case config.SourceLongport:
		if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
			warnings = append(warnings, "longport data source selected but LONGPORT_* credentials are incomplete")
		}
	}

	if len(warnings) == 0 {
		DisplaySuccess(w, "Configuration is valid")
		return nil
	}
	for _, warning := range warnings {
		DisplayWarning(w, warning)
	}
	return fmt.Errorf("configuration has %d problem(s)", len(warnings))
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
