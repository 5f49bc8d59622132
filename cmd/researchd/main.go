// Command researchd runs one scheduled research-and-briefing request
// against the configured strategy store, adapters, and LLM provider, and
// prints the resulting sections and citations as JSON.
//
// Usage:
//
//	researchd run --request "latest on the EU AI Act" --category news
//	researchd validate --store-backend file --store-dsn ./strategies
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/adapter/exa"
	"github.com/researchd/researchd/pkg/adapter/llmanalyzer"
	"github.com/researchd/researchd/pkg/adapter/sonar"
	"github.com/researchd/researchd/pkg/classifier"
	"github.com/researchd/researchd/pkg/config"
	"github.com/researchd/researchd/pkg/executor"
	"github.com/researchd/researchd/pkg/llms"
	"github.com/researchd/researchd/pkg/logger"
	"github.com/researchd/researchd/pkg/metrics"
	"github.com/researchd/researchd/pkg/strategy"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run a single research-and-briefing request."`
	Validate ValidateCmd `cmd:"" help:"Load and validate the strategy store without running a request."`

	StoreBackend string `help:"Durable store backend (postgres or file)." default:"file" enum:"postgres,file"`
	StoreDSN     string `name:"store-dsn" help:"Postgres DSN, or a directory for the file backend." default:"./strategies"`
	MetricsAddr  string `name:"metrics-addr" help:"Listen address for the Prometheus /metrics endpoint." default:":9090"`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`
}

// RunCmd executes a single request through scope → fill → research →
// finalize and prints the resulting sections and citations as JSON.
type RunCmd struct {
	Request      string        `required:"" help:"Free-text research request."`
	Category     string        `help:"Pre-set category, bypassing the scope classifier for this field."`
	TimeWindow   string        `name:"time-window" help:"Pre-set time window, bypassing the scope classifier for this field."`
	Depth        string        `help:"Pre-set depth, bypassing the scope classifier for this field."`
	StrategySlug string        `name:"strategy" help:"Pre-set strategy slug, bypassing strategy selection entirely."`
	Timeout      time.Duration `help:"Request-wide deadline." default:"3m"`

	SonarModel string `name:"sonar-model" help:"Perplexity Sonar model name." default:"sonar"`
}

type runOutput struct {
	Phase       string                  `json:"phase"`
	TraceID     string                  `json:"trace_id"`
	Sections    []string                `json:"sections"`
	Citations   []string                `json:"citations"`
	Limitations []string                `json:"limitations,omitempty"`
	Errors      []string                `json:"errors,omitempty"`
	Metrics     metrics.StrategyMetrics `json:"metrics"`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	env, err := buildEnvironment(ctx, cli, c.SonarModel)
	if err != nil {
		return err
	}
	defer env.Close()

	if cli.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", env.MetricsRegistry.Handler())
		go func() {
			if err := http.ListenAndServe(cli.MetricsAddr, mux); err != nil {
				slog.Warn("metrics endpoint stopped", "addr", cli.MetricsAddr, "error", err)
			}
		}()
	}

	collector := metrics.NewCollector(time.Now)
	env.Executor.Metrics = collector

	state, runErr := env.Executor.Execute(ctx, executor.ExecutionRequest{
		UserRequest:  c.Request,
		Category:     c.Category,
		TimeWindow:   c.TimeWindow,
		Depth:        c.Depth,
		StrategySlug: c.StrategySlug,
	})

	sm := collector.Build(state)
	env.MetricsRegistry.RecordScores(state.TraceID, sm)

	out := runOutput{
		Phase:       string(state.Phase),
		TraceID:     state.TraceID,
		Sections:    state.Sections,
		Citations:   state.Citations,
		Limitations: state.Limitations,
		Errors:      state.Errors,
		Metrics:     sm,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return fmt.Errorf("encoding result: %w", encErr)
	}

	return runErr
}

// ValidateCmd loads the durable store and builds the strategy cache
// without running any request, surfacing schema/index errors up front.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openDurableStore(cli)
	if err != nil {
		return err
	}
	defer closeStore()

	s := strategy.NewStore()
	if err := s.LoadAllFromStore(ctx, store); err != nil {
		return fmt.Errorf("validating strategy store: %w", err)
	}
	cache, err := s.Build()
	if err != nil {
		return fmt.Errorf("building strategy cache: %w", err)
	}

	active := 0
	for _, e := range cache.StrategyIndex() {
		if e.Active {
			active++
		}
	}
	fmt.Printf("strategy store OK: %d active strategies\n", active)
	return nil
}

// environment bundles the process-wide dependencies a request needs;
// built once per invocation since this binary runs a single request per
// process rather than serving a long-lived listener.
type environment struct {
	Executor        *executor.Executor
	MetricsRegistry *metrics.Registry
	closers         []func() error
}

func (e *environment) Close() {
	for _, c := range e.closers {
		_ = c()
	}
}

func buildEnvironment(ctx context.Context, cli *CLI, sonarModel string) (*environment, error) {
	store, closeStore, err := openDurableStore(cli)
	if err != nil {
		return nil, err
	}

	env := &environment{closers: []func() error{closeStore}}

	s := strategy.NewStore()
	if err := s.LoadAllFromStore(ctx, store); err != nil {
		return nil, fmt.Errorf("loading strategy store: %w", err)
	}
	cache, err := s.Build()
	if err != nil {
		return nil, fmt.Errorf("building strategy cache: %w", err)
	}

	reg := adapter.NewRegistry()
	if apiKey := os.Getenv("PERPLEXITY_API_KEY"); apiKey != "" {
		a, err := sonar.New(sonarModel, apiKey)
		if err != nil {
			return nil, fmt.Errorf("configuring sonar adapter: %w", err)
		}
		if err := reg.RegisterAdapter(a); err != nil {
			return nil, err
		}
	}
	if apiKey := os.Getenv("EXA_API_KEY"); apiKey != "" {
		a, err := exa.New(apiKey)
		if err != nil {
			return nil, fmt.Errorf("configuring exa adapter: %w", err)
		}
		if err := reg.RegisterAdapter(a); err != nil {
			return nil, err
		}
	}

	var provider llms.LLMProvider
	if apiKey := config.GetProviderAPIKey("openai"); apiKey != "" {
		p, err := llms.NewOpenAIProvider(&llms.ProviderConfig{
			APIKey: apiKey,
			Model:  envOr("RESEARCHD_LLM_MODEL", "gpt-4o-mini"),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring LLM provider: %w", err)
		}
		provider = p

		if err := reg.RegisterAdapter(llmanalyzer.New(provider)); err != nil {
			return nil, err
		}
	}

	var cls *classifier.Classifier
	if sop, ok := provider.(llms.StructuredOutputProvider); ok {
		cls = classifier.New(sop)
	}

	env.Executor = &executor.Executor{
		Registry:   reg,
		Strategies: cache,
		Classifier: cls,
		LLM:        provider,
	}
	env.MetricsRegistry = metrics.NewRegistry("researchd")

	return env, nil
}

func openDurableStore(cli *CLI) (strategy.DurableStore, func() error, error) {
	switch cli.StoreBackend {
	case "postgres":
		store, err := strategy.NewPostgresStore(cli.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		store := &strategy.FileStore{Dir: cli.StoreDSN}
		return store, func() error { return nil }, nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	parseCtx := kong.Parse(&cli,
		kong.Name("researchd"),
		kong.Description("Scheduled research-and-briefing pipeline runner"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	output := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = f
	}
	logger.Init(level, output, cli.LogFormat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(1)
	}()

	err = parseCtx.Run(&cli)
	parseCtx.FatalIfErrorf(err)
}
