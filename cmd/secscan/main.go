package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bkyoung/secscan/internal/adapter/cli"
	"github.com/bkyoung/secscan/internal/adapter/discovery"
	"github.com/bkyoung/secscan/internal/adapter/llm"
	"github.com/bkyoung/secscan/internal/adapter/llm/anthropic"
	llmhttp "github.com/bkyoung/secscan/internal/adapter/llm/http"
	"github.com/bkyoung/secscan/internal/adapter/llm/ollama"
	"github.com/bkyoung/secscan/internal/adapter/llm/openai"
	"github.com/bkyoung/secscan/internal/adapter/llm/static"
	"github.com/bkyoung/secscan/internal/adapter/observability"
	jsonout "github.com/bkyoung/secscan/internal/adapter/output/json"
	sarifout "github.com/bkyoung/secscan/internal/adapter/output/sarif"
	"github.com/bkyoung/secscan/internal/adapter/repository"
	"github.com/bkyoung/secscan/internal/adapter/store/sqlite"
	triageadapter "github.com/bkyoung/secscan/internal/adapter/triage"
	"github.com/bkyoung/secscan/internal/config"
	"github.com/bkyoung/secscan/internal/redaction"
	"github.com/bkyoung/secscan/internal/usecase/scan"
	"github.com/bkyoung/secscan/internal/usecase/triage"
	"github.com/bkyoung/secscan/internal/usecase/workflow"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		if errors.Is(err, cli.ErrFindingsDetected) {
			os.Exit(2)
		}
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "secscan",
		EnvPrefix:   "SECSCAN",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := buildLogger(cfg.Observability)

	// The store is shared by the scan command (SaveRun) and the runs
	// command (ListRuns).
	var runStore *sqlite.Store
	var history cli.HistoryLister
	if cfg.Store.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			log.Printf("warning: failed to create store directory: %v", err)
		} else {
			runStore, err = sqlite.NewStore(cfg.Store.Path)
			if err != nil {
				log.Printf("warning: failed to initialize store: %v", err)
			} else {
				defer runStore.Close()
				history = &historyAdapter{store: runStore}
			}
		}
	}

	app := &app{cfg: cfg, logger: logger, store: runStore}

	root := cli.NewRootCommand(cli.Dependencies{
		Scanner:       app,
		History:       history,
		DefaultOutput: cfg.Output.Directory,
		Version:       version,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		if errors.Is(err, cli.ErrFindingsDetected) {
			return err
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "secscan"))
	}
	return paths
}

func buildLogger(cfg config.ObservabilityConfig) llmhttp.Logger {
	if !cfg.Logging.Enabled {
		return nil
	}

	logLevel := llmhttp.LogLevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = llmhttp.LogLevelDebug
	case "error":
		logLevel = llmhttp.LogLevelError
	}

	logFormat := llmhttp.LogFormatHuman
	if cfg.Logging.Format == "json" {
		logFormat = llmhttp.LogFormatJSON
	}

	return llmhttp.NewDefaultLogger(logLevel, logFormat, cfg.Logging.RedactAPIKeys)
}

// app wires one scan request into the pipeline.
type app struct {
	cfg    config.Config
	logger llmhttp.Logger
	store  *sqlite.Store
}

// Scan implements the cli.Scanner port: flag overrides are merged into the
// loaded configuration, the pipeline is assembled, and the runner executes.
func (a *app) Scan(ctx context.Context, req cli.ScanRequest) (workflow.Report, error) {
	cfg := a.mergedConfig(req)
	if err := cfg.Validate(); err != nil {
		return workflow.Report{}, err
	}

	generator, err := a.buildGenerator(cfg, cfg.Scan.Provider)
	if err != nil {
		return workflow.Report{}, err
	}

	var scanLogger scan.Logger
	if a.logger != nil {
		scanLogger = observability.NewScanLogger(a.logger)
	}

	stage := scan.NewStage(generator, scan.Options{
		Concurrency:     cfg.Scan.Concurrency,
		ChunkLines:      cfg.Scan.ChunkLines,
		MaxParseRetries: cfg.Scan.MaxParseRetries,
		TokenBudget:     cfg.Scan.TokenBudget,
	}, scanLogger)

	var triager triage.Triager
	if cfg.Triage.Enabled {
		triageGenerator := generator
		if cfg.TriageProvider() != cfg.Scan.Provider {
			triageGenerator, err = a.buildGenerator(cfg, cfg.TriageProvider())
			if err != nil {
				return workflow.Report{}, err
			}
		}

		agentConfig := triageadapter.DefaultAgentConfig()
		agentConfig.MaxIterations = cfg.Triage.MaxIterations
		agentConfig.Concurrency = cfg.TriageConcurrency()
		agentConfig.MaxParseRetries = cfg.Triage.MaxParseRetries
		if cfg.Triage.ToolTimeout != "" {
			if parsed, err := time.ParseDuration(cfg.Triage.ToolTimeout); err == nil {
				agentConfig.ToolTimeout = parsed
			} else {
				log.Printf("warning: invalid triage tool timeout %q, using default", cfg.Triage.ToolTimeout)
			}
		}

		workspace := repository.NewLocalWorkspace(req.Root)
		triager = triageadapter.NewAgent(triageGenerator, workspace, agentConfig)
	}

	var writers []workflow.ReportWriter
	for _, format := range cfg.Output.Formats {
		switch format {
		case "json":
			writers = append(writers, jsonout.NewWriter(cfg.Output.Directory, nil))
		case "sarif":
			writers = append(writers, sarifout.NewWriter(cfg.Output.Directory, nil))
		}
	}

	var store workflow.Store
	if a.store != nil {
		store = a.store
	}

	var redactor workflow.Redactor
	if cfg.Redaction.Enabled {
		redactor = redaction.NewEngine()
	}

	runner := workflow.NewRunner(workflow.RunnerOptions{
		Config:     cfg,
		Discoverer: discovery.NewWalker(req.Root, cfg.Discovery),
		Stage:      stage,
		Triager:    triager,
		Writers:    writers,
		Store:      store,
		Redactor:   redactor,
		Logger:     scanLogger,
		Provider:   cfg.Scan.Provider,
		Root:       req.Root,
	})

	return runner.Run(ctx)
}

// mergedConfig applies explicit flag overrides onto the loaded config.
func (a *app) mergedConfig(req cli.ScanRequest) config.Config {
	cfg := a.cfg

	if req.Provider != "" {
		cfg.Scan.Provider = req.Provider
	}
	if req.Threshold >= 0 {
		cfg.Scan.ConfidenceThreshold = req.Threshold
	}
	if req.Concurrency > 0 {
		cfg.Scan.Concurrency = req.Concurrency
	}
	if req.ChunkLines > 0 {
		cfg.Scan.ChunkLines = req.ChunkLines
	}
	if req.Triage != nil {
		cfg.Triage.Enabled = *req.Triage
	}
	if len(req.Include) > 0 {
		cfg.Discovery.Include = req.Include
	}
	if len(req.Exclude) > 0 {
		cfg.Discovery.Exclude = req.Exclude
	}
	if len(req.Formats) > 0 {
		cfg.Output.Formats = req.Formats
	}
	if req.OutputDir != "" {
		cfg.Output.Directory = req.OutputDir
	}

	return cfg
}

// buildGenerator constructs the LLM client for the named provider.
func (a *app) buildGenerator(cfg config.Config, name string) (llm.Generator, error) {
	providerCfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	if !providerCfg.Enabled {
		return nil, fmt.Errorf("provider %q is disabled in the configuration", name)
	}

	retryConfig := retryConfigFromHTTP(cfg.HTTP)
	timeout := resolveTimeout(providerCfg, cfg.HTTP)

	switch name {
	case "anthropic":
		if providerCfg.APIKey == "" {
			return nil, fmt.Errorf("provider %q missing API key (set ANTHROPIC_API_KEY or providers.anthropic.apiKey)", name)
		}
		opts := []anthropic.Option{anthropic.WithRetryConfig(retryConfig)}
		if timeout > 0 {
			opts = append(opts, anthropic.WithTimeout(timeout))
		}
		if a.logger != nil {
			opts = append(opts, anthropic.WithLogger(a.logger))
		}
		return anthropic.NewClient(providerCfg.APIKey, providerCfg.Model, opts...), nil

	case "openai":
		if providerCfg.APIKey == "" {
			return nil, fmt.Errorf("provider %q missing API key (set OPENAI_API_KEY or providers.openai.apiKey)", name)
		}
		opts := []openai.Option{openai.WithRetryConfig(retryConfig)}
		if timeout > 0 {
			opts = append(opts, openai.WithTimeout(timeout))
		}
		if a.logger != nil {
			opts = append(opts, openai.WithLogger(a.logger))
		}
		return openai.NewClient(providerCfg.APIKey, providerCfg.Model, opts...), nil

	case "ollama":
		opts := []ollama.Option{ollama.WithRetryConfig(retryConfig)}
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			opts = append(opts, ollama.WithBaseURL(host))
		}
		if timeout > 0 {
			opts = append(opts, ollama.WithTimeout(timeout))
		}
		if a.logger != nil {
			opts = append(opts, ollama.WithLogger(a.logger))
		}
		return ollama.NewClient(providerCfg.Model, opts...), nil

	case "static":
		return static.NewProvider(`{"findings": []}`), nil

	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: anthropic, openai, ollama, static)", name)
	}
}

func resolveTimeout(providerCfg config.ProviderConfig, httpCfg config.HTTPConfig) time.Duration {
	raw := httpCfg.Timeout
	if providerCfg.Timeout != nil && *providerCfg.Timeout != "" {
		raw = *providerCfg.Timeout
	}
	if raw == "" {
		return 0
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("warning: invalid HTTP timeout %q, using provider default", raw)
		return 0
	}
	return parsed
}

func retryConfigFromHTTP(httpCfg config.HTTPConfig) llmhttp.RetryConfig {
	rc := llmhttp.DefaultRetryConfig()
	if httpCfg.MaxRetries > 0 {
		rc.MaxRetries = httpCfg.MaxRetries
	}
	if httpCfg.InitialBackoff != "" {
		if parsed, err := time.ParseDuration(httpCfg.InitialBackoff); err == nil {
			rc.InitialBackoff = parsed
		}
	}
	if httpCfg.MaxBackoff != "" {
		if parsed, err := time.ParseDuration(httpCfg.MaxBackoff); err == nil {
			rc.MaxBackoff = parsed
		}
	}
	if httpCfg.BackoffMultiplier > 0 {
		rc.Multiplier = httpCfg.BackoffMultiplier
	}
	return rc
}

// historyAdapter exposes the sqlite store through the cli.HistoryLister port.
type historyAdapter struct {
	store *sqlite.Store
}

func (h *historyAdapter) ListRuns(ctx context.Context, limit int) ([]cli.RunSummary, error) {
	records, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]cli.RunSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, cli.RunSummary{
			RunID:            record.RunID,
			Provider:         record.Provider,
			Root:             record.Root,
			StartedAt:        record.StartedAt,
			FindingsReported: record.FindingsReported,
			Incomplete:       record.Incomplete,
		})
	}
	return summaries, nil
}
