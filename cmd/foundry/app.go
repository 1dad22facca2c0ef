package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/foundry/internal/export"
	"github.com/rahul/foundry/internal/gateway"
	"github.com/rahul/foundry/internal/governance"
	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/observability"
	"github.com/rahul/foundry/internal/pipeline"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/store"
	"github.com/rahul/foundry/internal/tools"
	"github.com/rahul/foundry/pkg/config"
)

var errNoProvider = errors.New("no enabled provider found in config")

// app holds the components shared by every chat.
type app struct {
	cfg      *config.Config
	runs     *store.RunStore
	logger   *observability.Logger
	metrics  *observability.Metrics
	scrape   http.Handler
	runner   *stages.Runner
	guard    governance.RunGuard
	defaults pipeline.RunOptions
	exporter *export.Exporter
}

// newApp wires the pipeline. Events are written to events when enabled.
func newApp(cfg *config.Config, events io.Writer) (*app, error) {
	runs, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, runs: runs}

	if !cfg.Logging.Events {
		events = io.Discard
	}
	a.logger = observability.NewLoggerTo(events, cfg.Logging.LLMLog)

	if cfg.Metrics.Addr != "" {
		handler, meter, err := observability.PrometheusMeter()
		if err != nil {
			return nil, err
		}
		if a.metrics, err = observability.NewMetrics(meter); err != nil {
			return nil, err
		}
		a.scrape = handler
	}

	providerName, provider := cfg.GetDefaultProvider()
	if providerName == "" {
		return nil, errNoProvider
	}
	models, err := newModels(cfg, providerName, provider)
	if err != nil {
		return nil, err
	}

	invOpts := []llm.Option{
		llm.WithRetries(cfg.Pipeline.Retries),
		llm.WithBaseDelay(cfg.Pipeline.BaseDelay),
		llm.WithLogger(a.logger),
		llm.WithMetrics(a.metrics),
	}
	var searchOpts []tools.SearchOption
	if cfg.Pipeline.ScrapeTop > 0 {
		searchOpts = append(searchOpts, tools.WithEnrichment(tools.NewScraper(), cfg.Pipeline.ScrapeTop))
	}
	searcher, err := tools.NewWebSearcher(cfg.Pipeline.SearchResults, searchOpts...)
	if err != nil {
		log.Printf("Warning: web search disabled: %v", err)
	} else {
		invOpts = append(invOpts, llm.WithSearcher(searcher))
	}
	if cfg.Images.Enabled {
		invOpts = append(invOpts, llm.WithImages(llm.NewOpenAIImages(provider.BaseURL, provider.APIKey, cfg.Images.Model)))
	}
	inv, err := llm.NewInvoker(models, invOpts...)
	if err != nil {
		return nil, err
	}

	runnerOpts := []stages.RunnerOption{
		stages.WithGapAnalysis(cfg.Pipeline.GapAnalysis),
		stages.WithPrompts(stages.NewPromptManager(cfg.Pipeline.PromptsDir)),
		stages.WithPollInterval(cfg.Pipeline.VideoPollInterval),
	}
	if cfg.Video.Enabled {
		runnerOpts = append(runnerOpts, stages.WithVideo(llm.NewOpenAIVideos(provider.BaseURL, provider.APIKey, cfg.Video.Model)))
	}
	a.runner = stages.NewRunner(inv, runnerOpts...)

	if a.guard, err = newGuard(cfg, runs); err != nil {
		return nil, err
	}
	if a.defaults, err = runDefaults(cfg); err != nil {
		return nil, err
	}
	if a.exporter, err = newExporter(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	return a.runs.Close()
}

// controller builds one chat's controller.
func (a *app) controller(obs pipeline.Observer) *pipeline.Controller {
	return pipeline.NewController(a.runner,
		pipeline.WithStore(a.runs),
		pipeline.WithAuthorizer(a.guard),
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithObserver(obs),
		pipeline.WithDefaults(a.defaults),
	)
}

func (a *app) dispatcher(out gateway.Sender) *gateway.Dispatcher {
	return gateway.NewDispatcher(out, a.controller,
		gateway.WithRunDefaults(a.defaults),
		gateway.WithExporter(a.exporter),
		gateway.WithRunLister(a.runs),
		gateway.WithGuard(a.guard),
	)
}

// serveMetrics exposes /metrics until ctx ends.
func (a *app) serveMetrics(ctx context.Context) {
	if a.scrape == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.scrape)
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Printf("\033[96m[ INFO ] metrics on http://%s/metrics\033[0m", a.cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] %v", err)
		}
	}()
}

// newModels opens one client per distinct model name.
func newModels(cfg *config.Config, providerName string, p config.ProviderConfig) (map[llm.Tier]llms.Model, error) {
	switch providerName {
	case "openai", "openrouter":
	default:
		return nil, fmt.Errorf("provider %s is not supported", providerName)
	}

	names := map[llm.Tier]string{
		llm.TierFast:     cfg.Models.Fast,
		llm.TierQuality:  cfg.Models.Quality,
		llm.TierCreative: cfg.Models.Creative,
	}
	clients := make(map[string]llms.Model)
	models := make(map[llm.Tier]llms.Model, len(names))
	for tier, name := range names {
		if m, ok := clients[name]; ok {
			models[tier] = m
			continue
		}
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(name),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		clients[name] = client
		models[tier] = client
	}
	return models, nil
}

func newGuard(cfg *config.Config, counter governance.RunCounter) (governance.RunGuard, error) {
	engine := governance.NewDefaultPolicyEngine()
	for _, owner := range cfg.Pipeline.AllowedOwners {
		engine.AllowOwner(owner)
	}
	for _, pattern := range cfg.Pipeline.DeniedOwners {
		if err := engine.DenyOwners(pattern); err != nil {
			return governance.RunGuard{}, err
		}
	}
	if !cfg.Video.Enabled {
		engine.DenyAction(governance.ActionVideo)
	}
	engine.MaxRunsPerOwner = cfg.Pipeline.MaxRunsPerOwner
	engine.Counter = counter
	return governance.RunGuard{Engine: engine}, nil
}

func runDefaults(cfg *config.Config) (pipeline.RunOptions, error) {
	opts := pipeline.DefaultRunOptions()
	opts.Framing = cfg.Pipeline.Framing
	opts.Refinement = cfg.Pipeline.Refinement
	opts.Fast = cfg.Pipeline.Fast
	if len(cfg.Pipeline.Deliverables) > 0 {
		ids, err := pipeline.ParseDeliverables(strings.Join(cfg.Pipeline.Deliverables, ","))
		if err != nil {
			return opts, err
		}
		opts.Deliverables = ids
	}
	return opts, nil
}

func openStore(cfg *config.Config) (*store.RunStore, error) {
	if dir := filepath.Dir(cfg.Memory.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return store.NewRunStore(cfg.Memory.Path)
}

func newExporter(cfg *config.Config) (*export.Exporter, error) {
	ws, err := export.NewWorkspace(cfg.App.Workspace)
	if err != nil {
		return nil, err
	}
	var opts []export.Option
	if cfg.Export.PDF {
		opts = append(opts, export.WithPDF(export.ChromePDF{Timeout: cfg.Export.PDFTimeout}))
	}
	return export.New(ws, opts...), nil
}
