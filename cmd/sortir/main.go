package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/alexanderramin/sortir/internal/api"
	"github.com/alexanderramin/sortir/internal/cli"
	"github.com/alexanderramin/sortir/internal/collector"
	"github.com/alexanderramin/sortir/internal/config"
	"github.com/alexanderramin/sortir/internal/db"
	"github.com/alexanderramin/sortir/internal/embedcache"
	"github.com/alexanderramin/sortir/internal/intelligence"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/ranking"
	"github.com/alexanderramin/sortir/internal/report"
	"github.com/alexanderramin/sortir/internal/repository"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/alexanderramin/sortir/internal/weather"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Config file from --config or SORTIR_CONFIG, overridden by SORTIR_* variables.
	cfg, err := config.Load(cli.ConfigPathFromArgs(os.Args[1:]))
	if err != nil {
		return err
	}
	if cfg.Log.Output == nil {
		cfg.Log.Output = os.Stderr
	}
	logging.Init(cfg.Log)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Open database
	database, err := db.OpenDB(cfg.ResolvedDBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	runRepo := repository.NewSQLiteRunRepo(database)
	runStateRepo := repository.NewSQLiteRunStateRepo(database)
	uow := db.NewSQLiteUnitOfWork(database)

	// LLM observers: metrics always, call logs on request.
	observer := llm.MultiObserver{llm.MetricsObserver{}}
	if cfg.LLM.LogCalls {
		observer = append(observer, llm.NewLogObserver(logging.Logger()))
	}

	// A missing API key leaves the judge and digest on their fallbacks.
	var generator llm.LLMClient
	generator, err = llm.NewClient(cfg.LLM, observer)
	if errors.Is(err, llm.ErrNotConfigured) {
		logging.Warn().Err(err).Msg("language model not configured, using deterministic fallbacks")
		generator = nil
	} else if err != nil {
		return err
	}

	var embedder ranking.Embedder = llm.NewOllamaEmbedder(cfg.LLM, observer)
	if cfg.Cache.Enabled {
		cacheCfg := cfg.Cache
		cacheCfg.Dir = cfg.ResolvedCacheDir()
		store, err := embedcache.Open(cacheCfg)
		if err != nil {
			// Another process may hold the directory lock.
			logging.Warn().Err(err).Msg("embedding cache unavailable, embedding every run")
		} else {
			defer store.Close()
			embedder = embedcache.New(embedder, store, cfg.LLM.EmbedModel, cfg.Cache.TTL)
		}
	}

	deps := service.PipelineDeps{
		Source:   collector.New(cfg.Collector, loc),
		Ranker:   ranking.NewSemanticRanker(embedder, cfg.Ranking.DescChars),
		Judge:    intelligence.NewJudgeService(generator),
		Digest:   intelligence.NewDigestService(generator),
		Reports:  report.Writer{},
		RunState: runStateRepo,
		UoW:      uow,
		Observer: service.MultiUseCaseObserver{service.LogUseCaseObserver{}, service.MetricsUseCaseObserver{}},
	}
	if !cfg.Collector.Incremental {
		deps.RunState = nil
	}
	if cfg.Weather.Enabled {
		deps.Weather = weather.NewClient(cfg.Weather, loc)
	}

	pipeline := service.NewDigestPipeline(deps, service.PipelineSettings{
		Pipeline:           cfg.Pipeline,
		Weights:            cfg.Ranking.Weights(),
		Keywords:           cfg.Filters,
		Location:           loc,
		WeatherTargetHour:  cfg.Weather.TargetHour,
		WeatherConcurrency: cfg.Weather.Concurrency,
	})

	app := &cli.App{
		Config:     cfg,
		Newsletter: pipeline,
		History:    runRepo,
		Serve: func(ctx context.Context, addr string) error {
			serverCfg := cfg.Server
			serverCfg.Addr = addr
			var opts []api.Option
			if generator != nil {
				opts = append(opts, api.WithLLMProbe(generator))
			}
			return api.NewServer(serverCfg, pipeline, opts...).ListenAndServe(ctx)
		},
	}

	// Detect interactive terminal for spinners and forms.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	return cli.NewRootCmd(app).Execute()
}
