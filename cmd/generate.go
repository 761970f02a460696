package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zolointo/next-fext-randomizer/internal/appids"
	"github.com/zolointo/next-fext-randomizer/internal/clock/system"
	"github.com/zolointo/next-fext-randomizer/internal/config"
	ids "github.com/zolointo/next-fext-randomizer/internal/id/uuid"
	"github.com/zolointo/next-fext-randomizer/internal/logging"
	"github.com/zolointo/next-fext-randomizer/internal/metrics"
	"github.com/zolointo/next-fext-randomizer/internal/pipeline"
	"github.com/zolointo/next-fext-randomizer/internal/progress"
	"github.com/zolointo/next-fext-randomizer/internal/progress/sinks"
	"github.com/zolointo/next-fext-randomizer/internal/ratelimit"
	"github.com/zolointo/next-fext-randomizer/internal/render"
	"github.com/zolointo/next-fext-randomizer/internal/steam"
	"github.com/zolointo/next-fext-randomizer/internal/trailer"
)

// newGenerateCmd creates and configures the 'generate' subcommand, which
// runs one full metadata-and-trailer collection pass and writes the pages.
func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [appid...]",
		Short: "Fetches metadata and trailers, then writes the HTML pages",
		Long: `Runs the full collection pipeline for the given appids. Appids are taken
from the command line first, then from the configured appids file, then
from the config's appids list.`,

		RunE: runGenerateCommand,
	}
	return cmd
}

func runGenerateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.InitLogger(cfg.Logging.Development); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := logging.L
	defer func() { _ = logger.Sync() }()

	appIDs, err := resolveAppIDs(cfg, args, logger)
	if err != nil {
		return err
	}
	if len(appIDs) == 0 {
		return errors.New("no appids found; pass arguments, an appids file, or config entries")
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	counters, err := runner.Run(ctx, appIDs)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run pipeline: %w", err)
	}

	logger.Info("Generate command finished.",
		zap.Int("apps_processed", counters.AppsProcessed),
		zap.Int("trailers_found", counters.TrailersFound),
		zap.Int("metadata_failures", counters.MetadataFailures),
		zap.Int("pages_written", counters.PagesWritten),
	)
	return nil
}

// resolveAppIDs applies the input priority order: CLI args beat the appids
// file, which beats the config list.
func resolveAppIDs(cfg config.Config, args []string, logger *zap.Logger) ([]int, error) {
	if len(args) > 0 {
		parsed, err := appids.ParseArgs(args)
		if err != nil {
			return nil, err
		}
		logger.Info("Using appids from command-line arguments.", zap.Int("count", len(parsed)))
		return parsed, nil
	}
	if cfg.AppIDsFile != "" {
		if _, err := os.Stat(cfg.AppIDsFile); err == nil {
			loaded, err := appids.LoadFile(cfg.AppIDsFile, logger)
			if err != nil {
				return nil, err
			}
			logger.Info("Using appids from file.",
				zap.String("path", cfg.AppIDsFile),
				zap.Int("count", len(loaded)),
			)
			return loaded, nil
		}
	}
	if len(cfg.AppIDs) > 0 {
		logger.Info("Using appids from configuration.", zap.Int("count", len(cfg.AppIDs)))
	}
	return cfg.AppIDs, nil
}

func buildPipeline(cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	limiter, err := ratelimit.New(cfg.API.RateMaxCalls, cfg.API.RatePeriod(),
		ratelimit.WithLogger(logger.Named("ratelimit")),
		ratelimit.WithWaitObserver(metrics.ObserveRateLimitWait),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init rate limiter: %w", err)
	}

	client := steam.NewClient(steam.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout(),
		MaxAttempts:    cfg.API.MaxRetries,
		BackoffInitial: cfg.API.BackoffInitial(),
		BackoffMax:     cfg.API.BackoffMax(),
	}, limiter, logger.Named("steam"))

	interceptor, err := buildInterceptor(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	renderer, err := render.NewPageRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}
	sink, err := render.NewFileSystemSink(cfg.Output.Dir, cfg.Output.Prefix, logger.Named("sink"))
	if err != nil {
		return nil, nil, fmt.Errorf("init sink: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(logger.Named("progress"),
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	var manifests pipeline.ManifestSource
	if interceptor != nil {
		manifests = interceptor
	}

	runner, err := pipeline.New(
		pipeline.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			ChunkSize:   cfg.Pipeline.ChunkSize,
			MaxJitter:   cfg.Pipeline.MaxJitter(),
		},
		client,
		manifests,
		renderer,
		sink,
		ids.NewUUIDGenerator(),
		system.New(),
		hub,
		logger.Named("pipeline"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init pipeline: %w", err)
	}

	cleanup := func() {
		if cerr := hub.Close(context.Background()); cerr != nil {
			logger.Warn("Failed to close progress hub", zap.Error(cerr))
		}
		if interceptor != nil {
			if cerr := interceptor.Close(context.Background()); cerr != nil {
				logger.Warn("Failed to close interceptor", zap.Error(cerr))
			}
		}
	}
	return runner, cleanup, nil
}

func buildInterceptor(cfg config.Config, logger *zap.Logger) (*trailer.Interceptor, error) {
	if !cfg.Browser.Enabled {
		return nil, nil
	}
	interceptor, err := trailer.New(trailer.Config{
		MaxParallel:  cfg.Browser.MaxParallel,
		UserAgent:    cfg.Browser.UserAgent,
		NavTimeout:   cfg.Browser.NavTimeout(),
		ManifestWait: cfg.Browser.ManifestWait(),
		HostQPS:      cfg.Browser.HostQPS,
	}, logger.Named("trailer"))
	switch {
	case err == nil:
		return interceptor, nil
	case errors.Is(err, trailer.ErrInterceptorDisabled):
		logger.Warn("Browser capture disabled despite feature flag; rows will have no trailers")
		return nil, nil
	default:
		return nil, fmt.Errorf("init interceptor: %w", err)
	}
}
