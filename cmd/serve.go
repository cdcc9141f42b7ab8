package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/api"
	"github.com/refracta/PEAK-MangHoMagnet/internal/clock/system"
	collyfetcher "github.com/refracta/PEAK-MangHoMagnet/internal/fetcher/colly"
	"github.com/refracta/PEAK-MangHoMagnet/internal/join"
	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/metrics"
	"github.com/refracta/PEAK-MangHoMagnet/internal/poller"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
	"github.com/refracta/PEAK-MangHoMagnet/internal/validation"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the lobby magnet service",
		Long: `Starts the poll loop, the validation scheduler, and the HTTP API,
and runs until interrupted.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	mode := magnet.ParseMode(cfg.Validation.Mode)

	var validator magnet.Validator
	if mode == magnet.ModeExternal && cfg.Validation.RequestURL != "" {
		validator = validation.NewWebhookValidator(
			cfg.Validation.RequestURL,
			cfg.FetchTimeout(),
			logger.Named("validator"),
		)
	}

	sched := validation.New(validation.Config{
		Enabled:       cfg.Validation.Enabled,
		Mode:          mode,
		Interval:      cfg.ValidationInterval(),
		ExpectedAppID: cfg.Validation.ExpectedAppID,
	}, validator, clock, logger.Named("validation"))

	reg := registry.New(cfg.Crawler.MaxRegistryEntries, sched, clock, logger.Named("registry"))

	launcher := join.NewURILauncher(logger.Named("launcher"))
	gate := join.New(join.Config{
		Auto:     cfg.Join.Auto,
		Cooldown: cfg.JoinCooldown(),
	}, reg, launcher, clock, logger.Named("join"))

	sched.Bind(reg, func(link string) {
		if _, err := gate.TryJoin(link, false); err != nil {
			logger.Warn("auto join failed", zap.String("link", link), zap.Error(err))
		}
	})

	var pollCtl api.PollController
	if cfg.Crawler.Enabled {
		fetcher := collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.FetchTimeout(),
		})
		p := poller.New(poller.Config{
			ListingURL:          cfg.Crawler.ListingURL,
			Interval:            cfg.PollInterval(),
			MaxPostsPerPoll:     cfg.Crawler.MaxPostsPerPoll,
			ViewDeltaThreshold:  cfg.Crawler.ViewDeltaThreshold,
			DetailFetchInterval: cfg.DetailFetchDelay(),
			LogFoundLinks:       cfg.Crawler.LogFoundLinks,
		}, fetcher, reg, gate, clock, logger.Named("poller"))
		pollCtl = p

		go func() {
			logger.Info("poll loop started",
				zap.String("listing_url", cfg.Crawler.ListingURL),
				zap.Duration("interval", cfg.PollInterval()))
			p.Run(ctx)
		}()
	} else {
		logger.Info("crawler disabled")
	}

	var completions api.CompletionSink
	if mode == magnet.ModeExternal {
		completions = sched
		go func() {
			logger.Info("validation scheduler started")
			sched.Run(ctx)
		}()
	}

	apiServer := api.NewServer(reg, pollCtl, gate, completions, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
