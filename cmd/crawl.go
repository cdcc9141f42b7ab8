package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/clock/system"
	collyfetcher "github.com/refracta/PEAK-MangHoMagnet/internal/fetcher/colly"
	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/metrics"
	"github.com/refracta/PEAK-MangHoMagnet/internal/poller"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
	"github.com/refracta/PEAK-MangHoMagnet/internal/validation"
)

func newCrawlCmd() *cobra.Command {
	var (
		iterations int
		waitSec    int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a fixed number of polls and prints the result",
		Long: `Polls the configured gallery listing a fixed number of times without
starting the HTTP server, then prints the collected lobby references
as JSON on stdout. Useful for checking a gallery before running the
full service.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd.Context(), iterations, waitSec)
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 1, "number of polls to run")
	cmd.Flags().IntVar(&waitSec, "wait", 5, "seconds to wait between polls")
	return cmd
}

func runCrawlCommand(ctx context.Context, iterations, waitSec int) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	if iterations < 1 {
		iterations = 1
	}

	metrics.Init()

	clock := system.New()
	sched := validation.New(validation.Config{
		Enabled:       cfg.Validation.Enabled,
		Mode:          magnet.ParseMode(cfg.Validation.Mode),
		Interval:      cfg.ValidationInterval(),
		ExpectedAppID: cfg.Validation.ExpectedAppID,
	}, nil, clock, logger.Named("validation"))
	reg := registry.New(cfg.Crawler.MaxRegistryEntries, sched, clock, logger.Named("registry"))
	sched.Bind(reg, nil)

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
	}, fetcher, reg, nil, clock, logger.Named("poller"))

	for i := 0; i < iterations; i++ {
		if err := p.PollNow(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Warn("poll failed", zap.Int("iteration", i+1), zap.Error(err))
		}
		if i == iterations-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(waitSec) * time.Second):
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"lobbies": reg.Snapshot(),
		"entries": reg.Len(),
	})
}
