// Package poller runs the periodic board crawl that feeds the lobby
// registry.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/refracta/PEAK-MangHoMagnet/internal/links"
	"github.com/refracta/PEAK-MangHoMagnet/internal/listing"
	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/metrics"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
)

// MinInterval floors the poll interval.
const MinInterval = time.Second

// Joiner attempts a join for a discovered reference.
type Joiner interface {
	TryJoin(link string, force bool) (bool, error)
}

// Config controls the poll loop.
type Config struct {
	ListingURL         string
	Interval           time.Duration
	MaxPostsPerPoll    int
	ViewDeltaThreshold int
	// DetailFetchInterval spaces out detail-page requests within a
	// poll. Zero disables pacing.
	DetailFetchInterval time.Duration
	LogFoundLinks       bool
}

// Status is a point-in-time view of the poll loop for the status API.
type Status struct {
	LastPollAt  time.Time `json:"last_poll_at,omitzero"`
	NextPollAt  time.Time `json:"next_poll_at,omitzero"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	PollCount   int64     `json:"poll_count"`
}

// Poller fetches the listing, diffs it against the previous snapshot,
// and pulls detail pages only for rows that changed. Manual and
// scheduled polls share one gate: a manual poll issued while a
// scheduled one runs waits for it and then runs in full.
type Poller struct {
	cfg     Config
	fetcher magnet.Fetcher
	reg     *registry.Registry
	joiner  Joiner
	clock   magnet.Clock
	logger  *zap.Logger

	cache   *listing.Cache
	limiter *rate.Limiter

	pollMu sync.Mutex

	statusMu sync.Mutex
	status   Status

	warnedEmptyListing bool
	warnedNoLinks      bool
}

// New builds a Poller.
func New(cfg Config, fetcher magnet.Fetcher, reg *registry.Registry, joiner Joiner, clock magnet.Clock, logger *zap.Logger) *Poller {
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.DetailFetchInterval > 0 {
		limit = rate.Every(cfg.DetailFetchInterval)
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		reg:     reg,
		joiner:  joiner,
		clock:   clock,
		logger:  logger,
		cache:   listing.NewCache(),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run polls on the configured interval until the context finishes.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollNow(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("poll failed", zap.Error(err))
			}
		}
	}
}

// PollNow runs one full poll cycle. Concurrent callers serialize: each
// waits for the in-flight cycle and then runs its own.
func (p *Poller) PollNow(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	err := p.pollOnce(ctx)
	p.recordOutcome(err)
	return err
}

// Status reports poll-loop progress.
func (p *Poller) Status() Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

func (p *Poller) recordOutcome(err error) {
	now := p.clock.Now()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.ObservePoll(outcome)

	p.statusMu.Lock()
	p.status.LastPollAt = now
	p.status.NextPollAt = now.Add(p.cfg.Interval)
	p.status.LastOutcome = outcome
	p.status.PollCount++
	p.statusMu.Unlock()
}

func (p *Poller) pollOnce(ctx context.Context) error {
	html, err := p.fetcher.Fetch(ctx, p.cfg.ListingURL)
	metrics.ObserveFetch("list", err == nil)
	if err != nil {
		return err
	}

	records, diag, err := listing.ParseList(html, p.cfg.ListingURL, p.cfg.MaxPostsPerPoll)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		if !p.warnedEmptyListing {
			p.warnedEmptyListing = true
			p.logger.Warn("listing produced no records", zap.String("diagnostics", diag.String()))
		}
		return nil
	}
	p.warnedEmptyListing = false

	found, fetched := 0, 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, didFetch := p.processRecord(ctx, rec)
		found += refs
		if didFetch {
			fetched++
		}
	}

	if found == 0 {
		if !p.warnedNoLinks {
			p.warnedNoLinks = true
			p.logger.Warn("poll found no lobby references",
				zap.Int("records", len(records)),
				zap.Int("fetched", fetched),
				zap.Int("rows", diag.Rows))
		}
	} else {
		p.warnedNoLinks = false
	}
	return nil
}

// processRecord returns the number of references found in the record's
// detail page and whether the detail page was fetched at all.
func (p *Poller) processRecord(ctx context.Context, rec magnet.PostRecord) (int, bool) {
	prev, seen := p.cache.Get(rec.URL)
	// Every record overwrites the cache, fetched or not, so a failed
	// fetch is not retried until the row's metadata changes again.
	p.cache.Put(rec)
	if seen && !listing.NeedsFetch(prev, rec, p.cfg.ViewDeltaThreshold) {
		return 0, false
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return 0, false
	}
	detail, err := p.fetcher.Fetch(ctx, rec.URL)
	metrics.ObserveFetch("detail", err == nil)
	if err != nil {
		p.logger.Warn("detail fetch failed",
			zap.String("post_id", rec.ID),
			zap.String("url", rec.URL),
			zap.Error(err))
		return 0, true
	}

	// The registry gets the precise detail-page timestamp; the cache
	// keeps the listing-shaped record so the next diff compares like
	// with like.
	refined := rec
	if exact := listing.ExactPostDate(detail); exact != "" {
		refined = rec.WithDate(exact)
	}

	refs := links.Extract(detail)
	metrics.AddLinksFound(len(refs))
	for _, link := range refs {
		p.reg.AddOrUpdate(link, refined)
		if p.cfg.LogFoundLinks {
			p.logger.Info("lobby reference found",
				zap.String("link", link),
				zap.String("post_id", rec.ID),
				zap.String("title", rec.Title))
		}
		if p.joiner != nil {
			if _, err := p.joiner.TryJoin(link, false); err != nil {
				p.logger.Warn("auto join failed", zap.String("link", link), zap.Error(err))
			}
		}
	}
	return len(refs), true
}
