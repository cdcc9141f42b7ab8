// Package validation drives the lobby validity state machine and
// rate-limits dispatch to the external validation collaborator.
package validation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/metrics"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
)

// MinInterval floors the per-entry revalidation interval.
const MinInterval = 5 * time.Second

const defaultMaxPerTick = 4

// Config controls classification and dispatch pacing.
type Config struct {
	Enabled       bool
	Mode          magnet.Mode
	Interval      time.Duration
	ExpectedAppID uint32
	MaxPerTick    int
	DrainInterval time.Duration
}

// Scheduler classifies registry entries, queues external checks, and
// applies asynchronous completions. Classify runs under the registry
// lock; dispatch happens outside it on the drain tick.
type Scheduler struct {
	cfg       Config
	validator magnet.Validator
	clock     magnet.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	pending []uint64

	reg     *registry.Registry
	onValid func(link string)
}

// New builds a Scheduler. validator may be nil, in which case external
// mode degrades every entry to SteamUnavailable.
func New(cfg Config, validator magnet.Validator, clock magnet.Clock, logger *zap.Logger) *Scheduler {
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	if cfg.MaxPerTick <= 0 {
		cfg.MaxPerTick = defaultMaxPerTick
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:       cfg,
		validator: validator,
		clock:     clock,
		logger:    logger,
	}
}

// Bind attaches the registry the scheduler applies results to, plus an
// optional hook invoked (outside the lock) when an entry becomes Valid
// through an external completion.
func (s *Scheduler) Bind(reg *registry.Registry, onValid func(link string)) {
	s.reg = reg
	s.onValid = onValid
}

// Classify implements registry.Classifier. It is called under the
// registry lock once per successful upsert of a parseable entry.
func (s *Scheduler) Classify(e *registry.Entry) {
	if s.cfg.ExpectedAppID != 0 && e.Triple.App != s.cfg.ExpectedAppID {
		setStatus(e, magnet.StatusInvalid)
		return
	}
	if !s.cfg.Enabled || s.cfg.Mode != magnet.ModeExternal {
		// Disabled, none, or format-only: the reference shape already
		// passed, so the entry is valid without an external check.
		setStatus(e, magnet.StatusValid)
		return
	}
	if s.validator == nil {
		setStatus(e, magnet.StatusSteamUnavailable)
		return
	}

	now := s.clock.Now()
	if !e.CheckPending && (e.LastCheck.IsZero() || now.Sub(e.LastCheck) >= s.cfg.Interval) {
		e.LastCheck = now
		e.CheckPending = true
		setStatus(e, magnet.StatusChecking)
		s.enqueue(e.Triple.Lobby)
		return
	}
	// A check is pending or the interval has not elapsed: stay Checking
	// without re-enqueuing.
	setStatus(e, magnet.StatusChecking)
}

// Drain dispatches at most MaxPerTick queued lobby ids to the external
// collaborator. A rejected dispatch clears the pending flag and marks
// the entry SteamUnavailable; no completion will arrive for it.
func (s *Scheduler) Drain(ctx context.Context) int {
	if s.validator == nil || s.reg == nil {
		return 0
	}
	processed := 0
	for processed < s.cfg.MaxPerTick {
		lobbyID, ok := s.dequeue()
		if !ok {
			break
		}
		processed++

		err := s.validator.Request(ctx, lobbyID)
		metrics.ObserveDispatch(err == nil)
		if err == nil {
			continue
		}
		s.logger.Warn("lobby validation dispatch rejected",
			zap.Uint64("lobby_id", lobbyID),
			zap.Error(err))
		s.reg.UpdateByID(lobbyID, func(e *registry.Entry) {
			e.CheckPending = false
			setStatus(e, magnet.StatusSteamUnavailable)
		})
	}
	return processed
}

// ApplyCompletion applies the result of a previously dispatched check.
// Completions for ids no longer in the registry are ignored. An entry
// becoming Valid here triggers a non-forced join attempt via the bound
// hook.
func (s *Scheduler) ApplyCompletion(c magnet.Completion) {
	if s.reg == nil {
		return
	}
	var joinLink string
	found := s.reg.UpdateByID(c.LobbyID, func(e *registry.Entry) {
		e.CheckPending = false
		switch {
		case c.Err != nil:
			setStatus(e, magnet.StatusSteamUnavailable)
		case !c.Found:
			setStatus(e, magnet.StatusInvalid)
		default:
			status := magnet.StatusValid
			if c.Limit > 0 && c.Count >= c.Limit {
				status = magnet.StatusFull
			}
			setStatus(e, status)
			e.Members = magnet.Members{Count: c.Count, Limit: c.Limit, Known: true}
			if status == magnet.StatusValid {
				joinLink = e.Link
			}
		}
	})
	if !found {
		return
	}
	if c.Err != nil {
		s.logger.Warn("lobby validation result unreadable",
			zap.Uint64("lobby_id", c.LobbyID),
			zap.Error(c.Err))
	}
	if joinLink != "" && s.onValid != nil {
		s.onValid(joinLink)
	}
}

// Run drains the dispatch queue on its own cadence, independent of the
// poll loop, until the context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Drain(ctx)
		}
	}
}

// PendingLen reports the number of queued dispatches.
func (s *Scheduler) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) enqueue(lobbyID uint64) {
	s.mu.Lock()
	s.pending = append(s.pending, lobbyID)
	s.mu.Unlock()
}

func (s *Scheduler) dequeue() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return 0, false
	}
	lobbyID := s.pending[0]
	s.pending = s.pending[1:]
	return lobbyID, true
}

// setStatus transitions an entry, counting the change and keeping the
// member fields meaningful only for Valid/Full.
func setStatus(e *registry.Entry, status magnet.Status) {
	if e.Status != status {
		e.Status = status
		metrics.ObserveTransition(string(status))
	}
	if status != magnet.StatusValid && status != magnet.StatusFull {
		e.ClearMembers()
	}
}
