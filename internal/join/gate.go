// Package join gates and executes lobby join attempts.
package join

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/metrics"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
)

// ErrUnknownLink reports a join request for a reference the registry
// does not hold.
var ErrUnknownLink = errors.New("join: unknown lobby reference")

// ErrNoLauncher reports a join request with no launcher configured.
var ErrNoLauncher = errors.New("join: no launcher configured")

// Config controls automatic joining.
type Config struct {
	Auto     bool
	Cooldown time.Duration
}

// Gate decides whether a join attempt may run. Automatic attempts are
// at most once per entry and share a global cooldown with every other
// join, forced ones included; forced attempts skip the gates but still
// require the reference to be known.
type Gate struct {
	cfg      Config
	reg      *registry.Registry
	launcher magnet.Launcher
	clock    magnet.Clock
	logger   *zap.Logger

	mu        sync.Mutex
	hasJoined bool
	lastJoin  time.Time
}

// New builds a Gate. A zero cooldown disables the shared cooldown.
func New(cfg Config, reg *registry.Registry, launcher magnet.Launcher, clock magnet.Clock, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:      cfg,
		reg:      reg,
		launcher: launcher,
		clock:    clock,
		logger:   logger,
	}
}

// TryJoin attempts to launch the join URI for a registered reference.
// It reports whether a launch happened. Automatic attempts that are
// suppressed (auto joining off, cooldown active, entry not Valid, or
// already attempted) return false with no error.
func (g *Gate) TryJoin(link string, force bool) (bool, error) {
	if g.launcher == nil {
		if force {
			return false, ErrNoLauncher
		}
		return false, nil
	}
	if force {
		return g.forced(link)
	}
	return g.automatic(link)
}

// cooldownActive reports whether the last launch, automatic or forced,
// is still within the cooldown window.
func (g *Gate) cooldownActive() bool {
	if g.cfg.Cooldown <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasJoined && g.clock.Now().Sub(g.lastJoin) < g.cfg.Cooldown
}

// recordJoin stamps the shared cooldown clock. Only successful
// launches count; a failed launch leaves the window open.
func (g *Gate) recordJoin() {
	g.mu.Lock()
	g.hasJoined = true
	g.lastJoin = g.clock.Now()
	g.mu.Unlock()
}

func (g *Gate) forced(link string) (bool, error) {
	// A forced join spends the automatic attempt too; the operator has
	// already acted on this entry.
	found := g.reg.UpdateByLink(link, func(e *registry.Entry) bool {
		if e.AutoJoinAttempted {
			return false
		}
		e.AutoJoinAttempted = true
		return true
	})
	if !found {
		return false, ErrUnknownLink
	}
	if err := g.launcher.Launch(link); err != nil {
		metrics.ObserveJoin("forced", false)
		return false, err
	}
	g.recordJoin()
	metrics.ObserveJoin("forced", true)
	g.logger.Info("joining lobby", zap.String("link", link), zap.Bool("forced", true))
	return true, nil
}

func (g *Gate) automatic(link string) (bool, error) {
	if !g.cfg.Auto {
		return false, nil
	}
	if g.cooldownActive() {
		g.logger.Debug("auto join suppressed by cooldown", zap.String("link", link))
		return false, nil
	}

	// Claim the single automatic attempt under the registry lock so two
	// concurrent triggers cannot both launch.
	claimed := false
	g.reg.UpdateByLink(link, func(e *registry.Entry) bool {
		if e.AutoJoinAttempted || e.Status != magnet.StatusValid {
			return false
		}
		e.AutoJoinAttempted = true
		claimed = true
		return true
	})
	if !claimed {
		return false, nil
	}

	if err := g.launcher.Launch(link); err != nil {
		metrics.ObserveJoin("auto", false)
		g.logger.Warn("auto join launch failed", zap.String("link", link), zap.Error(err))
		return false, err
	}
	g.recordJoin()
	metrics.ObserveJoin("auto", true)
	g.logger.Info("joining lobby", zap.String("link", link), zap.Bool("forced", false))
	return true, nil
}
