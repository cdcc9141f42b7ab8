package join

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type markValid struct{}

func (markValid) Classify(e *registry.Entry) { e.Status = magnet.StatusValid }

type captureLauncher struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (l *captureLauncher) Launch(link string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.links = append(l.links, link)
	return nil
}

func (l *captureLauncher) launched() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.links...)
}

func (l *captureLauncher) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func seededRegistry(t *testing.T, clock magnet.Clock, links ...string) *registry.Registry {
	t.Helper()
	reg := registry.New(50, markValid{}, clock, nil)
	for i, link := range links {
		reg.AddOrUpdate(link, magnet.PostRecord{
			ID:  strconv.Itoa(1000 + i),
			URL: "https://board.example/view/" + link,
		})
	}
	return reg
}

func TestAutoJoinAtMostOncePerEntry(t *testing.T) {
	t.Parallel()

	link := "steam://joinlobby/480/111/222"
	clock := newStubClock()
	reg := seededRegistry(t, clock, link)
	launcher := &captureLauncher{}
	gate := New(Config{Auto: true}, reg, launcher, clock, nil)

	joined, err := gate.TryJoin(link, false)
	require.NoError(t, err)
	require.True(t, joined)

	joined, err = gate.TryJoin(link, false)
	require.NoError(t, err)
	require.False(t, joined)

	require.Equal(t, []string{link}, launcher.launched())
}

func TestAutoJoinDisabled(t *testing.T) {
	t.Parallel()

	link := "steam://joinlobby/480/111/222"
	clock := newStubClock()
	reg := seededRegistry(t, clock, link)
	launcher := &captureLauncher{}
	gate := New(Config{Auto: false}, reg, launcher, clock, nil)

	joined, err := gate.TryJoin(link, false)
	require.NoError(t, err)
	require.False(t, joined)
	require.Empty(t, launcher.launched())
}

func TestAutoJoinCooldownSpansEntries(t *testing.T) {
	t.Parallel()

	first := "steam://joinlobby/480/111/222"
	second := "steam://joinlobby/480/333/444"
	clock := newStubClock()
	reg := seededRegistry(t, clock, first, second)
	launcher := &captureLauncher{}
	gate := New(Config{Auto: true, Cooldown: time.Hour}, reg, launcher, clock, nil)

	joined, err := gate.TryJoin(first, false)
	require.NoError(t, err)
	require.True(t, joined)

	joined, err = gate.TryJoin(second, false)
	require.NoError(t, err)
	require.False(t, joined, "cooldown must suppress the second automatic join")
	require.Equal(t, []string{first}, launcher.launched())

	clock.advance(time.Hour)
	joined, err = gate.TryJoin(second, false)
	require.NoError(t, err)
	require.True(t, joined)
	require.Equal(t, []string{first, second}, launcher.launched())
}

func TestForcedJoinStartsSharedCooldown(t *testing.T) {
	t.Parallel()

	forced := "steam://joinlobby/480/111/222"
	auto := "steam://joinlobby/480/333/444"
	clock := newStubClock()
	reg := seededRegistry(t, clock, forced, auto)
	launcher := &captureLauncher{}
	gate := New(Config{Auto: true, Cooldown: time.Hour}, reg, launcher, clock, nil)

	joined, err := gate.TryJoin(forced, true)
	require.NoError(t, err)
	require.True(t, joined)

	joined, err = gate.TryJoin(auto, false)
	require.NoError(t, err)
	require.False(t, joined, "a forced launch must start the shared cooldown")
	require.Equal(t, []string{forced}, launcher.launched())

	clock.advance(time.Hour)
	joined, err = gate.TryJoin(auto, false)
	require.NoError(t, err)
	require.True(t, joined)
	require.Equal(t, []string{forced, auto}, launcher.launched())
}

func TestForcedJoinBypassesCooldownAndAttemptFlag(t *testing.T) {
	t.Parallel()

	link := "steam://joinlobby/480/111/222"
	clock := newStubClock()
	reg := seededRegistry(t, clock, link)
	launcher := &captureLauncher{}
	gate := New(Config{Auto: true, Cooldown: time.Hour}, reg, launcher, clock, nil)

	_, err := gate.TryJoin(link, false)
	require.NoError(t, err)

	joined, err := gate.TryJoin(link, true)
	require.NoError(t, err)
	require.True(t, joined)

	joined, err = gate.TryJoin(link, true)
	require.NoError(t, err)
	require.True(t, joined)

	require.Equal(t, []string{link, link, link}, launcher.launched())
}

func TestForcedJoinUnknownLink(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	reg := seededRegistry(t, clock)
	gate := New(Config{Auto: true}, reg, &captureLauncher{}, clock, nil)

	joined, err := gate.TryJoin("steam://joinlobby/480/999/888", true)
	require.ErrorIs(t, err, ErrUnknownLink)
	require.False(t, joined)
}

func TestAutoJoinLaunchFailureStillConsumesAttempt(t *testing.T) {
	t.Parallel()

	link := "steam://joinlobby/480/111/222"
	clock := newStubClock()
	reg := seededRegistry(t, clock, link)
	launcher := &captureLauncher{err: errors.New("no handler")}
	gate := New(Config{Auto: true}, reg, launcher, clock, nil)

	joined, err := gate.TryJoin(link, false)
	require.Error(t, err)
	require.False(t, joined)

	launcher.setErr(nil)
	joined, err = gate.TryJoin(link, false)
	require.NoError(t, err)
	require.False(t, joined, "the single automatic attempt is spent")
}

func TestFailedLaunchDoesNotStartCooldown(t *testing.T) {
	t.Parallel()

	first := "steam://joinlobby/480/111/222"
	second := "steam://joinlobby/480/333/444"
	clock := newStubClock()
	reg := seededRegistry(t, clock, first, second)
	launcher := &captureLauncher{err: errors.New("no handler")}
	gate := New(Config{Auto: true, Cooldown: time.Hour}, reg, launcher, clock, nil)

	_, err := gate.TryJoin(first, false)
	require.Error(t, err)

	launcher.setErr(nil)
	joined, err := gate.TryJoin(second, false)
	require.NoError(t, err)
	require.True(t, joined, "a failed launch must not hold the cooldown window")
	require.Equal(t, []string{second}, launcher.launched())
}
