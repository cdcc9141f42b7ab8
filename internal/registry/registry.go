// Package registry implements the bounded, deduplicated store of
// discovered lobby references.
package registry

import (
	"container/heap"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/links"
	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/metrics"
)

// MinEntries floors the configured registry cap.
const MinEntries = 10

// Classifier decides an entry's validity status. Classify is invoked
// under the registry lock, once per successful upsert of a parseable
// entry, and must not block.
type Classifier interface {
	Classify(e *Entry)
}

// Registry owns every discovered lobby entry, its two lookup indices,
// and the FIFO-by-discovery eviction policy. All entry state is guarded
// by one exclusive lock; snapshot readers get copies, never live
// entries.
type Registry struct {
	mu         sync.Mutex
	byLink     map[string]*Entry
	byID       map[uint64]*Entry
	order      entryHeap
	maxEntries int
	classifier Classifier
	clock      magnet.Clock
	logger     *zap.Logger
	version    atomic.Int64
}

// New builds a Registry. maxEntries is floored at MinEntries; a nil
// classifier leaves new entries Unknown.
func New(maxEntries int, classifier Classifier, clock magnet.Clock, logger *zap.Logger) *Registry {
	if maxEntries < MinEntries {
		maxEntries = MinEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byLink:     make(map[string]*Entry),
		byID:       make(map[uint64]*Entry),
		maxEntries: maxEntries,
		classifier: classifier,
		clock:      clock,
		logger:     logger,
	}
}

// AddOrUpdate upserts the entry for a reference: provenance is recorded,
// last-seen refreshed, the numeric triple parsed exactly once (a parse
// failure marks the entry permanently Invalid), the classifier consulted,
// and the registry trimmed back under cap.
func (r *Registry) AddOrUpdate(link string, rec magnet.PostRecord) {
	if strings.TrimSpace(link) == "" {
		return
	}
	now := r.clock.Now()
	key := strings.ToLower(link)

	r.mu.Lock()
	entry, ok := r.byLink[key]
	if !ok {
		entry = newEntry(link, now)
		r.byLink[key] = entry
		heap.Push(&r.order, entry)
	}

	entry.UpsertSource(rec, now)
	entry.Touch(now)

	if !entry.parseAttempted {
		entry.parseAttempted = true
		if triple, parsed := links.ParseTriple(link); parsed {
			entry.Triple = triple
			entry.HasTriple = true
			r.byID[triple.Lobby] = entry
		} else {
			entry.Status = magnet.StatusInvalid
			entry.ClearMembers()
		}
	}

	if entry.HasTriple && r.classifier != nil {
		r.classifier.Classify(entry)
	}

	r.evictLocked()
	size := len(r.byLink)
	r.mu.Unlock()

	r.version.Add(1)
	metrics.SetRegistrySize(size)
}

// evictLocked removes the oldest-by-first-seen entry, one per breach,
// until the registry fits the cap. Caller holds the lock.
func (r *Registry) evictLocked() {
	for len(r.byLink) > r.maxEntries {
		oldest := heap.Pop(&r.order).(*Entry)
		delete(r.byLink, strings.ToLower(oldest.Link))
		if oldest.HasTriple {
			delete(r.byID, oldest.Triple.Lobby)
		}
		metrics.ObserveEviction()
		r.logger.Debug("evicted lobby entry",
			zap.String("link", oldest.Link),
			zap.Time("first_seen", oldest.FirstSeen))
	}
}

// UpdateByID runs fn on the entry indexed by lobby id, under the lock.
// It reports whether the entry was found; the version counter bumps
// only when it was.
func (r *Registry) UpdateByID(lobbyID uint64, fn func(*Entry)) bool {
	r.mu.Lock()
	entry, ok := r.byID[lobbyID]
	if ok {
		fn(entry)
	}
	r.mu.Unlock()
	if ok {
		r.version.Add(1)
	}
	return ok
}

// UpdateByLink runs fn on the entry for a reference, under the lock.
// fn returns whether it mutated the entry; the version counter bumps
// only then.
func (r *Registry) UpdateByLink(link string, fn func(*Entry) bool) bool {
	r.mu.Lock()
	entry, ok := r.byLink[strings.ToLower(link)]
	mutated := false
	if ok {
		mutated = fn(entry)
	}
	r.mu.Unlock()
	if mutated {
		r.version.Add(1)
	}
	return ok
}

// Len reports the number of stored entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byLink)
}

// Version returns the monotonically increasing change counter, an O(1)
// "did anything change" check for observers.
func (r *Registry) Version() int64 {
	return r.version.Load()
}
