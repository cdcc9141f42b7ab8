package registry

import (
	"strings"
	"time"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

// Source is one listing post that mentioned an entry's reference,
// upserted by post URL with the newest metadata winning.
type Source struct {
	Record  magnet.PostRecord
	AddedAt time.Time
}

// Entry is the registry's unit of storage: one unique joinlobby
// reference with status, occupancy, and provenance. All fields are
// guarded by the owning Registry's lock.
type Entry struct {
	Link              string
	Triple            magnet.Triple
	HasTriple         bool
	Status            magnet.Status
	Members           magnet.Members
	FirstSeen         time.Time
	LastSeen          time.Time
	LastCheck         time.Time
	CheckPending      bool
	AutoJoinAttempted bool
	Sources           []*Source

	parseAttempted bool
	heapIndex      int
}

func newEntry(link string, now time.Time) *Entry {
	return &Entry{
		Link:      link,
		Status:    magnet.StatusUnknown,
		FirstSeen: now,
		LastSeen:  now,
	}
}

// Touch refreshes the last-seen timestamp on rediscovery.
func (e *Entry) Touch(now time.Time) {
	e.LastSeen = now
}

// ClearMembers resets occupancy to unknown; member fields are only
// meaningful while the entry is Valid or Full.
func (e *Entry) ClearMembers() {
	e.Members = magnet.Members{}
}

// UpsertSource records provenance, keeping one Source per post URL with
// the newest copy of its metadata.
func (e *Entry) UpsertSource(rec magnet.PostRecord, now time.Time) {
	for _, src := range e.Sources {
		if strings.EqualFold(src.Record.URL, rec.URL) {
			src.Record = rec
			src.AddedAt = now
			return
		}
	}
	e.Sources = append(e.Sources, &Source{Record: rec, AddedAt: now})
}

// newestSource returns the provenance record added most recently.
func (e *Entry) newestSource() *Source {
	var newest *Source
	for _, src := range e.Sources {
		if newest == nil || src.AddedAt.After(newest.AddedAt) {
			newest = src
		}
	}
	return newest
}

// entryHeap orders entries by first-seen time for eviction.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	return h[i].FirstSeen.Before(h[j].FirstSeen)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}
