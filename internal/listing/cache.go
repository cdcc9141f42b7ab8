package listing

import (
	"strconv"
	"strings"
	"sync"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

// Cache remembers the last listed metadata per post URL so later polls
// can skip unchanged detail pages. Keys are case-insensitive.
type Cache struct {
	mu    sync.Mutex
	posts map[string]magnet.PostRecord
}

// NewCache returns an empty metadata cache.
func NewCache() *Cache {
	return &Cache{posts: make(map[string]magnet.PostRecord)}
}

// Get returns the cached record for a post URL.
func (c *Cache) Get(url string) (magnet.PostRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.posts[strings.ToLower(url)]
	return rec, ok
}

// Put overwrites the cached record so future comparisons use the
// latest listed metadata. Called for every record, fetched or not.
func (c *Cache) Put(rec magnet.PostRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts[strings.ToLower(rec.URL)] = rec
}

// Len reports the number of cached posts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posts)
}

// NeedsFetch decides whether a known post's detail page must be
// refetched. Title, author, or date drift always triggers a fetch.
// A view-count change triggers one only when both counts parse and the
// increase reaches viewDelta; with viewDelta 0 any difference counts.
// Counts that do not parse fall back to strict comparison.
func NeedsFetch(prev, cur magnet.PostRecord, viewDelta int) bool {
	if prev.Title != cur.Title {
		return true
	}
	if prev.Author != cur.Author {
		return true
	}
	if prev.Date != cur.Date {
		return true
	}
	if prev.Views == cur.Views {
		return false
	}
	if viewDelta <= 0 {
		return true
	}
	prevViews, okPrev := parseViews(prev.Views)
	curViews, okCur := parseViews(cur.Views)
	if !okPrev || !okCur {
		return true
	}
	return curViews-prevViews >= viewDelta
}

func parseViews(value string) (int, bool) {
	digits := keepDigits(value)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
