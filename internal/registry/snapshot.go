package registry

import (
	"sort"
	"strconv"
	"strings"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

type snapshotItem struct {
	view       magnet.LobbyView
	rank       int
	sortPostID int64
}

// Snapshot materializes an immutable, ordered, per-post-deduplicated view
// of the registry. When several entries trace back to the same post id,
// the most joinable (then most recently seen) one represents the post.
// Posts are ordered newest-id first, ties broken by last-seen.
func (r *Registry) Snapshot() []magnet.LobbyView {
	r.mu.Lock()
	items := make([]snapshotItem, 0, len(r.byLink))
	for _, entry := range r.byLink {
		items = append(items, r.itemLocked(entry))
	}
	r.mu.Unlock()

	byPost := make(map[string]snapshotItem, len(items))
	for _, item := range items {
		key := strings.ToLower(item.view.PostID)
		if key == "" {
			key = strings.ToLower(item.view.Link)
		}
		best, ok := byPost[key]
		if !ok || betterRepresentative(item, best) {
			byPost[key] = item
		}
	}

	out := make([]snapshotItem, 0, len(byPost))
	for _, item := range byPost {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].sortPostID != out[j].sortPostID {
			return out[i].sortPostID > out[j].sortPostID
		}
		return out[i].view.LastSeen.After(out[j].view.LastSeen)
	})

	views := make([]magnet.LobbyView, len(out))
	for i, item := range out {
		views[i] = item.view
	}
	return views
}

func betterRepresentative(a, b snapshotItem) bool {
	if a.rank != b.rank {
		return a.rank > b.rank
	}
	return a.view.LastSeen.After(b.view.LastSeen)
}

func (r *Registry) itemLocked(entry *Entry) snapshotItem {
	view := magnet.LobbyView{
		Link:        entry.Link,
		SourceCount: len(entry.Sources),
		Status:      entry.Status,
		LastSeen:    entry.LastSeen,
	}
	if entry.Members.Known {
		count, limit := entry.Members.Count, entry.Members.Limit
		view.MemberCount = &count
		view.MemberLimit = &limit
	}

	var sortPostID int64
	for _, src := range entry.Sources {
		if id, err := strconv.ParseInt(src.Record.ID, 10, 64); err == nil && id > sortPostID {
			sortPostID = id
		}
	}
	if newest := entry.newestSource(); newest != nil {
		view.PostID = newest.Record.ID
		view.PostTitle = newest.Record.Title
		view.Author = newest.Record.Author
		view.PostDate = newest.Record.Date
		view.Views = newest.Record.Views
		view.PostURL = newest.Record.URL
	}

	return snapshotItem{view: view, rank: entry.Status.Rank(), sortPostID: sortPostID}
}
