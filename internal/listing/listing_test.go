package listing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

const listURL = "https://gall.dcinside.com/mgallery/board/lists?id=bingbong"

func row(no, title, href, author, dateTitle, dateText, views, reply string) string {
	replySpan := ""
	if reply != "" {
		replySpan = fmt.Sprintf(`<span class="reply_num">[%s]</span>`, reply)
	}
	return fmt.Sprintf(`<tr class="ub-content" data-no="%s">
		<td class="gall_num">%s</td>
		<td class="gall_tit"><a href="%s">%s</a>%s</td>
		<td class="gall_writer">%s</td>
		<td class="gall_date" title="%s">%s</td>
		<td class="gall_count">%s</td>
	</tr>`, no, no, href, title, replySpan, author, dateTitle, dateText, views)
}

func page(rows ...string) string {
	return `<html><head><title>bingbong board</title></head><body><table>` +
		strings.Join(rows, "\n") + `</table></body></html>`
}

func TestParseListExtractsRecords(t *testing.T) {
	t.Parallel()

	html := page(
		row("42", "room up", "/mgallery/board/view/?id=bingbong&amp;no=42", "host", "2025-09-01 11:22:33", "11:22", "1,234", ""),
		row("43", "another", "//gall.dcinside.com/mgallery/board/view/?id=bingbong&no=43", "other", "", "08-31", "7", "3"),
	)

	records, diag, err := ParseList(html, listURL, 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 2, diag.Rows)
	require.Equal(t, 2, diag.Records)
	require.Equal(t, "bingbong board", diag.Title)

	first := records[0]
	require.Equal(t, "42", first.ID)
	require.Equal(t, "room up", first.Title)
	require.Equal(t, "host", first.Author)
	require.Equal(t, "09-01 11:22", first.Date)
	require.Equal(t, "1234", first.Views)
	require.Equal(t, "https://gall.dcinside.com/mgallery/board/view/?id=bingbong&no=42", first.URL)

	second := records[1]
	require.Equal(t, "another [3]", second.Title)
	require.Equal(t, "08-31", second.Date)
	require.Equal(t, "https://gall.dcinside.com/mgallery/board/view/?id=bingbong&no=43", second.URL)
}

func TestParseListSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	html := page(
		`<tr class="ub-content"><td class="gall_tit">no anchor</td></tr>`,
		`<tr class="ub-content"><td class="gall_tit"><a>no href</a></td></tr>`,
		row("9", "notice", "/mgallery/board/notice?id=x", "admin", "", "01-01", "5", ""),
		row("10", "real", "/mgallery/board/view/?no=10", "writer", "", "01-02", "6", ""),
	)

	records, diag, err := ParseList(html, listURL, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "real", records[0].Title)
	require.Equal(t, 4, diag.Rows)
	require.Equal(t, 1, diag.MissingTitle)
	require.Equal(t, 1, diag.MissingHref)
	require.Equal(t, 1, diag.Records)
}

func TestParseListCapFlooredAtFullPage(t *testing.T) {
	t.Parallel()

	rows := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		no := fmt.Sprintf("%d", i+1)
		rows = append(rows, row(no, "post "+no, "/mgallery/board/view/?no="+no, "w", "", "01-01", "1", ""))
	}

	// A cap below one page is raised to the page size, and rows past
	// the cap still show up in diagnostics.
	records, diag, err := ParseList(page(rows...), listURL, 5)
	require.NoError(t, err)
	require.Len(t, records, 50)
	require.Equal(t, 60, diag.Rows)
	require.Equal(t, 50, diag.Records)

	records, diag, err = ParseList(page(rows...), listURL, 55)
	require.NoError(t, err)
	require.Len(t, records, 55)
	require.Equal(t, 60, diag.Rows)
	require.Equal(t, "1", records[0].ID)
	require.Equal(t, "55", records[54].ID)
}

func TestParseListKeepsExistingReplyBadge(t *testing.T) {
	t.Parallel()

	html := page(row("1", "titled [2]", "/board/view?no=1", "w", "", "01-01", "3", "2"))
	records, _, err := ParseList(html, listURL, 50)
	require.NoError(t, err)
	require.Equal(t, "titled [2]", records[0].Title)
}

func TestNeedsFetchMetadataDrift(t *testing.T) {
	t.Parallel()

	base := magnet.PostRecord{ID: "1", Title: "t", Author: "a", Date: "01-01 10:00", Views: "10", URL: "u"}

	require.False(t, NeedsFetch(base, base, 0))
	require.True(t, NeedsFetch(base, withTitle(base, "t [1]"), 2))
	require.True(t, NeedsFetch(base, withAuthor(base, "b"), 2))
	require.True(t, NeedsFetch(base, base.WithDate("01-01 10:05"), 2))
}

func TestNeedsFetchViewThreshold(t *testing.T) {
	t.Parallel()

	base := magnet.PostRecord{Title: "t", Author: "a", Date: "d", Views: "10"}

	// Zero threshold: any difference triggers a refetch.
	require.True(t, NeedsFetch(base, withViews(base, "11"), 0))

	// Threshold 2: drift below the threshold is treated as noise.
	require.False(t, NeedsFetch(base, withViews(base, "11"), 2))
	require.True(t, NeedsFetch(base, withViews(base, "12"), 2))
	require.True(t, NeedsFetch(base, withViews(base, "99"), 2))

	// Unparseable counts fall back to strict comparison.
	require.True(t, NeedsFetch(base, withViews(base, "-"), 2))
}

func TestCacheOverwritesPerURL(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	rec := magnet.PostRecord{Title: "one", URL: "https://example.com/Board/View?no=1"}
	cache.Put(rec)

	got, ok := cache.Get("https://example.com/board/view?no=1")
	require.True(t, ok)
	require.Equal(t, "one", got.Title)

	cache.Put(withTitle(rec, "two"))
	got, _ = cache.Get(rec.URL)
	require.Equal(t, "two", got.Title)
	require.Equal(t, 1, cache.Len())
}

func withTitle(r magnet.PostRecord, v string) magnet.PostRecord  { r.Title = v; return r }
func withAuthor(r magnet.PostRecord, v string) magnet.PostRecord { r.Author = v; return r }
func withViews(r magnet.PostRecord, v string) magnet.PostRecord  { r.Views = v; return r }
