// Package listing parses the board listing and detail documents and
// decides which detail pages need (re)fetching.
package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

// MinPostsPerPoll floors the per-poll cap so the first listing page is
// always fully covered.
const MinPostsPerPoll = 50

var digitsPattern = regexp.MustCompile(`\d+`)

// Diagnostics summarizes one listing parse for the empty-result warning.
type Diagnostics struct {
	Title        string
	Rows         int
	Records      int
	MissingTitle int
	MissingHref  int
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("rows=%d records=%d missing_title=%d missing_href=%d title=%q",
		d.Rows, d.Records, d.MissingTitle, d.MissingHref, d.Title)
}

// ParseList extracts post records from a listing document in source
// order, truncated to maxPosts (floored at MinPostsPerPoll). Rows with
// no title link, no href, or a href that is not a detail view are
// dropped and counted, not errors. Relative hrefs resolve against
// listURL.
func ParseList(html, listURL string, maxPosts int) ([]magnet.PostRecord, Diagnostics, error) {
	var diag Diagnostics
	if maxPosts < MinPostsPerPoll {
		maxPosts = MinPostsPerPoll
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, diag, fmt.Errorf("parse listing html: %w", err)
	}
	diag.Title = strings.TrimSpace(doc.Find("title").First().Text())

	base, _ := url.Parse(listURL)

	var records []magnet.PostRecord
	// Rows past the cap still count toward diagnostics, only
	// extraction stops.
	doc.Find("tr.ub-content").Each(func(_ int, row *goquery.Selection) {
		diag.Rows++
		if len(records) >= maxPosts {
			return
		}
		rec, ok := extractRecord(row, base, &diag)
		if !ok {
			return
		}
		records = append(records, rec)
	})

	diag.Records = len(records)
	return records, diag, nil
}

func extractRecord(row *goquery.Selection, base *url.URL, diag *Diagnostics) (magnet.PostRecord, bool) {
	anchor := row.Find("td.gall_tit a").First()
	if anchor.Length() == 0 {
		diag.MissingTitle++
		return magnet.PostRecord{}, false
	}
	href, ok := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		diag.MissingHref++
		return magnet.PostRecord{}, false
	}
	if !strings.Contains(strings.ToLower(href), "board/view") {
		return magnet.PostRecord{}, false
	}

	title := cleanText(anchor.Text())
	if n := replyCount(row); n > 0 {
		badge := fmt.Sprintf("[%d]", n)
		if !strings.Contains(title, badge) {
			title = title + " " + badge
		}
	}

	return magnet.PostRecord{
		ID:     postID(row),
		Title:  title,
		Author: cleanText(row.Find("td.gall_writer").First().Text()),
		Date:   listDate(row),
		Views:  viewCount(row),
		URL:    absoluteURL(base, href),
	}, true
}

func postID(row *goquery.Selection) string {
	if id, ok := row.Attr("data-no"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return cleanText(row.Find("td.gall_num").First().Text())
}

func listDate(row *goquery.Selection) string {
	cell := row.Find("td.gall_date").First()
	if cell.Length() == 0 {
		return ""
	}
	full, _ := cell.Attr("title")
	return FormatListDate(full, cell.Text())
}

func viewCount(row *goquery.Selection) string {
	cleaned := cleanText(row.Find("td.gall_count").First().Text())
	if cleaned == "" {
		return cleaned
	}
	digits := keepDigits(cleaned)
	if digits == "" {
		return cleaned
	}
	return digits
}

func replyCount(row *goquery.Selection) int {
	text := row.Find("span.reply_num").First().Text()
	m := digitsPattern.FindString(text)
	if m == "" {
		return 0
	}
	n := 0
	for _, r := range m {
		n = n*10 + int(r-'0')
		if n > 1<<20 {
			return 0
		}
	}
	return n
}

// absoluteURL resolves href against the listing URL, matching the board's
// scheme/host conventions for protocol-relative and rooted links.
func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
