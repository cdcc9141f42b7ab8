package listing

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var exactLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

var exactDatePattern = regexp.MustCompile(`(\d{4}[./-]\d{2}[./-]\d{2})\s+(\d{2}:\d{2}(?::\d{2})?)`)

// FormatListDate renders the short display form for a listing row: the
// full title-attribute timestamp when parseable, otherwise the cleaned
// visible text.
func FormatListDate(full, shortText string) string {
	if t, ok := parseExact(strings.TrimSpace(full)); ok {
		return t.Format("01-02 15:04")
	}
	return cleanText(shortText)
}

// ExactPostDate extracts the precise timestamp a detail page carries in
// a .gall_date attribute or, failing that, its text. The result is
// rendered yyyy.MM.dd HH:mm:ss; an empty string means no usable value.
func ExactPostDate(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var out string
	doc.Find(".gall_date").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		candidate, ok := el.Attr("title")
		if !ok || strings.TrimSpace(candidate) == "" {
			candidate = el.Text()
		}
		candidate = cleanText(candidate)
		if candidate == "" {
			return true
		}
		if t, parsed := parseExact(candidate); parsed {
			out = t.Format("2006.01.02 15:04:05")
			return false
		}
		out = normalizeExactText(candidate)
		return false
	})
	return out
}

func parseExact(value string) (time.Time, bool) {
	for _, layout := range exactLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeExactText rewrites a recognizable "date time" fragment into
// dotted form with seconds; anything else passes through untouched.
func normalizeExactText(value string) string {
	m := exactDatePattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	datePart := strings.NewReplacer("-", ".", "/", ".").Replace(m[1])
	timePart := m[2]
	if len(timePart) == 5 {
		timePart += ":00"
	}
	return datePart + " " + timePart
}
