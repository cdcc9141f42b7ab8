// Package links scans documents for steam joinlobby references.
package links

import (
	"regexp"
	"strconv"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

var (
	linkPattern  = regexp.MustCompile(`(?i)steam://joinlobby/\d+/\d+/\d+`)
	parsePattern = regexp.MustCompile(`(?i)steam://joinlobby/(\d+)/(\d+)/(\d+)`)
)

// Extract returns every joinlobby reference in the document, in document
// order. No deduplication or validation happens here; that is the
// registry's job.
func Extract(text string) []string {
	return linkPattern.FindAllString(text, -1)
}

// ParseTriple extracts the numeric (app, lobby, host) triple from one
// reference. It reports false when the reference does not match the
// grammar or any field overflows its numeric domain.
func ParseTriple(link string) (magnet.Triple, bool) {
	m := parsePattern.FindStringSubmatch(link)
	if m == nil {
		return magnet.Triple{}, false
	}
	app, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return magnet.Triple{}, false
	}
	lobby, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return magnet.Triple{}, false
	}
	host, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return magnet.Triple{}, false
	}
	return magnet.Triple{App: uint32(app), Lobby: lobby, Host: host}, true
}
