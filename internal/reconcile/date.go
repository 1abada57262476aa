package reconcile

import (
	"regexp"
	"strconv"
	"time"
)

// applyByEpoch anchors the site's two-digit years. The source only ever
// emits deadlines in the 2000s; this is a fixed assumption, not a sliding
// window.
const applyByEpoch = 2000

var applyByPattern = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)'\s*(\d{1,2})`)

var monthsByName = map[string]time.Month{
	"Jan": time.January,
	"Feb": time.February,
	"Mar": time.March,
	"Apr": time.April,
	"May": time.May,
	"Jun": time.June,
	"Jul": time.July,
	"Aug": time.August,
	"Sep": time.September,
	"Oct": time.October,
	"Nov": time.November,
	"Dec": time.December,
}

// ParseApplyBy parses the site's deadline format "D MMM' YY", e.g.
// "5 Jun' 25". The second return is false when the input does not carry a
// parsable date; callers treat that as "keep" (fail open).
func ParseApplyBy(s string) (time.Time, bool) {
	m := applyByPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := monthsByName[m[2]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(applyByEpoch+year, month, day, 0, 0, 0, 0, time.UTC), true
}
