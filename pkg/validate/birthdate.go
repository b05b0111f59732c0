package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

var spokenDateRe = regexp.MustCompile(`^(\d{1,2})\.?\s*([\p{L}]+)\.?\s+(\d{4})$`)

var germanMonths = map[string]time.Month{
	"januar": time.January, "jänner": time.January, "jaenner": time.January, "jan": time.January,
	"februar": time.February, "feber": time.February, "feb": time.February,
	"märz": time.March, "maerz": time.March, "mär": time.March, "mrz": time.March,
	"april": time.April, "apr": time.April,
	"mai": time.May,
	"juni": time.June, "jun": time.June,
	"juli": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"dezember": time.December, "dez": time.December,
}

var numericDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"2.1.2006",
}

const isoDate = "2006-01-02"

// checkBirthDate accepts "D. Monat YYYY" or a numeric calendar date and returns YYYY-MM-DD.
func (v *Validator) checkBirthDate(raw string) (string, string) {
	s := strings.Join(strings.Fields(raw), " ")
	s = strings.TrimSuffix(s, ".")

	d, ok := parseSpokenDate(s)
	if !ok {
		d, ok = parseNumericDate(s)
	}
	if !ok {
		return "", "not a date"
	}
	if d.Year() < 1900 {
		return "", "before 1900"
	}
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(today) {
		return "", "in the future"
	}
	return d.Format(isoDate), ""
}

func parseSpokenDate(s string) (time.Time, bool) {
	m := spokenDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := germanMonths[cases.Fold().String(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	return calendarDate(year, month, day)
}

func parseNumericDate(s string) (time.Time, bool) {
	for _, layout := range numericDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// calendarDate rejects dates that time.Date would silently roll over.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
