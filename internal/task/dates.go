package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateMatch is a resolved date expression inside a larger text. Start and
// End are byte offsets of the exact matched substring, so the caller can
// remove it without perturbing surrounding spacing.
type DateMatch struct {
	Date  time.Time
	Text  string
	Start int
	End   int
}

var (
	compactDateRe = regexp.MustCompile(`(?:^|[^0-9])(\d{8})(?:[^0-9]|$)`)
	todayWordRe   = regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday)\b`)
	nextUnitRe    = regexp.MustCompile(`(?i)\bnext (week|month)\b`)
	endOfRe       = regexp.MustCompile(`(?i)\bend of (week|month)\b`)
	inNRe         = regexp.MustCompile(`(?i)\bin (\d+) (day|week|month)s?\b`)
	weekdayRe     = regexp.MustCompile(`(?i)\b(?:(next|this)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

	monthNamePat = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
	monthDayRe   = regexp.MustCompile(`(?i)\b(` + monthNamePat + `)\s+(\d{1,2})(?:,?\s+(\d{4}))?\b`)
	dayMonthRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(` + monthNamePat + `)(?:,?\s+(\d{4}))?\b`)
)

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ResolveDate finds the first date expression in text relative to now.
// Patterns are tried in a fixed order (compact, relative vocabulary,
// month-day forms); only the first matching pattern is used and the
// resolver never backtracks. A compact 8-digit token that is not a real
// calendar date is reported as an error rather than skipped.
func ResolveDate(text string, now time.Time) (DateMatch, bool, error) {
	day := startOfDay(now)

	if loc := compactDateRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[2], loc[3]
		raw := text[s:e]
		d, err := time.ParseInLocation(DateFormat, raw, now.Location())
		if err != nil || d.Format(DateFormat) != raw {
			return DateMatch{}, false, fmt.Errorf("invalid date %q", raw)
		}
		return DateMatch{Date: d, Text: raw, Start: s, End: e}, true, nil
	}

	if loc := todayWordRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		var d time.Time
		switch strings.ToLower(text[s:e]) {
		case "today":
			d = day
		case "tomorrow":
			d = day.AddDate(0, 0, 1)
		case "yesterday":
			d = day.AddDate(0, 0, -1)
		}
		return DateMatch{Date: d, Text: text[s:e], Start: s, End: e}, true, nil
	}

	if loc := nextUnitRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		var d time.Time
		switch strings.ToLower(text[loc[2]:loc[3]]) {
		case "week":
			d = day.AddDate(0, 0, 7)
		case "month":
			d = addMonthsClamped(day, 1)
		}
		return DateMatch{Date: d, Text: text[s:e], Start: s, End: e}, true, nil
	}

	if loc := endOfRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		var d time.Time
		switch strings.ToLower(text[loc[2]:loc[3]]) {
		case "week":
			// The coming Sunday; today when already Sunday.
			delta := (int(time.Sunday) - int(day.Weekday()) + 7) % 7
			d = day.AddDate(0, 0, delta)
		case "month":
			d = lastDayOfMonth(day)
		}
		return DateMatch{Date: d, Text: text[s:e], Start: s, End: e}, true, nil
	}

	if loc := inNRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		var d time.Time
		switch strings.ToLower(text[loc[4]:loc[5]]) {
		case "day":
			d = day.AddDate(0, 0, n)
		case "week":
			d = day.AddDate(0, 0, 7*n)
		case "month":
			d = addMonthsClamped(day, n)
		}
		return DateMatch{Date: d, Text: text[s:e], Start: s, End: e}, true, nil
	}

	if loc := weekdayRe.FindStringSubmatchIndex(text); loc != nil {
		s, e := loc[0], loc[1]
		qualifier := ""
		if loc[2] >= 0 {
			qualifier = strings.ToLower(text[loc[2]:loc[3]])
		}
		wd := weekdayNames[strings.ToLower(text[loc[4]:loc[5]])]
		// Bare names and "this" mean the nearest occurrence, today
		// included; "next" skips to the following week when today
		// already matches.
		delta := (int(wd) - int(day.Weekday()) + 7) % 7
		if qualifier == "next" && delta == 0 {
			delta = 7
		}
		d := day.AddDate(0, 0, delta)
		return DateMatch{Date: d, Text: text[s:e], Start: s, End: e}, true, nil
	}

	if loc := monthDayRe.FindStringSubmatchIndex(text); loc != nil {
		return resolveMonthDay(text, loc, loc[2], loc[4], loc[6], day)
	}

	if loc := dayMonthRe.FindStringSubmatchIndex(text); loc != nil {
		return resolveMonthDay(text, loc, loc[4], loc[2], loc[6], day)
	}

	return DateMatch{}, false, nil
}

// resolveMonthDay handles "Jan 5", "5 Jan" and explicit-year variants.
// Without a year the date defaults to the current year, rolling to the
// next year when it has already passed.
func resolveMonthDay(text string, loc []int, monthStart, dayStart, yearStart int, today time.Time) (DateMatch, bool, error) {
	s, e := loc[0], loc[1]
	monthName := strings.ToLower(text[monthStart : monthStart+3])
	month, ok := monthNumbers[monthName]
	if !ok {
		return DateMatch{}, false, nil
	}
	dayEnd := dayStart
	for dayEnd < len(text) && text[dayEnd] >= '0' && text[dayEnd] <= '9' {
		dayEnd++
	}
	dom, _ := strconv.Atoi(text[dayStart:dayEnd])

	year := today.Year()
	explicitYear := yearStart >= 0
	if explicitYear {
		year, _ = strconv.Atoi(text[yearStart : yearStart+4])
	}

	if dom < 1 || dom > daysInMonth(year, month) {
		return DateMatch{}, false, fmt.Errorf("invalid date %q", text[s:e])
	}
	d := time.Date(year, month, dom, 0, 0, 0, 0, today.Location())
	if !explicitYear && d.Before(today) {
		year++
		if dom > daysInMonth(year, month) {
			return DateMatch{}, false, fmt.Errorf("invalid date %q", text[s:e])
		}
		d = time.Date(year, month, dom, 0, 0, 0, 0, today.Location())
	}
	return DateMatch{Date: d, Text: text[s:e], Start: s, End: e}, true, nil
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func lastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, daysInMonth(y, m), 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonthsClamped adds n months, clamping the day-of-month to the last
// valid day of the target month (Jan 31 + 1 month = Feb 28/29). Go's
// AddDate would normalise into March instead, which is not what recurring
// monthly tasks expect.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, t.Location())
}
