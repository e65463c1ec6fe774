package utils

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseableDate is returned when no supported layout matches.
var ErrUnparseableDate = errors.New("unrecognized date format")

// Period bound used when the input omits the day or the time of day.
type Bound int

const (
	StartOfPeriod Bound = iota
	EndOfPeriod
)

var (
	yearMonthRe   = regexp.MustCompile(`^(\d{4})\s*[,./-]\s*(\d{1,2})$`)
	dateRe        = regexp.MustCompile(`^(\d{4})\D(\d{1,2})\D(\d{1,2})$`)
	minuteLayouts = []string{"2006-01-02 15:04", "2006/01/02 15:04", "2006.01.02 15:04"}
)

// ParseUserDatetime reads the loose date formats users type into forms:
//
//	"2025, 7"          -> first instant of July (or last second with EndOfPeriod)
//	"2025-07-15"       -> 00:00:00 (or 23:59:59) that day; '/' and '.' also work
//	"2025/07/15 18:30" -> that minute
//	RFC 3339           -> that instant
//
// Dates without an offset are interpreted in loc.
func ParseUserDatetime(s string, bound Bound, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo < 1 || mo > 12 {
			return time.Time{}, ErrUnparseableDate
		}
		if bound == EndOfPeriod {
			// day 0 of the next month is the last day of this one
			return time.Date(y, time.Month(mo)+1, 0, 23, 59, 59, 0, loc), nil
		}
		return time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, loc), nil
	}
	if m := dateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, loc)
		if t.Month() != time.Month(mo) || t.Day() != d {
			return time.Time{}, ErrUnparseableDate
		}
		if bound == EndOfPeriod {
			t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		}
		return t, nil
	}
	for _, layout := range minuteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrUnparseableDate
}
