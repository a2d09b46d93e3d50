package posting

import (
	"regexp"
	"strconv"
	"time"
)

// FallbackEstimateSeconds is used when a review date cannot be parsed.
const FallbackEstimateSeconds = 15

var numericToken = regexp.MustCompile(`\d+`)

// ParseDisplayDate reads the review display date the way the backend renders it.
// Numeric tokens are taken positionally: three or more tokens are year, month, day
// (two-digit years land in the 2000s); two tokens are month and day of now's year.
func ParseDisplayDate(s string, now time.Time) (time.Time, bool) {
	tokens := numericToken.FindAllString(s, -1)

	var year, month, day int
	var err error
	switch {
	case len(tokens) >= 3:
		if year, err = strconv.Atoi(tokens[0]); err != nil {
			return time.Time{}, false
		}
		if year < 100 {
			year += 2000
		}
		if month, err = strconv.Atoi(tokens[1]); err != nil {
			return time.Time{}, false
		}
		if day, err = strconv.Atoi(tokens[2]); err != nil {
			return time.Time{}, false
		}
	case len(tokens) == 2:
		year = now.Year()
		if month, err = strconv.Atoi(tokens[0]); err != nil {
			return time.Time{}, false
		}
		if day, err = strconv.Atoi(tokens[1]); err != nil {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	// time.Date normalises Feb 30 into March; reject instead.
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, false
	}
	return date, true
}

// AgeInDays counts calendar days between date and now. Future dates count as 0.
func AgeInDays(date, now time.Time) int {
	age := civilDays(now.Year(), int(now.Month()), now.Day()) - civilDays(date.Year(), int(date.Month()), date.Day())
	if age < 0 {
		return 0
	}
	return age
}

// civilDays returns the proleptic Gregorian day number of y-m-d. Working on
// calendar fields keeps the count exact across DST shifts and far beyond the
// roughly 292 years a time.Duration can hold.
func civilDays(y, m, d int) int {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe
}

// EstimateDuration returns the expected processing time in seconds for a review
// with the given display date. Recent reviews are slower upstream.
func EstimateDuration(displayDate string, now time.Time) int {
	date, ok := ParseDisplayDate(displayDate, now)
	if !ok {
		return FallbackEstimateSeconds
	}
	return estimateForAge(AgeInDays(date, now))
}

func estimateForAge(days int) int {
	switch {
	case days <= 3:
		return 8
	case days <= 14:
		return 12
	case days <= 60:
		return 18
	default:
		return 25
	}
}
