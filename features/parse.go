// features/parse.go
package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gewnthar/fareprice/utils"
)

var (
	// ErrMalformedDuration is returned when a duration has neither an hour nor a minute part.
	ErrMalformedDuration = errors.New("malformed duration")
	// ErrUnknownStops is returned for a Total_Stops label outside the ordinal scale.
	ErrUnknownStops = errors.New("unknown stop label")
)

const journeyDateLayout = "2/1/2006" // %d/%m/%Y, leading zeros optional

// stopLevels is the ordinal scale for Total_Stops.
var stopLevels = map[string]int{
	"non-stop": 0,
	"1 stop":   1,
	"2 stops":  2,
	"3 stops":  3,
	"4 stops":  4,
}

// ParseDuration splits "<X>h <Y>m" into hours and minutes. Either part may be
// absent: a lone token with an "h" gets " 0m" appended, any other lone token
// gets "0h " prepended, before the two parts are read.
func ParseDuration(s string) (hours, minutes int, err error) {
	d := strings.TrimSpace(s)
	if len(strings.Fields(d)) != 2 {
		if strings.Contains(d, "h") {
			d = d + " 0m"
		} else {
			d = "0h " + d
		}
	}

	parts := strings.Fields(d)
	if len(parts) != 2 || !strings.HasSuffix(parts[0], "h") || !strings.HasSuffix(parts[1], "m") {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
	}
	hours, err = strconv.Atoi(strings.TrimSuffix(parts[0], "h"))
	if err != nil || hours < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
	}
	minutes, err = strconv.Atoi(strings.TrimSuffix(parts[1], "m"))
	if err != nil || minutes < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
	}
	return hours, minutes, nil
}

// ParseStops maps a Total_Stops label onto its ordinal level.
func ParseStops(s string) (int, error) {
	level, ok := stopLevels[utils.FoldLabel(s)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStops, s)
	}
	return level, nil
}

// ParseJourneyDate returns the day and month of a dd/mm/yyyy date.
func ParseJourneyDate(s string) (day, month int, err error) {
	t, err := time.Parse(journeyDateLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid journey date %q: %w", s, err)
	}
	return t.Day(), int(t.Month()), nil
}

// ParseClock reads the leading HH:MM of a time cell. Arrival cells may carry a
// trailing date ("01:10 22 Mar"), which is ignored.
func ParseClock(s string) (hour, minute int, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("invalid clock time %q: empty", s)
	}
	t, err := time.Parse("15:04", fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
