/*
shift.go - Shift time-splitting with overnight wraparound

PURPOSE:
  Converts a start/end wall-clock pair ("HH:MM") into standard vs.
  off-standard hours. The standard window is 08:00-20:00 local time.
  A shift whose end is numerically before its start crosses midnight,
  so the split also has to consider the NEXT day's standard window:
  22:00-10:00 spends 02:00-08:00 off-standard and 08:00-10:00 standard.

ALGORITHM:
  1. Parse both times to minutes since midnight.
  2. If end < start, add 1440 to end (overnight).
  3. Overlap the shift with [480, 1200] and [480+1440, 1200+1440],
     summing only positive overlaps.
  4. Off-standard minutes are the remainder of the total duration.

  The overlap comparison is strict (end > start), so a shift that merely
  touches 08:00 or 20:00 without crossing it contributes nothing to the
  side it touches.

SEE ALSO:
  - cost.go: combines the split with rates and the technician multiplier
*/
package billing

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minutesPerDay = 24 * 60

	// Standard billing window, minutes since midnight.
	standardWindowStart = 8 * 60  // 08:00
	standardWindowEnd   = 20 * 60 // 20:00
)

// ParseClock parses an "HH:MM" wall-clock string into minutes since
// midnight. Hours run 0-23, minutes 0-59.
func ParseClock(s string) (int, error) {
	return parseClockField("time", s)
}

func parseClockField(field, s string) (int, error) {
	h, m, ok := splitClock(s)
	if !ok {
		return 0, &FieldError{Field: field, Message: fmt.Sprintf("%q is not a valid HH:MM time", s)}
	}
	return h*60 + m, nil
}

func splitClock(s string) (h, m int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// SplitShift decomposes a shift into standard and off-standard hours.
//
// The function is total over well-formed "HH:MM" pairs: equal start and end
// yield a zero split rather than an error. Callers reject zero-duration
// shifts as a validation failure before billing.
func SplitShift(entryTime, endTime string) (ShiftSplit, error) {
	start, err := parseClockField("entryTime", entryTime)
	if err != nil {
		return ShiftSplit{}, err
	}
	end, err := parseClockField("endTime", endTime)
	if err != nil {
		return ShiftSplit{}, err
	}

	// Overnight: end before start means the shift crosses midnight.
	if end < start {
		end += minutesPerDay
	}

	standardMins := overlap(start, end, standardWindowStart, standardWindowEnd)
	standardMins += overlap(start, end, standardWindowStart+minutesPerDay, standardWindowEnd+minutesPerDay)

	offStandardMins := (end - start) - standardMins

	return ShiftSplit{
		StandardHours:    float64(standardMins) / 60,
		OffStandardHours: float64(offStandardMins) / 60,
	}, nil
}

// overlap returns the positive overlap in minutes of [start, end) with
// [winStart, winEnd), or 0 when they merely touch.
func overlap(start, end, winStart, winEnd int) int {
	lo := max(start, winStart)
	hi := min(end, winEnd)
	if hi > lo {
		return hi - lo
	}
	return 0
}

// DurationHours returns the raw wraparound-normalized shift length in
// hours. This is the unweighted figure stored on the entry and summed by
// the summary metrics.
func DurationHours(entryTime, endTime string) (float64, error) {
	start, err := parseClockField("entryTime", entryTime)
	if err != nil {
		return 0, err
	}
	end, err := parseClockField("endTime", endTime)
	if err != nil {
		return 0, err
	}
	if end < start {
		end += minutesPerDay
	}
	return float64(end-start) / 60, nil
}
