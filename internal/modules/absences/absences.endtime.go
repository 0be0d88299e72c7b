package absences

import (
	"fmt"
	"strings"
	"time"
)

const DefaultGracePeriod = 5 * time.Minute

const dateLayout = "2006-01-02"

var clockLayouts = []string{"15:04:05", "15:04"}

// EndTimeCalculator turns wall-clock session fields into absolute instants.
// Every wall-clock value is read in one location; the instants it returns are
// compared and persisted as absolute times.
type EndTimeCalculator struct {
	loc   *time.Location
	grace time.Duration
}

func NewEndTimeCalculator(loc *time.Location, grace time.Duration) *EndTimeCalculator {
	if loc == nil {
		loc = time.Local
	}
	if grace < 0 {
		grace = DefaultGracePeriod
	}
	return &EndTimeCalculator{loc: loc, grace: grace}
}

func (c *EndTimeCalculator) Location() *time.Location {
	return c.loc
}

// EndInstant is combine(date, endTime) plus the grace period.
func (c *EndTimeCalculator) EndInstant(date, endTime string) (time.Time, error) {
	if strings.TrimSpace(endTime) == "" {
		return time.Time{}, MalformedScheduleError("end_time", endTime, fmt.Errorf("end time is missing"))
	}
	end, err := c.Combine(date, endTime)
	if err != nil {
		return time.Time{}, err
	}
	return end.Add(c.grace), nil
}

// Combine reads date and clock as a wall-clock time in the configured location.
func (c *EndTimeCalculator) Combine(date, clock string) (time.Time, error) {
	day, err := parseDate(date, c.loc)
	if err != nil {
		return time.Time{}, MalformedScheduleError("date", date, err)
	}
	tod, err := parseClock(clock)
	if err != nil {
		return time.Time{}, MalformedScheduleError("time", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, c.loc), nil
}

// DateOf returns the calendar date of t in the configured location.
func (c *EndTimeCalculator) DateOf(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// parseDate accepts YYYY-MM-DD, optionally followed by a time part. A
// timestamp carrying a zone ("2024-02-29T23:00:00.000000Z") is moved into loc
// first, so a local midnight serialised as UTC keeps its calendar day.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is missing")
	}
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339Nano, strings.Replace(s, " ", "T", 1)); err == nil {
			local := t.In(loc)
			return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		if s[len(dateLayout)] == 'T' || s[len(dateLayout)] == ' ' {
			s = s[:len(dateLayout)]
		}
	}
	return time.Parse(dateLayout, s)
}

func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time is missing")
	}
	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
