package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a salon-local calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts a plain YYYY-MM-DD date or an ISO-8601 timestamp, in
// which case only the date part is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) && (s[len(dateLayout)] == 'T' || s[len(dateLayout)] == ' ') {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return DateOf(t, time.UTC), nil
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// At returns the instant of clock c on day d in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, int(c), 0, 0, loc)
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(o Date) bool { return d.midnight().Before(o.midnight()) }
func (d Date) After(o Date) bool  { return d.midnight().After(o.midnight()) }
func (d Date) Equal(o Date) bool  { return d == o }

func (d Date) Weekday() time.Weekday { return d.midnight().Weekday() }

func (d Date) AddDays(n int) Date { return DateOf(d.midnight().AddDate(0, 0, n), time.UTC) }

// DaysUntil returns the whole number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.midnight().Sub(d.midnight()).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.midnight().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

const endOfDay Clock = 24 * 60

// ParseClock parses HH:MM. 24:00 is accepted to express the end of the day.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: invalid time %q", ErrValidation, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q", ErrValidation, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: invalid time %q", ErrValidation, s)
	}
	return Clock(h*60 + m), nil
}

// ClockOf returns the minute-of-day of t in loc.
func ClockOf(t time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// Sub returns c - o in minutes.
func (c Clock) Sub(o Clock) int { return int(c - o) }

func (c Clock) Hour() int { return int(c) / 60 }

func (c Clock) Valid() bool { return c >= 0 && c <= endOfDay }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
