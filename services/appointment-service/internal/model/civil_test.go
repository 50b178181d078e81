package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDateAcceptsPlainAndISO(t *testing.T) {
	plain, err := ParseDate("2025-06-10")
	if err != nil {
		t.Fatalf("parse plain: %v", err)
	}
	iso, err := ParseDate("2025-06-10T00:00:00.000Z")
	if err != nil {
		t.Fatalf("parse iso: %v", err)
	}
	if plain != iso {
		t.Fatalf("expected same date, got %v and %v", plain, iso)
	}
	if plain.String() != "2025-06-10" {
		t.Fatalf("unexpected string: %s", plain)
	}
	if plain.Weekday() != time.Tuesday {
		t.Fatalf("expected tuesday, got %s", plain.Weekday())
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("10/06/2025"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDateOrderingAndArithmetic(t *testing.T) {
	d := Date{Year: 2025, Month: time.December, Day: 31}
	next := d.AddDays(1)
	if next != (Date{Year: 2026, Month: time.January, Day: 1}) {
		t.Fatalf("unexpected next day: %s", next)
	}
	if !d.Before(next) || next.Before(d) || !next.After(d) {
		t.Fatal("ordering mismatch")
	}
	if got := d.DaysUntil(d.AddDays(14)); got != 14 {
		t.Fatalf("expected 14 days, got %d", got)
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:45")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != 9*60+45 || c.String() != "09:45" || c.Hour() != 9 {
		t.Fatalf("unexpected clock: %d %s", c, c)
	}
	if end, err := ParseClock("24:00"); err != nil || end != 24*60 {
		t.Fatalf("expected end of day, got %d err=%v", end, err)
	}
	for _, bad := range []string{"24:30", "9:5", "12:60", "noon", ""} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDateAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("salon", 2*60*60)
	d := Date{Year: 2025, Month: time.June, Day: 10}
	at := d.At(10*60, loc)
	if at.UTC().Hour() != 8 {
		t.Fatalf("expected 08:00 UTC, got %s", at.UTC())
	}
	if DateOf(at, loc) != d || ClockOf(at, loc) != 10*60 {
		t.Fatal("round trip through location failed")
	}
}

func TestJSONUsesWallClockStrings(t *testing.T) {
	appt := Appointment{
		ID:        "a1",
		Date:      Date{Year: 2025, Month: time.June, Day: 10},
		StartTime: 10 * 60,
		EndTime:   11 * 60,
		Status:    StatusScheduled,
	}
	raw, err := json.Marshal(appt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["date"] != "2025-06-10" || decoded["startTime"] != "10:00" || decoded["endTime"] != "11:00" {
		t.Fatalf("unexpected json: %s", raw)
	}
	if _, ok := decoded["modificationToken"]; ok {
		t.Fatal("tokens must not be serialized with the appointment")
	}
}

func TestStatusClassification(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusRescheduled} {
		if !s.Live() || s.Terminal() {
			t.Fatalf("%s should be live", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if s.Live() || !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if s, ok := ParseStatus("no-show"); !ok || s != StatusNoShow {
		t.Fatalf("expected noShow alias, got %s", s)
	}
	if _, ok := ParseStatus("booked"); ok {
		t.Fatal("unknown status accepted")
	}
}
