package availability

import "github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"

// Interval is a half-open wall-clock range [Start, End).
type Interval struct {
	Start model.Clock
	End   model.Clock
}

// Overlaps reports whether two half-open intervals intersect:
// [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
func (i Interval) Overlaps(b Interval) bool {
	return i.Start < b.End && b.Start < i.End
}

// Expand widens the interval by buffer minutes on both ends.
func (i Interval) Expand(buffer int) Interval {
	if buffer <= 0 {
		return i
	}
	return Interval{Start: i.Start.Add(-buffer), End: i.End.Add(buffer)}
}

// Contains uses the booked-slot rule: start <= c < end.
func (i Interval) Contains(c model.Clock) bool {
	return i.Start <= c && c < i.End
}

// Placement is an interval pinned to a stylist and a day.
type Placement struct {
	Date      model.Date
	StylistID string
	Interval
}

// Conflicts is the overlap detector. Placements on different dates or for
// different stylists never conflict.
func Conflicts(a, b Placement) bool {
	if a.Date != b.Date || a.StylistID != b.StylistID {
		return false
	}
	return a.Interval.Overlaps(b.Interval)
}

type Slot struct {
	StartTime model.Clock `json:"startTime"`
	EndTime   model.Clock `json:"endTime"`
	Available bool        `json:"available"`
}

// GenerateSlots returns the fixed-granularity grid for one business day. It
// depends on configuration only; bookings are applied by the Checker.
func GenerateSlots(hours model.BusinessHours) []Slot {
	step := hours.SlotDuration
	if step <= 0 || hours.End <= hours.Start {
		return nil
	}
	slots := make([]Slot, 0, hours.End.Sub(hours.Start)/step)
	for t := hours.Start; t.Add(step) <= hours.End; t = t.Add(step) {
		slots = append(slots, Slot{StartTime: t, EndTime: t.Add(step), Available: true})
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
