// Package history derives reporting statistics from the appointment book.
// Everything here is read-only.
package history

import (
	"math"
	"sort"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type Counts struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Cancelled      int `json:"cancelled"`
	NoShow         int `json:"noShow"`
	CompletionRate int `json:"completionRate"`
}

// CountAll tallies statuses. CompletionRate is completed/total as a whole
// percentage, 0 for an empty collection.
func CountAll(appts []model.Appointment) Counts {
	var c Counts
	for _, a := range appts {
		c.Total++
		switch a.Status {
		case model.StatusCompleted:
			c.Completed++
		case model.StatusCancelled:
			c.Cancelled++
		case model.StatusNoShow:
			c.NoShow++
		}
	}
	if c.Total > 0 {
		c.CompletionRate = int(math.Round(float64(c.Completed) * 100 / float64(c.Total)))
	}
	return c
}

type WeekdayCount struct {
	Weekday string `json:"weekday"`
	Count   int    `json:"count"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type ClientStats struct {
	ClientID string `json:"clientId"`
	Counts
	AverageDurationMinutes int            `json:"averageDurationMinutes"`
	FavoriteServiceID      string         `json:"-"`
	FavoriteStylistID      string         `json:"-"`
	FavoriteService        *Ref           `json:"favoriteService,omitempty"`
	FavoriteStylist        *Ref           `json:"favoriteStylist,omitempty"`
	BusiestWeekdays        []WeekdayCount `json:"busiestWeekdays"`
	BusiestHours           []HourCount    `json:"busiestHours"`
	AverageIntervalDays    float64        `json:"averageIntervalDays"`
}

// ForClient computes the statistics of one client over appts, which must
// already be in iteration order (date, start time, id). Ties for favorite
// service or stylist go to the one encountered first.
func ForClient(appts []model.Appointment, clientID string) ClientStats {
	mine := model.Filter{ClientID: clientID}.Apply(appts)
	st := ClientStats{ClientID: clientID, Counts: CountAll(mine)}

	var completed []model.Appointment
	for _, a := range mine {
		if a.Status == model.StatusCompleted {
			completed = append(completed, a)
		}
	}
	if len(completed) > 0 {
		total := 0
		for _, a := range completed {
			total += a.DurationMinutes()
		}
		st.AverageDurationMinutes = int(math.Round(float64(total) / float64(len(completed))))
	}

	services := newTally[string]()
	stylists := newTally[string]()
	weekdays := newTally[time.Weekday]()
	hours := newTally[int]()
	for _, a := range mine {
		services.add(a.ServiceID)
		stylists.add(a.StylistID)
		weekdays.add(a.Date.Weekday())
		hours.add(a.StartTime.Hour())
	}
	st.FavoriteServiceID, _ = services.mode()
	st.FavoriteStylistID, _ = stylists.mode()

	st.BusiestWeekdays = []WeekdayCount{}
	for _, e := range weekdays.ranked() {
		st.BusiestWeekdays = append(st.BusiestWeekdays, WeekdayCount{Weekday: e.key.String(), Count: e.count})
	}
	st.BusiestHours = []HourCount{}
	for _, e := range hours.ranked() {
		st.BusiestHours = append(st.BusiestHours, HourCount{Hour: e.key, Count: e.count})
	}
	st.AverageIntervalDays = averageIntervalDays(completed)
	return st
}

// averageIntervalDays is the mean gap between consecutive completed visits,
// 0 with fewer than two visits.
func averageIntervalDays(completed []model.Appointment) float64 {
	if len(completed) < 2 {
		return 0
	}
	dates := make([]model.Date, 0, len(completed))
	for _, a := range completed {
		dates = append(dates, a.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	total := 0
	for i := 1; i < len(dates); i++ {
		total += dates[i-1].DaysUntil(dates[i])
	}
	return float64(total) / float64(len(dates)-1)
}

type entry[K comparable] struct {
	key   K
	count int
}

// tally counts keys and remembers first-seen order.
type tally[K comparable] struct {
	index   map[K]int
	entries []entry[K]
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{index: map[K]int{}}
}

func (t *tally[K]) add(k K) {
	i, ok := t.index[k]
	if !ok {
		t.index[k] = len(t.entries)
		t.entries = append(t.entries, entry[K]{key: k, count: 1})
		return
	}
	t.entries[i].count++
}

func (t *tally[K]) mode() (K, bool) {
	var best entry[K]
	found := false
	for _, e := range t.entries {
		if !found || e.count > best.count {
			best, found = e, true
		}
	}
	return best.key, found
}

// ranked sorts by count descending; equal counts keep first-seen order.
func (t *tally[K]) ranked() []entry[K] {
	out := append([]entry[K](nil), t.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}
