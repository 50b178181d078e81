package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

func appt(id string, day int, start model.Clock, minutes int, service, stylist string, status model.Status) model.Appointment {
	return model.Appointment{
		ID:        id,
		Date:      model.Date{Year: 2025, Month: time.June, Day: day},
		StartTime: start,
		EndTime:   start.Add(minutes),
		ClientID:  "client-1",
		ServiceID: service,
		StylistID: stylist,
		Status:    status,
	}
}

func TestCountAll(t *testing.T) {
	appts := []model.Appointment{
		appt("a1", 2, 600, 60, "cut", "ana", model.StatusCompleted),
		appt("a2", 3, 600, 60, "cut", "ana", model.StatusCompleted),
		appt("a3", 4, 600, 60, "cut", "ana", model.StatusCancelled),
	}
	c := CountAll(appts)
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 2, c.Completed)
	assert.Equal(t, 1, c.Cancelled)
	assert.Equal(t, 0, c.NoShow)
	assert.Equal(t, 67, c.CompletionRate)

	assert.Equal(t, Counts{}, CountAll(nil))
}

func TestForClient(t *testing.T) {
	// 2025-06-02 is a Monday.
	appts := []model.Appointment{
		appt("a1", 2, 600, 60, "color", "ana", model.StatusCompleted),
		appt("a2", 9, 600, 30, "cut", "ben", model.StatusCompleted),
		appt("a3", 16, 840, 30, "cut", "ana", model.StatusCompleted),
		appt("a4", 18, 840, 45, "color", "ben", model.StatusNoShow),
	}
	other := appt("x1", 3, 600, 60, "cut", "ben", model.StatusCompleted)
	other.ClientID = "client-2"
	appts = append(appts, other)

	st := ForClient(appts, "client-1")
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Completed)
	assert.Equal(t, 1, st.NoShow)
	assert.Equal(t, 75, st.CompletionRate)
	assert.Equal(t, 40, st.AverageDurationMinutes)
	// color and cut tie at two; color was seen first.
	assert.Equal(t, "color", st.FavoriteServiceID)
	assert.Equal(t, "ana", st.FavoriteStylistID)
	assert.Equal(t, []WeekdayCount{{Weekday: "Monday", Count: 3}, {Weekday: "Wednesday", Count: 1}}, st.BusiestWeekdays)
	assert.Equal(t, []HourCount{{Hour: 10, Count: 2}, {Hour: 14, Count: 2}}, st.BusiestHours)
	assert.InDelta(t, 7.0, st.AverageIntervalDays, 0.001)
}

func TestForClientWithoutHistory(t *testing.T) {
	st := ForClient(nil, "client-1")
	assert.Equal(t, 0, st.Total)
	assert.Equal(t, 0, st.CompletionRate)
	assert.Empty(t, st.FavoriteServiceID)
	assert.Empty(t, st.BusiestWeekdays)
	assert.Zero(t, st.AverageIntervalDays)
}

type sliceSource []model.Appointment

func (s sliceSource) List(f model.Filter) []model.Appointment { return f.Apply(s) }

type mapDirectory struct {
	services map[string]string
	stylists map[string]string
	err      error
}

func (d mapDirectory) ServiceName(_ context.Context, id string) (string, error) {
	return lookup(d.services, id, d.err)
}

func (d mapDirectory) StylistName(_ context.Context, id string) (string, error) {
	return lookup(d.stylists, id, d.err)
}

func (d mapDirectory) ClientName(_ context.Context, id string) (string, error) {
	return lookup(nil, id, d.err)
}

func lookup(m map[string]string, id string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if name, ok := m[id]; ok {
		return name, nil
	}
	return "", model.ErrNotFound
}

func TestAggregatorResolvesNames(t *testing.T) {
	source := sliceSource{
		appt("a1", 2, 600, 60, "color", "ana", model.StatusCompleted),
		appt("a2", 9, 600, 60, "color", "gone", model.StatusCompleted),
		appt("a3", 10, 600, 60, "cut", "gone", model.StatusScheduled),
	}
	agg := NewAggregator(source, mapDirectory{
		services: map[string]string{"color": "Full color"},
		stylists: map[string]string{"ana": "Ana"},
	})

	st, err := agg.Client(context.Background(), "client-1", model.Filter{})
	require.NoError(t, err)
	require.NotNil(t, st.FavoriteService)
	assert.Equal(t, Ref{ID: "color", Name: "Full color", Found: true}, *st.FavoriteService)
	require.NotNil(t, st.FavoriteStylist)
	assert.Equal(t, Ref{ID: "gone"}, *st.FavoriteStylist)

	ref, err := agg.ClientRef(context.Background(), "client-1")
	require.NoError(t, err)
	assert.False(t, ref.Found)

	global := agg.Global(model.Filter{From: model.Date{Year: 2025, Month: time.June, Day: 9}})
	assert.Equal(t, 2, global.Total)
	assert.Equal(t, 50, global.CompletionRate)
}

func TestAggregatorPropagatesDirectoryFailures(t *testing.T) {
	boom := errors.New("db down")
	agg := NewAggregator(sliceSource{appt("a1", 2, 600, 60, "cut", "ana", model.StatusCompleted)}, mapDirectory{err: boom})
	_, err := agg.Client(context.Background(), "client-1", model.Filter{})
	require.ErrorIs(t, err, boom)
}
