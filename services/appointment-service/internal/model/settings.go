package model

type CancellationPolicy struct {
	MinHoursBeforeAppointment int     `json:"minHoursBeforeAppointment"`
	MaxReschedulesAllowed     int     `json:"maxReschedulesAllowed"`
	CancellationFee           float64 `json:"cancellationFee"`
}

type AppointmentSettings struct {
	BufferTimeBetweenAppointments int `json:"bufferTimeBetweenAppointments"`
}

// BusinessHours bounds the bookable grid of a day.
type BusinessHours struct {
	Start        Clock
	End          Clock
	SlotDuration int
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{MinHoursBeforeAppointment: 24, MaxReschedulesAllowed: 2}
}

func DefaultBusinessHours() BusinessHours {
	return BusinessHours{Start: 9 * 60, End: 19 * 60, SlotDuration: 15}
}
