package model

import "time"

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "noShow"
)

// Live statuses take part in conflict detection and remain modifiable.
func (s Status) Live() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusRescheduled:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool { return s.Live() || s.Terminal() }

func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	if raw == "no-show" || raw == "no_show" {
		s = StatusNoShow
	}
	return s, s.Valid()
}

// ClientInfo captures a walk-in or unregistered client at booking time.
type ClientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Appointment struct {
	ID                 string      `json:"id"`
	Date               Date        `json:"date"`
	StartTime          Clock       `json:"startTime"`
	EndTime            Clock       `json:"endTime"`
	StylistID          string      `json:"stylistId"`
	ServiceID          string      `json:"serviceId"`
	ClientID           string      `json:"clientId,omitempty"`
	ClientInfo         *ClientInfo `json:"clientInfo,omitempty"`
	Status             Status      `json:"status"`
	Notes              string      `json:"notes,omitempty"`
	PublicToken        string      `json:"-"`
	ModificationToken  string      `json:"-"`
	CancellationReason string      `json:"cancellationReason,omitempty"`
	LastModified       time.Time   `json:"lastModified"`
	CreatedAt          time.Time   `json:"createdAt"`
}

// DurationMinutes is derived from the stored interval.
func (a Appointment) DurationMinutes() int { return a.EndTime.Sub(a.StartTime) }

// Start returns the scheduled start instant in the salon timezone.
func (a Appointment) Start(loc *time.Location) time.Time { return a.Date.At(a.StartTime, loc) }

// Modification is an append-only audit record of a client-initiated change.
type Modification struct {
	AppointmentID     string    `json:"appointmentId"`
	ModificationToken string    `json:"-"`
	NewDate           *Date     `json:"newDate,omitempty"`
	NewStartTime      *Clock    `json:"newStartTime,omitempty"`
	NewStylistID      *string   `json:"newStylistId,omitempty"`
	ModifiedAt        time.Time `json:"modifiedAt"`
}

// PreBooking is a short-lived hold taken while a booking wizard is open.
type PreBooking struct {
	ID        string    `json:"id"`
	Date      Date      `json:"date"`
	StartTime Clock     `json:"startTime"`
	EndTime   Clock     `json:"endTime"`
	StylistID string    `json:"stylistId"`
	Timestamp time.Time `json:"timestamp"`
}
