package outbox

import "encoding/json"

const AggregateAppointment = "appointment"

// Appointment event types. The event type doubles as the Kafka topic.
const (
	EventAppointmentBooked        = "salon.appointment.booked.v1"
	EventAppointmentRescheduled   = "salon.appointment.rescheduled.v1"
	EventAppointmentUpdated       = "salon.appointment.updated.v1"
	EventAppointmentStatusChanged = "salon.appointment.status_changed.v1"
	EventAppointmentModified      = "salon.appointment.modification_recorded.v1"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewAppointmentEvent encodes payload as JSON.
func NewAppointmentEvent(eventType, appointmentID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
