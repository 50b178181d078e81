package model

// Filter narrows an appointment collection. Zero fields match everything;
// From and To are inclusive.
type Filter struct {
	From      Date
	To        Date
	ClientID  string
	StylistID string
	ServiceID string
	Statuses  []Status
}

func (f Filter) Match(a Appointment) bool {
	if !f.From.IsZero() && a.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.Date.After(f.To) {
		return false
	}
	if f.ClientID != "" && a.ClientID != f.ClientID {
		return false
	}
	if f.StylistID != "" && a.StylistID != f.StylistID {
		return false
	}
	if f.ServiceID != "" && a.ServiceID != f.ServiceID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

func (f Filter) Apply(all []Appointment) []Appointment {
	out := make([]Appointment, 0, len(all))
	for _, a := range all {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}
