package model

import "time"

// Mode is how an appointment is held.
type Mode string

const (
	ModeInPerson   Mode = "in-person"
	ModeTelehealth Mode = "telehealth"
)

// ExistingAppointment is an already-booked interval in the appointment ledger.
// Status is kept for display; conflict detection ignores it.
type ExistingAppointment struct {
	ID           int64     `json:"id"`
	SpecialistID string    `json:"specialist_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status,omitempty"`
}

// Interval returns the appointment as a TimeInterval.
func (a *ExistingAppointment) Interval() TimeInterval {
	return TimeInterval{Start: a.Start, End: a.End}
}

// AvailabilitySlot is a concrete bookable slot.
type AvailabilitySlot struct {
	ID              string    `json:"id"`
	ClinicID        string    `json:"clinic_id"`
	SpecialistID    string    `json:"specialist_id"`
	ServiceOptionID string    `json:"service_option_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Mode            Mode      `json:"mode"`
}

// Interval returns the slot as a TimeInterval.
func (s *AvailabilitySlot) Interval() TimeInterval {
	return TimeInterval{Start: s.Start, End: s.End}
}

// Matches checks the three identifiers a slot is looked up by.
func (s *AvailabilitySlot) Matches(clinicID, specialistID, serviceOptionID string) bool {
	return s.ClinicID == clinicID &&
		s.SpecialistID == specialistID &&
		s.ServiceOptionID == serviceOptionID
}

// Within checks inclusive containment: start >= from && end <= to.
func (s *AvailabilitySlot) Within(from, to time.Time) bool {
	return !s.Start.Before(from) && !s.End.After(to)
}
