package model

import "time"

const (
	// DefaultTreatmentMinutes is used when settings carry no treatment duration.
	DefaultTreatmentMinutes = 30
	// DefaultIntervalMinutes is used when settings carry no booking interval.
	DefaultIntervalMinutes = 15
)

// BookingSettings is a clinic's booking policy.
type BookingSettings struct {
	ClinicID                 string `json:"clinic_id"`
	RequireApproval          bool   `json:"require_approval"`
	MaxAdvanceBookingDays    int    `json:"max_advance_booking_days"`
	MinAdvanceBookingHours   int    `json:"min_advance_booking_hours"`
	BufferBetweenAppts       int    `json:"buffer_between_appts"` // minutes
	BookingCutoffTime        string `json:"booking_cutoff_time,omitempty"`
	BookingInterval          int    `json:"booking_interval,omitempty"`           // minutes
	DefaultTreatmentDuration int    `json:"default_treatment_duration,omitempty"` // minutes
	MaxAppointmentsPerDay    int    `json:"max_appointments_per_day"`
	Timezone                 string `json:"timezone,omitempty"`
}

// SlotDuration returns the service duration, falling back to 30 minutes.
func (s *BookingSettings) SlotDuration() time.Duration {
	if s.DefaultTreatmentDuration <= 0 {
		return DefaultTreatmentMinutes * time.Minute
	}
	return time.Duration(s.DefaultTreatmentDuration) * time.Minute
}

// SlotStep returns the cursor step between candidate slots, falling back to 15 minutes.
func (s *BookingSettings) SlotStep() time.Duration {
	if s.BookingInterval <= 0 {
		return DefaultIntervalMinutes * time.Minute
	}
	return time.Duration(s.BookingInterval) * time.Minute
}

// MinAdvance is the earliest offset from now a slot may start at.
func (s *BookingSettings) MinAdvance() time.Duration {
	return time.Duration(s.MinAdvanceBookingHours) * time.Hour
}

// MaxAdvance is the latest offset from now a slot may start at.
func (s *BookingSettings) MaxAdvance() time.Duration {
	return time.Duration(s.MaxAdvanceBookingDays) * 24 * time.Hour
}
