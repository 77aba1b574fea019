package repository

import (
	"context"

	"medslots/internal/model"
)

// ScheduleRepository looks up recurring weekly schedules.
// A nil schedule with a nil error means the specialist has none.
type ScheduleRepository interface {
	GetSchedule(ctx context.Context, specialistID string) (*model.SpecialistSchedule, error)
}

// SettingsRepository looks up clinic booking policies.
// Nil settings with a nil error means the clinic has none configured.
type SettingsRepository interface {
	GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error)
}

// AppointmentRepository is the appointment ledger.
type AppointmentRepository interface {
	ConflictsFor(ctx context.Context, specialistID string) ([]model.TimeInterval, error)
	InsertAppointment(ctx context.Context, appt *model.ExistingAppointment) error
	ListAppointments(ctx context.Context, specialistID string) ([]model.ExistingAppointment, error)
}

// CatalogRepository serves schedules and settings together.
type CatalogRepository interface {
	ScheduleRepository
	SettingsRepository
}
