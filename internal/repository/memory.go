package repository

import (
	"context"
	"fmt"
	"sync"

	"medslots/internal/config"
	"medslots/internal/model"
)

// Memory keeps schedules, settings and appointments in process.
// It is safe for concurrent use.
type Memory struct {
	mu           sync.RWMutex
	schedules    map[string]*model.SpecialistSchedule
	settings     map[string]*model.BookingSettings
	appointments map[string][]model.ExistingAppointment
	nextID       int64
}

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{
		schedules:    make(map[string]*model.SpecialistSchedule),
		settings:     make(map[string]*model.BookingSettings),
		appointments: make(map[string][]model.ExistingAppointment),
	}
}

// FromCatalog builds a repository holding the catalog's schedules and settings.
func FromCatalog(cat *config.Catalog) *Memory {
	m := NewMemory()
	m.Replace(cat)
	return m
}

// Replace swaps schedules and settings for the catalog's. Appointments are kept.
func (m *Memory) Replace(cat *config.Catalog) {
	schedules := cat.Schedules()
	settings := cat.Settings()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = schedules
	m.settings = settings
}

// PutSchedule stores or overwrites a specialist's schedule.
func (m *Memory) PutSchedule(s *model.SpecialistSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.SpecialistID] = s
}

// PutSettings stores or overwrites a clinic's settings.
func (m *Memory) PutSettings(s *model.BookingSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.ClinicID] = s
}

func (m *Memory) GetSchedule(_ context.Context, specialistID string) (*model.SpecialistSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedules[specialistID], nil
}

func (m *Memory) GetSettings(_ context.Context, clinicID string) (*model.BookingSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[clinicID], nil
}

// ConflictsFor returns every booked interval of the specialist regardless of status.
func (m *Memory) ConflictsFor(_ context.Context, specialistID string) ([]model.TimeInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	appts := m.appointments[specialistID]
	out := make([]model.TimeInterval, 0, len(appts))
	for i := range appts {
		out = append(out, appts[i].Interval())
	}
	return out, nil
}

// InsertAppointment records a booking. A zero ID is assigned the next sequence value.
func (m *Memory) InsertAppointment(_ context.Context, appt *model.ExistingAppointment) error {
	if appt.SpecialistID == "" {
		return fmt.Errorf("specialist id is required")
	}
	if !appt.Interval().Valid() {
		return fmt.Errorf("appointment end must be after start")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if appt.ID == 0 {
		m.nextID++
		appt.ID = m.nextID
	} else if appt.ID > m.nextID {
		m.nextID = appt.ID
	}
	m.appointments[appt.SpecialistID] = append(m.appointments[appt.SpecialistID], *appt)
	return nil
}

// AddAppointment is InsertAppointment without a context, for the booking flow and tests.
func (m *Memory) AddAppointment(appt model.ExistingAppointment) error {
	return m.InsertAppointment(context.Background(), &appt)
}

func (m *Memory) ListAppointments(_ context.Context, specialistID string) ([]model.ExistingAppointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ExistingAppointment(nil), m.appointments[specialistID]...), nil
}
