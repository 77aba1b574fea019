package slots

import (
	"context"
	"fmt"
	"time"

	"medslots/internal/model"
)

// ScheduleRepository looks up a specialist's recurring weekly schedule.
// A nil schedule with a nil error means the specialist has none.
type ScheduleRepository interface {
	GetSchedule(ctx context.Context, specialistID string) (*model.SpecialistSchedule, error)
}

// AppointmentRepository returns the booked intervals blocking a specialist.
type AppointmentRepository interface {
	ConflictsFor(ctx context.Context, specialistID string) ([]model.TimeInterval, error)
}

// Request describes what to generate slots for.
type Request struct {
	ClinicID        string
	SpecialistID    string
	ServiceOptionID string
	From            time.Time
	To              time.Time
}

// Options tunes the generator.
type Options struct {
	// Clock defaults to SystemClock.
	Clock Clock
	// Location anchors working periods and breaks. Defaults to time.Local.
	Location *time.Location
	// UseClinicTimezone anchors periods in BookingSettings.Timezone when set.
	UseClinicTimezone bool
}

// Generator turns schedules, booked appointments and a clinic policy into slots.
type Generator struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	clock        Clock
	location     *time.Location
	clinicTZ     bool
}

// NewGenerator creates a new slot generator.
func NewGenerator(schedules ScheduleRepository, appointments AppointmentRepository, opts Options) *Generator {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Generator{
		schedules:    schedules,
		appointments: appointments,
		clock:        opts.Clock,
		location:     opts.Location,
		clinicTZ:     opts.UseClinicTimezone,
	}
}

// Generate produces the bookable slots for req in chronological order.
// An unknown specialist or an empty window yields no slots and no error.
func (g *Generator) Generate(ctx context.Context, req Request, settings *model.BookingSettings) ([]model.AvailabilitySlot, error) {
	if settings == nil {
		return nil, fmt.Errorf("booking settings are required")
	}

	schedule, err := g.schedules.GetSchedule(ctx, req.SpecialistID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if schedule == nil {
		return nil, nil
	}

	conflicts, err := g.appointments.ConflictsFor(ctx, req.SpecialistID)
	if err != nil {
		return nil, fmt.Errorf("get conflicts: %w", err)
	}

	loc, err := g.locationFor(settings)
	if err != nil {
		return nil, err
	}

	duration := settings.SlotDuration()
	step := settings.SlotStep()

	now := g.clock.Now()
	earliest := now.Add(settings.MinAdvance())
	latest := now.Add(settings.MaxAdvance())

	lastDay := startOfDay(req.To.In(loc))
	var result []model.AvailabilitySlot

	for day := startOfDay(req.From.In(loc)); !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if !schedule.WorksOn(day.Weekday()) {
			continue
		}

		breaks, err := breaksOnDate(day, schedule.Breaks)
		if err != nil {
			return nil, fmt.Errorf("specialist %s: %w", req.SpecialistID, err)
		}

		for _, p := range schedule.WorkingPeriods {
			period, err := intervalOnDate(day, p.Start, p.End)
			if err != nil {
				return nil, fmt.Errorf("specialist %s: period %s-%s: %w", req.SpecialistID, p.Start, p.End, err)
			}

			for cursor := period.Start; !cursor.Add(duration).After(period.End); cursor = cursor.Add(step) {
				candidate := model.TimeInterval{Start: cursor, End: cursor.Add(duration)}

				// Request window bounds are exclusive on both ends.
				if !candidate.Start.After(req.From) || !candidate.End.Before(req.To) {
					continue
				}
				if candidate.OverlapsAny(breaks) || candidate.OverlapsAny(conflicts) {
					continue
				}
				if !candidate.Start.Before(latest) || !candidate.Start.After(earliest) {
					continue
				}

				result = append(result, model.AvailabilitySlot{
					ID:              SlotID(req.ClinicID, req.SpecialistID, req.ServiceOptionID, candidate.Start),
					ClinicID:        req.ClinicID,
					SpecialistID:    req.SpecialistID,
					ServiceOptionID: req.ServiceOptionID,
					Start:           candidate.Start.UTC(),
					End:             candidate.End.UTC(),
					Mode:            model.ModeInPerson,
				})
			}
		}
	}

	return result, nil
}

func (g *Generator) locationFor(settings *model.BookingSettings) (*time.Location, error) {
	if !g.clinicTZ || settings.Timezone == "" {
		return g.location, nil
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("clinic %s timezone: %w", settings.ClinicID, err)
	}
	return loc, nil
}
