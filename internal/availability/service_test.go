package availability

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medslots/internal/events"
	"medslots/internal/model"
	"medslots/internal/repository"
	"medslots/internal/slots"
	"medslots/internal/store"
)

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingSettings), args.Error(1)
}

type fakeSource struct {
	name  string
	slots []model.AvailabilitySlot
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Query(_ context.Context, q store.Query) ([]model.AvailabilitySlot, error) {
	var out []model.AvailabilitySlot
	for _, s := range f.slots {
		if s.Matches(q.ClinicID, q.SpecialistID, q.ServiceOptionID) && s.Within(q.From, q.To) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSource) ForSpecialist(_ context.Context, specialistID, clinicID, serviceOptionID string) ([]model.AvailabilitySlot, error) {
	return f.slots, nil
}

// 2026-01-12 is a Monday.
var monday = time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func clinicSettings() *model.BookingSettings {
	return &model.BookingSettings{
		ClinicID:                 "clinic-1",
		MaxAdvanceBookingDays:    30,
		BookingInterval:          15,
		DefaultTreatmentDuration: 30,
	}
}

type fixture struct {
	svc      *Service
	store    *store.Store
	memory   *repository.Memory
	settings *mockSettings
	bus      *events.EventBus
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	mem := repository.NewMemory()
	mem.PutSchedule(&model.SpecialistSchedule{
		SpecialistID: "doc-1",
		WorkingDays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkingPeriods: []model.WorkingPeriod{
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
		},
		Breaks: []model.Break{{Start: "12:00", End: "13:00"}},
	})

	gen := slots.NewGenerator(mem, mem, slots.Options{
		Clock:    slots.ClockFunc(func() time.Time { return now }),
		Location: time.UTC,
	})

	settings := new(mockSettings)
	st := store.New()
	bus := events.NewEventBus(&logger)

	return &fixture{
		svc:      NewService(gen, settings, st, bus, &logger),
		store:    st,
		memory:   mem,
		settings: settings,
		bus:      bus,
	}
}

func mondayRequest(specialistID string) slots.Request {
	return slots.Request{
		ClinicID:        "clinic-1",
		SpecialistID:    specialistID,
		ServiceOptionID: "svc-1",
		From:            monday.Add(-time.Hour),
		To:              monday.Add(24 * time.Hour),
	}
}

func TestGenerate_WeekdayScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)

	var published []events.GeneratedPayload
	f.bus.Subscribe(events.SlotsGenerated, func(e events.Event) error {
		var p events.GeneratedPayload
		require.NoError(t, e.Decode(&p))
		published = append(published, p)
		return nil
	})

	res, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, GenerateResult{Generated: 26, Inserted: 26}, res)
	require.Len(t, published, 1)
	assert.Equal(t, 26, published[0].Inserted)

	all, err := f.svc.GetSlotsForSpecialist(ctx, "doc-1", "clinic-1", "svc-1")
	require.NoError(t, err)
	require.Len(t, all, 26)
	assert.Equal(t, at(9, 0), all[0].Start)
	assert.Equal(t, at(16, 30), all[len(all)-1].Start)

	for _, s := range all {
		// Every slot has the resolved duration and avoids the break.
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
		assert.False(t, s.Interval().Overlaps(model.TimeInterval{Start: at(12, 0), End: at(13, 0)}))
		assert.Equal(t, model.ModeInPerson, s.Mode)
	}
}

func TestGenerate_AppointmentConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)
	require.NoError(t, f.memory.AddAppointment(model.ExistingAppointment{
		SpecialistID: "doc-1", Start: at(10, 0), End: at(10, 30), Status: "confirmed",
	}))

	res, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, 23, res.Generated)

	starts := map[time.Time]bool{}
	for _, s := range f.store.Snapshot() {
		starts[s.Start] = true
		assert.False(t, s.Interval().Overlaps(model.TimeInterval{Start: at(10, 0), End: at(10, 30)}))
	}
	assert.False(t, starts[at(9, 45)])
	assert.False(t, starts[at(10, 0)])
	assert.False(t, starts[at(10, 15)])
	assert.True(t, starts[at(10, 30)])
}

func TestGenerate_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)

	first, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
	require.NoError(t, err)
	second, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
	require.NoError(t, err)

	assert.Equal(t, 26, first.Inserted)
	assert.Equal(t, GenerateResult{Generated: 26, Inserted: 0, Skipped: 26}, second)
	assert.Equal(t, 26, f.store.Len())
}

func TestGenerate_ConcurrentMergesDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 26, f.store.Len())
}

func TestGenerate_MinAdvance(t *testing.T) {
	ctx := context.Background()
	now := at(9, 0)
	f := newFixture(t, now)
	settings := clinicSettings()
	settings.MinAdvanceBookingHours = 2
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(settings, nil)

	_, err := f.svc.Generate(ctx, slots.Request{
		ClinicID: "clinic-1", SpecialistID: "doc-1", ServiceOptionID: "svc-1",
		From: now, To: now.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	snapshot := f.store.Snapshot()
	require.NotEmpty(t, snapshot)
	for _, s := range snapshot {
		assert.True(t, s.Start.After(now.Add(2*time.Hour)), "slot %s starts too early", s.Start)
		assert.True(t, s.Start.Before(now.AddDate(0, 0, 30)))
	}
}

func TestGenerate_UnknownSpecialist(t *testing.T) {
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)

	res, err := f.svc.Generate(context.Background(), mondayRequest("nobody"))
	require.NoError(t, err)
	assert.Equal(t, GenerateResult{}, res)
	assert.Equal(t, 0, f.store.Len())
}

func TestGenerate_SettingsMissing(t *testing.T) {
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(nil, nil)

	var alerts []events.SettingsMissingPayload
	f.bus.Subscribe(events.SettingsMissing, func(e events.Event) error {
		var p events.SettingsMissingPayload
		require.NoError(t, e.Decode(&p))
		alerts = append(alerts, p)
		return nil
	})

	_, err := f.svc.Generate(context.Background(), mondayRequest("doc-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettingsNotFound)
	assert.Contains(t, err.Error(), "booking settings not found for clinic")
	assert.Equal(t, 0, f.store.Len())
	require.Len(t, alerts, 1)
	assert.Equal(t, "clinic-1", alerts[0].ClinicID)
	f.settings.AssertExpectations(t)
}

func TestGenerate_SettingsError(t *testing.T) {
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(nil, errors.New("disk I/O error"))

	_, err := f.svc.Generate(context.Background(), mondayRequest("doc-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSettingsNotFound)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestGenerateSlots_ParsesTimestamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)

	res, err := f.svc.GenerateSlots(ctx, "clinic-1", "doc-1", "svc-1", "2026-01-11T23:00:00Z", "2026-01-13T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, 26, res.Inserted)

	_, err = f.svc.GenerateSlots(ctx, "clinic-1", "doc-1", "svc-1", "yesterday", "2026-01-13T00:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
	_, err = f.svc.GenerateSlots(ctx, "clinic-1", "doc-1", "svc-1", "2026-01-11T23:00:00Z", "2026-01-13")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestGetAvailability_InclusiveBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)
	_, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
	require.NoError(t, err)

	got, err := f.svc.GetAvailability(ctx, "clinic-1", "doc-1", "svc-1", at(9, 0), at(9, 30))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, at(9, 0), got[0].Start)

	got, err = f.svc.GetAvailability(ctx, "clinic-1", "doc-1", "svc-2", at(0, 0), at(23, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSources_AreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, monday.AddDate(0, 0, -1))
	f.settings.On("GetSettings", mock.Anything, "clinic-1").Return(clinicSettings(), nil)
	_, err := f.svc.Generate(ctx, mondayRequest("doc-1"))
	require.NoError(t, err)

	dirSlot := model.AvailabilitySlot{
		ID: "dir-1", ClinicID: "clinic-1", SpecialistID: "doc-1", ServiceOptionID: "svc-1",
		Start: at(9, 0), End: at(9, 30), Mode: model.ModeTelehealth,
	}
	f.svc.AddSource(fakeSource{name: "directory", slots: []model.AvailabilitySlot{dirSlot}})
	assert.Equal(t, []string{"directory", "engine"}, f.svc.SourceNames())

	q := store.Query{ClinicID: "clinic-1", SpecialistID: "doc-1", ServiceOptionID: "svc-1", From: at(9, 0), To: at(9, 30)}

	fromDirectory, err := f.svc.Query(ctx, "directory", q)
	require.NoError(t, err)
	assert.Equal(t, []model.AvailabilitySlot{dirSlot}, fromDirectory)

	fromEngine, err := f.svc.Query(ctx, "", q)
	require.NoError(t, err)
	require.Len(t, fromEngine, 1)
	assert.Equal(t, model.ModeInPerson, fromEngine[0].Mode)
	assert.Equal(t, 26, f.store.Len())

	_, err = f.svc.Query(ctx, "mock", q)
	assert.ErrorIs(t, err, ErrUnknownSource)
	_, err = f.svc.SlotsFromSource(ctx, "mock", "doc-1", "clinic-1", "svc-1")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(at(0, 0), at(0, 0), 90))
	assert.NoError(t, ValidateRange(at(0, 0), at(0, 0).AddDate(0, 0, 90), 90))
	assert.ErrorIs(t, ValidateRange(at(1, 0), at(0, 0), 90), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(at(0, 0), at(0, 0).AddDate(0, 0, 91), 90), ErrInvalidRange)
	assert.NoError(t, ValidateRange(at(0, 0), at(0, 0).AddDate(1, 0, 0), 0))
}
