package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
clinics:
  - id: clinic-1
    name: Central
    settings:
      max_advance_booking_days: 30
      min_advance_booking_hours: 2
      booking_interval: 15
      default_treatment_duration: 30
  - id: clinic-2
    name: North
specialists:
  - id: doc-1
    name: Dr. Ivanova
    schedule:
      working_days: [1, 2, 3, 4, 5]
      working_periods:
        - {start: "09:00", end: "12:00"}
        - {start: "13:00", end: "17:00"}
      breaks:
        - {start: "12:00", end: "13:00"}
  - id: doc-2
    name: Dr. Petrov
defaults:
  schedule:
    working_days: [6, 7]
    working_periods:
      - {start: "10:00", end: "14:00"}
  settings:
    max_advance_booking_days: 14
directory:
  - id: dir-1
    clinic_id: clinic-1
    specialist_id: doc-1
    service_option_id: svc-1
    start: "2026-01-12T09:00:00Z"
    end: "2026-01-12T09:30:00Z"
    mode: telehealth
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	assert.Len(t, cat.Clinics, 2)
	assert.Len(t, cat.Specialists, 2)
	assert.Len(t, cat.Directory, 1)
	assert.Equal(t, "Catalog: 2 clinics, 2 specialists, 1 directory slots", cat.String())

	schedules := cat.Schedules()
	require.Contains(t, schedules, "doc-1")
	doc1 := schedules["doc-1"]
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, doc1.WorkingDays)
	assert.Len(t, doc1.WorkingPeriods, 2)
	assert.Equal(t, "12:00", doc1.Breaks[0].Start)

	// doc-2 inherits the default schedule.
	require.Contains(t, schedules, "doc-2")
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, schedules["doc-2"].WorkingDays)

	settings := cat.Settings()
	assert.Equal(t, 30, settings["clinic-1"].MaxAdvanceBookingDays)
	assert.Equal(t, "clinic-1", settings["clinic-1"].ClinicID)
	assert.Equal(t, 14, settings["clinic-2"].MaxAdvanceBookingDays)
}

func TestParseCatalog_NoDefaultSettings(t *testing.T) {
	cat, err := ParseCatalog([]byte(`
clinics:
  - id: clinic-1
specialists: []
`))
	require.NoError(t, err)
	assert.Empty(t, cat.Settings())
}

func TestCatalog_ValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no clinics",
			yaml: "clinics: []",
			want: "no clinics defined",
		},
		{
			name: "duplicate clinic",
			yaml: "clinics: [{id: a}, {id: a}]",
			want: "duplicate id 'a'",
		},
		{
			name: "bad day",
			yaml: `
clinics: [{id: a}]
specialists:
  - id: s
    schedule: {working_days: [0], working_periods: [{start: "09:00", end: "10:00"}]}`,
			want: "invalid day 0",
		},
		{
			name: "bad time",
			yaml: `
clinics: [{id: a}]
specialists:
  - id: s
    schedule: {working_days: [1], working_periods: [{start: "9am", end: "10:00"}]}`,
			want: "expected HH:MM",
		},
		{
			name: "inverted period",
			yaml: `
clinics: [{id: a}]
specialists:
  - id: s
    schedule: {working_days: [1], working_periods: [{start: "11:00", end: "10:00"}]}`,
			want: "end must be after start",
		},
		{
			name: "no periods",
			yaml: `
clinics: [{id: a}]
specialists:
  - id: s
    schedule: {working_days: [1]}`,
			want: "at least one period",
		},
		{
			name: "bad timezone",
			yaml: `
clinics: [{id: a, settings: {timezone: "Mars/Olympus"}}]`,
			want: "timezone",
		},
		{
			name: "bad directory mode",
			yaml: `
clinics: [{id: a}]
directory:
  - {id: d, start: "2026-01-12T09:00:00Z", end: "2026-01-12T09:30:00Z", mode: video}`,
			want: "unknown mode 'video'",
		},
		{
			name: "bad directory time",
			yaml: `
clinics: [{id: a}]
directory:
  - {id: d, start: "2026-01-12 09:00", end: "2026-01-12T09:30:00Z"}`,
			want: "expected RFC3339",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestToWeekday(t *testing.T) {
	assert.Equal(t, time.Monday, ToWeekday(1))
	assert.Equal(t, time.Saturday, ToWeekday(6))
	assert.Equal(t, time.Sunday, ToWeekday(7))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEDSLOTS_TEST_KEY", "secret")

	path := writeFile(t, dir, "config.yaml", `
storage: sqlite
database:
  path: `+filepath.Join(dir, "db", "medslots.db")+`
api:
  api_key: ${MEDSLOTS_TEST_KEY}
engine:
  timezone: Europe/Moscow
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.API.APIKey)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "configs/clinics.yaml", cfg.Catalog.Path)
	assert.Equal(t, 30*time.Second, cfg.CatalogReloadInterval())
	assert.Equal(t, 15*time.Minute, cfg.SheetsInterval())
	assert.DirExists(t, filepath.Join(dir, "db"))

	loc, err := cfg.EngineLocation()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, dir, "storage.yaml", "storage: postgres\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage")

	path = writeFile(t, dir, "tz.yaml", "engine:\n  timezone: Nowhere/City\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.timezone")
}

func TestEngineLocation_DefaultsToLocal(t *testing.T) {
	var cfg Config
	loc, err := cfg.EngineLocation()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadCatalogVersion(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clinics.yaml", sampleCatalog)
	info, err := os.Stat(path)
	require.NoError(t, err)

	cat, version, err := LoadCatalogVersion(path)
	require.NoError(t, err)
	assert.Len(t, cat.Clinics, 2)
	assert.True(t, version.Equal(info.ModTime()))

	_, _, err = LoadCatalogVersion(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

const extraDirectorySlot = `
  - id: dir-2
    clinic_id: clinic-1
    specialist_id: doc-1
    service_option_id: svc-1
    start: "2026-01-12T10:00:00Z"
    end: "2026-01-12T10:30:00Z"
`

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestCatalogWatcher_Poll(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clinics.yaml", sampleCatalog)
	_, version, err := LoadCatalogVersion(path)
	require.NoError(t, err)

	w := NewCatalogWatcher(path, time.Second, version, nil)

	_, changed, err := w.Poll()
	require.NoError(t, err)
	assert.False(t, changed)

	// An edit landing right after startup is picked up on the first poll.
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog+extraDirectorySlot), 0o600))
	touch(t, path, version.Add(time.Minute))

	cat, changed, err := w.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	assert.Len(t, cat.Directory, 2)

	_, changed, err = w.Poll()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCatalogWatcher_BrokenRevision(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clinics.yaml", sampleCatalog)
	_, version, err := LoadCatalogVersion(path)
	require.NoError(t, err)
	w := NewCatalogWatcher(path, time.Second, version, nil)

	require.NoError(t, os.WriteFile(path, []byte("clinics: [{id: a}, {id: a}]"), 0o600))
	touch(t, path, version.Add(time.Minute))

	_, changed, err := w.Poll()
	assert.Error(t, err)
	assert.False(t, changed)

	// Same broken revision is not reported twice.
	_, changed, err = w.Poll()
	assert.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog+extraDirectorySlot), 0o600))
	touch(t, path, version.Add(2*time.Minute))

	cat, changed, err := w.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	assert.Len(t, cat.Directory, 2)
}

func TestCatalogWatcher_Run(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clinics.yaml", sampleCatalog)
	_, version, err := LoadCatalogVersion(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var latest atomic.Pointer[Catalog]
	w := NewCatalogWatcher(path, 10*time.Millisecond, version, nil)
	go w.Run(ctx, func(c *Catalog) {
		latest.Store(c)
		calls.Add(1)
	})

	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog+extraDirectorySlot), 0o600))
	touch(t, path, version.Add(time.Minute))

	assert.Eventually(t, func() bool {
		c := latest.Load()
		return c != nil && len(c.Directory) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
