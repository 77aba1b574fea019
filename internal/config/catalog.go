package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"medslots/internal/model"
)

// PeriodConfig is a time-of-day range, "HH:MM" on both ends.
type PeriodConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// ScheduleConfig is a recurring weekly schedule.
type ScheduleConfig struct {
	WorkingDays    []int          `yaml:"working_days"` // 1=Mon, 7=Sun
	WorkingPeriods []PeriodConfig `yaml:"working_periods"`
	Breaks         []PeriodConfig `yaml:"breaks,omitempty"`
}

// SettingsConfig is a clinic booking policy.
type SettingsConfig struct {
	RequireApproval          bool   `yaml:"require_approval"`
	MaxAdvanceBookingDays    int    `yaml:"max_advance_booking_days"`
	MinAdvanceBookingHours   int    `yaml:"min_advance_booking_hours"`
	BufferBetweenAppts       int    `yaml:"buffer_between_appts"`
	BookingCutoffTime        string `yaml:"booking_cutoff_time,omitempty"`
	BookingInterval          int    `yaml:"booking_interval,omitempty"`
	DefaultTreatmentDuration int    `yaml:"default_treatment_duration,omitempty"`
	MaxAppointmentsPerDay    int    `yaml:"max_appointments_per_day"`
	Timezone                 string `yaml:"timezone,omitempty"`
}

// ClinicConfig represents a single clinic.
type ClinicConfig struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Address  string          `yaml:"address,omitempty"`
	Settings *SettingsConfig `yaml:"settings,omitempty"`
}

// SpecialistConfig represents a single specialist and their schedule.
type SpecialistConfig struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
}

// DirectorySlotConfig is a pre-seeded slot of the static directory.
type DirectorySlotConfig struct {
	ID              string `yaml:"id"`
	ClinicID        string `yaml:"clinic_id"`
	SpecialistID    string `yaml:"specialist_id"`
	ServiceOptionID string `yaml:"service_option_id"`
	Start           string `yaml:"start"` // RFC3339
	End             string `yaml:"end"`   // RFC3339
	Mode            string `yaml:"mode,omitempty"`
}

// DefaultsConfig represents global defaults.
type DefaultsConfig struct {
	Schedule *ScheduleConfig `yaml:"schedule"`
	Settings *SettingsConfig `yaml:"settings"`
}

// Catalog is the root of clinics.yaml.
type Catalog struct {
	Clinics     []ClinicConfig        `yaml:"clinics"`
	Specialists []SpecialistConfig    `yaml:"specialists"`
	Defaults    DefaultsConfig        `yaml:"defaults"`
	Directory   []DirectorySlotConfig `yaml:"directory"`
}

// LoadCatalog loads and validates the clinics catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = "configs/clinics.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return ParseCatalog(data)
}

// ParseCatalog parses and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	cat.applyDefaults()

	return &cat, nil
}

// Validate checks the catalog for errors.
func (c *Catalog) Validate() error {
	if len(c.Clinics) == 0 {
		return fmt.Errorf("no clinics defined")
	}

	clinics := make(map[string]bool)
	for i, cl := range c.Clinics {
		if cl.ID == "" {
			return fmt.Errorf("clinic[%d]: id is required", i)
		}
		if clinics[cl.ID] {
			return fmt.Errorf("clinic[%d]: duplicate id '%s'", i, cl.ID)
		}
		clinics[cl.ID] = true

		if cl.Settings != nil {
			if err := validateSettings(cl.Settings, fmt.Sprintf("clinic[%d].settings", i)); err != nil {
				return err
			}
		}
	}

	specialists := make(map[string]bool)
	for i, sp := range c.Specialists {
		if sp.ID == "" {
			return fmt.Errorf("specialist[%d]: id is required", i)
		}
		if specialists[sp.ID] {
			return fmt.Errorf("specialist[%d]: duplicate id '%s'", i, sp.ID)
		}
		specialists[sp.ID] = true

		if sp.Schedule != nil {
			if err := validateSchedule(sp.Schedule, fmt.Sprintf("specialist[%d].schedule", i)); err != nil {
				return err
			}
		}
	}

	if c.Defaults.Schedule != nil {
		if err := validateSchedule(c.Defaults.Schedule, "defaults.schedule"); err != nil {
			return err
		}
	}
	if c.Defaults.Settings != nil {
		if err := validateSettings(c.Defaults.Settings, "defaults.settings"); err != nil {
			return err
		}
	}

	for i, d := range c.Directory {
		if d.ID == "" {
			return fmt.Errorf("directory[%d]: id is required", i)
		}
		start, err := time.Parse(time.RFC3339, d.Start)
		if err != nil {
			return fmt.Errorf("directory[%d]: invalid start '%s', expected RFC3339", i, d.Start)
		}
		end, err := time.Parse(time.RFC3339, d.End)
		if err != nil {
			return fmt.Errorf("directory[%d]: invalid end '%s', expected RFC3339", i, d.End)
		}
		if !end.After(start) {
			return fmt.Errorf("directory[%d]: end must be after start", i)
		}
		if d.Mode != "" && d.Mode != string(model.ModeInPerson) && d.Mode != string(model.ModeTelehealth) {
			return fmt.Errorf("directory[%d]: unknown mode '%s'", i, d.Mode)
		}
	}

	return nil
}

func validateSchedule(s *ScheduleConfig, prefix string) error {
	for i, d := range s.WorkingDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("%s.working_days[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", prefix, i, d)
		}
	}
	if len(s.WorkingPeriods) == 0 {
		return fmt.Errorf("%s.working_periods: at least one period is required", prefix)
	}
	for i := range s.WorkingPeriods {
		if err := validatePeriod(&s.WorkingPeriods[i], fmt.Sprintf("%s.working_periods[%d]", prefix, i)); err != nil {
			return err
		}
	}
	for i := range s.Breaks {
		if err := validatePeriod(&s.Breaks[i], fmt.Sprintf("%s.breaks[%d]", prefix, i)); err != nil {
			return err
		}
	}
	return nil
}

func validatePeriod(p *PeriodConfig, prefix string) error {
	start, err := time.Parse("15:04", p.Start)
	if err != nil {
		return fmt.Errorf("%s.start: invalid format '%s', expected HH:MM", prefix, p.Start)
	}
	end, err := time.Parse("15:04", p.End)
	if err != nil {
		return fmt.Errorf("%s.end: invalid format '%s', expected HH:MM", prefix, p.End)
	}
	if !end.After(start) {
		return fmt.Errorf("%s: end must be after start", prefix)
	}
	return nil
}

func validateSettings(s *SettingsConfig, prefix string) error {
	if s.MaxAdvanceBookingDays < 0 {
		return fmt.Errorf("%s.max_advance_booking_days cannot be negative", prefix)
	}
	if s.MinAdvanceBookingHours < 0 {
		return fmt.Errorf("%s.min_advance_booking_hours cannot be negative", prefix)
	}
	if s.BookingInterval < 0 || s.DefaultTreatmentDuration < 0 {
		return fmt.Errorf("%s: booking_interval and default_treatment_duration cannot be negative", prefix)
	}
	if s.BookingCutoffTime != "" {
		if _, err := time.Parse("15:04", s.BookingCutoffTime); err != nil {
			return fmt.Errorf("%s.booking_cutoff_time: invalid format '%s', expected HH:MM", prefix, s.BookingCutoffTime)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%s.timezone: %w", prefix, err)
		}
	}
	return nil
}

// applyDefaults fills in schedules and settings that were left out.
func (c *Catalog) applyDefaults() {
	for i := range c.Specialists {
		if c.Specialists[i].Schedule == nil && c.Defaults.Schedule != nil {
			c.Specialists[i].Schedule = c.Defaults.Schedule
		}
	}
	for i := range c.Clinics {
		if c.Clinics[i].Settings == nil && c.Defaults.Settings != nil {
			c.Clinics[i].Settings = c.Defaults.Settings
		}
	}
}

// Schedules converts every specialist with a schedule into the model type.
func (c *Catalog) Schedules() map[string]*model.SpecialistSchedule {
	result := make(map[string]*model.SpecialistSchedule, len(c.Specialists))
	for _, sp := range c.Specialists {
		if sp.Schedule == nil {
			continue
		}
		result[sp.ID] = sp.Schedule.ToModel(sp.ID)
	}
	return result
}

// Settings converts every clinic with settings into the model type.
func (c *Catalog) Settings() map[string]*model.BookingSettings {
	result := make(map[string]*model.BookingSettings, len(c.Clinics))
	for _, cl := range c.Clinics {
		if cl.Settings == nil {
			continue
		}
		result[cl.ID] = cl.Settings.ToModel(cl.ID)
	}
	return result
}

// ToModel converts the schedule for specialistID.
func (s *ScheduleConfig) ToModel(specialistID string) *model.SpecialistSchedule {
	out := &model.SpecialistSchedule{SpecialistID: specialistID}
	for _, d := range s.WorkingDays {
		out.WorkingDays = append(out.WorkingDays, ToWeekday(d))
	}
	for _, p := range s.WorkingPeriods {
		out.WorkingPeriods = append(out.WorkingPeriods, model.WorkingPeriod{Start: p.Start, End: p.End})
	}
	for _, b := range s.Breaks {
		out.Breaks = append(out.Breaks, model.Break{Start: b.Start, End: b.End})
	}
	return out
}

// ToModel converts the settings for clinicID.
func (s *SettingsConfig) ToModel(clinicID string) *model.BookingSettings {
	return &model.BookingSettings{
		ClinicID:                 clinicID,
		RequireApproval:          s.RequireApproval,
		MaxAdvanceBookingDays:    s.MaxAdvanceBookingDays,
		MinAdvanceBookingHours:   s.MinAdvanceBookingHours,
		BufferBetweenAppts:       s.BufferBetweenAppts,
		BookingCutoffTime:        s.BookingCutoffTime,
		BookingInterval:          s.BookingInterval,
		DefaultTreatmentDuration: s.DefaultTreatmentDuration,
		MaxAppointmentsPerDay:    s.MaxAppointmentsPerDay,
		Timezone:                 s.Timezone,
	}
}

// ToWeekday converts our day format (1=Mon, 7=Sun) to Go's weekday (0=Sun).
func ToWeekday(day int) time.Weekday {
	if day == 7 {
		return time.Sunday
	}
	return time.Weekday(day)
}

// String returns a summary of the catalog.
func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog: %d clinics, %d specialists, %d directory slots",
		len(c.Clinics), len(c.Specialists), len(c.Directory))
}
