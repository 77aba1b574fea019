package model

import "time"

// WorkingPeriod is a daily recurring interval by time of day, e.g. "09:00"-"12:00".
type WorkingPeriod struct {
	Start string `json:"start" yaml:"start"` // "09:00"
	End   string `json:"end" yaml:"end"`     // "12:00"
}

// Break is a daily recurring exclusion window (lunch and the like).
type Break struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// SpecialistSchedule is the recurring weekly schedule of a specialist.
type SpecialistSchedule struct {
	SpecialistID   string          `json:"specialist_id"`
	WorkingDays    []time.Weekday  `json:"working_days"`
	WorkingPeriods []WorkingPeriod `json:"working_periods"`
	Breaks         []Break         `json:"breaks"`
}

// WorksOn checks if the weekday is one of the schedule's working days.
func (s *SpecialistSchedule) WorksOn(day time.Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}
