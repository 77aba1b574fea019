package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"medslots/internal/model"
)

// parseTimeOnDate anchors an "HH:MM" time of day on the calendar day of date.
// "24:00" is accepted as the end of that day.
func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %q", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", timeStr)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return time.Time{}, fmt.Errorf("invalid minute in %q", timeStr)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// intervalOnDate turns a start/end time-of-day pair into absolute instants on date.
func intervalOnDate(date time.Time, start, end string) (model.TimeInterval, error) {
	s, err := parseTimeOnDate(date, start)
	if err != nil {
		return model.TimeInterval{}, err
	}
	e, err := parseTimeOnDate(date, end)
	if err != nil {
		return model.TimeInterval{}, err
	}
	return model.TimeInterval{Start: s, End: e}, nil
}

func breaksOnDate(date time.Time, breaks []model.Break) ([]model.TimeInterval, error) {
	result := make([]model.TimeInterval, 0, len(breaks))
	for _, b := range breaks {
		iv, err := intervalOnDate(date, b.Start, b.End)
		if err != nil {
			return nil, fmt.Errorf("break %s-%s: %w", b.Start, b.End, err)
		}
		result = append(result, iv)
	}
	return result, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
