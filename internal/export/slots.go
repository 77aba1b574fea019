// Package export renders availability slots as xlsx workbooks.
package export

import (
	"fmt"
	"sort"
	"time"

	"medslots/internal/model"
)

// Columns is the header row of every slots sheet.
var Columns = []string{"Date", "Weekday", "Start", "End", "Clinic", "Specialist", "Service", "Mode", "Slot ID"}

// WriteSlots builds a workbook with one sheet per specialist, ordered by
// specialist id, with rows ordered by start. Times are rendered in loc.
// The caller closes the returned workbook.
func WriteSlots(slots []model.AvailabilitySlot, loc *time.Location) (*Workbook, error) {
	if loc == nil {
		loc = time.UTC
	}

	bySpecialist := make(map[string][]model.AvailabilitySlot)
	for _, s := range slots {
		bySpecialist[s.SpecialistID] = append(bySpecialist[s.SpecialistID], s)
	}

	specialists := make([]string, 0, len(bySpecialist))
	for id := range bySpecialist {
		specialists = append(specialists, id)
	}
	sort.Strings(specialists)

	b, err := newWorkbook(loc)
	if err != nil {
		return nil, err
	}

	if len(specialists) == 0 {
		if err := b.addSheet(emptySheet, nil); err != nil {
			_ = b.Close()
			return nil, err
		}
		return b, nil
	}

	taken := make(map[string]bool, len(specialists))
	for _, id := range specialists {
		list := bySpecialist[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })

		if err := b.addSheet(sheetName(id, taken), list); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// SlotRow formats a slot in Columns order.
func SlotRow(s model.AvailabilitySlot, loc *time.Location) []interface{} {
	start := s.Start.In(loc)
	end := s.End.In(loc)
	return []interface{}{
		start.Format("2006-01-02"),
		start.Weekday().String(),
		start.Format("15:04"),
		end.Format("15:04"),
		s.ClinicID,
		s.SpecialistID,
		s.ServiceOptionID,
		string(s.Mode),
		s.ID,
	}
}

// Filename names an export generated at t, e.g. "availability_20260112_0930.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("availability_%s.xlsx", t.Format("20060102_1504"))
}
