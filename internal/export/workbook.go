package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"medslots/internal/model"
)

const (
	emptySheet       = "Availability"
	unassignedSheet  = "Unassigned"
	maxSheetNameRune = 31
)

// Workbook is an availability export with one sheet per specialist.
type Workbook struct {
	file        *excelize.File
	headerStyle int
	sheets      []string
	loc         *time.Location
}

func newWorkbook(loc *time.Location) (*Workbook, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	return &Workbook{file: f, headerStyle: style, loc: loc}, nil
}

// Sheets lists sheet names in creation order.
func (b *Workbook) Sheets() []string {
	return append([]string(nil), b.sheets...)
}

// addSheet creates a sheet with a frozen header row and fills it with slots.
// The first sheet reuses the workbook's default one.
func (b *Workbook) addSheet(name string, slots []model.AvailabilitySlot) error {
	if len(b.sheets) == 0 {
		if err := b.file.SetSheetName(b.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := b.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	b.sheets = append(b.sheets, name)

	header := Columns
	if err := b.file.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("sheet %s header: %w", name, err)
	}
	if err := b.file.SetRowStyle(name, 1, 1, b.headerStyle); err != nil {
		return fmt.Errorf("sheet %s header style: %w", name, err)
	}
	if err := b.file.SetPanes(name, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("sheet %s panes: %w", name, err)
	}
	if err := b.file.SetColWidth(name, "A", "H", 14); err != nil {
		return err
	}
	if err := b.file.SetColWidth(name, "I", "I", 38); err != nil {
		return err
	}

	for i, s := range slots {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := SlotRow(s, b.loc)
		if err := b.file.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", name, i+2, err)
		}
	}
	return nil
}

// Write streams the workbook as xlsx.
func (b *Workbook) Write(w io.Writer) error {
	return b.file.Write(w)
}

// SaveAs writes the workbook to path.
func (b *Workbook) SaveAs(path string) error {
	return b.file.SaveAs(path)
}

// Close releases the underlying file.
func (b *Workbook) Close() error {
	return b.file.Close()
}

// sheetName maps a specialist id to a valid, unique Excel sheet name.
func sheetName(specialistID string, taken map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, specialistID)
	if name == "" {
		name = unassignedSheet
	}
	if runes := []rune(name); len(runes) > maxSheetNameRune {
		name = string(runes[:maxSheetNameRune])
	}

	base := []rune(name)
	for n := 2; taken[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		keep := maxSheetNameRune - len(suffix)
		if len(base) < keep {
			keep = len(base)
		}
		name = string(base[:keep]) + suffix
	}
	taken[strings.ToLower(name)] = true
	return name
}
