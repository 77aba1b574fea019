// Package directory serves the static, pre-seeded slot list from clinics.yaml.
// It is kept apart from generated slots and never reconciled with them.
package directory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"medslots/internal/config"
	"medslots/internal/model"
	"medslots/internal/store"
)

// SourceName identifies the directory among availability sources.
const SourceName = "directory"

// Directory holds the current directory dataset. Load swaps it atomically.
type Directory struct {
	current atomic.Pointer[store.Store]
}

// New creates an empty directory.
func New() *Directory {
	d := &Directory{}
	d.current.Store(store.New())
	return d
}

// FromCatalog creates a directory loaded from the catalog.
func FromCatalog(cat *config.Catalog) (*Directory, error) {
	d := New()
	if err := d.Load(cat); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the dataset with the catalog's directory entries.
func (d *Directory) Load(cat *config.Catalog) error {
	slots, err := Slots(cat.Directory)
	if err != nil {
		return err
	}
	next := store.New()
	next.MergeIn(slots)
	d.current.Store(next)
	return nil
}

// Slots converts catalog entries into slots. A missing mode means in-person.
func Slots(entries []config.DirectorySlotConfig) ([]model.AvailabilitySlot, error) {
	out := make([]model.AvailabilitySlot, 0, len(entries))
	for _, e := range entries {
		start, err := time.Parse(time.RFC3339, e.Start)
		if err != nil {
			return nil, fmt.Errorf("directory slot %s: start: %w", e.ID, err)
		}
		end, err := time.Parse(time.RFC3339, e.End)
		if err != nil {
			return nil, fmt.Errorf("directory slot %s: end: %w", e.ID, err)
		}
		mode := model.Mode(e.Mode)
		if mode == "" {
			mode = model.ModeInPerson
		}
		out = append(out, model.AvailabilitySlot{
			ID:              e.ID,
			ClinicID:        e.ClinicID,
			SpecialistID:    e.SpecialistID,
			ServiceOptionID: e.ServiceOptionID,
			Start:           start.UTC(),
			End:             end.UTC(),
			Mode:            mode,
		})
	}
	return out, nil
}

func (d *Directory) Name() string { return SourceName }

// Query applies the same filter as the generated-slot store.
func (d *Directory) Query(_ context.Context, q store.Query) ([]model.AvailabilitySlot, error) {
	return d.current.Load().Query(q), nil
}

func (d *Directory) ForSpecialist(_ context.Context, specialistID, clinicID, serviceOptionID string) ([]model.AvailabilitySlot, error) {
	return d.current.Load().ForSpecialist(specialistID, clinicID, serviceOptionID), nil
}

func (d *Directory) Snapshot() []model.AvailabilitySlot {
	return d.current.Load().Snapshot()
}

func (d *Directory) Len() int {
	return d.current.Load().Len()
}
