package availability

import (
	"context"
	"sort"

	"medslots/internal/model"
	"medslots/internal/store"
)

// EngineSource is the name of the generated-slot source.
const EngineSource = "engine"

// Source is a named collection of availability slots.
type Source interface {
	Name() string
	Query(ctx context.Context, q store.Query) ([]model.AvailabilitySlot, error)
	ForSpecialist(ctx context.Context, specialistID, clinicID, serviceOptionID string) ([]model.AvailabilitySlot, error)
}

// storeSource exposes the canonical collection as a Source.
type storeSource struct {
	store *store.Store
}

func (s storeSource) Name() string { return EngineSource }

func (s storeSource) Query(_ context.Context, q store.Query) ([]model.AvailabilitySlot, error) {
	return s.store.Query(q), nil
}

func (s storeSource) ForSpecialist(_ context.Context, specialistID, clinicID, serviceOptionID string) ([]model.AvailabilitySlot, error) {
	return s.store.ForSpecialist(specialistID, clinicID, serviceOptionID), nil
}

// Sources is a registry of slot sources by name. Sources are never merged.
type Sources map[string]Source

// Register adds src under its name, replacing any previous one.
func (s Sources) Register(src Source) {
	s[src.Name()] = src
}

// Names returns the registered names in sorted order.
func (s Sources) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
