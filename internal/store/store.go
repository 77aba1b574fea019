// Package store keeps the canonical, id-keyed collection of generated slots.
package store

import (
	"sync"
	"time"

	"medslots/internal/model"
)

// Query selects slots by identifiers and an inclusive time range.
type Query struct {
	ClinicID        string
	SpecialistID    string
	ServiceOptionID string
	From            time.Time
	To              time.Time
}

// MergeResult reports what a merge did.
type MergeResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Store is the canonical slot collection. It only grows.
// Writers are serialised, so readers always observe whole merges.
type Store struct {
	mu           sync.RWMutex
	slots        []model.AvailabilitySlot
	byID         map[string]int
	bySpecialist map[string][]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID:         make(map[string]int),
		bySpecialist: make(map[string][]int),
	}
}

// MergeIn inserts every slot whose id is not yet present and skips the rest.
func (s *Store) MergeIn(slots []model.AvailabilitySlot) MergeResult {
	var res MergeResult

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range slots {
		if _, exists := s.byID[slots[i].ID]; exists {
			res.Skipped++
			continue
		}
		idx := len(s.slots)
		s.slots = append(s.slots, slots[i])
		s.byID[slots[i].ID] = idx
		s.bySpecialist[slots[i].SpecialistID] = append(s.bySpecialist[slots[i].SpecialistID], idx)
		res.Inserted++
	}
	return res
}

// Query returns matching slots with start >= From and end <= To, in insertion order.
func (s *Store) Query(q Query) []model.AvailabilitySlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.AvailabilitySlot, 0)
	for _, idx := range s.bySpecialist[q.SpecialistID] {
		slot := &s.slots[idx]
		if !slot.Matches(q.ClinicID, q.SpecialistID, q.ServiceOptionID) {
			continue
		}
		if !slot.Within(q.From, q.To) {
			continue
		}
		result = append(result, *slot)
	}
	return result
}

// ForSpecialist returns every slot for the three identifiers, without a date filter.
func (s *Store) ForSpecialist(specialistID, clinicID, serviceOptionID string) []model.AvailabilitySlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.AvailabilitySlot, 0)
	for _, idx := range s.bySpecialist[specialistID] {
		if s.slots[idx].Matches(clinicID, specialistID, serviceOptionID) {
			result = append(result, s.slots[idx])
		}
	}
	return result
}

// Get returns a slot by id.
func (s *Store) Get(id string) (model.AvailabilitySlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return model.AvailabilitySlot{}, false
	}
	return s.slots[idx], true
}

// Len returns the number of slots held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Snapshot returns a copy of the whole collection.
func (s *Store) Snapshot() []model.AvailabilitySlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AvailabilitySlot(nil), s.slots...)
}
