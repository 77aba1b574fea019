// Package availability is the public contract of the slot engine: generate
// slots into the canonical collection and query them back.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"medslots/internal/events"
	"medslots/internal/metrics"
	"medslots/internal/model"
	"medslots/internal/slots"
	"medslots/internal/store"
)

var (
	// ErrSettingsNotFound is the only hard failure of generation.
	ErrSettingsNotFound = errors.New("booking settings not found for clinic")
	ErrInvalidTimestamp = errors.New("invalid timestamp, expected ISO-8601")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrUnknownSource    = errors.New("unknown availability source")
)

// SettingsRepository provides clinic booking policies.
// Nil settings with a nil error means the clinic has none.
type SettingsRepository interface {
	GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error)
}

// GenerateResult reports the outcome of one generation run.
type GenerateResult struct {
	Generated int `json:"generated"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
}

// Service wires the generator, the settings provider and the canonical collection.
type Service struct {
	generator *slots.Generator
	settings  SettingsRepository
	store     *store.Store
	sources   Sources
	bus       *events.EventBus
	logger    *zerolog.Logger
}

// NewService creates the service. The store is registered as the "engine" source.
// bus may be nil.
func NewService(generator *slots.Generator, settings SettingsRepository, st *store.Store, bus *events.EventBus, logger *zerolog.Logger) *Service {
	s := &Service{
		generator: generator,
		settings:  settings,
		store:     st,
		sources:   Sources{},
		bus:       bus,
		logger:    logger,
	}
	s.sources.Register(storeSource{store: st})
	return s
}

// AddSource registers an extra, independent slot source such as the directory.
func (s *Service) AddSource(src Source) {
	s.sources.Register(src)
}

// SourceNames lists the registered sources.
func (s *Service) SourceNames() []string {
	return s.sources.Names()
}

// GenerateSlots parses ISO-8601 bounds and runs Generate.
func (s *Service) GenerateSlots(ctx context.Context, clinicID, specialistID, serviceOptionID, from, to string) (GenerateResult, error) {
	fromTime, err := ParseTimestamp(from)
	if err != nil {
		return GenerateResult{}, err
	}
	toTime, err := ParseTimestamp(to)
	if err != nil {
		return GenerateResult{}, err
	}

	return s.Generate(ctx, slots.Request{
		ClinicID:        clinicID,
		SpecialistID:    specialistID,
		ServiceOptionID: serviceOptionID,
		From:            fromTime,
		To:              toTime,
	})
}

// Generate produces slots for req and merges them into the canonical collection.
// An unknown specialist or an empty window is a successful run with zero slots.
func (s *Service) Generate(ctx context.Context, req slots.Request) (GenerateResult, error) {
	log := s.logger.With().
		Str("clinic_id", req.ClinicID).
		Str("specialist_id", req.SpecialistID).
		Str("service_option_id", req.ServiceOptionID).
		Logger()

	settings, err := s.settings.GetSettings(ctx, req.ClinicID)
	if err != nil {
		metrics.IncGenerationRun("error")
		return GenerateResult{}, fmt.Errorf("load booking settings: %w", err)
	}
	if settings == nil {
		metrics.IncGenerationRun("settings_missing")
		metrics.IncSettingsMissing()
		log.Warn().Msg("booking settings not found")
		if s.bus != nil {
			s.bus.PublishPayload(events.SettingsMissing, events.SettingsMissingPayload{
				ClinicID:     req.ClinicID,
				SpecialistID: req.SpecialistID,
			})
		}
		return GenerateResult{}, fmt.Errorf("%w: %s", ErrSettingsNotFound, req.ClinicID)
	}

	started := time.Now()
	generated, err := s.generator.Generate(ctx, req, settings)
	metrics.ObserveGeneration(time.Since(started))
	if err != nil {
		metrics.IncGenerationRun("error")
		log.Error().Err(err).Msg("slot generation failed")
		return GenerateResult{}, err
	}

	merged := s.store.MergeIn(generated)
	metrics.IncGenerationRun("ok")
	metrics.AddMerged(merged.Inserted, merged.Skipped)
	metrics.SetStoreSize(s.store.Len())

	result := GenerateResult{
		Generated: len(generated),
		Inserted:  merged.Inserted,
		Skipped:   merged.Skipped,
	}

	log.Info().
		Time("from", req.From).
		Time("to", req.To).
		Int("generated", result.Generated).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Msg("slots generated")

	if s.bus != nil {
		s.bus.PublishPayload(events.SlotsGenerated, events.GeneratedPayload{
			ClinicID:        req.ClinicID,
			SpecialistID:    req.SpecialistID,
			ServiceOptionID: req.ServiceOptionID,
			From:            req.From,
			To:              req.To,
			Generated:       result.Generated,
			Inserted:        result.Inserted,
			Skipped:         result.Skipped,
		})
	}

	return result, nil
}

// GetSlotsForSpecialist returns every generated slot for the three identifiers, without a date filter.
func (s *Service) GetSlotsForSpecialist(ctx context.Context, specialistID, clinicID, serviceOptionID string) ([]model.AvailabilitySlot, error) {
	return s.SlotsFromSource(ctx, EngineSource, specialistID, clinicID, serviceOptionID)
}

// GetAvailability returns generated slots with start >= from and end <= to.
func (s *Service) GetAvailability(ctx context.Context, clinicID, specialistID, serviceOptionID string, from, to time.Time) ([]model.AvailabilitySlot, error) {
	return s.Query(ctx, EngineSource, store.Query{
		ClinicID:        clinicID,
		SpecialistID:    specialistID,
		ServiceOptionID: serviceOptionID,
		From:            from,
		To:              to,
	})
}

// Query runs q against the named source.
func (s *Service) Query(ctx context.Context, source string, q store.Query) ([]model.AvailabilitySlot, error) {
	src, err := s.source(source)
	if err != nil {
		return nil, err
	}
	metrics.IncAvailabilityQuery(src.Name())
	return src.Query(ctx, q)
}

// SlotsFromSource lists every slot of the named source for the three identifiers.
func (s *Service) SlotsFromSource(ctx context.Context, source, specialistID, clinicID, serviceOptionID string) ([]model.AvailabilitySlot, error) {
	src, err := s.source(source)
	if err != nil {
		return nil, err
	}
	metrics.IncAvailabilityQuery(src.Name())
	return src.ForSpecialist(ctx, specialistID, clinicID, serviceOptionID)
}

// Snapshot returns a copy of the canonical collection.
func (s *Service) Snapshot() []model.AvailabilitySlot {
	return s.store.Snapshot()
}

func (s *Service) source(name string) (Source, error) {
	if name == "" {
		name = EngineSource
	}
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return src, nil
}

// ParseTimestamp accepts RFC3339 with or without fractional seconds.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	return t, nil
}

// ValidateRange rejects inverted ranges and ranges longer than maxDays.
func ValidateRange(from, to time.Time, maxDays int) error {
	if to.Before(from) {
		return fmt.Errorf("%w: from must be before to", ErrInvalidRange)
	}
	if maxDays > 0 && to.Sub(from) > time.Duration(maxDays)*24*time.Hour {
		return fmt.Errorf("%w: range cannot exceed %d days", ErrInvalidRange, maxDays)
	}
	return nil
}
