package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"medslots/internal/model"
)

const failoverRetryInterval = time.Minute

// FailoverCatalog reads schedules and settings from primary and switches to
// fallback when primary fails. Primary is retried once per minute.
type FailoverCatalog struct {
	primary  CatalogRepository
	fallback CatalogRepository
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverCatalog creates a catalog that prefers primary.
func NewFailoverCatalog(primary, fallback CatalogRepository, logger *zerolog.Logger) *FailoverCatalog {
	return &FailoverCatalog{primary: primary, fallback: fallback, logger: logger}
}

func (r *FailoverCatalog) GetSchedule(ctx context.Context, specialistID string) (*model.SpecialistSchedule, error) {
	if r.usePrimary() {
		s, err := r.primary.GetSchedule(ctx, specialistID)
		if err == nil {
			r.markUp()
			return s, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetSchedule(ctx, specialistID)
}

func (r *FailoverCatalog) GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error) {
	if r.usePrimary() {
		s, err := r.primary.GetSettings(ctx, clinicID)
		if err == nil {
			r.markUp()
			return s, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetSettings(ctx, clinicID)
}

func (r *FailoverCatalog) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) >= failoverRetryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverCatalog) markDown(err error) {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
	if !r.isDown.Swap(true) {
		r.logger.Warn().Err(err).Msg("primary catalog failed, switching to fallback")
	}
}

func (r *FailoverCatalog) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary catalog recovered")
	}
}
