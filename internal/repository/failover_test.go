package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"medslots/internal/model"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetSchedule(ctx context.Context, specialistID string) (*model.SpecialistSchedule, error) {
	args := m.Called(ctx, specialistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SpecialistSchedule), args.Error(1)
}

func (m *mockCatalog) GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingSettings), args.Error(1)
}

func TestFailoverCatalog(t *testing.T) {
	primary := new(mockCatalog)
	fallback := new(mockCatalog)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCatalog(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		s := &model.SpecialistSchedule{SpecialistID: "doc-1"}
		primary.On("GetSchedule", ctx, "doc-1").Return(s, nil).Once()

		got, err := repo.GetSchedule(ctx, "doc-1")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		s := &model.BookingSettings{ClinicID: "clinic-1"}
		primary.On("GetSettings", ctx, "clinic-1").Return(nil, errors.New("database is locked")).Once()
		fallback.On("GetSettings", ctx, "clinic-1").Return(s, nil).Once()

		got, err := repo.GetSettings(ctx, "clinic-1")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackUntilRetry", func(t *testing.T) {
		s := &model.SpecialistSchedule{SpecialistID: "doc-2"}
		fallback.On("GetSchedule", ctx, "doc-2").Return(s, nil).Once()

		got, err := repo.GetSchedule(ctx, "doc-2")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		primary.AssertNotCalled(t, "GetSchedule", ctx, "doc-2")
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		s := &model.SpecialistSchedule{SpecialistID: "doc-3"}
		primary.On("GetSchedule", ctx, "doc-3").Return(s, nil).Once()

		got, err := repo.GetSchedule(ctx, "doc-3")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})
}
