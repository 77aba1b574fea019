package google

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medslots/internal/model"
)

type mockValues struct {
	mock.Mock
}

func (m *mockValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	return m.Called(ctx, spreadsheetID, rng).Error(0)
}

func (m *mockValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	return m.Called(ctx, spreadsheetID, rng, rows).Error(0)
}

func slot(id, specialist string, hour int) model.AvailabilitySlot {
	start := time.Date(2026, 1, 12, hour, 0, 0, 0, time.UTC)
	return model.AvailabilitySlot{
		ID: id, ClinicID: "clinic-1", SpecialistID: specialist, ServiceOptionID: "svc-1",
		Start: start, End: start.Add(30 * time.Minute), Mode: model.ModeInPerson,
	}
}

func TestSlotValues(t *testing.T) {
	rows := slotValues([]model.AvailabilitySlot{
		slot("b", "doc-2", 9),
		slot("c", "doc-1", 11),
		slot("a", "doc-1", 10),
	}, time.UTC)

	require.Len(t, rows, 4)
	assert.Equal(t, "Date", rows[0][0])

	expected := []interface{}{"2026-01-12", "Monday", "10:00", "10:30", "clinic-1", "doc-1", "svc-1", "in-person", "a"}
	assert.Equal(t, expected, rows[1])
	assert.Equal(t, "c", rows[2][8])
	assert.Equal(t, "b", rows[3][8])
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	api := new(mockValues)
	s := newSheetsService(api, "sheet-id", "", time.UTC, &logger)

	slots := []model.AvailabilitySlot{slot("a", "doc-1", 9)}
	api.On("Clear", ctx, "sheet-id", "Availability!A:Z").Return(nil).Once()
	api.On("Update", ctx, "sheet-id", "Availability!A1", mock.AnythingOfType("[][]interface {}")).Return(nil).Once()

	published, err := s.PublishIfChanged(ctx, slots)
	require.NoError(t, err)
	assert.True(t, published)

	// Same size, nothing to do.
	published, err = s.PublishIfChanged(ctx, slots)
	require.NoError(t, err)
	assert.False(t, published)

	api.AssertExpectations(t)
}

func TestPublish_ClearFails(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	api := new(mockValues)
	s := newSheetsService(api, "sheet-id", "Slots", time.UTC, &logger)

	api.On("Clear", ctx, "sheet-id", "Slots!A:Z").Return(errors.New("quota exceeded")).Once()

	err := s.Publish(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	api.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// A failed publish is retried on the next tick.
	api.On("Clear", ctx, "sheet-id", "Slots!A:Z").Return(nil).Once()
	api.On("Update", ctx, "sheet-id", "Slots!A1", mock.Anything).Return(nil).Once()
	published, err := s.PublishIfChanged(ctx, nil)
	require.NoError(t, err)
	assert.True(t, published)
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewSheetsService(context.Background(), "/nonexistent/creds.json", "id", "", nil, &logger)
	assert.Error(t, err)
}
