// Package google publishes availability snapshots to a Google Sheet.
package google

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"medslots/internal/export"
	"medslots/internal/model"
)

// valuesAPI is the subset of the Sheets values API the publisher needs.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

type sheetsValues struct {
	srv *sheets.Service
}

func (v sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.srv.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := v.srv.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// SheetsService rewrites one sheet with the current availability snapshot.
type SheetsService struct {
	api           valuesAPI
	spreadsheetID string
	sheetName     string
	location      *time.Location
	logger        *zerolog.Logger

	mu        sync.Mutex
	lastCount int
}

// NewSheetsService authenticates with a service-account JSON file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, loc *time.Location, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return newSheetsService(sheetsValues{srv: srv}, spreadsheetID, sheetName, loc, logger), nil
}

func newSheetsService(api valuesAPI, spreadsheetID, sheetName string, loc *time.Location, logger *zerolog.Logger) *SheetsService {
	if loc == nil {
		loc = time.UTC
	}
	if sheetName == "" {
		sheetName = "Availability"
	}
	return &SheetsService{
		api:           api,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		location:      loc,
		logger:        logger,
		lastCount:     -1,
	}
}

// Publish replaces the sheet contents with slots.
func (s *SheetsService) Publish(ctx context.Context, slots []model.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.api.Clear(ctx, s.spreadsheetID, s.sheetName+"!A:Z"); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	if err := s.api.Update(ctx, s.spreadsheetID, s.sheetName+"!A1", slotValues(slots, s.location)); err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}

	s.lastCount = len(slots)
	s.logger.Info().Int("slots", len(slots)).Str("sheet", s.sheetName).Msg("Availability published to Google Sheets")
	return nil
}

// PublishIfChanged publishes only when the slot count differs from the last publish.
// The collection only grows, so an unchanged count means unchanged content.
func (s *SheetsService) PublishIfChanged(ctx context.Context, slots []model.AvailabilitySlot) (bool, error) {
	s.mu.Lock()
	unchanged := s.lastCount == len(slots)
	s.mu.Unlock()
	if unchanged {
		return false, nil
	}
	return true, s.Publish(ctx, slots)
}

// Start publishes snapshot() every interval until ctx is done.
func (s *SheetsService) Start(ctx context.Context, interval time.Duration, snapshot func() []model.AvailabilitySlot) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.PublishIfChanged(ctx, snapshot()); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish availability to Google Sheets")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// slotValues renders a header row followed by slots ordered by specialist and start.
func slotValues(slots []model.AvailabilitySlot, loc *time.Location) [][]interface{} {
	sorted := append([]model.AvailabilitySlot(nil), slots...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SpecialistID != sorted[j].SpecialistID {
			return sorted[i].SpecialistID < sorted[j].SpecialistID
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	header := make([]interface{}, 0, len(export.Columns))
	for _, c := range export.Columns {
		header = append(header, c)
	}

	rows := make([][]interface{}, 0, len(sorted)+1)
	rows = append(rows, header)
	for _, slot := range sorted {
		rows = append(rows, export.SlotRow(slot, loc))
	}
	return rows
}
