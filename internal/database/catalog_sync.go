package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"medslots/internal/config"
	"medslots/internal/model"
)

// SyncCatalogFromConfig applies clinics.yaml to the database.
// It upserts schedules and settings and marks entries missing from the catalog inactive.
func (db *DB) SyncCatalogFromConfig(ctx context.Context, cat *config.Catalog) error {
	if cat == nil {
		return fmt.Errorf("catalog is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	schedules := cat.Schedules()
	seenSpecialists := make(map[string]struct{}, len(cat.Specialists))

	for _, sp := range cat.Specialists {
		schedule, ok := schedules[sp.ID]
		if !ok {
			continue
		}
		if err := upsertSchedule(ctx, tx, sp.Name, schedule, now); err != nil {
			return fmt.Errorf("sync specialist %s: %w", sp.ID, err)
		}
		seenSpecialists[sp.ID] = struct{}{}
	}

	settings := cat.Settings()
	seenClinics := make(map[string]struct{}, len(cat.Clinics))
	for _, cl := range cat.Clinics {
		s, ok := settings[cl.ID]
		if !ok {
			continue
		}
		if err := upsertSettings(ctx, tx, cl.Name, s, now); err != nil {
			return fmt.Errorf("sync clinic %s: %w", cl.ID, err)
		}
		seenClinics[cl.ID] = struct{}{}
	}

	// Deactivate entries that disappeared from the catalog.
	if err := deactivateMissing(ctx, tx, "specialist_schedules", "specialist_id", seenSpecialists, now); err != nil {
		return err
	}
	if err := deactivateMissing(ctx, tx, "booking_settings", "clinic_id", seenClinics, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync: %w", err)
	}

	db.logger.Info().
		Int("specialists", len(seenSpecialists)).
		Int("clinics", len(seenClinics)).
		Msg("Catalog synced to database")
	return nil
}

func upsertSchedule(ctx context.Context, tx *sql.Tx, name string, s *model.SpecialistSchedule, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO specialist_schedules (specialist_id, name, working_days, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(specialist_id) DO UPDATE SET
			name = excluded.name,
			working_days = excluded.working_days,
			is_active = 1,
			updated_at = excluded.updated_at`,
		s.SpecialistID, name, encodeWorkingDays(s.WorkingDays), now, now,
	)
	if err != nil {
		return err
	}

	for _, table := range []string{"working_periods", "schedule_breaks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE specialist_id = ?`, s.SpecialistID); err != nil {
			return err
		}
	}

	for i, p := range s.WorkingPeriods {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO working_periods (specialist_id, position, start_time, end_time) VALUES (?, ?, ?, ?)`,
			s.SpecialistID, i, p.Start, p.End,
		); err != nil {
			return err
		}
	}
	for i, b := range s.Breaks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_breaks (specialist_id, position, start_time, end_time) VALUES (?, ?, ?, ?)`,
			s.SpecialistID, i, b.Start, b.End,
		); err != nil {
			return err
		}
	}
	return nil
}

func upsertSettings(ctx context.Context, tx *sql.Tx, name string, s *model.BookingSettings, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_settings (
			clinic_id, name, require_approval, max_advance_booking_days, min_advance_booking_hours,
			buffer_between_appts, booking_cutoff_time, booking_interval, default_treatment_duration,
			max_appointments_per_day, timezone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(clinic_id) DO UPDATE SET
			name = excluded.name,
			require_approval = excluded.require_approval,
			max_advance_booking_days = excluded.max_advance_booking_days,
			min_advance_booking_hours = excluded.min_advance_booking_hours,
			buffer_between_appts = excluded.buffer_between_appts,
			booking_cutoff_time = excluded.booking_cutoff_time,
			booking_interval = excluded.booking_interval,
			default_treatment_duration = excluded.default_treatment_duration,
			max_appointments_per_day = excluded.max_appointments_per_day,
			timezone = excluded.timezone,
			is_active = 1,
			updated_at = excluded.updated_at`,
		s.ClinicID, name, s.RequireApproval, s.MaxAdvanceBookingDays, s.MinAdvanceBookingHours,
		s.BufferBetweenAppts, s.BookingCutoffTime, s.BookingInterval, s.DefaultTreatmentDuration,
		s.MaxAppointmentsPerDay, s.Timezone, now, now,
	)
	return err
}

func deactivateMissing(ctx context.Context, tx *sql.Tx, table, key string, seen map[string]struct{}, now time.Time) error {
	rows, err := tx.QueryContext(ctx, `SELECT `+key+` FROM `+table+` WHERE is_active = 1`)
	if err != nil {
		return err
	}

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range missing {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET is_active = 0, updated_at = ? WHERE `+key+` = ?`, now, id,
		); err != nil {
			return fmt.Errorf("deactivate %s %s: %w", table, id, err)
		}
	}
	return nil
}
