package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"medslots/internal/model"
)

// DB holds schedules, booking settings and the appointment ledger in sqlite.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrInvalidAppointment = errors.New("invalid appointment")
	ErrInvalidWorkingDays = errors.New("invalid working days")
)

// NewDB opens the database at path, creating the directory and tables if needed.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS specialist_schedules (
			specialist_id TEXT PRIMARY KEY,
			name TEXT,
			working_days TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS working_periods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			specialist_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			FOREIGN KEY (specialist_id) REFERENCES specialist_schedules(specialist_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_breaks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			specialist_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			FOREIGN KEY (specialist_id) REFERENCES specialist_schedules(specialist_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS booking_settings (
			clinic_id TEXT PRIMARY KEY,
			name TEXT,
			require_approval BOOLEAN NOT NULL DEFAULT 0,
			max_advance_booking_days INTEGER NOT NULL DEFAULT 0,
			min_advance_booking_hours INTEGER NOT NULL DEFAULT 0,
			buffer_between_appts INTEGER NOT NULL DEFAULT 0,
			booking_cutoff_time TEXT,
			booking_interval INTEGER NOT NULL DEFAULT 0,
			default_treatment_duration INTEGER NOT NULL DEFAULT 0,
			max_appointments_per_day INTEGER NOT NULL DEFAULT 0,
			timezone TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			specialist_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_working_periods_specialist ON working_periods(specialist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_breaks_specialist ON schedule_breaks(specialist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_specialist ON appointments(specialist_id, start_time)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", trimSQL(query), err)
		}
	}
	return nil
}

func trimSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}

// GetSchedule returns the active schedule of a specialist, or nil when there is none.
func (db *DB) GetSchedule(ctx context.Context, specialistID string) (*model.SpecialistSchedule, error) {
	var days string
	err := db.QueryRowContext(ctx,
		`SELECT working_days FROM specialist_schedules WHERE specialist_id = ? AND is_active = 1`,
		specialistID,
	).Scan(&days)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}

	weekdays, err := decodeWorkingDays(days)
	if err != nil {
		return nil, fmt.Errorf("specialist %s: %w", specialistID, err)
	}

	schedule := &model.SpecialistSchedule{SpecialistID: specialistID, WorkingDays: weekdays}

	periods, err := db.listRanges(ctx, "working_periods", specialistID)
	if err != nil {
		return nil, err
	}
	for _, p := range periods {
		schedule.WorkingPeriods = append(schedule.WorkingPeriods, model.WorkingPeriod{Start: p[0], End: p[1]})
	}

	breaks, err := db.listRanges(ctx, "schedule_breaks", specialistID)
	if err != nil {
		return nil, err
	}
	for _, b := range breaks {
		schedule.Breaks = append(schedule.Breaks, model.Break{Start: b[0], End: b[1]})
	}

	return schedule, nil
}

func (db *DB) listRanges(ctx context.Context, table, specialistID string) ([][2]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT start_time, end_time FROM `+table+` WHERE specialist_id = ? ORDER BY position`,
		specialistID,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var r [2]string
		if err := rows.Scan(&r[0], &r[1]); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSettings returns the active booking settings of a clinic, or nil when there are none.
func (db *DB) GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error) {
	var (
		s        model.BookingSettings
		cutoff   sql.NullString
		timezone sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT clinic_id, require_approval, max_advance_booking_days, min_advance_booking_hours,
			buffer_between_appts, booking_cutoff_time, booking_interval, default_treatment_duration,
			max_appointments_per_day, timezone
		FROM booking_settings WHERE clinic_id = ? AND is_active = 1`,
		clinicID,
	).Scan(
		&s.ClinicID, &s.RequireApproval, &s.MaxAdvanceBookingDays, &s.MinAdvanceBookingHours,
		&s.BufferBetweenAppts, &cutoff, &s.BookingInterval, &s.DefaultTreatmentDuration,
		&s.MaxAppointmentsPerDay, &timezone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	s.BookingCutoffTime = cutoff.String
	s.Timezone = timezone.String
	return &s, nil
}

// InsertAppointment records a booking in the ledger and sets its ID.
func (db *DB) InsertAppointment(ctx context.Context, appt *model.ExistingAppointment) error {
	if appt.SpecialistID == "" || !appt.Interval().Valid() {
		return ErrInvalidAppointment
	}
	status := appt.Status
	if status == "" {
		status = "pending"
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO appointments (specialist_id, start_time, end_time, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		appt.SpecialistID, appt.Start.UTC(), appt.End.UTC(), status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	appt.ID = id
	appt.Status = status
	return nil
}

// ListAppointments returns a specialist's bookings ordered by start time.
func (db *DB) ListAppointments(ctx context.Context, specialistID string) ([]model.ExistingAppointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, specialist_id, start_time, end_time, status
		FROM appointments WHERE specialist_id = ? ORDER BY start_time, id`,
		specialistID,
	)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []model.ExistingAppointment
	for rows.Next() {
		var a model.ExistingAppointment
		if err := rows.Scan(&a.ID, &a.SpecialistID, &a.Start, &a.End, &a.Status); err != nil {
			return nil, err
		}
		a.Start = a.Start.UTC()
		a.End = a.End.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// ConflictsFor returns every booked interval of the specialist. Status is not consulted.
func (db *DB) ConflictsFor(ctx context.Context, specialistID string) ([]model.TimeInterval, error) {
	appts, err := db.ListAppointments(ctx, specialistID)
	if err != nil {
		return nil, err
	}
	out := make([]model.TimeInterval, 0, len(appts))
	for i := range appts {
		out = append(out, appts[i].Interval())
	}
	return out, nil
}

// encodeWorkingDays stores weekdays as "1,2,3" using 1=Mon, 7=Sun.
func encodeWorkingDays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		n := int(d)
		if n == 0 {
			n = 7 // Sunday = 7
		}
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}

func decodeWorkingDays(s string) ([]time.Weekday, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 || n > 7 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWorkingDays, s)
		}
		if n == 7 {
			n = 0
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}
