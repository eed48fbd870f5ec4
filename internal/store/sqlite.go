// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides staff/registration persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// maxAllocAttempts bounds retries when an allocated student id collides.
const maxAllocAttempts = 3

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// allocMu serializes the read-max-then-insert student id allocation
	allocMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS staff (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet_address TEXT NOT NULL UNIQUE,
			role           TEXT NOT NULL,
			display_name   TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS registrations (
			wallet_address  TEXT NOT NULL UNIQUE,
			student_id      TEXT NOT NULL UNIQUE,
			student_name    TEXT NOT NULL,
			email           TEXT NOT NULL,
			phone           TEXT NOT NULL DEFAULT '',
			wechat_id       TEXT NOT NULL DEFAULT '',
			details_json    TEXT,
			approval_status TEXT NOT NULL DEFAULT 'pending',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			CHECK (approval_status IN ('pending', 'approved', 'rejected'))
		);

		CREATE INDEX IF NOT EXISTS idx_registrations_status ON registrations(approval_status);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id    TEXT PRIMARY KEY,
			actor       TEXT NOT NULL,
			action      TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id   TEXT NOT NULL,
			ts          TEXT NOT NULL,
			detail_json TEXT,

			CHECK (action IN ('approve_registration', 'reject_registration', 'create_staff'))
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// FindStaffByAddress returns the staff record for a wallet address.
// Returns ErrNotFound if the address is not staff.
func (s *SQLiteStore) FindStaffByAddress(ctx context.Context, address string) (*StaffRecord, error) {
	query := `
		SELECT id, wallet_address, role, display_name, created_at
		FROM staff
		WHERE wallet_address = ?
	`

	var staff StaffRecord
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, address).Scan(
		&staff.ID,
		&staff.Address,
		&staff.Role,
		&staff.DisplayName,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying staff: %w", err)
	}

	staff.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &staff, nil
}

const registrationColumns = `
	wallet_address, student_id, student_name, email, phone, wechat_id,
	details_json, approval_status, created_at, updated_at
`

// scanRegistration scans a row into a Registration.
func scanRegistration(scanner interface{ Scan(dest ...any) error }) (*Registration, error) {
	var reg Registration
	var status, createdAtStr, updatedAtStr string
	var detailsJSON sql.NullString

	if err := scanner.Scan(
		&reg.Address,
		&reg.StudentID,
		&reg.Name,
		&reg.Email,
		&reg.Phone,
		&reg.WechatID,
		&detailsJSON,
		&status,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	reg.ApprovalStatus = ApprovalStatus(status)
	if detailsJSON.Valid && detailsJSON.String != "" {
		if err := json.Unmarshal([]byte(detailsJSON.String), &reg.Details); err != nil {
			return nil, fmt.Errorf("unmarshaling details: %w", err)
		}
	}

	var err error
	reg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	reg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &reg, nil
}

// FindRegistrationByAddress returns the registration for a wallet address.
// Returns ErrNotFound if the address never registered.
func (s *SQLiteStore) FindRegistrationByAddress(ctx context.Context, address string) (*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE wallet_address = ?`

	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, address))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying registration: %w", err)
	}
	return reg, nil
}

// CreateRegistration allocates the next student id and inserts reg as pending.
// Returns ErrDuplicateRegistration if the address is already registered.
func (s *SQLiteStore) CreateRegistration(ctx context.Context, reg *Registration, policy StudentIDPolicy) error {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	var err error
	for attempt := 1; attempt <= maxAllocAttempts; attempt++ {
		err = s.insertRegistration(ctx, reg, policy)
		if !errors.Is(err, ErrDuplicateStudentID) {
			return err
		}
		s.logger.Warn("student id collision, retrying", "attempt", attempt)
	}
	return err
}

// insertRegistration runs read-max and insert inside one transaction.
func (s *SQLiteStore) insertRegistration(ctx context.Context, reg *Registration, policy StudentIDPolicy) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(CAST(student_id AS INTEGER))
		FROM registrations
		WHERE student_id GLOB '[0-9]*' AND student_id NOT GLOB '*[^0-9]*'
	`).Scan(&current)
	if err != nil {
		return fmt.Errorf("reading max student id: %w", err)
	}
	studentID := policy.Next(current.Int64, current.Valid)

	detailsJSON, err := json.Marshal(reg.Details)
	if err != nil {
		return fmt.Errorf("marshaling details: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		reg.Address,
		studentID,
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.WechatID,
		string(detailsJSON),
		string(ApprovalPending),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			if strings.Contains(err.Error(), "student_id") {
				return ErrDuplicateStudentID
			}
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("inserting registration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing registration: %w", err)
	}

	reg.StudentID = studentID
	reg.ApprovalStatus = ApprovalPending
	reg.CreatedAt = now
	reg.UpdatedAt = now

	s.logger.Debug("created registration", "address", reg.Address, "student_id", studentID)
	return nil
}

// ListRegistrations returns registrations ordered numerically by student id.
func (s *SQLiteStore) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]*Registration, error) {
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}

	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE (? IS NULL OR approval_status = ?)
		ORDER BY LENGTH(student_id), student_id
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, status, status, normalizeLimit(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	regs := []*Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registrations: %w", err)
	}
	return regs, nil
}

// SetApprovalStatus moves a registration from one status to another.
// Returns ErrNotFound if the address is unknown, ErrStatusConflict if the
// current status is not from.
func (s *SQLiteStore) SetApprovalStatus(ctx context.Context, address string, from, to ApprovalStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET approval_status = ?, updated_at = ?
		WHERE wallet_address = ? AND approval_status = ?
	`,
		string(to),
		time.Now().UTC().Format(time.RFC3339),
		address,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("updating approval status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.FindRegistrationByAddress(ctx, address); err != nil {
			return err
		}
		return ErrStatusConflict
	}

	s.logger.Debug("updated approval status", "address", address, "from", from, "to", to)
	return nil
}

// CreateStaff inserts a staff record and sets its ID.
// Returns ErrDuplicateStaff if the address already has one.
func (s *SQLiteStore) CreateStaff(ctx context.Context, staff *StaffRecord) error {
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (wallet_address, role, display_name, created_at)
		VALUES (?, ?, ?, ?)
	`,
		staff.Address,
		staff.Role,
		staff.DisplayName,
		staff.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateStaff
		}
		return fmt.Errorf("inserting staff: %w", err)
	}

	staff.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading staff id: %w", err)
	}

	s.logger.Debug("created staff", "address", staff.Address, "role", staff.Role, "id", staff.ID)
	return nil
}

// ListStaff returns all staff records ordered by ID.
func (s *SQLiteStore) ListStaff(ctx context.Context) ([]*StaffRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_address, role, display_name, created_at
		FROM staff
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying staff: %w", err)
	}
	defer rows.Close()

	staff := []*StaffRecord{}
	for rows.Next() {
		var rec StaffRecord
		var createdAtStr string
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.Role, &rec.DisplayName, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning staff: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		staff = append(staff, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staff: %w", err)
	}
	return staff, nil
}

var _ Store = (*SQLiteStore)(nil)
