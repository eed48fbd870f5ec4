// ABOUTME: PostgreSQL implementation of the Store interface using pgx connection pools
// ABOUTME: Serializes student id allocation with a transaction-scoped advisory lock

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// studentIDLockKey is the pg_advisory_xact_lock key guarding id allocation.
const studentIDLockKey int64 = 0x0B1B_1800

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS staff (
		id             BIGSERIAL PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		role           TEXT NOT NULL,
		display_name   TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		CONSTRAINT staff_wallet_address_key UNIQUE (wallet_address)
	);

	CREATE TABLE IF NOT EXISTS registrations (
		wallet_address  TEXT NOT NULL,
		student_id      TEXT NOT NULL,
		student_name    TEXT NOT NULL,
		email           TEXT NOT NULL,
		phone           TEXT NOT NULL DEFAULT '',
		wechat_id       TEXT NOT NULL DEFAULT '',
		details_json    JSONB,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		CONSTRAINT registrations_wallet_address_key UNIQUE (wallet_address),
		CONSTRAINT registrations_student_id_key UNIQUE (student_id),
		CONSTRAINT registrations_status_check CHECK (approval_status IN ('pending', 'approved', 'rejected'))
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_status ON registrations(approval_status);

	CREATE TABLE IF NOT EXISTS audit_log (
		audit_id    TEXT PRIMARY KEY,
		actor       TEXT NOT NULL,
		action      TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		ts          TIMESTAMPTZ NOT NULL,
		detail_json JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_id);
`

// PostgresStore implements the Store interface on a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to dsn, verifies the connection and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.logger.Info("closing Postgres store")
	s.pool.Close()
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *PostgresStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// uniqueConstraint returns the violated constraint name, or "" if err is not a unique violation.
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// FindStaffByAddress returns the staff record for a wallet address.
func (s *PostgresStore) FindStaffByAddress(ctx context.Context, address string) (*StaffRecord, error) {
	var staff StaffRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, role, display_name, created_at
		FROM staff
		WHERE wallet_address = $1
	`, address).Scan(&staff.ID, &staff.Address, &staff.Role, &staff.DisplayName, &staff.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying staff: %w", err)
	}
	staff.CreatedAt = staff.CreatedAt.UTC()
	return &staff, nil
}

func scanPgRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	var status string
	var detailsJSON []byte

	if err := row.Scan(
		&reg.Address,
		&reg.StudentID,
		&reg.Name,
		&reg.Email,
		&reg.Phone,
		&reg.WechatID,
		&detailsJSON,
		&status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	reg.ApprovalStatus = ApprovalStatus(status)
	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.UpdatedAt = reg.UpdatedAt.UTC()
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &reg.Details); err != nil {
			return nil, fmt.Errorf("unmarshaling details: %w", err)
		}
	}
	return &reg, nil
}

// FindRegistrationByAddress returns the registration for a wallet address.
func (s *PostgresStore) FindRegistrationByAddress(ctx context.Context, address string) (*Registration, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE wallet_address = $1`, address)
	reg, err := scanPgRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying registration: %w", err)
	}
	return reg, nil
}

// CreateRegistration allocates the next student id under an advisory lock and inserts reg.
func (s *PostgresStore) CreateRegistration(ctx context.Context, reg *Registration, policy StudentIDPolicy) error {
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

func (s *PostgresStore) insertRegistration(ctx context.Context, reg *Registration, policy StudentIDPolicy) error {
	detailsJSON, err := json.Marshal(reg.Details)
	if err != nil {
		return fmt.Errorf("marshaling details: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	var studentID string

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, studentIDLockKey); err != nil {
			return fmt.Errorf("acquiring allocation lock: %w", err)
		}

		var current *int64
		if err := tx.QueryRow(ctx, `
			SELECT MAX(student_id::BIGINT)
			FROM registrations
			WHERE student_id ~ '^[0-9]+$'
		`).Scan(&current); err != nil {
			return fmt.Errorf("reading max student id: %w", err)
		}

		if current != nil {
			studentID = policy.Next(*current, true)
		} else {
			studentID = policy.Next(0, false)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO registrations (`+registrationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			reg.Address,
			studentID,
			reg.Name,
			reg.Email,
			reg.Phone,
			reg.WechatID,
			detailsJSON,
			string(ApprovalPending),
			now,
			now,
		)
		switch uniqueConstraint(err) {
		case "":
		case "registrations_student_id_key":
			return ErrDuplicateStudentID
		default:
			return ErrDuplicateRegistration
		}
		if err != nil {
			return fmt.Errorf("inserting registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	reg.StudentID = studentID
	reg.ApprovalStatus = ApprovalPending
	reg.CreatedAt = now
	reg.UpdatedAt = now

	s.logger.Debug("created registration", "address", reg.Address, "student_id", studentID)
	return nil
}

// ListRegistrations returns registrations ordered numerically by student id.
func (s *PostgresStore) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]*Registration, error) {
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE ($1::TEXT IS NULL OR approval_status = $1)
		ORDER BY LENGTH(student_id), student_id
		LIMIT $2
	`, status, normalizeLimit(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	regs := []*Registration{}
	for rows.Next() {
		reg, err := scanPgRegistration(rows)
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
func (s *PostgresStore) SetApprovalStatus(ctx context.Context, address string, from, to ApprovalStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE registrations
		SET approval_status = $1, updated_at = $2
		WHERE wallet_address = $3 AND approval_status = $4
	`, string(to), time.Now().UTC(), address, string(from))
	if err != nil {
		return fmt.Errorf("updating approval status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := s.FindRegistrationByAddress(ctx, address); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

// CreateStaff inserts a staff record and sets its ID.
func (s *PostgresStore) CreateStaff(ctx context.Context, staff *StaffRecord) error {
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO staff (wallet_address, role, display_name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, staff.Address, staff.Role, staff.DisplayName, staff.CreatedAt).Scan(&staff.ID)
	if uniqueConstraint(err) != "" {
		return ErrDuplicateStaff
	}
	if err != nil {
		return fmt.Errorf("inserting staff: %w", err)
	}
	return nil
}

// ListStaff returns all staff records ordered by ID.
func (s *PostgresStore) ListStaff(ctx context.Context) ([]*StaffRecord, error) {
	rows, err := s.pool.Query(ctx, `
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
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.Role, &rec.DisplayName, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning staff: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		staff = append(staff, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staff: %w", err)
	}
	return staff, nil
}

// AppendAuditLog appends a new entry to the audit log.
func (s *PostgresStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	detailJSON, err := prepareAuditEntry(e)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (audit_id, actor, action, target_type, target_id, ts, detail_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Actor, string(e.Action), e.TargetType, e.TargetID, e.Timestamp.UTC(), detailJSON)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (s *PostgresStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var action *string
	if f.Action != nil {
		v := string(*f.Action)
		action = &v
	}

	rows, err := s.pool.Query(ctx, `
		SELECT audit_id, actor, action, target_type, target_id, ts, detail_json
		FROM audit_log
		WHERE ($1::TIMESTAMPTZ IS NULL OR ts >= $1)
		  AND ($2::TEXT IS NULL OR actor = $2)
		  AND ($3::TEXT IS NULL OR action = $3)
		  AND ($4::TEXT IS NULL OR target_id = $4)
		ORDER BY ts DESC, audit_id
		LIMIT $5
	`, f.Since, f.Actor, action, f.TargetID, normalizeLimit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var actionStr string
		var detailJSON []byte
		if err := rows.Scan(&e.ID, &e.Actor, &actionStr, &e.TargetType, &e.TargetID, &e.Timestamp, &detailJSON); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = AuditAction(actionStr)
		e.Timestamp = e.Timestamp.UTC()
		if len(detailJSON) > 0 {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshaling detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

var _ Store = (*PostgresStore)(nil)
