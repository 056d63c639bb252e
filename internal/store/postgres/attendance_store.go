package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
)

const recordColumns = `record_id, session_id, student_id, status, method, confidence, recorded_at`

// AttendanceStore implements store.AttendanceStore using PostgreSQL.
type AttendanceStore struct {
	pool *pgxpool.Pool
}

// NewAttendanceStore creates a new PostgreSQL-backed attendance store.
func NewAttendanceStore(pool *pgxpool.Pool) *AttendanceStore {
	return &AttendanceStore{
		pool: pool,
	}
}

// RecordPresence inserts the record if the session is active and the student
// has no record yet. The session row is share-locked for the insert so a
// concurrent close either waits for it or makes it insert nothing.
func (s *AttendanceStore) RecordPresence(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		SELECT $1, s.session_id, $3, $4, $5, $6, $7
		FROM sessions s
		WHERE s.session_id = $2 AND s.status = 'active'
		FOR SHARE
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING ` + recordColumns

	stored, err := scanRecord(s.pool.QueryRow(ctx, query,
		record.RecordID,
		record.SessionID,
		record.StudentID,
		string(record.Status),
		string(record.Method),
		record.Confidence,
		record.RecordedAt,
	))
	if err == nil {
		log.Debug().
			Str("session_id", record.SessionID.String()).
			Str("student_id", record.StudentID).
			Msg("Recorded presence")
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to record presence: %w", mapPostgresError(err))
	}

	// Nothing inserted: the session is not accepting records or this is a duplicate
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM sessions WHERE session_id = $1`, record.SessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, store.ErrSessionNotFound
		}
		return nil, false, fmt.Errorf("failed to get session status: %w", mapPostgresError(err))
	}
	if models.SessionStatus(status) != models.SessionStatusActive {
		return nil, false, store.ErrSessionNotActive
	}

	existing, err := s.get(ctx, record.SessionID, record.StudentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get attendance record: %w", mapPostgresError(err))
	}
	return existing, false, nil
}

func (s *AttendanceStore) get(ctx context.Context, sessionID uuid.UUID, studentID string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`
	return scanRecord(s.pool.QueryRow(ctx, query, sessionID, studentID))
}

// ListBySession returns the records of a session ordered by recorded_at.
func (s *AttendanceStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.AttendanceRecord, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE session_id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", mapPostgresError(err))
	}
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY recorded_at, student_id
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", mapPostgresError(err))
	}
	defer rows.Close()

	records := []*models.AttendanceRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", mapPostgresError(err))
	}

	return records, nil
}

// CountPresent counts the student's present records in sessions of the course.
func (s *AttendanceStore) CountPresent(ctx context.Context, courseID, studentID string, period models.Period) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attendance_records r
		JOIN sessions s ON s.session_id = r.session_id
		WHERE s.course_id = $1
		  AND r.student_id = $2
		  AND r.status = 'present'
		  AND ($3::date IS NULL OR s.session_date >= $3::date)
		  AND ($4::date IS NULL OR s.session_date <= $4::date)
	`

	var count int
	err := s.pool.QueryRow(ctx, query, courseID, studentID, period.From, period.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count present records: %w", mapPostgresError(err))
	}

	return count, nil
}

// PresentCountsByStudent returns present-record counts per student for the course.
func (s *AttendanceStore) PresentCountsByStudent(ctx context.Context, courseID string, period models.Period) (map[string]int, error) {
	query := `
		SELECT r.student_id, COUNT(*)
		FROM attendance_records r
		JOIN sessions s ON s.session_id = r.session_id
		WHERE s.course_id = $1
		  AND r.status = 'present'
		  AND ($2::date IS NULL OR s.session_date >= $2::date)
		  AND ($3::date IS NULL OR s.session_date <= $3::date)
		GROUP BY r.student_id
	`

	rows, err := s.pool.Query(ctx, query, courseID, period.From, period.To)
	if err != nil {
		return nil, fmt.Errorf("failed to count present records: %w", mapPostgresError(err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			studentID string
			count     int
		)
		if err := rows.Scan(&studentID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan present count: %w", err)
		}
		counts[studentID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate present counts: %w", mapPostgresError(err))
	}

	return counts, nil
}

func scanRecord(row pgx.Row) (*models.AttendanceRecord, error) {
	var (
		record models.AttendanceRecord
		status string
		method string
	)

	err := row.Scan(
		&record.RecordID,
		&record.SessionID,
		&record.StudentID,
		&status,
		&method,
		&record.Confidence,
		&record.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = models.AttendanceStatus(status)
	record.Method = models.BiometricMethod(method)

	return &record, nil
}
