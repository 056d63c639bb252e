package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
)

const sessionColumns = `
	s.session_id, s.instructor_id, s.course_id, s.cohort_id,
	s.biometric_method, s.session_date, s.start_time, s.end_time,
	s.status, s.created_at, s.updated_at`

// studentsPresentColumn counts the records of the session aliased as s.
const studentsPresentColumn = `
	(SELECT COUNT(*) FROM attendance_records r WHERE r.session_id = s.session_id)`

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Create creates a new session in the database.
// The partial unique index sessions_one_active_per_instructor rejects a second
// active session for the same instructor, including concurrent inserts.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			session_id, instructor_id, course_id, cohort_id,
			biometric_method, session_date, start_time, end_time,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.InstructorID,
		session.CourseID,
		session.CohortID,
		string(session.BiometricMethod),
		session.SessionDate,
		session.StartTime,
		session.EndTime,
		string(session.Status),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintOneActivePerInstructor) {
			return store.ErrActiveSessionExists
		}
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("instructor_id", session.InstructorID).
		Str("course_id", session.CourseID).
		Msg("Created session")

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + `,` + studentsPresentColumn + `
		FROM sessions s
		WHERE s.session_id = $1
	`

	summary, err := scanSessionSummary(s.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	return summary, nil
}

// GetActiveByInstructor returns the instructor's active session.
func (s *SessionStore) GetActiveByInstructor(ctx context.Context, instructorID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions s
		WHERE s.instructor_id = $1 AND s.status = 'active'
	`

	session, err := scanSession(s.pool.QueryRow(ctx, query, instructorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get active session: %w", mapPostgresError(err))
	}

	return session, nil
}

// Transition moves an active session to a terminal status.
func (s *SessionStore) Transition(ctx context.Context, sessionID uuid.UUID, to models.SessionStatus, at time.Time) (*models.Session, bool, error) {
	query := `
		UPDATE sessions s
		SET status = $2::text,
			updated_at = $3,
			end_time = CASE WHEN $2::text = 'completed' THEN $3 ELSE s.end_time END
		WHERE s.session_id = $1 AND s.status = 'active'
		RETURNING ` + sessionColumns

	session, err := scanSession(s.pool.QueryRow(ctx, query, sessionID, string(to), at))
	if err == nil {
		log.Debug().
			Str("session_id", sessionID.String()).
			Str("status", string(to)).
			Msg("Transitioned session")
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to transition session: %w", mapPostgresError(err))
	}

	// Either unknown or already terminal
	current, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	return &current.Session, false, nil
}

// CompleteAllActive completes every active session of the instructor.
func (s *SessionStore) CompleteAllActive(ctx context.Context, instructorID string, at time.Time) (int, error) {
	query := `
		UPDATE sessions
		SET status = 'completed', updated_at = $2, end_time = $2
		WHERE instructor_id = $1 AND status = 'active'
	`

	result, err := s.pool.Exec(ctx, query, instructorID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to complete active sessions: %w", mapPostgresError(err))
	}

	count := int(result.RowsAffected())

	log.Info().
		Str("instructor_id", instructorID).
		Int("count", count).
		Msg("Completed all active sessions for instructor")

	return count, nil
}

// ListByInstructor returns the instructor's sessions, most recent first.
func (s *SessionStore) ListByInstructor(ctx context.Context, instructorID string, opts store.ListSessionsOptions) ([]*models.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + `,` + studentsPresentColumn + `
		FROM sessions s
		WHERE s.instructor_id = $1
		ORDER BY s.start_time DESC, s.session_id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, instructorID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", mapPostgresError(err))
	}
	defer rows.Close()

	results := []*models.SessionSummary{}
	for rows.Next() {
		summary, err := scanSessionSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		results = append(results, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", mapPostgresError(err))
	}

	return results, nil
}

// CountByCourse counts every session opened for the course.
func (s *SessionStore) CountByCourse(ctx context.Context, courseID string, period models.Period) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE course_id = $1
		  AND ($2::date IS NULL OR session_date >= $2::date)
		  AND ($3::date IS NULL OR session_date <= $3::date)
	`

	var count int
	err := s.pool.QueryRow(ctx, query, courseID, period.From, period.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", mapPostgresError(err))
	}

	return count, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		session models.Session
		method  string
		status  string
	)

	err := row.Scan(
		&session.SessionID,
		&session.InstructorID,
		&session.CourseID,
		&session.CohortID,
		&method,
		&session.SessionDate,
		&session.StartTime,
		&session.EndTime,
		&status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.BiometricMethod = models.BiometricMethod(method)
	session.Status = models.SessionStatus(status)

	return &session, nil
}

func scanSessionSummary(row pgx.Row) (*models.SessionSummary, error) {
	var (
		summary models.SessionSummary
		method  string
		status  string
		present int64
	)

	err := row.Scan(
		&summary.SessionID,
		&summary.InstructorID,
		&summary.CourseID,
		&summary.CohortID,
		&method,
		&summary.SessionDate,
		&summary.StartTime,
		&summary.EndTime,
		&status,
		&summary.CreatedAt,
		&summary.UpdatedAt,
		&present,
	)
	if err != nil {
		return nil, err
	}

	summary.BiometricMethod = models.BiometricMethod(method)
	summary.Status = models.SessionStatus(status)
	summary.StudentsPresent = int(present)

	return &summary, nil
}
