package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/rollcall/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrActiveSessionExists = errors.New("instructor already has an active session")
	ErrSessionNotActive    = errors.New("session is not active")
)

// SessionStore defines the interface for attendance session storage.
//
// Implementations must enforce "at most one active session per instructor"
// atomically: a Create that would produce a second active session fails with
// ErrActiveSessionExists, even when two callers race.
type SessionStore interface {
	// Create inserts a new session. Returns ErrActiveSessionExists if the
	// instructor already has an active session.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.SessionSummary, error)

	// GetActiveByInstructor returns the instructor's active session.
	// Returns ErrSessionNotFound if there is none.
	GetActiveByInstructor(ctx context.Context, instructorID string) (*models.Session, error)

	// Transition moves an active session to the given terminal status,
	// setting end_time when completing. It returns the session as it is after
	// the call; a session that was already terminal is returned unchanged
	// with changed=false.
	Transition(ctx context.Context, sessionID uuid.UUID, to models.SessionStatus, at time.Time) (session *models.Session, changed bool, err error)

	// CompleteAllActive completes every active session of the instructor and
	// returns the number of sessions closed.
	CompleteAllActive(ctx context.Context, instructorID string, at time.Time) (int, error)

	// ListByInstructor returns the instructor's sessions, most recent first.
	ListByInstructor(ctx context.Context, instructorID string, opts ListSessionsOptions) ([]*models.SessionSummary, error)

	// CountByCourse counts every session ever opened for the course, whatever its status.
	CountByCourse(ctx context.Context, courseID string, period models.Period) (int, error)
}

// ListSessionsOptions specifies paging for session listings.
type ListSessionsOptions struct {
	Limit  int // Max results
	Offset int // Rows to skip
}

// AttendanceStore defines the interface for attendance record storage.
type AttendanceStore interface {
	// RecordPresence atomically inserts the record if the session is active
	// and no record exists yet for (session, student). The session status is
	// checked first: an unknown session returns ErrSessionNotFound and a
	// completed or cancelled one ErrSessionNotActive, even when a record for
	// the student already exists. On an active session an existing record is
	// returned unchanged with created=false.
	RecordPresence(ctx context.Context, record *models.AttendanceRecord) (stored *models.AttendanceRecord, created bool, err error)

	// ListBySession returns the records of a session ordered by recorded_at.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.AttendanceRecord, error)

	// CountPresent counts the student's present records in sessions of the course.
	CountPresent(ctx context.Context, courseID, studentID string, period models.Period) (int, error)

	// PresentCountsByStudent returns present-record counts per student for
	// sessions of the course.
	PresentCountsByStudent(ctx context.Context, courseID string, period models.Period) (map[string]int, error)
}

// Stores groups the stores the attendance services depend on.
type Stores struct {
	Sessions   SessionStore
	Attendance AttendanceStore
}
