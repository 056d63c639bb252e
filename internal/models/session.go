package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsTerminal returns true for completed and cancelled sessions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// BiometricMethod is the capture modality configured for a session.
type BiometricMethod string

const (
	BiometricMethodFace   BiometricMethod = "face"
	BiometricMethodFinger BiometricMethod = "finger"
)

// Session is one attendance-taking window for an instructor, course and cohort.
// At most one session per instructor may be active at a time.
type Session struct {
	SessionID       uuid.UUID // UUIDv7
	InstructorID    string
	CourseID        string
	CohortID        string // program option + year level
	BiometricMethod BiometricMethod
	SessionDate     time.Time // calendar date the session was opened on
	StartTime       time.Time
	EndTime         *time.Time
	Status          SessionStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive returns true if attendance can still be recorded against the session.
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// SessionSummary is a session plus the number of students recorded present.
type SessionSummary struct {
	Session
	StudentsPresent int
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
