package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
	"github.com/wolfeidau/rollcall/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordPresenceInput is a resolved capture event.
type RecordPresenceInput struct {
	SessionID  uuid.UUID              `field:"session_id"`
	StudentID  string                 `field:"student_id" validate:"required,max=128,printascii"`
	Method     models.BiometricMethod `field:"method" validate:"required,oneof=face finger"`
	Confidence *float64               `field:"confidence" validate:"omitempty,gte=0,lte=1"`
}

// Recorder creates presence records against active sessions.
type Recorder struct {
	sessions   store.SessionStore
	attendance store.AttendanceStore
	now        func() time.Time
}

// NewRecorder creates an attendance recorder.
func NewRecorder(stores store.Stores) *Recorder {
	return &Recorder{
		sessions:   stores.Sessions,
		attendance: stores.Attendance,
		now:        time.Now,
	}
}

// RecordPresence marks the student present in the session. While the session
// is active a repeated event for the same student returns the stored record
// with created=false. Events for unknown or finished sessions fail with
// SessionNotActiveError, including replays of records accepted before the end.
func (r *Recorder) RecordPresence(ctx context.Context, caller models.Principal, input RecordPresenceInput) (*models.AttendanceRecord, bool, error) {
	if err := validateInput(input); err != nil {
		return nil, false, err
	}
	if input.SessionID == uuid.Nil {
		return nil, false, newValidationError("session_id", "is required")
	}

	if err := r.authorize(ctx, caller, input.SessionID); err != nil {
		return nil, false, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate record id: %w", err)
	}

	record := &models.AttendanceRecord{
		RecordID:   id,
		SessionID:  input.SessionID,
		StudentID:  input.StudentID,
		Status:     models.AttendanceStatusPresent,
		Method:     input.Method,
		Confidence: input.Confidence,
		RecordedAt: r.now(),
	}

	metrics := telemetry.GetMetrics()

	stored, created, err := r.attendance.RecordPresence(ctx, record)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			metrics.PresenceRejectedTotal.Add(ctx, 1)
			return nil, false, &SessionNotActiveError{SessionID: input.SessionID}
		case errors.Is(err, store.ErrSessionNotActive):
			metrics.PresenceRejectedTotal.Add(ctx, 1)
			return nil, false, r.notActive(ctx, input.SessionID)
		default:
			return nil, false, &StorageError{Op: "record presence", Err: err}
		}
	}

	if !created {
		metrics.PresenceDuplicateTotal.Add(ctx, 1)
		log.Debug().
			Str("session_id", input.SessionID.String()).
			Str("student_id", input.StudentID).
			Msg("Presence already recorded")
		return stored, false, nil
	}

	metrics.PresenceRecordedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(stored.Method)),
	))

	log.Info().
		Str("session_id", input.SessionID.String()).
		Str("student_id", input.StudentID).
		Str("method", string(input.Method)).
		Msg("Recorded presence")

	return stored, true, nil
}

// authorize lets devices and admins record anywhere and instructors only in their own sessions.
func (r *Recorder) authorize(ctx context.Context, caller models.Principal, sessionID uuid.UUID) error {
	switch caller.Role {
	case models.RoleAdmin, models.RoleDevice:
		return nil
	case models.RoleInstructor:
	default:
		return &ForbiddenError{PrincipalID: caller.ID, Action: "record attendance"}
	}

	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return &SessionNotActiveError{SessionID: sessionID}
		}
		return &StorageError{Op: "get session", Err: err}
	}

	if session.InstructorID != caller.ID {
		return &ForbiddenError{PrincipalID: caller.ID, Action: "record attendance in session " + sessionID.String()}
	}

	return nil
}

// notActive builds the rejection with the session's current status.
func (r *Recorder) notActive(ctx context.Context, sessionID uuid.UUID) error {
	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return &SessionNotActiveError{SessionID: sessionID}
	}
	return &SessionNotActiveError{SessionID: sessionID, Status: session.Status}
}

// ListSessionRecords returns the records of a session ordered by recorded time.
func (r *Recorder) ListSessionRecords(ctx context.Context, caller models.Principal, sessionID uuid.UUID) ([]*models.AttendanceRecord, error) {
	if sessionID == uuid.Nil {
		return nil, newValidationError("session_id", "is required")
	}

	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: sessionID.String()}
		}
		return nil, &StorageError{Op: "get session", Err: err}
	}

	if !canView(caller, session.InstructorID) {
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "view records of session " + sessionID.String()}
	}

	records, err := r.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: sessionID.String()}
		}
		return nil, &StorageError{Op: "list attendance records", Err: err}
	}

	return records, nil
}
