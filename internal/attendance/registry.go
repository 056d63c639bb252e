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

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	// openAttempts bounds retries when the blocking session closes between
	// the conflict and the lookup.
	openAttempts = 2
)

var errActiveSessionUnstable = errors.New("active session for instructor changed repeatedly")

// OpenSessionInput describes a new attendance session.
type OpenSessionInput struct {
	InstructorID    string                 `field:"instructor_id" validate:"required,max=128,printascii"`
	CourseID        string                 `field:"course_id" validate:"required,max=128,printascii"`
	CohortID        string                 `field:"cohort_id" validate:"required,max=128,printascii"`
	BiometricMethod models.BiometricMethod `field:"biometric_method" validate:"required,oneof=face finger"`
}

// ListSessionsInput pages through an instructor's sessions.
type ListSessionsInput struct {
	InstructorID string `field:"instructor_id" validate:"required,max=128,printascii"`
	Limit        int    `field:"limit" validate:"gte=0"`
	Offset       int    `field:"offset" validate:"gte=0"`
}

// Registry owns session lifecycle transitions and the one-active-session-per-instructor rule.
type Registry struct {
	sessions store.SessionStore
	now      func() time.Time
}

// NewRegistry creates a session registry over the given store.
func NewRegistry(sessions store.SessionStore) *Registry {
	return &Registry{
		sessions: sessions,
		now:      time.Now,
	}
}

// OpenSession starts a new active session for the instructor.
// It fails with SessionAlreadyActiveError while another session is active.
func (r *Registry) OpenSession(ctx context.Context, caller models.Principal, input OpenSessionInput) (*models.Session, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if !caller.CanActFor(input.InstructorID) {
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "open sessions for instructor " + input.InstructorID}
	}

	metrics := telemetry.GetMetrics()

	for attempt := 1; ; attempt++ {
		blocking, err := r.sessions.GetActiveByInstructor(ctx, input.InstructorID)
		switch {
		case err == nil:
			metrics.SessionsConflictTotal.Add(ctx, 1)
			return nil, &SessionAlreadyActiveError{SessionID: blocking.SessionID}
		case !errors.Is(err, store.ErrSessionNotFound):
			return nil, &StorageError{Op: "get active session", Err: err}
		}

		session, err := r.newSession(input)
		if err != nil {
			return nil, err
		}

		err = r.sessions.Create(ctx, session)
		if err == nil {
			metrics.SessionsOpenedTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("biometric_method", string(session.BiometricMethod)),
			))

			log.Info().
				Str("session_id", session.SessionID.String()).
				Str("instructor_id", session.InstructorID).
				Str("course_id", session.CourseID).
				Str("cohort_id", session.CohortID).
				Msg("Opened attendance session")

			return session, nil
		}
		if !errors.Is(err, store.ErrActiveSessionExists) {
			return nil, &StorageError{Op: "create session", Err: err}
		}

		// Lost a race with a concurrent open for the same instructor
		blocking, lookupErr := r.sessions.GetActiveByInstructor(ctx, input.InstructorID)
		if lookupErr == nil {
			metrics.SessionsConflictTotal.Add(ctx, 1)
			return nil, &SessionAlreadyActiveError{SessionID: blocking.SessionID}
		}
		if !errors.Is(lookupErr, store.ErrSessionNotFound) {
			return nil, &StorageError{Op: "get active session", Err: lookupErr}
		}
		if attempt >= openAttempts {
			return nil, &StorageError{Op: "create session", Err: errActiveSessionUnstable}
		}

		metrics.SessionOpenConflictRetries.Add(ctx, 1)
		log.Debug().Str("instructor_id", input.InstructorID).Msg("Blocking session closed during open, retrying")
	}
}

func (r *Registry) newSession(input OpenSessionInput) (*models.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := r.now()

	return &models.Session{
		SessionID:       id,
		InstructorID:    input.InstructorID,
		CourseID:        input.CourseID,
		CohortID:        input.CohortID,
		BiometricMethod: input.BiometricMethod,
		SessionDate:     models.DateOf(now),
		StartTime:       now,
		Status:          models.SessionStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CloseSession completes the session. Closing a completed or cancelled
// session returns its current state unchanged.
func (r *Registry) CloseSession(ctx context.Context, caller models.Principal, sessionID uuid.UUID) (*models.Session, error) {
	return r.finish(ctx, caller, sessionID, models.SessionStatusCompleted)
}

// CancelSession cancels an active session. Administrators only.
func (r *Registry) CancelSession(ctx context.Context, caller models.Principal, sessionID uuid.UUID) (*models.Session, error) {
	if !caller.IsAdmin() {
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "cancel sessions"}
	}
	return r.finish(ctx, caller, sessionID, models.SessionStatusCancelled)
}

func (r *Registry) finish(ctx context.Context, caller models.Principal, sessionID uuid.UUID, to models.SessionStatus) (*models.Session, error) {
	if sessionID == uuid.Nil {
		return nil, newValidationError("session_id", "is required")
	}

	current, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: sessionID.String()}
		}
		return nil, &StorageError{Op: "get session", Err: err}
	}

	if !caller.CanActFor(current.InstructorID) {
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "close session " + sessionID.String()}
	}

	if current.Status.IsTerminal() {
		return &current.Session, nil
	}

	session, changed, err := r.sessions.Transition(ctx, sessionID, to, r.now())
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: sessionID.String()}
		}
		return nil, &StorageError{Op: "transition session", Err: err}
	}

	if changed {
		telemetry.GetMetrics().SessionsClosedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(to)),
		))

		log.Info().
			Str("session_id", sessionID.String()).
			Str("instructor_id", session.InstructorID).
			Str("status", string(to)).
			Str("by", caller.ID).
			Msg("Finished attendance session")
	}

	return session, nil
}

// ForceCloseAll completes every active session of the instructor and returns
// how many were closed.
func (r *Registry) ForceCloseAll(ctx context.Context, caller models.Principal, instructorID string) (int, error) {
	if instructorID == "" {
		return 0, newValidationError("instructor_id", "is required")
	}

	if !caller.CanActFor(instructorID) {
		return 0, &ForbiddenError{PrincipalID: caller.ID, Action: "force close sessions of instructor " + instructorID}
	}

	count, err := r.sessions.CompleteAllActive(ctx, instructorID, r.now())
	if err != nil {
		return 0, &StorageError{Op: "complete active sessions", Err: err}
	}

	if count > 0 {
		telemetry.GetMetrics().SessionsForceClosedTotal.Add(ctx, int64(count))
	}

	log.Info().
		Str("instructor_id", instructorID).
		Str("by", caller.ID).
		Int("count", count).
		Msg("Force closed active sessions")

	return count, nil
}

// ListSessions returns the instructor's sessions most recent first. An
// instructor with no sessions yields an empty list. Instructor ids are opaque,
// so an unknown id is indistinguishable from one with no sessions.
func (r *Registry) ListSessions(ctx context.Context, caller models.Principal, input ListSessionsInput) ([]*models.SessionSummary, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if !canView(caller, input.InstructorID) {
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "list sessions of instructor " + input.InstructorID}
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	sessions, err := r.sessions.ListByInstructor(ctx, input.InstructorID, store.ListSessionsOptions{
		Limit:  limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, &StorageError{Op: "list sessions", Err: err}
	}

	return sessions, nil
}

// GetSession returns a session with its present count.
func (r *Registry) GetSession(ctx context.Context, caller models.Principal, sessionID uuid.UUID) (*models.SessionSummary, error) {
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
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "view session " + sessionID.String()}
	}

	return session, nil
}

// ActiveSession returns the instructor's active session, or NotFoundError when none is active.
func (r *Registry) ActiveSession(ctx context.Context, caller models.Principal, instructorID string) (*models.Session, error) {
	if instructorID == "" {
		return nil, newValidationError("instructor_id", "is required")
	}

	if !canView(caller, instructorID) {
		return nil, &ForbiddenError{PrincipalID: caller.ID, Action: "view sessions of instructor " + instructorID}
	}

	session, err := r.sessions.GetActiveByInstructor(ctx, instructorID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, &NotFoundError{Resource: "active session for instructor", ID: instructorID}
		}
		return nil, &StorageError{Op: "get active session", Err: err}
	}

	return session, nil
}

// canView lets capture stations read sessions they record against.
func canView(caller models.Principal, instructorID string) bool {
	return caller.CanActFor(instructorID) || caller.Role == models.RoleDevice
}
