package attendance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfeidau/rollcall/internal/models"
)

// ValidationError reports malformed or missing input. It is returned before
// any storage access.
type ValidationError struct {
	Fields map[string]string // field -> problem
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func newValidationError(field, problem string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: problem}}
}

// SessionAlreadyActiveError is returned when an instructor opens a session
// while another one is still active.
type SessionAlreadyActiveError struct {
	SessionID uuid.UUID // the blocking session
}

func (e *SessionAlreadyActiveError) Error() string {
	return fmt.Sprintf("you already have an active session (%s), close it before starting a new one", e.SessionID)
}

// SessionNotActiveError is returned when presence is recorded against a
// session that is unknown, completed or cancelled.
type SessionNotActiveError struct {
	SessionID uuid.UUID
	Status    models.SessionStatus // empty when the session does not exist
}

func (e *SessionNotActiveError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("session %s does not exist, attendance was not recorded", e.SessionID)
	}
	return fmt.Sprintf("session %s is %s, attendance was not recorded; ask the instructor to open a new session", e.SessionID, e.Status)
}

// NotFoundError is returned for unknown resources.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ForbiddenError is returned when the caller may not act on the resource.
type ForbiddenError struct {
	PrincipalID string
	Action      string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("principal %s is not allowed to %s", e.PrincipalID, e.Action)
}

// StorageError wraps a persistence failure. It is never retried here; callers
// may replay idempotent operations.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
