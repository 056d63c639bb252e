package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
)

// Create creates a new session in memory.
func (s *Store) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same guarantee as the partial unique index in PostgreSQL
	if session.Status == models.SessionStatusActive {
		if _, exists := s.activeByInstructor[session.InstructorID]; exists {
			return store.ErrActiveSessionExists
		}
		s.activeByInstructor[session.InstructorID] = session.SessionID
	}

	s.sessions[session.SessionID] = cloneSession(session)
	s.sessionsByCourse[session.CourseID] = append(s.sessionsByCourse[session.CourseID], session.SessionID)

	return nil
}

// Get retrieves a session by ID.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) (*models.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	return s.summarize(session), nil
}

// GetActiveByInstructor returns the instructor's active session.
func (s *Store) GetActiveByInstructor(ctx context.Context, instructorID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, exists := s.activeByInstructor[instructorID]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	return cloneSession(s.sessions[sessionID]), nil
}

// Transition moves an active session to a terminal status.
func (s *Store) Transition(ctx context.Context, sessionID uuid.UUID, to models.SessionStatus, at time.Time) (*models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, false, store.ErrSessionNotFound
	}

	if !session.IsActive() {
		return cloneSession(session), false, nil
	}

	s.finish(session, to, at)

	return cloneSession(session), true, nil
}

// CompleteAllActive completes every active session of the instructor.
func (s *Store) CompleteAllActive(ctx context.Context, instructorID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, session := range s.sessions {
		if session.InstructorID == instructorID && session.IsActive() {
			s.finish(session, models.SessionStatusCompleted, at)
			count++
		}
	}

	return count, nil
}

// ListByInstructor returns the instructor's sessions, most recent first.
func (s *Store) ListByInstructor(ctx context.Context, instructorID string, opts store.ListSessionsOptions) ([]*models.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Session
	for _, session := range s.sessions {
		if session.InstructorID == instructorID {
			matched = append(matched, session)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.After(matched[j].StartTime)
		}
		return bytes.Compare(matched[i].SessionID[:], matched[j].SessionID[:]) > 0
	})

	if opts.Offset >= len(matched) {
		return []*models.SessionSummary{}, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}

	results := make([]*models.SessionSummary, 0, len(matched))
	for _, session := range matched {
		results = append(results, s.summarize(session))
	}

	return results, nil
}

// CountByCourse counts every session opened for the course.
func (s *Store) CountByCourse(ctx context.Context, courseID string, period models.Period) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sessionID := range s.sessionsByCourse[courseID] {
		if period.Contains(s.sessions[sessionID].SessionDate) {
			count++
		}
	}

	return count, nil
}

// finish must be called with the write lock held.
func (s *Store) finish(session *models.Session, to models.SessionStatus, at time.Time) {
	session.Status = to
	session.UpdatedAt = at
	if to == models.SessionStatusCompleted {
		end := at
		session.EndTime = &end
	}
	delete(s.activeByInstructor, session.InstructorID)
}

// summarize must be called with the lock held.
func (s *Store) summarize(session *models.Session) *models.SessionSummary {
	return &models.SessionSummary{
		Session:         *cloneSession(session),
		StudentsPresent: len(s.records[session.SessionID]),
	}
}
