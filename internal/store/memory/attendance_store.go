package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
)

// RecordPresence inserts the record if absent and the session is active.
func (s *Store) RecordPresence(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[record.SessionID]
	if !exists {
		return nil, false, store.ErrSessionNotFound
	}
	if !session.IsActive() {
		return nil, false, store.ErrSessionNotActive
	}

	if existing, ok := s.records[record.SessionID][record.StudentID]; ok {
		return cloneRecord(existing), false, nil
	}

	bySession, ok := s.records[record.SessionID]
	if !ok {
		bySession = make(map[string]*models.AttendanceRecord)
		s.records[record.SessionID] = bySession
	}
	bySession[record.StudentID] = cloneRecord(record)

	return cloneRecord(record), true, nil
}

// ListBySession returns the records of a session ordered by recorded_at.
func (s *Store) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return nil, store.ErrSessionNotFound
	}

	records := make([]*models.AttendanceRecord, 0, len(s.records[sessionID]))
	for _, record := range s.records[sessionID] {
		records = append(records, cloneRecord(record))
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].RecordedAt.Equal(records[j].RecordedAt) {
			return records[i].RecordedAt.Before(records[j].RecordedAt)
		}
		return records[i].StudentID < records[j].StudentID
	})

	return records, nil
}

// CountPresent counts the student's present records in sessions of the course.
func (s *Store) CountPresent(ctx context.Context, courseID, studentID string, period models.Period) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sessionID := range s.sessionsByCourse[courseID] {
		if !period.Contains(s.sessions[sessionID].SessionDate) {
			continue
		}
		if record, ok := s.records[sessionID][studentID]; ok && record.Status == models.AttendanceStatusPresent {
			count++
		}
	}

	return count, nil
}

// PresentCountsByStudent returns present-record counts per student for the course.
func (s *Store) PresentCountsByStudent(ctx context.Context, courseID string, period models.Period) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, sessionID := range s.sessionsByCourse[courseID] {
		if !period.Contains(s.sessions[sessionID].SessionDate) {
			continue
		}
		for studentID, record := range s.records[sessionID] {
			if record.Status == models.AttendanceStatusPresent {
				counts[studentID]++
			}
		}
	}

	return counts, nil
}
