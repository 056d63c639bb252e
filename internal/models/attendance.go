package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus is the status of a stored attendance record. Absence is
// derived at read time and never stored.
type AttendanceStatus string

const AttendanceStatusPresent AttendanceStatus = "present"

// AttendanceRecord is a single presence event for a student in a session.
type AttendanceRecord struct {
	RecordID   uuid.UUID // UUIDv7
	SessionID  uuid.UUID
	StudentID  string
	Status     AttendanceStatus
	Method     BiometricMethod
	Confidence *float64 // reported by the capture step, opaque here
	RecordedAt time.Time
}

// Period restricts reports to sessions whose date falls within [From, To].
// A nil bound is open.
type Period struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether the session date d lies inside the period.
func (p Period) Contains(d time.Time) bool {
	d = DateOf(d)
	if p.From != nil && d.Before(DateOf(*p.From)) {
		return false
	}
	if p.To != nil && d.After(DateOf(*p.To)) {
		return false
	}
	return true
}
