// Package attendancev1 holds the wire messages of the rollcall.v1 services.
// Messages are plain structs encoded as JSON; dates use YYYY-MM-DD and
// timestamps RFC 3339.
package attendancev1

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// BlockingSessionHeader is the error metadata key naming the active session
// that prevented OpenSession.
const BlockingSessionHeader = "Rollcall-Blocking-Session"

// Session is an attendance session with its present count.
type Session struct {
	SessionID       string     `json:"session_id"`
	InstructorID    string     `json:"instructor_id"`
	CourseID        string     `json:"course_id"`
	CohortID        string     `json:"cohort_id"`
	BiometricMethod string     `json:"biometric_method"`
	SessionDate     string     `json:"session_date"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          string     `json:"status"`
	StudentsPresent int32      `json:"students_present"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AttendanceRecord is a stored presence event.
type AttendanceRecord struct {
	RecordID   string    `json:"record_id"`
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	Method     string    `json:"method"`
	Confidence *float64  `json:"confidence,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type OpenSessionRequest struct {
	// InstructorID defaults to the caller.
	InstructorID    string `json:"instructor_id,omitempty"`
	CourseID        string `json:"course_id"`
	CohortID        string `json:"cohort_id"`
	BiometricMethod string `json:"biometric_method"`
}

type OpenSessionResponse struct {
	Session *Session `json:"session"`
}

type CloseSessionRequest struct {
	SessionID string `json:"session_id"`
}

type CloseSessionResponse struct {
	Session *Session `json:"session"`
}

type CancelSessionRequest struct {
	SessionID string `json:"session_id"`
}

type CancelSessionResponse struct {
	Session *Session `json:"session"`
}

type ForceCloseAllRequest struct {
	// InstructorID defaults to the caller.
	InstructorID string `json:"instructor_id,omitempty"`
}

type ForceCloseAllResponse struct {
	Closed int32 `json:"closed"`
}

type ListSessionsRequest struct {
	// InstructorID defaults to the caller.
	InstructorID string `json:"instructor_id,omitempty"`
	Limit        int32  `json:"limit,omitempty"`
	Offset       int32  `json:"offset,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
	// NextOffset is set when a full page was returned.
	NextOffset int32 `json:"next_offset,omitempty"`
}

type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

type GetSessionResponse struct {
	Session *Session `json:"session"`
}

type GetActiveSessionRequest struct {
	// InstructorID defaults to the caller.
	InstructorID string `json:"instructor_id,omitempty"`
}

type GetActiveSessionResponse struct {
	Session *Session `json:"session"`
}

type RecordPresenceRequest struct {
	SessionID  string   `json:"session_id"`
	StudentID  string   `json:"student_id"`
	Method     string   `json:"method"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type RecordPresenceResponse struct {
	Record *AttendanceRecord `json:"record"`
	// Created is false when the student was already recorded.
	Created bool `json:"created"`
}

type ListSessionRecordsRequest struct {
	SessionID string `json:"session_id"`
}

type ListSessionRecordsResponse struct {
	Records []*AttendanceRecord `json:"records"`
}

// StudentAttendance is one student's attendance in a course.
type StudentAttendance struct {
	StudentID     string  `json:"student_id"`
	TotalSessions int32   `json:"total_sessions"`
	PresentCount  int32   `json:"present_count"`
	AbsentCount   int32   `json:"absent_count"`
	Percentage    float64 `json:"percentage"`
}

type GetStudentAttendanceRequest struct {
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

type GetStudentAttendanceResponse struct {
	Attendance *StudentAttendance `json:"attendance"`
}

// CourseSummary is every roster member's attendance plus course totals.
type CourseSummary struct {
	CourseID                   string               `json:"course_id"`
	From                       string               `json:"from,omitempty"`
	To                         string               `json:"to,omitempty"`
	Threshold                  float64              `json:"threshold"`
	Students                   []*StudentAttendance `json:"students"`
	AverageAttendance          float64              `json:"average_attendance"`
	TotalStudents              int32                `json:"total_students"`
	TotalSessions              int32                `json:"total_sessions"`
	TotalPossibleAttendances   int32                `json:"total_possible_attendances"`
	TotalActualAttendances     int32                `json:"total_actual_attendances"`
	StudentsAtOrAboveThreshold int32                `json:"students_at_or_above_threshold"`
	StudentsBelowThreshold     int32                `json:"students_below_threshold"`
	PerfectAttendance          int32                `json:"perfect_attendance"`
	ZeroAttendance             int32                `json:"zero_attendance"`
}

type GetCourseSummaryRequest struct {
	CourseID string `json:"course_id"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

type GetCourseSummaryResponse struct {
	Summary *CourseSummary `json:"summary"`
}

// SessionStats compares a session's records with its cohort roster.
type SessionStats struct {
	SessionID  string  `json:"session_id"`
	CohortID   string  `json:"cohort_id"`
	Status     string  `json:"status"`
	RosterSize int32   `json:"roster_size"`
	Present    int32   `json:"present"`
	Absent     int32   `json:"absent"`
	OffRoster  int32   `json:"off_roster"`
	Rate       float64 `json:"rate"`
}

type GetSessionStatsRequest struct {
	SessionID string `json:"session_id"`
}

type GetSessionStatsResponse struct {
	Stats *SessionStats `json:"stats"`
}
