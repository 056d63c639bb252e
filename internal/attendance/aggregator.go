package attendance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/rollcall/internal/cohort"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
	"github.com/wolfeidau/rollcall/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultThreshold is the attendance percentage students are expected to reach.
const DefaultThreshold = 85.0

// StudentAttendance is one student's attendance in a course.
type StudentAttendance struct {
	StudentID     string
	TotalSessions int
	PresentCount  int
	AbsentCount   int
	Percentage    float64
}

// CourseSummary aggregates attendance for every roster member of a course.
type CourseSummary struct {
	CourseID          string
	Period            models.Period
	Threshold         float64
	Students          []StudentAttendance // roster order
	AverageAttendance float64             // Σpresent / Σtotal, weighted by sessions

	TotalStudents              int
	TotalSessions              int
	TotalPossibleAttendances   int
	TotalActualAttendances     int
	StudentsAtOrAboveThreshold int
	StudentsBelowThreshold     int
	PerfectAttendance          int
	ZeroAttendance             int
}

// SessionStats is the live picture of one session against its cohort roster.
type SessionStats struct {
	SessionID  uuid.UUID
	CohortID   string
	Status     models.SessionStatus
	RosterSize int
	Present    int // roster members recorded present
	Absent     int
	OffRoster  int // records for students not on the roster
	Rate       float64
}

// Aggregator derives attendance statistics from sessions, presence records
// and cohort rosters. It holds no state of its own.
type Aggregator struct {
	sessions   store.SessionStore
	attendance store.AttendanceStore
	rosters    cohort.Resolver
	threshold  float64
}

// NewAggregator creates an aggregator. A threshold <= 0 uses DefaultThreshold.
func NewAggregator(stores store.Stores, rosters cohort.Resolver, threshold float64) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Aggregator{
		sessions:   stores.Sessions,
		attendance: stores.Attendance,
		rosters:    rosters,
		threshold:  threshold,
	}
}

// Threshold returns the configured attendance threshold.
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// ComputeStudentAttendance counts the student's presences against every
// session opened for the course, whatever its status.
func (a *Aggregator) ComputeStudentAttendance(ctx context.Context, courseID, studentID string, period models.Period) (*StudentAttendance, error) {
	defer a.observe(ctx, "student", time.Now())

	if err := validateReport(courseID, period); err != nil {
		return nil, err
	}
	if studentID == "" {
		return nil, newValidationError("student_id", "is required")
	}

	total, err := a.sessions.CountByCourse(ctx, courseID, period)
	if err != nil {
		return nil, &StorageError{Op: "count sessions", Err: err}
	}

	present, err := a.attendance.CountPresent(ctx, courseID, studentID, period)
	if err != nil {
		return nil, &StorageError{Op: "count present records", Err: err}
	}

	result := studentAttendance(studentID, total, present)
	return &result, nil
}

// ComputeCourseSummary computes every roster member's attendance for the course.
func (a *Aggregator) ComputeCourseSummary(ctx context.Context, courseID string, period models.Period) (*CourseSummary, error) {
	defer a.observe(ctx, "course", time.Now())

	if err := validateReport(courseID, period); err != nil {
		return nil, err
	}

	roster, err := a.roster(ctx, courseID)
	if err != nil {
		return nil, err
	}

	total, err := a.sessions.CountByCourse(ctx, courseID, period)
	if err != nil {
		return nil, &StorageError{Op: "count sessions", Err: err}
	}

	counts, err := a.attendance.PresentCountsByStudent(ctx, courseID, period)
	if err != nil {
		return nil, &StorageError{Op: "count present records", Err: err}
	}

	summary := &CourseSummary{
		CourseID:      courseID,
		Period:        period,
		Threshold:     a.threshold,
		Students:      make([]StudentAttendance, 0, len(roster)),
		TotalStudents: len(roster),
		TotalSessions: total,
	}

	for _, studentID := range roster {
		student := studentAttendance(studentID, total, counts[studentID])
		summary.Students = append(summary.Students, student)

		summary.TotalPossibleAttendances += student.TotalSessions
		summary.TotalActualAttendances += student.PresentCount

		if student.Percentage >= a.threshold {
			summary.StudentsAtOrAboveThreshold++
		} else {
			summary.StudentsBelowThreshold++
		}
		if total > 0 && student.PresentCount == total {
			summary.PerfectAttendance++
		}
		if total > 0 && student.PresentCount == 0 {
			summary.ZeroAttendance++
		}
	}

	summary.AverageAttendance = percentage(summary.TotalActualAttendances, summary.TotalPossibleAttendances)

	return summary, nil
}

// ComputeSessionStats compares a session's records with its cohort roster.
func (a *Aggregator) ComputeSessionStats(ctx context.Context, sessionID uuid.UUID) (*SessionStats, error) {
	defer a.observe(ctx, "session", time.Now())

	if sessionID == uuid.Nil {
		return nil, newValidationError("session_id", "is required")
	}

	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: sessionID.String()}
		}
		return nil, &StorageError{Op: "get session", Err: err}
	}

	roster, err := a.roster(ctx, session.CohortID)
	if err != nil {
		return nil, err
	}

	records, err := a.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, &StorageError{Op: "list attendance records", Err: err}
	}

	onRoster := make(map[string]struct{}, len(roster))
	for _, studentID := range roster {
		onRoster[studentID] = struct{}{}
	}

	stats := &SessionStats{
		SessionID:  sessionID,
		CohortID:   session.CohortID,
		Status:     session.Status,
		RosterSize: len(roster),
	}
	for _, record := range records {
		if record.Status != models.AttendanceStatusPresent {
			continue
		}
		if _, ok := onRoster[record.StudentID]; ok {
			stats.Present++
		} else {
			stats.OffRoster++
		}
	}
	stats.Absent = max(stats.RosterSize-stats.Present, 0)
	stats.Rate = percentage(stats.Present, stats.RosterSize)

	return stats, nil
}

func (a *Aggregator) roster(ctx context.Context, key string) ([]string, error) {
	telemetry.GetMetrics().RosterLookups.Add(ctx, 1)

	roster, err := a.rosters.Roster(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "resolve roster", Err: err}
	}
	return roster, nil
}

func (a *Aggregator) observe(ctx context.Context, report string, started time.Time) {
	telemetry.GetMetrics().ReportDuration.Record(ctx,
		float64(time.Since(started).Microseconds())/1000,
		metric.WithAttributes(attribute.String("report", report)),
	)
}

func studentAttendance(studentID string, total, present int) StudentAttendance {
	return StudentAttendance{
		StudentID:     studentID,
		TotalSessions: total,
		PresentCount:  present,
		AbsentCount:   max(total-present, 0),
		Percentage:    percentage(present, total),
	}
}

// percentage is part/whole*100 rounded to one decimal, 0 when whole is 0.
func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func validateReport(courseID string, period models.Period) error {
	if courseID == "" {
		return newValidationError("course_id", "is required")
	}
	if period.From != nil && period.To != nil && period.From.After(*period.To) {
		return newValidationError("period", "from must not be after to")
	}
	return nil
}
