package server

import (
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/util"
)

func toSession(s *models.Session, present int) *attendancev1.Session {
	if s == nil {
		return nil
	}
	return &attendancev1.Session{
		SessionID:       s.SessionID.String(),
		InstructorID:    s.InstructorID,
		CourseID:        s.CourseID,
		CohortID:        s.CohortID,
		BiometricMethod: string(s.BiometricMethod),
		SessionDate:     s.SessionDate.Format(util.DateLayout),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Status:          string(s.Status),
		StudentsPresent: util.AsInt32(present),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toSessionSummary(s *models.SessionSummary) *attendancev1.Session {
	return toSession(&s.Session, s.StudentsPresent)
}

func toRecord(r *models.AttendanceRecord) *attendancev1.AttendanceRecord {
	return &attendancev1.AttendanceRecord{
		RecordID:   r.RecordID.String(),
		SessionID:  r.SessionID.String(),
		StudentID:  r.StudentID,
		Status:     string(r.Status),
		Method:     string(r.Method),
		Confidence: r.Confidence,
		RecordedAt: r.RecordedAt,
	}
}

func toStudentAttendance(a attendance.StudentAttendance) *attendancev1.StudentAttendance {
	return &attendancev1.StudentAttendance{
		StudentID:     a.StudentID,
		TotalSessions: util.AsInt32(a.TotalSessions),
		PresentCount:  util.AsInt32(a.PresentCount),
		AbsentCount:   util.AsInt32(a.AbsentCount),
		Percentage:    a.Percentage,
	}
}

func toCourseSummary(s *attendance.CourseSummary) *attendancev1.CourseSummary {
	students := make([]*attendancev1.StudentAttendance, 0, len(s.Students))
	for _, a := range s.Students {
		students = append(students, toStudentAttendance(a))
	}

	return &attendancev1.CourseSummary{
		CourseID:                   s.CourseID,
		From:                       util.FormatDate(s.Period.From),
		To:                         util.FormatDate(s.Period.To),
		Threshold:                  s.Threshold,
		Students:                   students,
		AverageAttendance:          s.AverageAttendance,
		TotalStudents:              util.AsInt32(s.TotalStudents),
		TotalSessions:              util.AsInt32(s.TotalSessions),
		TotalPossibleAttendances:   util.AsInt32(s.TotalPossibleAttendances),
		TotalActualAttendances:     util.AsInt32(s.TotalActualAttendances),
		StudentsAtOrAboveThreshold: util.AsInt32(s.StudentsAtOrAboveThreshold),
		StudentsBelowThreshold:     util.AsInt32(s.StudentsBelowThreshold),
		PerfectAttendance:          util.AsInt32(s.PerfectAttendance),
		ZeroAttendance:             util.AsInt32(s.ZeroAttendance),
	}
}

func toSessionStats(s *attendance.SessionStats) *attendancev1.SessionStats {
	return &attendancev1.SessionStats{
		SessionID:  s.SessionID.String(),
		CohortID:   s.CohortID,
		Status:     string(s.Status),
		RosterSize: util.AsInt32(s.RosterSize),
		Present:    util.AsInt32(s.Present),
		Absent:     util.AsInt32(s.Absent),
		OffRoster:  util.AsInt32(s.OffRoster),
		Rate:       s.Rate,
	}
}

// parsePeriod parses optional wire dates into a report period.
func parsePeriod(from, to string) (models.Period, error) {
	var period models.Period
	var err error
	if period.From, err = util.ParseDate(from); err != nil {
		return models.Period{}, invalidArgument("from", "must be a date formatted as YYYY-MM-DD")
	}
	if period.To, err = util.ParseDate(to); err != nil {
		return models.Period{}, invalidArgument("to", "must be a date formatted as YYYY-MM-DD")
	}
	return period, nil
}

// orCaller defaults an empty instructor id to the caller.
func orCaller(instructorID string, caller models.Principal) string {
	if instructorID == "" {
		return caller.ID
	}
	return instructorID
}
