package server

import (
	"context"

	"connectrpc.com/connect"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/api/attendance/v1/attendancev1connect"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/auth"
)

var _ attendancev1connect.ReportServiceHandler = &ReportServer{}

// ReportServer exposes attendance statistics over Connect.
type ReportServer struct {
	aggregator *attendance.Aggregator
}

func NewReportServer(aggregator *attendance.Aggregator) *ReportServer {
	return &ReportServer{aggregator: aggregator}
}

func (s *ReportServer) GetStudentAttendance(ctx context.Context, req *connect.Request[attendancev1.GetStudentAttendanceRequest]) (*connect.Response[attendancev1.GetStudentAttendanceResponse], error) {
	if _, err := auth.RequirePermission(ctx, auth.PermReportsRead); err != nil {
		return nil, err
	}

	period, err := parsePeriod(req.Msg.From, req.Msg.To)
	if err != nil {
		return nil, err
	}

	result, err := s.aggregator.ComputeStudentAttendance(ctx, req.Msg.CourseID, req.Msg.StudentID, period)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.GetStudentAttendanceResponse{
		Attendance: toStudentAttendance(*result),
	}), nil
}

func (s *ReportServer) GetCourseSummary(ctx context.Context, req *connect.Request[attendancev1.GetCourseSummaryRequest]) (*connect.Response[attendancev1.GetCourseSummaryResponse], error) {
	if _, err := auth.RequirePermission(ctx, auth.PermReportsRead); err != nil {
		return nil, err
	}

	period, err := parsePeriod(req.Msg.From, req.Msg.To)
	if err != nil {
		return nil, err
	}

	summary, err := s.aggregator.ComputeCourseSummary(ctx, req.Msg.CourseID, period)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.GetCourseSummaryResponse{Summary: toCourseSummary(summary)}), nil
}

func (s *ReportServer) GetSessionStats(ctx context.Context, req *connect.Request[attendancev1.GetSessionStatsRequest]) (*connect.Response[attendancev1.GetSessionStatsResponse], error) {
	if _, err := auth.RequirePermission(ctx, auth.PermReportsRead); err != nil {
		return nil, err
	}

	sessionID, err := parseSessionID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	stats, err := s.aggregator.ComputeSessionStats(ctx, sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.GetSessionStatsResponse{Stats: toSessionStats(stats)}), nil
}
