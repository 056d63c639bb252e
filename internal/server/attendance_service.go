package server

import (
	"context"

	"connectrpc.com/connect"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/api/attendance/v1/attendancev1connect"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/models"
)

var _ attendancev1connect.AttendanceServiceHandler = &AttendanceServer{}

// AttendanceServer exposes the attendance recorder over Connect. Capture
// stations call RecordPresence with an already resolved student id.
type AttendanceServer struct {
	recorder *attendance.Recorder
}

func NewAttendanceServer(recorder *attendance.Recorder) *AttendanceServer {
	return &AttendanceServer{recorder: recorder}
}

func (s *AttendanceServer) RecordPresence(ctx context.Context, req *connect.Request[attendancev1.RecordPresenceRequest]) (*connect.Response[attendancev1.RecordPresenceResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermPresenceRecord)
	if err != nil {
		return nil, err
	}

	sessionID, err := parseSessionID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	record, created, err := s.recorder.RecordPresence(ctx, caller, attendance.RecordPresenceInput{
		SessionID:  sessionID,
		StudentID:  req.Msg.StudentID,
		Method:     models.BiometricMethod(req.Msg.Method),
		Confidence: req.Msg.Confidence,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.RecordPresenceResponse{
		Record:  toRecord(record),
		Created: created,
	}), nil
}

func (s *AttendanceServer) ListSessionRecords(ctx context.Context, req *connect.Request[attendancev1.ListSessionRecordsRequest]) (*connect.Response[attendancev1.ListSessionRecordsResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermRecordsRead)
	if err != nil {
		return nil, err
	}

	sessionID, err := parseSessionID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	records, err := s.recorder.ListSessionRecords(ctx, caller, sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &attendancev1.ListSessionRecordsResponse{
		Records: make([]*attendancev1.AttendanceRecord, 0, len(records)),
	}
	for _, record := range records {
		resp.Records = append(resp.Records, toRecord(record))
	}

	return connect.NewResponse(resp), nil
}
