package server

import (
	"context"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/api/attendance/v1/attendancev1connect"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/util"
)

var _ attendancev1connect.SessionServiceHandler = &SessionServer{}

// SessionServer exposes the session registry over Connect.
type SessionServer struct {
	registry *attendance.Registry
}

func NewSessionServer(registry *attendance.Registry) *SessionServer {
	return &SessionServer{registry: registry}
}

func (s *SessionServer) OpenSession(ctx context.Context, req *connect.Request[attendancev1.OpenSessionRequest]) (*connect.Response[attendancev1.OpenSessionResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsManage)
	if err != nil {
		return nil, err
	}

	session, err := s.registry.OpenSession(ctx, caller, attendance.OpenSessionInput{
		InstructorID:    orCaller(req.Msg.InstructorID, caller),
		CourseID:        req.Msg.CourseID,
		CohortID:        req.Msg.CohortID,
		BiometricMethod: models.BiometricMethod(req.Msg.BiometricMethod),
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.OpenSessionResponse{Session: toSession(session, 0)}), nil
}

func (s *SessionServer) CloseSession(ctx context.Context, req *connect.Request[attendancev1.CloseSessionRequest]) (*connect.Response[attendancev1.CloseSessionResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsManage)
	if err != nil {
		return nil, err
	}

	sessionID, err := parseSessionID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.registry.CloseSession(ctx, caller, sessionID); err != nil {
		return nil, toConnectError(err)
	}

	summary, err := s.registry.GetSession(ctx, caller, sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.CloseSessionResponse{Session: toSessionSummary(summary)}), nil
}

func (s *SessionServer) CancelSession(ctx context.Context, req *connect.Request[attendancev1.CancelSessionRequest]) (*connect.Response[attendancev1.CancelSessionResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsManage)
	if err != nil {
		return nil, err
	}

	sessionID, err := parseSessionID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.registry.CancelSession(ctx, caller, sessionID); err != nil {
		return nil, toConnectError(err)
	}

	summary, err := s.registry.GetSession(ctx, caller, sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.CancelSessionResponse{Session: toSessionSummary(summary)}), nil
}

func (s *SessionServer) ForceCloseAll(ctx context.Context, req *connect.Request[attendancev1.ForceCloseAllRequest]) (*connect.Response[attendancev1.ForceCloseAllResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsManage)
	if err != nil {
		return nil, err
	}

	closed, err := s.registry.ForceCloseAll(ctx, caller, orCaller(req.Msg.InstructorID, caller))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.ForceCloseAllResponse{Closed: util.AsInt32(closed)}), nil
}

func (s *SessionServer) ListSessions(ctx context.Context, req *connect.Request[attendancev1.ListSessionsRequest]) (*connect.Response[attendancev1.ListSessionsResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsRead)
	if err != nil {
		return nil, err
	}

	input := attendance.ListSessionsInput{
		InstructorID: orCaller(req.Msg.InstructorID, caller),
		Limit:        int(req.Msg.Limit),
		Offset:       int(req.Msg.Offset),
	}

	summaries, err := s.registry.ListSessions(ctx, caller, input)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &attendancev1.ListSessionsResponse{
		Sessions: make([]*attendancev1.Session, 0, len(summaries)),
	}
	for _, summary := range summaries {
		resp.Sessions = append(resp.Sessions, toSessionSummary(summary))
	}

	limit := input.Limit
	if limit == 0 {
		limit = attendance.DefaultListLimit
	}
	if len(summaries) == min(limit, attendance.MaxListLimit) {
		resp.NextOffset = util.AsInt32(input.Offset + len(summaries))
	}

	log.Debug().
		Str("instructor_id", input.InstructorID).
		Int("count", len(summaries)).
		Msg("ListSessions success")

	return connect.NewResponse(resp), nil
}

func (s *SessionServer) GetSession(ctx context.Context, req *connect.Request[attendancev1.GetSessionRequest]) (*connect.Response[attendancev1.GetSessionResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsRead)
	if err != nil {
		return nil, err
	}

	sessionID, err := parseSessionID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	summary, err := s.registry.GetSession(ctx, caller, sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.GetSessionResponse{Session: toSessionSummary(summary)}), nil
}

func (s *SessionServer) GetActiveSession(ctx context.Context, req *connect.Request[attendancev1.GetActiveSessionRequest]) (*connect.Response[attendancev1.GetActiveSessionResponse], error) {
	caller, err := auth.RequirePermission(ctx, auth.PermSessionsRead)
	if err != nil {
		return nil, err
	}

	active, err := s.registry.ActiveSession(ctx, caller, orCaller(req.Msg.InstructorID, caller))
	if err != nil {
		return nil, toConnectError(err)
	}

	summary, err := s.registry.GetSession(ctx, caller, active.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&attendancev1.GetActiveSessionResponse{Session: toSessionSummary(summary)}), nil
}
