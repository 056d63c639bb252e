// Package attendancev1connect wires the rollcall.v1 services to Connect
// handlers and clients using a JSON codec over plain structs.
package attendancev1connect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	v1 "github.com/wolfeidau/rollcall/api/attendance/v1"
)

const (
	SessionServiceName    = "rollcall.v1.SessionService"
	AttendanceServiceName = "rollcall.v1.AttendanceService"
	ReportServiceName     = "rollcall.v1.ReportService"
)

const (
	SessionServiceOpenSessionProcedure      = "/rollcall.v1.SessionService/OpenSession"
	SessionServiceCloseSessionProcedure     = "/rollcall.v1.SessionService/CloseSession"
	SessionServiceCancelSessionProcedure    = "/rollcall.v1.SessionService/CancelSession"
	SessionServiceForceCloseAllProcedure    = "/rollcall.v1.SessionService/ForceCloseAll"
	SessionServiceListSessionsProcedure     = "/rollcall.v1.SessionService/ListSessions"
	SessionServiceGetSessionProcedure       = "/rollcall.v1.SessionService/GetSession"
	SessionServiceGetActiveSessionProcedure = "/rollcall.v1.SessionService/GetActiveSession"

	AttendanceServiceRecordPresenceProcedure     = "/rollcall.v1.AttendanceService/RecordPresence"
	AttendanceServiceListSessionRecordsProcedure = "/rollcall.v1.AttendanceService/ListSessionRecords"

	ReportServiceGetStudentAttendanceProcedure = "/rollcall.v1.ReportService/GetStudentAttendance"
	ReportServiceGetCourseSummaryProcedure     = "/rollcall.v1.ReportService/GetCourseSummary"
	ReportServiceGetSessionStatsProcedure      = "/rollcall.v1.ReportService/GetSessionStats"
)

// Codec encodes messages as JSON. It is registered on every handler and
// client in this package.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("invalid JSON message: %w", err)
	}
	return nil
}

// SessionServiceHandler is implemented by the session RPC server.
type SessionServiceHandler interface {
	OpenSession(context.Context, *connect.Request[v1.OpenSessionRequest]) (*connect.Response[v1.OpenSessionResponse], error)
	CloseSession(context.Context, *connect.Request[v1.CloseSessionRequest]) (*connect.Response[v1.CloseSessionResponse], error)
	CancelSession(context.Context, *connect.Request[v1.CancelSessionRequest]) (*connect.Response[v1.CancelSessionResponse], error)
	ForceCloseAll(context.Context, *connect.Request[v1.ForceCloseAllRequest]) (*connect.Response[v1.ForceCloseAllResponse], error)
	ListSessions(context.Context, *connect.Request[v1.ListSessionsRequest]) (*connect.Response[v1.ListSessionsResponse], error)
	GetSession(context.Context, *connect.Request[v1.GetSessionRequest]) (*connect.Response[v1.GetSessionResponse], error)
	GetActiveSession(context.Context, *connect.Request[v1.GetActiveSessionRequest]) (*connect.Response[v1.GetActiveSessionResponse], error)
}

// NewSessionServiceHandler builds an HTTP handler serving the session procedures.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SessionServiceOpenSessionProcedure, connect.NewUnaryHandler(SessionServiceOpenSessionProcedure, svc.OpenSession, opts...))
	mux.Handle(SessionServiceCloseSessionProcedure, connect.NewUnaryHandler(SessionServiceCloseSessionProcedure, svc.CloseSession, opts...))
	mux.Handle(SessionServiceCancelSessionProcedure, connect.NewUnaryHandler(SessionServiceCancelSessionProcedure, svc.CancelSession, opts...))
	mux.Handle(SessionServiceForceCloseAllProcedure, connect.NewUnaryHandler(SessionServiceForceCloseAllProcedure, svc.ForceCloseAll, opts...))
	mux.Handle(SessionServiceListSessionsProcedure, connect.NewUnaryHandler(SessionServiceListSessionsProcedure, svc.ListSessions, opts...))
	mux.Handle(SessionServiceGetSessionProcedure, connect.NewUnaryHandler(SessionServiceGetSessionProcedure, svc.GetSession, opts...))
	mux.Handle(SessionServiceGetActiveSessionProcedure, connect.NewUnaryHandler(SessionServiceGetActiveSessionProcedure, svc.GetActiveSession, opts...))

	return "/" + SessionServiceName + "/", mux
}

// SessionServiceClient calls the session procedures.
type SessionServiceClient interface {
	OpenSession(context.Context, *connect.Request[v1.OpenSessionRequest]) (*connect.Response[v1.OpenSessionResponse], error)
	CloseSession(context.Context, *connect.Request[v1.CloseSessionRequest]) (*connect.Response[v1.CloseSessionResponse], error)
	CancelSession(context.Context, *connect.Request[v1.CancelSessionRequest]) (*connect.Response[v1.CancelSessionResponse], error)
	ForceCloseAll(context.Context, *connect.Request[v1.ForceCloseAllRequest]) (*connect.Response[v1.ForceCloseAllResponse], error)
	ListSessions(context.Context, *connect.Request[v1.ListSessionsRequest]) (*connect.Response[v1.ListSessionsResponse], error)
	GetSession(context.Context, *connect.Request[v1.GetSessionRequest]) (*connect.Response[v1.GetSessionResponse], error)
	GetActiveSession(context.Context, *connect.Request[v1.GetActiveSessionRequest]) (*connect.Response[v1.GetActiveSessionResponse], error)
}

type sessionServiceClient struct {
	openSession      *connect.Client[v1.OpenSessionRequest, v1.OpenSessionResponse]
	closeSession     *connect.Client[v1.CloseSessionRequest, v1.CloseSessionResponse]
	cancelSession    *connect.Client[v1.CancelSessionRequest, v1.CancelSessionResponse]
	forceCloseAll    *connect.Client[v1.ForceCloseAllRequest, v1.ForceCloseAllResponse]
	listSessions     *connect.Client[v1.ListSessionsRequest, v1.ListSessionsResponse]
	getSession       *connect.Client[v1.GetSessionRequest, v1.GetSessionResponse]
	getActiveSession *connect.Client[v1.GetActiveSessionRequest, v1.GetActiveSessionResponse]
}

// NewSessionServiceClient builds a client for the session procedures at baseURL.
func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)

	return &sessionServiceClient{
		openSession:      connect.NewClient[v1.OpenSessionRequest, v1.OpenSessionResponse](httpClient, baseURL+SessionServiceOpenSessionProcedure, opts...),
		closeSession:     connect.NewClient[v1.CloseSessionRequest, v1.CloseSessionResponse](httpClient, baseURL+SessionServiceCloseSessionProcedure, opts...),
		cancelSession:    connect.NewClient[v1.CancelSessionRequest, v1.CancelSessionResponse](httpClient, baseURL+SessionServiceCancelSessionProcedure, opts...),
		forceCloseAll:    connect.NewClient[v1.ForceCloseAllRequest, v1.ForceCloseAllResponse](httpClient, baseURL+SessionServiceForceCloseAllProcedure, opts...),
		listSessions:     connect.NewClient[v1.ListSessionsRequest, v1.ListSessionsResponse](httpClient, baseURL+SessionServiceListSessionsProcedure, opts...),
		getSession:       connect.NewClient[v1.GetSessionRequest, v1.GetSessionResponse](httpClient, baseURL+SessionServiceGetSessionProcedure, opts...),
		getActiveSession: connect.NewClient[v1.GetActiveSessionRequest, v1.GetActiveSessionResponse](httpClient, baseURL+SessionServiceGetActiveSessionProcedure, opts...),
	}
}

func (c *sessionServiceClient) OpenSession(ctx context.Context, req *connect.Request[v1.OpenSessionRequest]) (*connect.Response[v1.OpenSessionResponse], error) {
	return c.openSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) CloseSession(ctx context.Context, req *connect.Request[v1.CloseSessionRequest]) (*connect.Response[v1.CloseSessionResponse], error) {
	return c.closeSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) CancelSession(ctx context.Context, req *connect.Request[v1.CancelSessionRequest]) (*connect.Response[v1.CancelSessionResponse], error) {
	return c.cancelSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) ForceCloseAll(ctx context.Context, req *connect.Request[v1.ForceCloseAllRequest]) (*connect.Response[v1.ForceCloseAllResponse], error) {
	return c.forceCloseAll.CallUnary(ctx, req)
}

func (c *sessionServiceClient) ListSessions(ctx context.Context, req *connect.Request[v1.ListSessionsRequest]) (*connect.Response[v1.ListSessionsResponse], error) {
	return c.listSessions.CallUnary(ctx, req)
}

func (c *sessionServiceClient) GetSession(ctx context.Context, req *connect.Request[v1.GetSessionRequest]) (*connect.Response[v1.GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) GetActiveSession(ctx context.Context, req *connect.Request[v1.GetActiveSessionRequest]) (*connect.Response[v1.GetActiveSessionResponse], error) {
	return c.getActiveSession.CallUnary(ctx, req)
}

// AttendanceServiceHandler is implemented by the attendance RPC server.
type AttendanceServiceHandler interface {
	RecordPresence(context.Context, *connect.Request[v1.RecordPresenceRequest]) (*connect.Response[v1.RecordPresenceResponse], error)
	ListSessionRecords(context.Context, *connect.Request[v1.ListSessionRecordsRequest]) (*connect.Response[v1.ListSessionRecordsResponse], error)
}

// NewAttendanceServiceHandler builds an HTTP handler serving the attendance procedures.
func NewAttendanceServiceHandler(svc AttendanceServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AttendanceServiceRecordPresenceProcedure, connect.NewUnaryHandler(AttendanceServiceRecordPresenceProcedure, svc.RecordPresence, opts...))
	mux.Handle(AttendanceServiceListSessionRecordsProcedure, connect.NewUnaryHandler(AttendanceServiceListSessionRecordsProcedure, svc.ListSessionRecords, opts...))

	return "/" + AttendanceServiceName + "/", mux
}

// AttendanceServiceClient calls the attendance procedures.
type AttendanceServiceClient interface {
	RecordPresence(context.Context, *connect.Request[v1.RecordPresenceRequest]) (*connect.Response[v1.RecordPresenceResponse], error)
	ListSessionRecords(context.Context, *connect.Request[v1.ListSessionRecordsRequest]) (*connect.Response[v1.ListSessionRecordsResponse], error)
}

type attendanceServiceClient struct {
	recordPresence     *connect.Client[v1.RecordPresenceRequest, v1.RecordPresenceResponse]
	listSessionRecords *connect.Client[v1.ListSessionRecordsRequest, v1.ListSessionRecordsResponse]
}

// NewAttendanceServiceClient builds a client for the attendance procedures at baseURL.
func NewAttendanceServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AttendanceServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)

	return &attendanceServiceClient{
		recordPresence:     connect.NewClient[v1.RecordPresenceRequest, v1.RecordPresenceResponse](httpClient, baseURL+AttendanceServiceRecordPresenceProcedure, opts...),
		listSessionRecords: connect.NewClient[v1.ListSessionRecordsRequest, v1.ListSessionRecordsResponse](httpClient, baseURL+AttendanceServiceListSessionRecordsProcedure, opts...),
	}
}

func (c *attendanceServiceClient) RecordPresence(ctx context.Context, req *connect.Request[v1.RecordPresenceRequest]) (*connect.Response[v1.RecordPresenceResponse], error) {
	return c.recordPresence.CallUnary(ctx, req)
}

func (c *attendanceServiceClient) ListSessionRecords(ctx context.Context, req *connect.Request[v1.ListSessionRecordsRequest]) (*connect.Response[v1.ListSessionRecordsResponse], error) {
	return c.listSessionRecords.CallUnary(ctx, req)
}

// ReportServiceHandler is implemented by the report RPC server.
type ReportServiceHandler interface {
	GetStudentAttendance(context.Context, *connect.Request[v1.GetStudentAttendanceRequest]) (*connect.Response[v1.GetStudentAttendanceResponse], error)
	GetCourseSummary(context.Context, *connect.Request[v1.GetCourseSummaryRequest]) (*connect.Response[v1.GetCourseSummaryResponse], error)
	GetSessionStats(context.Context, *connect.Request[v1.GetSessionStatsRequest]) (*connect.Response[v1.GetSessionStatsResponse], error)
}

// NewReportServiceHandler builds an HTTP handler serving the report procedures.
// Report procedures have no side effects and also accept GET.
func NewReportServiceHandler(svc ReportServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(Codec{}),
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ReportServiceGetStudentAttendanceProcedure, connect.NewUnaryHandler(ReportServiceGetStudentAttendanceProcedure, svc.GetStudentAttendance, opts...))
	mux.Handle(ReportServiceGetCourseSummaryProcedure, connect.NewUnaryHandler(ReportServiceGetCourseSummaryProcedure, svc.GetCourseSummary, opts...))
	mux.Handle(ReportServiceGetSessionStatsProcedure, connect.NewUnaryHandler(ReportServiceGetSessionStatsProcedure, svc.GetSessionStats, opts...))

	return "/" + ReportServiceName + "/", mux
}

// ReportServiceClient calls the report procedures.
type ReportServiceClient interface {
	GetStudentAttendance(context.Context, *connect.Request[v1.GetStudentAttendanceRequest]) (*connect.Response[v1.GetStudentAttendanceResponse], error)
	GetCourseSummary(context.Context, *connect.Request[v1.GetCourseSummaryRequest]) (*connect.Response[v1.GetCourseSummaryResponse], error)
	GetSessionStats(context.Context, *connect.Request[v1.GetSessionStatsRequest]) (*connect.Response[v1.GetSessionStatsResponse], error)
}

type reportServiceClient struct {
	getStudentAttendance *connect.Client[v1.GetStudentAttendanceRequest, v1.GetStudentAttendanceResponse]
	getCourseSummary     *connect.Client[v1.GetCourseSummaryRequest, v1.GetCourseSummaryResponse]
	getSessionStats      *connect.Client[v1.GetSessionStatsRequest, v1.GetSessionStatsResponse]
}

// NewReportServiceClient builds a client for the report procedures at baseURL.
func NewReportServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ReportServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)

	return &reportServiceClient{
		getStudentAttendance: connect.NewClient[v1.GetStudentAttendanceRequest, v1.GetStudentAttendanceResponse](httpClient, baseURL+ReportServiceGetStudentAttendanceProcedure, opts...),
		getCourseSummary:     connect.NewClient[v1.GetCourseSummaryRequest, v1.GetCourseSummaryResponse](httpClient, baseURL+ReportServiceGetCourseSummaryProcedure, opts...),
		getSessionStats:      connect.NewClient[v1.GetSessionStatsRequest, v1.GetSessionStatsResponse](httpClient, baseURL+ReportServiceGetSessionStatsProcedure, opts...),
	}
}

func (c *reportServiceClient) GetStudentAttendance(ctx context.Context, req *connect.Request[v1.GetStudentAttendanceRequest]) (*connect.Response[v1.GetStudentAttendanceResponse], error) {
	return c.getStudentAttendance.CallUnary(ctx, req)
}

func (c *reportServiceClient) GetCourseSummary(ctx context.Context, req *connect.Request[v1.GetCourseSummaryRequest]) (*connect.Response[v1.GetCourseSummaryResponse], error) {
	return c.getCourseSummary.CallUnary(ctx, req)
}

func (c *reportServiceClient) GetSessionStats(ctx context.Context, req *connect.Request[v1.GetSessionStatsRequest]) (*connect.Response[v1.GetSessionStatsResponse], error) {
	return c.getSessionStats.CallUnary(ctx, req)
}
