package server

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/client"
	"github.com/wolfeidau/rollcall/internal/cohort"
	"github.com/wolfeidau/rollcall/internal/models"
	memorystore "github.com/wolfeidau/rollcall/internal/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type harness struct {
	url string
}

func newHarness(t *testing.T, rosters map[string][]string) *harness {
	t.Helper()

	st := memorystore.NewStore()
	srv := NewServer(
		attendance.NewRegistry(st),
		attendance.NewRecorder(st.Stores()),
		attendance.NewAggregator(st.Stores(), cohort.NewStatic(rosters), 0),
	)

	verifier, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	testServer := httptest.NewServer(verifier.Middleware()(srv.Handler()))
	t.Cleanup(testServer.Close)

	return &harness{url: testServer.URL}
}

func (h *harness) token(t *testing.T, id string, role models.Role) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, models.Principal{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (h *harness) as(t *testing.T, id string, role models.Role) *client.Clients {
	t.Helper()
	return client.NewClients(client.Config{
		ServerURL: h.url,
		Timeout:   10 * time.Second,
		Token:     h.token(t, id, role),
	})
}

func openSession(t *testing.T, c *client.Clients, courseID string) *attendancev1.Session {
	t.Helper()
	resp, err := c.Sessions.OpenSession(context.Background(), connect.NewRequest(&attendancev1.OpenSessionRequest{
		CourseID:        courseID,
		CohortID:        "BSIT-1",
		BiometricMethod: "face",
	}))
	require.NoError(t, err)
	return resp.Msg.Session
}

func closeSession(t *testing.T, c *client.Clients, sessionID string) *attendancev1.Session {
	t.Helper()
	resp, err := c.Sessions.CloseSession(context.Background(), connect.NewRequest(&attendancev1.CloseSessionRequest{SessionID: sessionID}))
	require.NoError(t, err)
	return resp.Msg.Session
}

func recordPresence(c *client.Clients, sessionID, studentID string) (*connect.Response[attendancev1.RecordPresenceResponse], error) {
	return c.Attendance.RecordPresence(context.Background(), connect.NewRequest(&attendancev1.RecordPresenceRequest{
		SessionID: sessionID,
		StudentID: studentID,
		Method:    "face",
	}))
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := http.Get(h.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	instructor := h.as(t, "I1", models.RoleInstructor)

	s1 := openSession(t, instructor, "C1")
	require.Equal(t, "active", s1.Status)
	require.Equal(t, "I1", s1.InstructorID)
	require.Nil(t, s1.EndTime)

	t.Run("second open is rejected with the blocking session", func(t *testing.T) {
		_, err := instructor.Sessions.OpenSession(ctx, connect.NewRequest(&attendancev1.OpenSessionRequest{
			CourseID:        "C2",
			CohortID:        "BSIT-1",
			BiometricMethod: "finger",
		}))
		require.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))

		var connectErr *connect.Error
		require.True(t, errors.As(err, &connectErr))
		require.Equal(t, s1.SessionID, connectErr.Meta().Get(BlockingSessionHeader))
		require.Contains(t, connectErr.Message(), s1.SessionID)
	})

	t.Run("active session lookup", func(t *testing.T) {
		resp, err := instructor.Sessions.GetActiveSession(ctx, connect.NewRequest(&attendancev1.GetActiveSessionRequest{}))
		require.NoError(t, err)
		require.Equal(t, s1.SessionID, resp.Msg.Session.SessionID)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		closed := closeSession(t, instructor, s1.SessionID)
		require.Equal(t, "completed", closed.Status)
		require.NotNil(t, closed.EndTime)

		again := closeSession(t, instructor, s1.SessionID)
		require.Equal(t, "completed", again.Status)
		require.True(t, closed.EndTime.Equal(*again.EndTime))
	})

	t.Run("no active session after close", func(t *testing.T) {
		_, err := instructor.Sessions.GetActiveSession(ctx, connect.NewRequest(&attendancev1.GetActiveSessionRequest{}))
		require.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})

	t.Run("closing a cancelled session keeps it cancelled", func(t *testing.T) {
		s2 := openSession(t, instructor, "C2")
		admin := h.as(t, "root", models.RoleAdmin)

		resp, err := admin.Sessions.CancelSession(ctx, connect.NewRequest(&attendancev1.CancelSessionRequest{SessionID: s2.SessionID}))
		require.NoError(t, err)
		require.Equal(t, "cancelled", resp.Msg.Session.Status)

		closed := closeSession(t, instructor, s2.SessionID)
		require.Equal(t, "cancelled", closed.Status)
	})

	t.Run("force close all", func(t *testing.T) {
		openSession(t, instructor, "C3")

		resp, err := instructor.Sessions.ForceCloseAll(ctx, connect.NewRequest(&attendancev1.ForceCloseAllRequest{}))
		require.NoError(t, err)
		require.EqualValues(t, 1, resp.Msg.Closed)

		resp, err = instructor.Sessions.ForceCloseAll(ctx, connect.NewRequest(&attendancev1.ForceCloseAllRequest{}))
		require.NoError(t, err)
		require.Zero(t, resp.Msg.Closed)
	})

	t.Run("list sessions pages most recent first", func(t *testing.T) {
		resp, err := instructor.Sessions.ListSessions(ctx, connect.NewRequest(&attendancev1.ListSessionsRequest{Limit: 2}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Sessions, 2)
		require.EqualValues(t, 2, resp.Msg.NextOffset)
		require.Equal(t, "C3", resp.Msg.Sessions[0].CourseID)

		resp, err = instructor.Sessions.ListSessions(ctx, connect.NewRequest(&attendancev1.ListSessionsRequest{Limit: 2, Offset: 2}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Sessions, 1)
		require.Zero(t, resp.Msg.NextOffset)
		require.Equal(t, s1.SessionID, resp.Msg.Sessions[0].SessionID)
	})
}

func TestRecordPresence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	instructor := h.as(t, "I1", models.RoleInstructor)
	device := h.as(t, "kiosk-1", models.RoleDevice)

	session := openSession(t, instructor, "C1")

	t.Run("duplicate trigger stores one record", func(t *testing.T) {
		first, err := recordPresence(device, session.SessionID, "X")
		require.NoError(t, err)
		require.True(t, first.Msg.Created)
		require.Equal(t, "present", first.Msg.Record.Status)

		second, err := recordPresence(device, session.SessionID, "X")
		require.NoError(t, err)
		require.False(t, second.Msg.Created)
		require.Equal(t, first.Msg.Record.RecordID, second.Msg.Record.RecordID)

		records, err := device.Attendance.ListSessionRecords(ctx, connect.NewRequest(&attendancev1.ListSessionRecordsRequest{SessionID: session.SessionID}))
		require.NoError(t, err)
		require.Len(t, records.Msg.Records, 1)
	})

	t.Run("present count on session", func(t *testing.T) {
		resp, err := instructor.Sessions.GetSession(ctx, connect.NewRequest(&attendancev1.GetSessionRequest{SessionID: session.SessionID}))
		require.NoError(t, err)
		require.EqualValues(t, 1, resp.Msg.Session.StudentsPresent)
	})

	t.Run("completed session rejects presence", func(t *testing.T) {
		closeSession(t, instructor, session.SessionID)

		_, err := recordPresence(device, session.SessionID, "Y")
		require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

		records, err := instructor.Attendance.ListSessionRecords(ctx, connect.NewRequest(&attendancev1.ListSessionRecordsRequest{SessionID: session.SessionID}))
		require.NoError(t, err)
		require.Len(t, records.Msg.Records, 1)
	})

	t.Run("unknown session rejects presence", func(t *testing.T) {
		_, err := recordPresence(device, "01890a5d-ac96-774b-bcce-b302099a8057", "Y")
		require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := recordPresence(device, "not-a-uuid", "Y")
		require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

		_, err = device.Attendance.RecordPresence(ctx, connect.NewRequest(&attendancev1.RecordPresenceRequest{
			SessionID: session.SessionID,
			StudentID: "Y",
			Method:    "retina",
		}))
		require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string][]string{
		"C1":     {"X", "Y"},
		"BSIT-1": {"X", "Y", "Z"},
	})
	instructor := h.as(t, "I1", models.RoleInstructor)
	device := h.as(t, "kiosk-1", models.RoleDevice)

	// three sessions of C1, X present in two of them; the last stays active
	first := openSession(t, instructor, "C1")
	for _, studentID := range []string{"X", "Y"} {
		_, err := recordPresence(device, first.SessionID, studentID)
		require.NoError(t, err)
	}
	closeSession(t, instructor, first.SessionID)

	second := openSession(t, instructor, "C1")
	_, err := recordPresence(device, second.SessionID, "Y")
	require.NoError(t, err)
	closeSession(t, instructor, second.SessionID)

	last := openSession(t, instructor, "C1")
	_, err = recordPresence(device, last.SessionID, "X")
	require.NoError(t, err)

	t.Run("student attendance", func(t *testing.T) {
		resp, err := instructor.Reports.GetStudentAttendance(ctx, connect.NewRequest(&attendancev1.GetStudentAttendanceRequest{
			CourseID:  "C1",
			StudentID: "X",
		}))
		require.NoError(t, err)
		require.Equal(t, &attendancev1.StudentAttendance{
			StudentID:     "X",
			TotalSessions: 3,
			PresentCount:  2,
			AbsentCount:   1,
			Percentage:    66.7,
		}, resp.Msg.Attendance)
	})

	t.Run("course summary", func(t *testing.T) {
		resp, err := instructor.Reports.GetCourseSummary(ctx, connect.NewRequest(&attendancev1.GetCourseSummaryRequest{CourseID: "C1"}))
		require.NoError(t, err)

		summary := resp.Msg.Summary
		require.Len(t, summary.Students, 2)
		assert.EqualValues(t, 2, summary.TotalStudents)
		assert.EqualValues(t, 3, summary.TotalSessions)
		assert.EqualValues(t, 6, summary.TotalPossibleAttendances)
		assert.EqualValues(t, 4, summary.TotalActualAttendances)
		assert.Equal(t, 66.7, summary.AverageAttendance)
		assert.Equal(t, attendance.DefaultThreshold, summary.Threshold)
		assert.EqualValues(t, 2, summary.StudentsBelowThreshold)
	})

	t.Run("session stats", func(t *testing.T) {
		resp, err := instructor.Reports.GetSessionStats(ctx, connect.NewRequest(&attendancev1.GetSessionStatsRequest{SessionID: last.SessionID}))
		require.NoError(t, err)
		require.Equal(t, &attendancev1.SessionStats{
			SessionID:  last.SessionID,
			CohortID:   "BSIT-1",
			Status:     "active",
			RosterSize: 3,
			Present:    1,
			Absent:     2,
			Rate:       33.3,
		}, resp.Msg.Stats)
	})

	t.Run("period filter", func(t *testing.T) {
		resp, err := instructor.Reports.GetStudentAttendance(ctx, connect.NewRequest(&attendancev1.GetStudentAttendanceRequest{
			CourseID:  "C1",
			StudentID: "X",
			From:      "1999-01-01",
			To:        "1999-12-31",
		}))
		require.NoError(t, err)
		require.Zero(t, resp.Msg.Attendance.TotalSessions)

		_, err = instructor.Reports.GetStudentAttendance(ctx, connect.NewRequest(&attendancev1.GetStudentAttendanceRequest{
			CourseID:  "C1",
			StudentID: "X",
			From:      "01/02/2025",
		}))
		require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("devices cannot read reports", func(t *testing.T) {
		_, err := device.Reports.GetCourseSummary(ctx, connect.NewRequest(&attendancev1.GetCourseSummaryRequest{CourseID: "C1"}))
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("course summary csv", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, h.url+"/reports/courses/C1/summary.csv", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+h.token(t, "I1", models.RoleInstructor))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))

		etag := resp.Header.Get("ETag")
		require.NotEmpty(t, etag)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		rows, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
		require.NoError(t, err)
		require.Equal(t, [][]string{
			csvHeader,
			{"X", "3", "2", "1", "66.7", "false"},
			{"Y", "3", "2", "1", "66.7", "false"},
		}, rows)

		req.Header.Set("If-None-Match", etag)
		notModified, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer notModified.Body.Close()
		require.Equal(t, http.StatusNotModified, notModified.StatusCode)
	})

	t.Run("course summary csv requires report access", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, h.url+"/reports/courses/C1/summary.csv", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+h.token(t, "kiosk-1", models.RoleDevice))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestCourseSummaryCSVFilename(t *testing.T) {
	tests := []struct {
		name     string
		courseID string
	}{
		{name: "plain", courseID: "C1"},
		{name: "quote and semicolon", courseID: `C1"; filename=evil.sh`},
		{name: "non ascii", courseID: "Größe-101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, map[string][]string{tt.courseID: {"X"}})

			req, err := http.NewRequest(http.MethodGet, h.url+"/reports/courses/"+url.PathEscape(tt.courseID)+"/summary.csv", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+h.token(t, "admin-1", models.RoleAdmin))

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
			require.NoError(t, err)
			assert.Equal(t, "attachment", disposition)
			assert.Equal(t, tt.courseID+"-summary.csv", params["filename"])
		})
	}
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	owner := h.as(t, "I1", models.RoleInstructor)
	other := h.as(t, "I2", models.RoleInstructor)
	device := h.as(t, "kiosk-1", models.RoleDevice)
	admin := h.as(t, "root", models.RoleAdmin)

	session := openSession(t, owner, "C1")

	t.Run("missing token", func(t *testing.T) {
		anonymous := client.NewClients(client.Config{ServerURL: h.url, Timeout: 5 * time.Second})
		_, err := anonymous.Sessions.GetSession(ctx, connect.NewRequest(&attendancev1.GetSessionRequest{SessionID: session.SessionID}))
		require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("devices cannot open sessions", func(t *testing.T) {
		_, err := device.Sessions.OpenSession(ctx, connect.NewRequest(&attendancev1.OpenSessionRequest{
			CourseID:        "C1",
			CohortID:        "BSIT-1",
			BiometricMethod: "face",
		}))
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("instructors cannot open sessions for others", func(t *testing.T) {
		_, err := other.Sessions.OpenSession(ctx, connect.NewRequest(&attendancev1.OpenSessionRequest{
			InstructorID:    "I1",
			CourseID:        "C1",
			CohortID:        "BSIT-1",
			BiometricMethod: "face",
		}))
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("instructors cannot close sessions of others", func(t *testing.T) {
		_, err := other.Sessions.CloseSession(ctx, connect.NewRequest(&attendancev1.CloseSessionRequest{SessionID: session.SessionID}))
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("instructors cannot cancel", func(t *testing.T) {
		_, err := owner.Sessions.CancelSession(ctx, connect.NewRequest(&attendancev1.CancelSessionRequest{SessionID: session.SessionID}))
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("instructors cannot record in sessions of others", func(t *testing.T) {
		_, err := recordPresence(other, session.SessionID, "X")
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("admin force closes for an instructor", func(t *testing.T) {
		resp, err := admin.Sessions.ForceCloseAll(ctx, connect.NewRequest(&attendancev1.ForceCloseAllRequest{InstructorID: "I1"}))
		require.NoError(t, err)
		require.EqualValues(t, 1, resp.Msg.Closed)
	})
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code connect.Code
	}{
		{"validation", &attendance.ValidationError{Fields: map[string]string{"course_id": "is required"}}, connect.CodeInvalidArgument},
		{"already active", &attendance.SessionAlreadyActiveError{}, connect.CodeAlreadyExists},
		{"not active", &attendance.SessionNotActiveError{Status: models.SessionStatusCompleted}, connect.CodeFailedPrecondition},
		{"not found", &attendance.NotFoundError{Resource: "session", ID: "x"}, connect.CodeNotFound},
		{"forbidden", &attendance.ForbiddenError{PrincipalID: "I2", Action: "close session"}, connect.CodePermissionDenied},
		{"storage", &attendance.StorageError{Op: "create session", Err: errors.New("connection refused")}, connect.CodeUnavailable},
		{"unknown", errors.New("boom"), connect.CodeInternal},
		{"connect passthrough", connect.NewError(connect.CodeUnauthenticated, errors.New("no")), connect.CodeUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, connect.CodeOf(toConnectError(tt.err)))
		})
	}

	t.Run("storage details are not leaked", func(t *testing.T) {
		err := toConnectError(&attendance.StorageError{Op: "create session", Err: errors.New("password authentication failed")})
		require.NotContains(t, err.Error(), "password")
	})
}
