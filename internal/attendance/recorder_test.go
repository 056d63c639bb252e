package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store/memory"
)

type fixture struct {
	registry *Registry
	recorder *Recorder
	store    *memory.Store
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	clk := newClock()

	registry := NewRegistry(st)
	registry.now = clk.Now
	recorder := NewRecorder(st.Stores())
	recorder.now = clk.Now

	return &fixture{registry: registry, recorder: recorder, store: st, clock: clk}
}

func (f *fixture) open(t *testing.T, instructorID, courseID string) *models.Session {
	t.Helper()
	session, err := f.registry.OpenSession(context.Background(), admin, openInput(instructorID, courseID))
	require.NoError(t, err)
	return session
}

func (f *fixture) close(t *testing.T, sessionID uuid.UUID) {
	t.Helper()
	_, err := f.registry.CloseSession(context.Background(), admin, sessionID)
	require.NoError(t, err)
}

func (f *fixture) present(t *testing.T, sessionID uuid.UUID, studentID string) {
	t.Helper()
	_, _, err := f.recorder.RecordPresence(context.Background(), device, presenceInput(sessionID, studentID))
	require.NoError(t, err)
}

func presenceInput(sessionID uuid.UUID, studentID string) RecordPresenceInput {
	return RecordPresenceInput{
		SessionID: sessionID,
		StudentID: studentID,
		Method:    models.BiometricMethodFace,
	}
}

func TestRecorder_RecordPresence(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a present record", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t, "I1", "C1")
		confidence := 0.93

		input := presenceInput(session.SessionID, "X")
		input.Confidence = &confidence

		record, created, err := f.recorder.RecordPresence(ctx, device, input)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, models.AttendanceStatusPresent, record.Status)
		require.Equal(t, models.BiometricMethodFace, record.Method)
		require.InDelta(t, 0.93, *record.Confidence, 0.0001)
		require.Equal(t, f.clock.Now(), record.RecordedAt)
	})

	t.Run("duplicate trigger yields one record", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t, "I1", "C1")

		first, created, err := f.recorder.RecordPresence(ctx, device, presenceInput(session.SessionID, "X"))
		require.NoError(t, err)
		require.True(t, created)

		f.clock.Advance(3 * time.Millisecond)
		second, created, err := f.recorder.RecordPresence(ctx, device, presenceInput(session.SessionID, "X"))
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first, second)

		records, err := f.recorder.ListSessionRecords(ctx, admin, session.SessionID)
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("concurrent duplicates yield one record", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t, "I1", "C1")

		var wg sync.WaitGroup
		for range 25 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := f.recorder.RecordPresence(ctx, device, presenceInput(session.SessionID, "X"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		records, err := f.recorder.ListSessionRecords(ctx, admin, session.SessionID)
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("completed session rejects and creates nothing", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t, "I1", "C1")
		f.close(t, session.SessionID)

		_, _, err := f.recorder.RecordPresence(ctx, device, presenceInput(session.SessionID, "X"))
		var notActive *SessionNotActiveError
		require.ErrorAs(t, err, &notActive)
		require.Equal(t, models.SessionStatusCompleted, notActive.Status)
		require.Equal(t, session.SessionID, notActive.SessionID)

		records, err := f.recorder.ListSessionRecords(ctx, admin, session.SessionID)
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("replay after session ends is rejected", func(t *testing.T) {
		ends := map[models.SessionStatus]func(*testing.T, *fixture, uuid.UUID){
			models.SessionStatusCompleted: func(t *testing.T, f *fixture, id uuid.UUID) { f.close(t, id) },
			models.SessionStatusCancelled: func(t *testing.T, f *fixture, id uuid.UUID) {
				_, err := f.registry.CancelSession(ctx, admin, id)
				require.NoError(t, err)
			},
		}
		for status, end := range ends {
			t.Run(string(status), func(t *testing.T) {
				f := newFixture(t)
				session := f.open(t, "I1", "C1")
				f.present(t, session.SessionID, "X")
				end(t, f, session.SessionID)

				record, created, err := f.recorder.RecordPresence(ctx, device, presenceInput(session.SessionID, "X"))
				var notActive *SessionNotActiveError
				require.ErrorAs(t, err, &notActive)
				require.Equal(t, status, notActive.Status)
				require.Equal(t, session.SessionID, notActive.SessionID)
				require.Nil(t, record)
				require.False(t, created)

				records, err := f.recorder.ListSessionRecords(ctx, admin, session.SessionID)
				require.NoError(t, err)
				require.Len(t, records, 1)
			})
		}
	})

	t.Run("unknown session is not active", func(t *testing.T) {
		f := newFixture(t)

		_, _, err := f.recorder.RecordPresence(ctx, device, presenceInput(uuid.Must(uuid.NewV7()), "X"))
		var notActive *SessionNotActiveError
		require.ErrorAs(t, err, &notActive)
		require.Empty(t, notActive.Status)
		require.Contains(t, err.Error(), "does not exist")
	})

	t.Run("instructors record only in their own sessions", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t, "I1", "C1")

		_, created, err := f.recorder.RecordPresence(ctx, instructor, presenceInput(session.SessionID, "X"))
		require.NoError(t, err)
		require.True(t, created)

		_, _, err = f.recorder.RecordPresence(ctx, other, presenceInput(session.SessionID, "Y"))
		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		tooSure := 1.5

		_, _, err := f.recorder.RecordPresence(ctx, device, RecordPresenceInput{
			SessionID:  uuid.Must(uuid.NewV7()),
			Method:     "retina",
			Confidence: &tooSure,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "is required", verr.Fields["student_id"])
		require.Equal(t, "must be one of: face, finger", verr.Fields["method"])
		require.Equal(t, "must be at most 1", verr.Fields["confidence"])

		_, _, err = f.recorder.RecordPresence(ctx, device, presenceInput(uuid.Nil, "X"))
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "session_id")
	})
}

func TestRecorder_ListSessionRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.open(t, "I1", "C1")

	for _, studentID := range []string{"S3", "S1", "S2"} {
		f.present(t, session.SessionID, studentID)
		f.clock.Advance(time.Second)
	}

	records, err := f.recorder.ListSessionRecords(ctx, instructor, session.SessionID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "S3", records[0].StudentID)
	require.Equal(t, "S2", records[2].StudentID)

	_, err = f.recorder.ListSessionRecords(ctx, other, session.SessionID)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	_, err = f.recorder.ListSessionRecords(ctx, admin, uuid.Must(uuid.NewV7()))
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	summary, err := f.registry.GetSession(ctx, instructor, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, 3, summary.StudentsPresent)
}
