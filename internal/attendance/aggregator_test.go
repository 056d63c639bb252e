package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/rollcall/internal/cohort"
	"github.com/wolfeidau/rollcall/internal/models"
)

func (f *fixture) aggregator(rosters map[string][]string) *Aggregator {
	return NewAggregator(f.store.Stores(), cohort.NewStatic(rosters), 0)
}

// runSession opens, records and closes one session of course C1 a day after the previous.
func (f *fixture) runSession(t *testing.T, students ...string) *models.Session {
	t.Helper()
	session := f.open(t, "I1", "C1")
	for _, studentID := range students {
		f.present(t, session.SessionID, studentID)
	}
	f.close(t, session.SessionID)
	f.clock.Advance(24 * time.Hour)
	return session
}

func TestAggregator_ComputeStudentAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("two of three sessions", func(t *testing.T) {
		f := newFixture(t)
		f.runSession(t, "X")
		f.runSession(t)
		f.runSession(t, "X")

		got, err := f.aggregator(nil).ComputeStudentAttendance(ctx, "C1", "X", models.Period{})
		require.NoError(t, err)
		require.Equal(t, &StudentAttendance{
			StudentID:     "X",
			TotalSessions: 3,
			PresentCount:  2,
			AbsentCount:   1,
			Percentage:    66.7,
		}, got)
	})

	t.Run("no sessions is zero percent", func(t *testing.T) {
		f := newFixture(t)

		got, err := f.aggregator(nil).ComputeStudentAttendance(ctx, "C1", "X", models.Period{})
		require.NoError(t, err)
		require.Zero(t, got.TotalSessions)
		require.Zero(t, got.Percentage)
		require.Zero(t, got.AbsentCount)
	})

	t.Run("active and cancelled sessions count", func(t *testing.T) {
		f := newFixture(t)
		f.runSession(t, "X")

		cancelled := f.open(t, "I1", "C1")
		_, err := f.registry.CancelSession(ctx, admin, cancelled.SessionID)
		require.NoError(t, err)

		f.open(t, "I1", "C1")

		got, err := f.aggregator(nil).ComputeStudentAttendance(ctx, "C1", "X", models.Period{})
		require.NoError(t, err)
		require.Equal(t, 3, got.TotalSessions)
		require.Equal(t, 33.3, got.Percentage)
	})

	t.Run("period filter", func(t *testing.T) {
		f := newFixture(t)
		first := f.runSession(t, "X")
		f.runSession(t)
		third := f.runSession(t, "X")

		from := first.SessionDate.AddDate(0, 0, 1)
		to := third.SessionDate
		got, err := f.aggregator(nil).ComputeStudentAttendance(ctx, "C1", "X", models.Period{From: &from, To: &to})
		require.NoError(t, err)
		require.Equal(t, 2, got.TotalSessions)
		require.Equal(t, 1, got.PresentCount)
		require.Equal(t, 50.0, got.Percentage)
	})

	t.Run("other courses are not counted", func(t *testing.T) {
		f := newFixture(t)
		f.runSession(t, "X")
		session := f.open(t, "I1", "C2")
		f.present(t, session.SessionID, "X")

		got, err := f.aggregator(nil).ComputeStudentAttendance(ctx, "C1", "X", models.Period{})
		require.NoError(t, err)
		require.Equal(t, 1, got.TotalSessions)
		require.Equal(t, 1, got.PresentCount)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		agg := f.aggregator(nil)
		var verr *ValidationError

		_, err := agg.ComputeStudentAttendance(ctx, "", "X", models.Period{})
		require.ErrorAs(t, err, &verr)

		_, err = agg.ComputeStudentAttendance(ctx, "C1", "", models.Period{})
		require.ErrorAs(t, err, &verr)

		from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		_, err = agg.ComputeStudentAttendance(ctx, "C1", "X", models.Period{From: &from, To: &to})
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "period")
	})
}

func TestAggregator_ComputeCourseSummary(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	// 4 sessions: A attends all, B attends 3, C attends 1, D attends none
	f.runSession(t, "A", "B", "C")
	f.runSession(t, "A", "B")
	f.runSession(t, "A", "B", "outsider")
	f.runSession(t, "A")

	agg := f.aggregator(map[string][]string{"C1": {"A", "B", "C", "D"}})

	summary, err := agg.ComputeCourseSummary(ctx, "C1", models.Period{})
	require.NoError(t, err)

	require.Len(t, summary.Students, 4)
	assert.Equal(t, "A", summary.Students[0].StudentID)
	assert.Equal(t, 100.0, summary.Students[0].Percentage)
	assert.Equal(t, 75.0, summary.Students[1].Percentage)
	assert.Equal(t, 25.0, summary.Students[2].Percentage)
	assert.Equal(t, 0.0, summary.Students[3].Percentage)
	assert.Equal(t, 4, summary.Students[3].AbsentCount)

	// (4+3+1+0) / (4*4) weighted
	assert.Equal(t, 50.0, summary.AverageAttendance)
	assert.Equal(t, 4, summary.TotalStudents)
	assert.Equal(t, 4, summary.TotalSessions)
	assert.Equal(t, 16, summary.TotalPossibleAttendances)
	assert.Equal(t, 8, summary.TotalActualAttendances)
	assert.Equal(t, DefaultThreshold, summary.Threshold)
	assert.Equal(t, 1, summary.StudentsAtOrAboveThreshold)
	assert.Equal(t, 3, summary.StudentsBelowThreshold)
	assert.Equal(t, 1, summary.PerfectAttendance)
	assert.Equal(t, 1, summary.ZeroAttendance)

	t.Run("custom threshold", func(t *testing.T) {
		agg := NewAggregator(f.store.Stores(), cohort.NewStatic(map[string][]string{"C1": {"A", "B"}}), 75)

		summary, err := agg.ComputeCourseSummary(ctx, "C1", models.Period{})
		require.NoError(t, err)
		require.Equal(t, 2, summary.StudentsAtOrAboveThreshold)
		require.Equal(t, 87.5, summary.AverageAttendance)
	})

	t.Run("empty roster", func(t *testing.T) {
		summary, err := agg.ComputeCourseSummary(ctx, "C9", models.Period{})
		require.NoError(t, err)
		require.Empty(t, summary.Students)
		require.Zero(t, summary.AverageAttendance)
	})

	t.Run("roster failure", func(t *testing.T) {
		failing := NewAggregator(f.store.Stores(), cohort.ResolverFunc(func(context.Context, string) ([]string, error) {
			return nil, cohort.ErrRosterUnavailable
		}), 0)

		_, err := failing.ComputeCourseSummary(ctx, "C1", models.Period{})
		var serr *StorageError
		require.ErrorAs(t, err, &serr)
		require.True(t, errors.Is(err, cohort.ErrRosterUnavailable))
	})
}

func TestAggregator_ComputeSessionStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session := f.open(t, "I1", "C1")
	f.present(t, session.SessionID, "A")
	f.present(t, session.SessionID, "B")
	f.present(t, session.SessionID, "guest")

	agg := f.aggregator(map[string][]string{"BSIT-1": {"A", "B", "C"}})

	stats, err := agg.ComputeSessionStats(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, &SessionStats{
		SessionID:  session.SessionID,
		CohortID:   "BSIT-1",
		Status:     models.SessionStatusActive,
		RosterSize: 3,
		Present:    2,
		Absent:     1,
		OffRoster:  1,
		Rate:       66.7,
	}, stats)

	_, err = agg.ComputeSessionStats(ctx, uuid.Must(uuid.NewV7()))
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = agg.ComputeSessionStats(ctx, uuid.Nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		part, whole int
		expected    float64
	}{
		{0, 0, 0},
		{2, 3, 66.7},
		{1, 3, 33.3},
		{1, 8, 12.5},
		{3, 3, 100},
		{5, 0, 0},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, percentage(tt.part, tt.whole), "%d/%d", tt.part, tt.whole)
	}
}
