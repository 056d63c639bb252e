package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/client"
)

// ReportCmd groups the attendance reports.
type ReportCmd struct {
	Student ReportStudentCmd `cmd:"" help:"Attendance of one student in a course"`
	Course  ReportCourseCmd  `cmd:"" help:"Attendance summary of a course"`
	Session ReportSessionCmd `cmd:"" help:"Statistics of a single session"`
}

// PeriodFlags bound a report to an inclusive date range.
type PeriodFlags struct {
	From string `help:"First session date included (YYYY-MM-DD)"`
	To   string `help:"Last session date included (YYYY-MM-DD)"`
}

// ReportStudentCmd shows one student's attendance in a course.
type ReportStudentCmd struct {
	ClientFlags `embed:""`
	PeriodFlags `embed:""`

	Course  string `arg:"" help:"Course identifier"`
	Student string `arg:"" help:"Student identifier"`
}

func (c *ReportStudentCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Reports.GetStudentAttendance(ctx, connect.NewRequest(&attendancev1.GetStudentAttendanceRequest{
		CourseID:  c.Course,
		StudentID: c.Student,
		From:      c.From,
		To:        c.To,
	}))
	if err != nil {
		return fmt.Errorf("failed to get student attendance: %w", err)
	}

	a := resp.Msg.Attendance
	w := globals.out()
	fmt.Fprintf(w, "Student:     %s\n", a.StudentID)
	fmt.Fprintf(w, "Course:      %s\n", c.Course)
	fmt.Fprintf(w, "Sessions:    %d\n", a.TotalSessions)
	fmt.Fprintf(w, "Present:     %d\n", a.PresentCount)
	fmt.Fprintf(w, "Absent:      %d\n", a.AbsentCount)
	fmt.Fprintf(w, "Attendance:  %.1f%%\n", a.Percentage)
	return nil
}

// ReportCourseCmd shows the attendance summary of a course, or downloads it
// as CSV.
type ReportCourseCmd struct {
	ClientFlags `embed:""`
	PeriodFlags `embed:""`

	Course   string `arg:"" help:"Course identifier"`
	CSV      bool   `help:"Write the summary as CSV" name:"csv"`
	CacheDir string `help:"Cache directory for CSV exports, defaults to the user cache directory"`
}

func (c *ReportCourseCmd) Run(ctx context.Context, globals *Globals) error {
	if c.CSV {
		return c.downloadCSV(ctx, globals)
	}

	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Reports.GetCourseSummary(ctx, connect.NewRequest(&attendancev1.GetCourseSummaryRequest{
		CourseID: c.Course,
		From:     c.From,
		To:       c.To,
	}))
	if err != nil {
		return fmt.Errorf("failed to get course summary: %w", err)
	}

	printCourseSummary(globals.out(), resp.Msg.Summary)
	return nil
}

// downloadCSV fetches the CSV export through a disk backed HTTP cache, so an
// unchanged report is revalidated by ETag instead of transferred again.
func (c *ReportCourseCmd) downloadCSV(ctx context.Context, globals *Globals) error {
	config, err := c.config(globals)
	if err != nil {
		return err
	}

	cacheDir := c.CacheDir
	if cacheDir == "" {
		if userCache, err := os.UserCacheDir(); err == nil {
			cacheDir = filepath.Join(userCache, "rollcall", "exports")
		}
	}

	u, err := url.Parse(config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	u = u.JoinPath("reports", "courses", c.Course, "summary.csv")
	q := u.Query()
	if c.From != "" {
		q.Set("from", c.From)
	}
	if c.To != "" {
		q.Set("to", c.To)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}
	if config.Principal != "" {
		req.Header.Set(auth.PrincipalHeader, config.Principal)
	}

	httpClient := client.NewCachingHTTPClient(cacheDir, config.Timeout)
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download course summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to download course summary: %s: %s", resp.Status, body)
	}

	log.Debug().
		Str("url", u.String()).
		Bool("from_cache", resp.Header.Get("X-From-Cache") == "1").
		Msg("downloaded course summary")

	_, err = io.Copy(globals.out(), resp.Body)
	return err
}

func printCourseSummary(w io.Writer, s *attendancev1.CourseSummary) {
	period := "all sessions"
	if s.From != "" || s.To != "" {
		period = fmt.Sprintf("%s to %s", orDash(s.From), orDash(s.To))
	}

	fmt.Fprintf(w, "Course %s (%s)\n\n", s.CourseID, period)

	if len(s.Students) == 0 {
		fmt.Fprintln(w, "No attendance recorded.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STUDENT\tSESSIONS\tPRESENT\tABSENT\tATTENDANCE\t")
		for _, st := range s.Students {
			marker := ""
			if st.Percentage < s.Threshold {
				marker = "below threshold"
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\t%s\n",
				st.StudentID, st.TotalSessions, st.PresentCount, st.AbsentCount, st.Percentage, marker)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Students:            %d\n", s.TotalStudents)
	fmt.Fprintf(w, "Sessions:            %d\n", s.TotalSessions)
	fmt.Fprintf(w, "Average attendance:  %.1f%%\n", s.AverageAttendance)
	fmt.Fprintf(w, "Attendances:         %d of %d\n", s.TotalActualAttendances, s.TotalPossibleAttendances)
	fmt.Fprintf(w, "At or above %.0f%%:    %d\n", s.Threshold, s.StudentsAtOrAboveThreshold)
	fmt.Fprintf(w, "Below threshold:     %d\n", s.StudentsBelowThreshold)
	fmt.Fprintf(w, "Perfect attendance:  %d\n", s.PerfectAttendance)
	fmt.Fprintf(w, "Zero attendance:     %d\n", s.ZeroAttendance)
}

// ReportSessionCmd shows the statistics of one session against its roster.
type ReportSessionCmd struct {
	ClientFlags `embed:""`

	SessionID string `arg:"" help:"Session identifier"`
}

func (c *ReportSessionCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Reports.GetSessionStats(ctx, connect.NewRequest(&attendancev1.GetSessionStatsRequest{
		SessionID: c.SessionID,
	}))
	if err != nil {
		return fmt.Errorf("failed to get session stats: %w", err)
	}

	st := resp.Msg.Stats
	w := globals.out()
	fmt.Fprintf(w, "Session:     %s\n", st.SessionID)
	fmt.Fprintf(w, "Cohort:      %s\n", st.CohortID)
	fmt.Fprintf(w, "Status:      %s\n", st.Status)
	fmt.Fprintf(w, "Roster:      %d\n", st.RosterSize)
	fmt.Fprintf(w, "Present:     %d\n", st.Present)
	fmt.Fprintf(w, "Absent:      %d\n", st.Absent)
	fmt.Fprintf(w, "Off roster:  %d\n", st.OffRoster)
	fmt.Fprintf(w, "Rate:        %.1f%%\n", st.Rate)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
