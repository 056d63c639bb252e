package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/internal/client"
)

// OpenCmd opens an attendance session.
type OpenCmd struct {
	ClientFlags `embed:""`

	Course     string `arg:"" help:"Course identifier"`
	Cohort     string `arg:"" help:"Cohort identifier"`
	Method     string `help:"Biometric capture method (face, finger)" default:"face" enum:"face,finger"`
	Instructor string `help:"Open on behalf of another instructor (admin only)"`
}

func (c *OpenCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Sessions.OpenSession(ctx, connect.NewRequest(&attendancev1.OpenSessionRequest{
		InstructorID:    c.Instructor,
		CourseID:        c.Course,
		CohortID:        c.Cohort,
		BiometricMethod: c.Method,
	}))
	if err != nil {
		var connectErr *connect.Error
		if errors.As(err, &connectErr) && connectErr.Code() == connect.CodeAlreadyExists {
			if blocking := connectErr.Meta().Get(attendancev1.BlockingSessionHeader); blocking != "" {
				return fmt.Errorf("instructor already has active session %s\n\nClose it with: rollcall-cli close %s", blocking, blocking)
			}
		}
		return fmt.Errorf("failed to open session: %w", err)
	}

	printSession(globals.out(), resp.Msg.Session)
	return nil
}

// CloseCmd closes an active session. Closing a completed session is a no-op.
type CloseCmd struct {
	ClientFlags `embed:""`

	SessionID string `arg:"" help:"Session identifier"`
}

func (c *CloseCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Sessions.CloseSession(ctx, connect.NewRequest(&attendancev1.CloseSessionRequest{
		SessionID: c.SessionID,
	}))
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	printSession(globals.out(), resp.Msg.Session)
	return nil
}

// CancelCmd cancels a session. Admin only.
type CancelCmd struct {
	ClientFlags `embed:""`

	SessionID string `arg:"" help:"Session identifier"`
}

func (c *CancelCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Sessions.CancelSession(ctx, connect.NewRequest(&attendancev1.CancelSessionRequest{
		SessionID: c.SessionID,
	}))
	if err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	printSession(globals.out(), resp.Msg.Session)
	return nil
}

// ForceCloseCmd completes every active session of an instructor.
type ForceCloseCmd struct {
	ClientFlags `embed:""`

	Instructor string `help:"Instructor whose sessions are closed, defaults to the caller"`
}

func (c *ForceCloseCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Sessions.ForceCloseAll(ctx, connect.NewRequest(&attendancev1.ForceCloseAllRequest{
		InstructorID: c.Instructor,
	}))
	if err != nil {
		return fmt.Errorf("failed to force close sessions: %w", err)
	}

	fmt.Fprintf(globals.out(), "Closed %d session(s).\n", resp.Msg.Closed)
	return nil
}

// GetCmd shows a single session.
type GetCmd struct {
	ClientFlags `embed:""`

	SessionID string `arg:"" help:"Session identifier"`
}

func (c *GetCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Sessions.GetSession(ctx, connect.NewRequest(&attendancev1.GetSessionRequest{
		SessionID: c.SessionID,
	}))
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	printSession(globals.out(), resp.Msg.Session)
	return nil
}

// ActiveCmd shows the active session of an instructor, if any.
type ActiveCmd struct {
	ClientFlags `embed:""`

	Instructor string `help:"Instructor to look up, defaults to the caller"`
}

func (c *ActiveCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Sessions.GetActiveSession(ctx, connect.NewRequest(&attendancev1.GetActiveSessionRequest{
		InstructorID: c.Instructor,
	}))
	if connect.CodeOf(err) == connect.CodeNotFound {
		fmt.Fprintln(globals.out(), "No active session.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get active session: %w", err)
	}

	printSession(globals.out(), resp.Msg.Session)
	return nil
}

// SessionsCmd lists the sessions of an instructor, newest first.
type SessionsCmd struct {
	ClientFlags `embed:""`

	Instructor string `help:"Instructor to list, defaults to the caller"`
	Limit      int32  `help:"Number of sessions per page" default:"20"`
	Offset     int32  `help:"Number of sessions to skip" default:"0"`
	Watch      bool   `help:"Watch for changes (refresh every 5 seconds)" default:"false"`
}

func (c *SessionsCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	if c.Watch {
		return c.watchSessions(ctx, globals.out(), clients)
	}

	return c.listSessions(ctx, globals.out(), clients)
}

func (c *SessionsCmd) listSessions(ctx context.Context, w io.Writer, clients *client.Clients) error {
	resp, err := clients.Sessions.ListSessions(ctx, connect.NewRequest(&attendancev1.ListSessionsRequest{
		InstructorID: c.Instructor,
		Limit:        c.Limit,
		Offset:       c.Offset,
	}))
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	printSessions(w, resp.Msg.Sessions)

	if resp.Msg.NextOffset > 0 {
		fmt.Fprintf(w, "\nUse --offset=%d to see the next page\n", resp.Msg.NextOffset)
	}
	return nil
}

func (c *SessionsCmd) watchSessions(ctx context.Context, w io.Writer, clients *client.Clients) error {
	fmt.Fprintln(w, "Watching sessions (press Ctrl+C to stop)...")
	fmt.Fprintln(w)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	if err := c.listSessions(ctx, w, clients); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprint(w, "\033[2J\033[H") // clear screen and move cursor to top
			fmt.Fprintf(w, "Sessions (updated at %s)\n\n", time.Now().Format("15:04:05"))

			if err := c.listSessions(ctx, w, clients); err != nil {
				fmt.Fprintf(w, "Error updating session list: %v\n", err)
			}
		}
	}
}

func printSession(w io.Writer, s *attendancev1.Session) {
	fmt.Fprintf(w, "Session:     %s\n", s.SessionID)
	fmt.Fprintf(w, "Status:      %s\n", s.Status)
	fmt.Fprintf(w, "Instructor:  %s\n", s.InstructorID)
	fmt.Fprintf(w, "Course:      %s\n", s.CourseID)
	fmt.Fprintf(w, "Cohort:      %s\n", s.CohortID)
	fmt.Fprintf(w, "Method:      %s\n", s.BiometricMethod)
	fmt.Fprintf(w, "Date:        %s\n", s.SessionDate)
	fmt.Fprintf(w, "Started:     %s\n", formatTime(&s.StartTime))
	fmt.Fprintf(w, "Ended:       %s\n", formatTime(s.EndTime))
	fmt.Fprintf(w, "Present:     %d\n", s.StudentsPresent)
}

func printSessions(w io.Writer, sessions []*attendancev1.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCOURSE\tCOHORT\tDATE\tSTATUS\tPRESENT\tSTARTED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.SessionID,
			truncate(s.CourseID, 20),
			truncate(s.CohortID, 20),
			s.SessionDate,
			strings.ToUpper(s.Status),
			s.StudentsPresent,
			formatTime(&s.StartTime))
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
