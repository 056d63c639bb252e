package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
)

// RecordCmd records a student as present. Recording is idempotent on the
// server, so transient failures are retried with exponential backoff.
type RecordCmd struct {
	ClientFlags `embed:""`

	SessionID  string        `arg:"" help:"Session identifier"`
	Student    string        `arg:"" help:"Student identifier"`
	Method     string        `help:"Capture method (face, finger)" default:"face" enum:"face,finger"`
	Confidence *float64      `help:"Match confidence between 0 and 1"`
	MaxTries   uint          `help:"Maximum attempts for transient failures" default:"5"`
	MaxElapsed time.Duration `help:"Give up retrying after this long" default:"30s"`
}

func (c *RecordCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	req := &attendancev1.RecordPresenceRequest{
		SessionID:  c.SessionID,
		StudentID:  c.Student,
		Method:     c.Method,
		Confidence: c.Confidence,
	}

	resp, err := backoff.Retry(ctx, func() (*connect.Response[attendancev1.RecordPresenceResponse], error) {
		resp, err := clients.Attendance.RecordPresence(ctx, connect.NewRequest(req))
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.MaxTries),
		backoff.WithMaxElapsedTime(c.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("record presence failed, retrying")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}

	w := globals.out()
	if resp.Msg.Created {
		fmt.Fprintf(w, "Recorded %s present in session %s.\n", c.Student, c.SessionID)
	} else {
		fmt.Fprintf(w, "%s was already recorded in session %s.\n", c.Student, c.SessionID)
	}
	fmt.Fprintf(w, "Record:      %s\n", resp.Msg.Record.RecordID)
	fmt.Fprintf(w, "Recorded at: %s\n", formatTime(&resp.Msg.Record.RecordedAt))
	return nil
}

// retryable reports whether err is a transient transport or server failure.
func retryable(err error) bool {
	switch connect.CodeOf(err) {
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeResourceExhausted, connect.CodeAborted:
		return true
	default:
		return false
	}
}

// RecordsCmd lists the attendance records of a session.
type RecordsCmd struct {
	ClientFlags `embed:""`

	SessionID string `arg:"" help:"Session identifier"`
}

func (c *RecordsCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Attendance.ListSessionRecords(ctx, connect.NewRequest(&attendancev1.ListSessionRecordsRequest{
		SessionID: c.SessionID,
	}))
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	printRecords(globals.out(), resp.Msg.Records)
	return nil
}

func printRecords(w io.Writer, records []*attendancev1.AttendanceRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDENT\tSTATUS\tMETHOD\tCONFIDENCE\tRECORDED")
	for _, r := range records {
		confidence := "-"
		if r.Confidence != nil {
			confidence = fmt.Sprintf("%.2f", *r.Confidence)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.StudentID, r.Status, r.Method, confidence, formatTime(&r.RecordedAt))
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal records: %d\n", len(records))
}
