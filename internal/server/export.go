package server

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"connectrpc.com/connect"
	"github.com/klauspost/compress/gzhttp"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/auth"
)

// CourseSummaryCSVPattern is the route of the course summary export.
const CourseSummaryCSVPattern = "GET /reports/courses/{courseID}/summary.csv"

var csvHeader = []string{"student_id", "total_sessions", "present", "absent", "percentage", "meets_threshold"}

// courseSummaryCSV serves a course summary as CSV, gzip encoded when the
// client accepts it. The ETag is the CRC64-NVME of the body.
func (s *Server) courseSummaryCSV() http.Handler {
	return gzhttp.GzipHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RequirePermission(r.Context(), auth.PermReportsRead); err != nil {
			writeError(w, err)
			return
		}

		period, err := parsePeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, err)
			return
		}

		courseID := r.PathValue("courseID")
		summary, err := s.aggregator.ComputeCourseSummary(r.Context(), courseID, period)
		if err != nil {
			writeError(w, toConnectError(err))
			return
		}

		body, err := encodeCourseSummary(summary)
		if err != nil {
			log.Error().Err(err).Str("course_id", courseID).Msg("Failed to encode course summary")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		etag := fmt.Sprintf(`"%016x"`, checksum(body))
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": courseID + "-summary.csv",
		}))
		_, _ = w.Write(body)
	}))
}

func encodeCourseSummary(summary *attendance.CourseSummary) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, student := range summary.Students {
		row := []string{
			student.StudentID,
			strconv.Itoa(student.TotalSessions),
			strconv.Itoa(student.PresentCount),
			strconv.Itoa(student.AbsentCount),
			strconv.FormatFloat(student.Percentage, 'f', 1, 64),
			strconv.FormatBool(student.Percentage >= summary.Threshold),
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	return buf.Bytes(), cw.Error()
}

func checksum(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// writeError writes a Connect error as a plain HTTP error on non-RPC routes.
func writeError(w http.ResponseWriter, err error) {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Error(w, connectErr.Message(), httpStatus(connectErr.Code()))
}

func httpStatus(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeAlreadyExists:
		return http.StatusConflict
	case connect.CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case connect.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
