package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/wolfeidau/rollcall/api/attendance/v1/attendancev1connect"
	"github.com/wolfeidau/rollcall/internal/attendance"
)

// Server wires the attendance services onto an HTTP mux.
type Server struct {
	registry   *attendance.Registry
	recorder   *attendance.Recorder
	aggregator *attendance.Aggregator
}

// NewServer creates a server over the attendance services.
func NewServer(registry *attendance.Registry, recorder *attendance.Recorder, aggregator *attendance.Aggregator) *Server {
	return &Server{
		registry:   registry,
		recorder:   recorder,
		aggregator: aggregator,
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(interceptors ...connect.Interceptor) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	opts := connect.WithInterceptors(interceptors...)

	mux.Handle(attendancev1connect.NewSessionServiceHandler(NewSessionServer(s.registry), opts))
	mux.Handle(attendancev1connect.NewAttendanceServiceHandler(NewAttendanceServer(s.recorder), opts))
	mux.Handle(attendancev1connect.NewReportServiceHandler(NewReportServer(s.aggregator), opts))

	mux.Handle(CourseSummaryCSVPattern, s.courseSummaryCSV())

	return mux
}
