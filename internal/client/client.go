package client

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/wolfeidau/rollcall/api/attendance/v1/attendancev1connect"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool

	// Token is sent as a bearer token when set.
	Token string
	// Principal names the caller against a server running with --no-auth.
	Principal string
}

// Clients holds the Connect clients of the rollcall services
type Clients struct {
	Sessions   attendancev1connect.SessionServiceClient
	Attendance attendancev1connect.AttendanceServiceClient
	Reports    attendancev1connect.ReportServiceClient
}

// NewClients creates new Connect clients with the given configuration
func NewClients(config Config, opts ...connect.ClientOption) *Clients {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	opts = append(opts, connect.WithInterceptors(NewCredentialsInterceptor(config.Token, config.Principal)))

	return &Clients{
		Sessions:   attendancev1connect.NewSessionServiceClient(httpClient, config.ServerURL, opts...),
		Attendance: attendancev1connect.NewAttendanceServiceClient(httpClient, config.ServerURL, opts...),
		Reports:    attendancev1connect.NewReportServiceClient(httpClient, config.ServerURL, opts...),
	}
}

// NewCredentialsInterceptor adds the bearer token and dev principal headers to
// every unary request. Empty values are not sent.
func NewCredentialsInterceptor(token, principal string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				if token != "" {
					req.Header().Set("Authorization", "Bearer "+token)
				}
				if principal != "" {
					req.Header().Set("X-Rollcall-Principal", principal)
				}
			}
			return next(ctx, req)
		}
	}
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "https://localhost:8443",
		Timeout:   30 * time.Second,
		Debug:     false,
	}
}
