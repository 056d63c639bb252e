package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"connectrpc.com/otelconnect"
	"filippo.io/csrf"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/internal/attendance"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/client"
	"github.com/wolfeidau/rollcall/internal/cohort"
	httpmiddleware "github.com/wolfeidau/rollcall/internal/http"
	"github.com/wolfeidau/rollcall/internal/logger"
	"github.com/wolfeidau/rollcall/internal/server"
	"github.com/wolfeidau/rollcall/internal/store"
	memorystore "github.com/wolfeidau/rollcall/internal/store/memory"
	postgresstore "github.com/wolfeidau/rollcall/internal/store/postgres"
	"github.com/wolfeidau/rollcall/internal/telemetry"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8443" env:"ROLLCALL_LISTEN"`
	Cert   string `help:"path to TLS cert file, plaintext h2c when unset" default:"" env:"ROLLCALL_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"ROLLCALL_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"ROLLCALL_CORS_ORIGINS"`

	// Identity
	TokenSecret string `help:"HS256 secret used to verify bearer tokens" env:"ROLLCALL_TOKEN_SECRET"`

	// Development and operational modes
	NoAuth           bool    `help:"disable authentication for API endpoints (development only)" default:"false" env:"ROLLCALL_NO_AUTH"`
	Tracing          bool    `help:"enable tracing" default:"false" env:"ROLLCALL_TRACING"`
	TraceSampleRatio float64 `help:"fraction of root traces sampled" default:"1" env:"ROLLCALL_TRACE_SAMPLE_RATIO"`

	// Reporting
	Threshold float64 `help:"attendance percentage students are expected to reach" default:"85" env:"ROLLCALL_THRESHOLD"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"ROLLCALL_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Roster        RosterFlags        `embed:"" prefix:"roster-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"ROLLCALL_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}
}

// RosterFlags selects where course and cohort rosters come from.
type RosterFlags struct {
	Source   string        `help:"roster source (file, http or postgres)" default:"file" env:"ROLLCALL_ROSTER_SOURCE" enum:"file,http,postgres"`
	File     string        `help:"YAML roster file" default:"rosters.yaml" env:"ROLLCALL_ROSTER_FILE"`
	URL      string        `help:"base URL of the roster service" default:"" env:"ROLLCALL_ROSTER_URL"`
	CacheDir string        `help:"disk cache for roster service responses, in memory when unset" default:"" env:"ROLLCALL_ROSTER_CACHE_DIR"`
	Timeout  time.Duration `help:"roster service request timeout" default:"10s" env:"ROLLCALL_ROSTER_TIMEOUT"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zlog.Logger = log
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	interceptors := []connect.Interceptor{logger.NewConnectRequests(log)}
	if c.Tracing {
		log.Info().Float64("sample_ratio", c.TraceSampleRatio).Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "rollcall-server", globals.Version, c.TraceSampleRatio)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	// Create stores based on store type
	var (
		stores  store.Stores
		pool    *pgxpool.Pool
		err     error
		rosters cohort.Resolver
	)

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return err
		}

		pool, err = postgresstore.NewPool(ctx, c.PostgresStore.poolConfig())
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		// Run migrations if enabled
		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		stores = postgresstore.NewStores(pool)
		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		stores = memorystore.NewStore().Stores()
		log.Info().Msg("Using in-memory stores")
	}

	rosters, err = c.Roster.resolver(pool)
	if err != nil {
		return err
	}
	log.Info().Str("source", c.Roster.Source).Msg("Roster source configured")

	registry := attendance.NewRegistry(stores.Sessions)
	recorder := attendance.NewRecorder(stores)
	aggregator := attendance.NewAggregator(stores, rosters, c.Threshold)

	apiServer := server.NewServer(registry, recorder, aggregator)

	var authMiddleware func(http.Handler) http.Handler
	if c.NoAuth {
		log.Warn().Msg("Authentication is disabled (--no-auth). This should only be used in development!")
		authMiddleware = auth.NoAuthMiddleware()
	} else {
		verifier, err := auth.NewJWTVerifier([]byte(c.TokenSecret))
		if err != nil {
			return fmt.Errorf("invalid token secret (--token-secret or ROLLCALL_TOKEN_SECRET): %w", err)
		}
		log.Info().Str("kid", auth.KeyID([]byte(c.TokenSecret))).Msg("JWT verification enabled")
		authMiddleware = verifier.Middleware()
	}

	api := authMiddleware(apiServer.Handler(interceptors...))

	// CSRF protection for non-RPC routes
	protection := csrf.New()

	// API routes get CORS, everything else gets CSRF
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			withCORS(c.CORSOrigins, api).ServeHTTP(w, r)
		} else {
			protection.Handler(api).ServeHTTP(w, r)
		}
	})

	// Request id and client IP for audit logging
	root := httpmiddleware.RequestIDMiddleware()(httpmiddleware.ClientIPMiddleware()(handler))

	if c.Cert == "" && c.Key == "" {
		log.Warn().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Msg("Starting plaintext HTTP server with h2c")
		return configureHTTPServer(c.Listen, h2c.NewHandler(root, &http2.Server{})).ListenAndServe()
	}

	// Validate TLS certificates
	if c.Cert == "" || c.Key == "" {
		return errors.New("both TLS certificate and key are required (--cert and --key)")
	}
	if _, err := os.Stat(c.Cert); err != nil {
		return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
	}
	if _, err := os.Stat(c.Key); err != nil {
		return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
	}

	log.Info().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Msg("Starting HTTPS server")
	return configureHTTPServer(c.Listen, root).ListenAndServeTLS(c.Cert, c.Key)
}

func (r *RosterFlags) resolver(pool *pgxpool.Pool) (cohort.Resolver, error) {
	switch r.Source {
	case "http":
		if r.URL == "" {
			return nil, errors.New("roster service URL is required (--roster-url or ROLLCALL_ROSTER_URL)")
		}
		return cohort.NewHTTP(r.URL, client.NewCachingHTTPClient(r.CacheDir, r.Timeout)), nil
	case "postgres":
		if pool == nil {
			return nil, errors.New("postgres roster source requires --store-type=postgres")
		}
		return postgresstore.NewRosterStore(pool), nil
	default:
		rosters, err := cohort.LoadFile(r.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load roster file: %w", err)
		}
		return rosters, nil
	}
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/rollcall.v1.")
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization", httpmiddleware.RequestIDHeader),
		ExposedHeaders: append(connectcors.ExposedHeaders(), server.BlockingSessionHeader, httpmiddleware.RequestIDHeader),
	})
	return middleware.Handler(h)
}
