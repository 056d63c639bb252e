package logger

import (
	"context"
	"errors"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/rollcall/internal/http"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

var _ connect.Interceptor = (*ConnectRequests)(nil)

// ConnectRequests logs every RPC with its procedure, peer, request id and duration.
type ConnectRequests struct {
	logger zerolog.Logger
}

func NewConnectRequests(logger zerolog.Logger) *ConnectRequests {
	return &ConnectRequests{logger: logger}
}

func (c *ConnectRequests) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		started := time.Now()

		logCtx := c.logger.With().
			Str("procedure", req.Spec().Procedure).
			Str("protocol", req.Peer().Protocol).
			Str("addr", req.Peer().Addr)
		if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
			logCtx = logCtx.Str("request_id", id)
		}
		if ip := httpmiddleware.ClientIPFromContext(ctx); ip != "" {
			logCtx = logCtx.Str("client_ip", ip)
		}
		ctx = logCtx.Logger().WithContext(ctx)

		resp, err := next(ctx, req)

		if err != nil {
			zerolog.Ctx(ctx).WithLevel(levelFor(err)).
				Err(err).
				Str("code", connect.CodeOf(err).String()).
				Dur("duration", time.Since(started)).
				Msg("rpc call")

			return resp, err
		}

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("rpc call")

		return resp, err
	})
}

// levelFor logs caller mistakes at warn so errors stay reserved for server faults.
func levelFor(err error) zerolog.Level {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return zerolog.ErrorLevel
	}

	switch connectErr.Code() {
	case connect.CodeInvalidArgument,
		connect.CodeAlreadyExists,
		connect.CodeFailedPrecondition,
		connect.CodeNotFound,
		connect.CodePermissionDenied,
		connect.CodeUnauthenticated:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (c *ConnectRequests) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

func (c *ConnectRequests) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return connect.StreamingHandlerFunc(func(
		ctx context.Context,
		conn connect.StreamingHandlerConn,
	) error {
		started := time.Now()

		ctx = c.logger.With().
			Str("procedure", conn.Spec().Procedure).
			Str("protocol", conn.Peer().Protocol).
			Str("addr", conn.Peer().Addr).
			Logger().WithContext(ctx)

		err := next(ctx, conn)
		if err != nil {
			zerolog.Ctx(ctx).WithLevel(levelFor(err)).Err(err).Msg("rpc server stream error")
			return err
		}

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("rpc server stream finished")

		return nil
	})
}
