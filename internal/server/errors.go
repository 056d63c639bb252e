package server

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	attendancev1 "github.com/wolfeidau/rollcall/api/attendance/v1"
	"github.com/wolfeidau/rollcall/internal/attendance"
)

// BlockingSessionHeader carries the id of the session that prevented OpenSession.
const BlockingSessionHeader = attendancev1.BlockingSessionHeader

// toConnectError maps attendance errors onto Connect codes. Errors that are
// already Connect errors pass through unchanged.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var (
		validationErr *attendance.ValidationError
		activeErr     *attendance.SessionAlreadyActiveError
		notActiveErr  *attendance.SessionNotActiveError
		notFoundErr   *attendance.NotFoundError
		forbiddenErr  *attendance.ForbiddenError
		storageErr    *attendance.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &activeErr):
		cerr := connect.NewError(connect.CodeAlreadyExists, err)
		if activeErr.SessionID != uuid.Nil {
			cerr.Meta().Set(BlockingSessionHeader, activeErr.SessionID.String())
		}
		return cerr
	case errors.As(err, &notActiveErr):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &notFoundErr):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &forbiddenErr):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.As(err, &storageErr):
		log.Error().Err(err).Str("op", storageErr.Op).Msg("Storage failure")
		return connect.NewError(connect.CodeUnavailable, errors.New("attendance storage is unavailable, retry later"))
	default:
		log.Error().Err(err).Msg("Unexpected error")
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// invalidArgument builds a field-level validation error for malformed wire input.
func invalidArgument(field, problem string) error {
	return toConnectError(&attendance.ValidationError{Fields: map[string]string{field: problem}})
}

// parseSessionID parses a wire session id.
func parseSessionID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, invalidArgument(field, "is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalidArgument(field, "must be a UUID")
	}
	return id, nil
}
