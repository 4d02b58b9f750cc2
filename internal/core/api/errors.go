package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/choicetree/internal/types"
)

// toStatus maps domain and store errors to gRPC status codes.
// Unknown versions and rules map to NOT_FOUND, malformed requests to
// INVALID_ARGUMENT, deadlines to DEADLINE_EXCEEDED, and everything else is
// treated as a store failure (UNAVAILABLE).
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, types.ErrTreeNotFound), errors.Is(err, types.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrUnknownRuleType),
		errors.Is(err, types.ErrUnknownFilter),
		errors.Is(err, types.ErrInvalidTypeID),
		errors.Is(err, types.ErrTooManyRuleItems),
		errors.Is(err, types.ErrEmptyRule),
		errors.Is(err, types.ErrSelfReference):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
