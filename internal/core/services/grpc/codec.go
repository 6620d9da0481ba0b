package grpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// toStruct converts a JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a protobuf Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// toStatus maps façade errors onto gRPC status codes.
func toStatus(err error) error {
	var pe *domain.PositionError
	switch {
	case errors.As(err, &pe):
		switch pe.Code {
		case domain.PermissionDenied:
			return status.Error(codes.PermissionDenied, pe.Message)
		case domain.Timeout:
			return status.Error(codes.DeadlineExceeded, pe.Message)
		}
		return status.Error(codes.Unavailable, pe.Message)
	case errors.Is(err, domain.ErrInvalidOptions):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrPlatformMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrUnknownWatch):
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus is the inverse of toStatus on the client side.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.PermissionDenied:
		return domain.NewPositionError(domain.PermissionDenied, st.Message())
	case codes.DeadlineExceeded:
		return domain.NewPositionError(domain.Timeout, st.Message())
	case codes.Unavailable:
		return domain.NewPositionError(domain.PositionUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOptions, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", domain.ErrPlatformMismatch, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrUnknownWatch, st.Message())
	}
	return err
}
