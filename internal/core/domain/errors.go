package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode classifies a failed acquisition.
type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

// Valid reports whether c is one of the three declared codes.
func (c ErrorCode) Valid() bool {
	switch c {
	case PermissionDenied, PositionUnavailable, Timeout:
		return true
	}
	return false
}

func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case PositionUnavailable:
		return "POSITION_UNAVAILABLE"
	case Timeout:
		return "TIMEOUT"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Facade misuse errors. These are returned to the caller directly and are
// never delivered through an error callback.
var (
	ErrPlatformMismatch = errors.New("configuration does not match running platform")
	ErrUnknownWatch     = errors.New("unknown or cleared watch")
	ErrInvalidOptions   = errors.New("invalid request options")
)

// PositionError is delivered on every failed acquisition attempt.
type PositionError struct {
	Code    ErrorCode
	Message string
}

// NewPositionError creates a PositionError. Codes outside the declared set
// are reported as PositionUnavailable.
func NewPositionError(code ErrorCode, message string) *PositionError {
	if !code.Valid() {
		code = PositionUnavailable
	}
	if message == "" {
		message = defaultMessage(code)
	}
	return &PositionError{Code: code, Message: message}
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any PositionError carrying the same code, so callers can write
// errors.Is(err, domain.ErrTimeout).
func (e *PositionError) Is(target error) bool {
	t, ok := target.(*PositionError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrPermissionDenied    = &PositionError{Code: PermissionDenied, Message: defaultMessage(PermissionDenied)}
	ErrPositionUnavailable = &PositionError{Code: PositionUnavailable, Message: defaultMessage(PositionUnavailable)}
	ErrTimeout             = &PositionError{Code: Timeout, Message: defaultMessage(Timeout)}
)

// MarshalJSON emits the error together with the named code constants.
func (e *PositionError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code                int    `json:"code"`
		Message             string `json:"message"`
		PermissionDenied    int    `json:"PERMISSION_DENIED"`
		PositionUnavailable int    `json:"POSITION_UNAVAILABLE"`
		Timeout             int    `json:"TIMEOUT"`
	}{
		Code:                int(e.Code),
		Message:             e.Message,
		PermissionDenied:    int(PermissionDenied),
		PositionUnavailable: int(PositionUnavailable),
		Timeout:             int(Timeout),
	})
}

// UnmarshalJSON reads the code and message, ignoring the constant fields.
func (e *PositionError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = *NewPositionError(ErrorCode(raw.Code), raw.Message)
	return nil
}

// AsPositionError classifies an arbitrary error. Deadline errors become
// Timeout; anything unrecognised becomes PositionUnavailable.
func AsPositionError(err error) *PositionError {
	if err == nil {
		return nil
	}
	var pe *PositionError
	if errors.As(err, &pe) {
		return NewPositionError(pe.Code, pe.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewPositionError(Timeout, "")
	}
	return NewPositionError(PositionUnavailable, err.Error())
}

func defaultMessage(code ErrorCode) string {
	switch code {
	case PermissionDenied:
		return "location permission not granted"
	case Timeout:
		return "no position available within the configured timeout"
	}
	return "no position available"
}
