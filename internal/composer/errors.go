package composer

import (
	"errors"
	"fmt"
)

// Reason tags why a composition produced no result.
type Reason int

const (
	ReasonEmptyInput Reason = iota + 1
	ReasonInvalidParams
	ReasonDecodeFailure
	ReasonDegenerateLayout
	ReasonEncodeFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonEmptyInput:
		return "EMPTY_INPUT"
	case ReasonInvalidParams:
		return "INVALID_PARAMS"
	case ReasonDecodeFailure:
		return "DECODE_FAILURE"
	case ReasonDegenerateLayout:
		return "DEGENERATE_LAYOUT"
	case ReasonEncodeFailure:
		return "ENCODE_FAILURE"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Sentinels for errors.Is. ErrNoImages is a no-op signal rather than a
// failure: callers should produce nothing and log nothing.
var (
	ErrNoImages         = &Error{Reason: ReasonEmptyInput, Index: -1}
	ErrInvalidParams    = &Error{Reason: ReasonInvalidParams, Index: -1}
	ErrDecode           = &Error{Reason: ReasonDecodeFailure, Index: -1}
	ErrDegenerateLayout = &Error{Reason: ReasonDegenerateLayout, Index: -1}
	ErrEncode           = &Error{Reason: ReasonEncodeFailure, Index: -1}
)

// Error is returned for every failed composition
type Error struct {
	Reason Reason
	Index  int // offending input, -1 when the failure is not tied to one
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason.String()
	switch e.Reason {
	case ReasonEmptyInput:
		msg = "no images to compose"
	case ReasonInvalidParams:
		msg = "invalid layout parameters"
	case ReasonDecodeFailure:
		msg = "failed to decode image"
	case ReasonDegenerateLayout:
		msg = "layout leaves no room for images"
	case ReasonEncodeFailure:
		msg = "failed to encode composed image"
	}
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Index)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same reason, so the sentinels work with
// errors.Is regardless of index or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// ReasonOf extracts the reason from err, or 0 if err is not a composer error.
func ReasonOf(err error) Reason {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return 0
}

func newError(reason Reason, index int, err error) *Error {
	return &Error{Reason: reason, Index: index, Err: err}
}
