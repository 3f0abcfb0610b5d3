package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/cevs/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("source unavailable")
	ErrInternal    = errors.New("internal error")
)

// OpError records the handler operation that failed and the kind of failure.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind creates an error of kind with a message.
func NewKind(op string, kind error, msg string) error {
	return &OpError{Op: op, Kind: kind, Err: errors.New(msg)}
}

// Wrap attaches op to err and derives the kind from the domain error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return WrapKind(op, kindOf(err), err)
}

// WrapKind attaches op and an explicit kind to err.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidInput):
		return ErrBadRequest
	case errors.Is(err, ErrUnavailable), errors.Is(err, model.ErrSourceUnavailable):
		return ErrUnavailable
	default:
		return ErrInternal
	}
}

// statusOf maps an error to its HTTP status and envelope code.
func statusOf(err error) (int, string) {
	switch kindOf(err) {
	case ErrBadRequest:
		return http.StatusBadRequest, "invalid_input"
	case ErrUnavailable:
		return http.StatusServiceUnavailable, "source_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
