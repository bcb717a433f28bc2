package export

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/render"
)

var (
	// ErrBusy is returned when an export is already running.
	ErrBusy = errors.New("export already in progress")

	// ErrTimeout is returned when the map did not become idle in time.
	ErrTimeout = errors.New("timed out waiting for the map to render")
)

// Kind classifies an export failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindBusy       Kind = "busy"
	KindTimeout    Kind = "timeout"
	KindCanceled   Kind = "canceled"
	KindRender     Kind = "render"
	KindEncode     Kind = "encode"
	KindDelivery   Kind = "delivery"
)

// Error is the error returned by [Exporter.Export].
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code maps the failure onto the application error codes.
func (e *Error) Code() apperrors.Code {
	switch e.Kind {
	case KindValidation:
		if errors.Is(e.Err, ErrUnsupportedFormat) {
			return apperrors.ErrCodeInvalidFormat
		}
		return apperrors.ErrCodeInvalidInput
	case KindBusy:
		return apperrors.ErrCodeBusy
	case KindTimeout:
		return apperrors.ErrCodeTimeout
	case KindCanceled:
		return apperrors.ErrCodeCanceled
	case KindRender:
		if errors.Is(e.Err, render.ErrUnavailable) {
			return apperrors.ErrCodeUnsupported
		}
		return apperrors.ErrCodeRenderFailed
	case KindEncode:
		return apperrors.ErrCodeEncodeFailed
	case KindDelivery:
		return apperrors.ErrCodeDeliveryFailed
	}
	return apperrors.ErrCodeInternal
}

// AsAppError converts err into an application error with a code, keeping
// the original as the cause.
func AsAppError(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return ae
	}
	var ee *Error
	if errors.As(err, &ee) {
		return apperrors.Wrap(ee.Code(), ee.Err, "%s", message(ee))
	}
	return apperrors.Wrap(apperrors.ErrCodeInternal, err, "%s", err.Error())
}

// message is the text shown to the user for a failure.
func message(e *Error) string {
	switch e.Kind {
	case KindBusy:
		return "An export is already running. Please wait for it to finish."
	case KindTimeout:
		return "The map did not finish loading in time."
	case KindCanceled:
		return "The export was canceled."
	}
	return e.Err.Error()
}

// classify wraps a render-stage error with the kind matching its cause.
func classify(err error, fallback Kind) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	case errors.Is(err, render.ErrInvalidTarget):
		return &Error{Kind: KindValidation, Err: err}
	}
	return &Error{Kind: fallback, Err: err}
}
