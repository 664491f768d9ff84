package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/schoolpay/pkg/binder"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/requestid"
)

// classifyError maps binding failures onto HTTP errors and passes everything
// else through unchanged.
func classifyError(err error) error {
	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return errors.Join(ErrUnsupportedMediaType, err)
	case errors.Is(err, binder.ErrInvalidJSON), errors.Is(err, binder.ErrInvalidPath):
		return errors.Join(ErrBadRequest, err)
	case errors.Is(err, binder.ErrBodyTooLarge):
		return errors.Join(ErrRequestEntityTooLarge, err)
	default:
		return err
	}
}

func statusOf(err error) int {
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return http.StatusUnprocessableEntity
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

// NewErrorHandler returns an ErrorHandler that logs the failure with request
// context and renders it using the JSON error envelope. Client errors are
// logged at warn level, server errors at error level.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		err = classifyError(err)
		status := statusOf(err)

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
