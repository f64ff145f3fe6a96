package http

import (
	"errors"
	"log/slog"
	"net/http"

	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/pkg/id"

	"github.com/labstack/echo/v4"
)

func statusFor(k failure.Kind) int {
	switch k {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindConflict:
		return http.StatusConflict
	case failure.KindExternal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError maps use case errors onto HTTP codes. Unclassified errors are
// logged and answered with a bare 500.
func respondError(c echo.Context, err error) error {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		slog.ErrorContext(c.Request().Context(), "unhandled error", "method", c.Request().Method, "route", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	if fe.Kind == failure.KindExternal {
		slog.WarnContext(c.Request().Context(), "dependency failure", "route", c.Path(), "reason", fe.Reason, "err", err)
	}
	return c.JSON(statusFor(fe.Kind), ErrorResponse{Error: fe.Message, Reason: fe.Reason})
}

// bindValid binds the JSON body into req and validates it. A false return
// means the error response has already been written.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}

// pathID reads a 32-hex id path param. A false return means a 400 was written.
func pathID(c echo.Context, name string) (string, bool, error) {
	v := c.Param(name)
	if v == "" {
		return "", false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing " + name + " path param"})
	}
	if !id.Valid(v) {
		return "", false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name + " path param"})
	}
	return v, true, nil
}
