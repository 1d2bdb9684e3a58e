package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"trullo-api/domain"
)

// envelope is the uniform response body: a status field mirroring the HTTP
// code, a human-readable message, data on success and a field-error list
// on validation failures.
type envelope struct {
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Status: status, Message: message, Data: data})
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Status: status, Message: message})
}

func respondFieldErrors(c echo.Context, fields []domain.FieldError) error {
	return c.JSON(http.StatusBadRequest, envelope{
		Status:  http.StatusBadRequest,
		Message: "validation failed",
		Errors:  fields,
	})
}

// respondDomainError maps the domain error taxonomy onto HTTP codes.
func respondDomainError(c echo.Context, err error) error {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		if len(vErr.Fields) > 0 {
			return respondFieldErrors(c, vErr.Fields)
		}
		return respondError(c, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		return respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		return respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidCredential):
		return respondError(c, http.StatusBadRequest, "incorrect password")
	default:
		c.Logger().Error(err)
		return respondError(c, http.StatusInternalServerError, "server error")
	}
}
