package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/heritage-repo/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	logRequest(c, slog.LevelInfo, "bad request", err.Error())
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	logRequest(c, slog.LevelInfo, "bad request", msg)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "authentication required"})
}

func Forbidden(c echo.Context, msg string) error {
	logRequest(c, slog.LevelInfo, "forbidden", msg)
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	logRequest(c, slog.LevelDebug, "not found", msg)
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	logRequest(c, slog.LevelError, "internal error", err.Error())
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// Error maps a usecase error onto its status code.
func Error(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrPermissionDenied):
		return Forbidden(c, err.Error())
	}
	return InternalError(c, err)
}

func logRequest(c echo.Context, level slog.Level, msg, detail string) {
	slog.Log(c.Request().Context(), level, msg,
		slog.String("path", c.Path()),
		slog.String("detail", detail),
		slog.String("module", "rest"),
	)
}
