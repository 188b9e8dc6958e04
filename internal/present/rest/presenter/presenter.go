package presenter

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

const ContentTypeXML = "text/xml; charset=UTF-8"

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

// XML writes an OAI-PMH document. Protocol errors are part of the document,
// so this is always a 200.
func XML(c echo.Context, body string) error {
	return c.Blob(http.StatusOK, ContentTypeXML, []byte(body))
}

func BadRequest(c echo.Context, err error) error {
	slog.Info(
		"Bad request",
		slog.String("error", err.Error()),
		slog.String("module", "rest"),
	)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func Unavailable(c echo.Context, err error) error {
	slog.Warn(
		"Service unavailable",
		slog.String("error", err.Error()),
		slog.String("module", "rest"),
	)
	return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
}

func InternalError(c echo.Context, err error) error {
	slog.Error(
		"Internal error",
		slog.String("error", err.Error()),
		slog.String("module", "rest"),
	)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
