package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// errorResponse is the JSON body for errors raised outside the send handler:
// unknown routes, oversized bodies, panics.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorBody(errText, message string) errorResponse {
	return errorResponse{Success: false, Error: errText, Message: message}
}

// errorHandler renders every unhandled error as JSON.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	} else {
		s.logger.Error("unhandled error",
			"error", err,
			"path", c.Request().URL.Path,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, errorBody(http.StatusText(code), message))
	}
	if writeErr != nil {
		s.logger.Error("failed to write error response", "error", writeErr)
	}
}
