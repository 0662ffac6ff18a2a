package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shineum/mailrelay/internal/email"
	"github.com/shineum/mailrelay/internal/relay"
	"github.com/shineum/mailrelay/internal/validate"
)

const (
	msgInvalidJSON  = "Request body must be valid JSON"
	msgInvalidValue = "Invalid value"
)

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Status string `json:"status"`
}

// sendEmail handles POST /api/send-email.
func (s *Server) sendEmail(c echo.Context) error {
	var (
		req     email.SendRequest
		decoded []validate.Violation
	)
	if err := c.Bind(&req); err != nil {
		v, ok := bindViolation(err)
		switch {
		case ok && v.Param != "":
			// The decoder keeps going after a type mismatch, so the rest of
			// req is still validated.
			decoded = append(decoded, v)
		case ok:
			status, body := relay.Reject([]validate.Violation{v})
			return c.JSON(status, body)
		case isStatus(err, http.StatusUnsupportedMediaType):
			// A non-JSON body carries no fields; validation reports them.
			req = email.SendRequest{}
		default:
			return err
		}
	}

	status, body := s.dispatcher.Handle(c.Request().Context(), &req, decoded...)
	return c.JSON(status, body)
}

// status handles GET /api/status.
func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "operational"})
}

// bindViolation maps a body decoding failure to a single violation. A type
// mismatch names the offending field; malformed JSON has an empty Param. It
// reports false for errors that are not about the JSON itself, such as an
// oversized body.
func bindViolation(err error) (validate.Violation, bool) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return validate.Violation{
			Msg:      msgInvalidValue,
			Param:    typeErr.Field,
			Location: validate.LocationBody,
		}, true
	}

	if isStatus(err, http.StatusBadRequest) {
		return validate.Violation{
			Msg:      msgInvalidJSON,
			Param:    "",
			Location: validate.LocationBody,
		}, true
	}

	return validate.Violation{}, false
}

func isStatus(err error, code int) bool {
	var he *echo.HTTPError
	return errors.As(err, &he) && he.Code == code
}
