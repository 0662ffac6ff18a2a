// Package relay turns a decoded send request into exactly one delivery
// attempt and maps the outcome to an HTTP status and response body.
package relay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shineum/mailrelay/internal/email"
	"github.com/shineum/mailrelay/internal/message"
	"github.com/shineum/mailrelay/internal/provider"
	"github.com/shineum/mailrelay/internal/validate"
)

const (
	msgSent   = "Email sent successfully"
	msgFailed = "Failed to send email"
)

// SuccessResponse is returned with 200 when the provider accepted the message.
type SuccessResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

// FailureResponse is returned with 500 when delivery failed.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ValidationErrorResponse is returned with 400 when the request is rejected
// before any delivery attempt.
type ValidationErrorResponse struct {
	Success bool                 `json:"success"`
	Errors  []validate.Violation `json:"errors"`
}

// Dispatcher validates requests and hands them to a provider.
type Dispatcher struct {
	provider provider.Provider
	logger   *slog.Logger
}

// New creates a Dispatcher. A nil logger uses slog.Default().
func New(p provider.Provider, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		provider: p,
		logger:   logger,
	}
}

// Provider returns the provider requests are delivered through.
func (d *Dispatcher) Provider() provider.Provider {
	return d.provider
}

// Handle validates req and, when it passes, makes one delivery attempt with
// a transport built for this request alone. It returns the HTTP status and
// the body to send back. decoded carries violations found while decoding
// req; any of them fails the request.
func (d *Dispatcher) Handle(ctx context.Context, req *email.SendRequest, decoded ...validate.Violation) (int, any) {
	if violations := validate.Merge(validate.Request(req), decoded...); len(violations) > 0 {
		d.logger.Info("send request rejected",
			"violations", len(violations),
			"first", violations[0].Msg,
		)
		return Reject(violations)
	}

	tc := email.DeriveTransport(req.SMTP)
	env := email.BuildEnvelope(req)
	recipients := len(message.Recipients(env))

	messageID, err := d.provider.Send(ctx, tc, env)
	if err != nil {
		d.logger.Error("failed to send email",
			"provider", d.provider.Name(),
			"transport", tc,
			"recipients", recipients,
			"error", err,
		)
		return http.StatusInternalServerError, FailureResponse{
			Success: false,
			Error:   err.Error(),
			Message: msgFailed,
		}
	}

	d.logger.Info("email sent",
		"provider", d.provider.Name(),
		"transport", tc,
		"recipients", recipients,
		"message_id", messageID,
	)

	return http.StatusOK, SuccessResponse{
		Success:   true,
		MessageID: messageID,
		Message:   msgSent,
	}
}

// Reject builds the 400 response for the given violations.
func Reject(violations []validate.Violation) (int, any) {
	return http.StatusBadRequest, ValidationErrorResponse{
		Success: false,
		Errors:  violations,
	}
}
