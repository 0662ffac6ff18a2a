package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailrelay/internal/email"
	"github.com/shineum/mailrelay/internal/validate"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	calls   int
	lastTC  email.TransportConfig
	lastEnv *email.Envelope
	id      string
	sendErr error
}

func (m *mockProvider) Send(_ context.Context, tc email.TransportConfig, env *email.Envelope) (string, error) {
	m.calls++
	m.lastTC = tc
	m.lastEnv = env
	return m.id, m.sendErr
}

func (m *mockProvider) Name() string {
	return "mock"
}

func newDispatcher(p *mockProvider) (*Dispatcher, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(p, logger), &logs
}

func validRequest() *email.SendRequest {
	return &email.SendRequest{
		SMTP: email.SMTPConfig{
			Host:     "smtp.x.com",
			Port:     587,
			Username: "u@x.com",
			Password: "p",
			Crypto:   email.CryptoTLS,
		},
		Email: email.Content{
			To:      []string{"r@y.com"},
			Subject: "Hi",
			Text:    "body",
		},
	}
}

func TestHandle_Success(t *testing.T) {
	t.Parallel()

	p := &mockProvider{id: "msg-123"}
	d, _ := newDispatcher(p)

	status, body := d.Handle(context.Background(), validRequest())

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, SuccessResponse{
		Success:   true,
		MessageID: "msg-123",
		Message:   "Email sent successfully",
	}, body)

	require.Equal(t, 1, p.calls)
	assert.Equal(t, email.TransportConfig{
		Host:           "smtp.x.com",
		Port:           587,
		RequireUpgrade: true,
		Auth:           email.Auth{User: "u@x.com", Pass: "p"},
	}, p.lastTC)
	assert.Equal(t, &email.Envelope{
		From:    "u@x.com",
		To:      "r@y.com",
		Subject: "Hi",
		Text:    "body",
	}, p.lastEnv)
}

func TestHandle_SuccessJSON(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(&mockProvider{id: "msg-123"})
	_, body := d.Handle(context.Background(), validRequest())

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"messageId":"msg-123","message":"Email sent successfully"}`, string(raw))
}

func TestHandle_ProviderFailure(t *testing.T) {
	t.Parallel()

	p := &mockProvider{sendErr: errors.New("connect ECONNREFUSED")}
	d, logs := newDispatcher(p)

	status, body := d.Handle(context.Background(), validRequest())

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, FailureResponse{
		Success: false,
		Error:   "connect ECONNREFUSED",
		Message: "Failed to send email",
	}, body)
	assert.Equal(t, 1, p.calls)
	assert.Contains(t, logs.String(), "failed to send email")
}

func TestHandle_ValidationFailureSkipsProvider(t *testing.T) {
	t.Parallel()

	p := &mockProvider{id: "unused"}
	d, _ := newDispatcher(p)

	req := validRequest()
	req.SMTP.Host = ""

	status, body := d.Handle(context.Background(), req)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ValidationErrorResponse{
		Success: false,
		Errors: []validate.Violation{
			{Msg: "SMTP host is required", Param: "smtp.host", Location: "body"},
		},
	}, body)
	assert.Zero(t, p.calls)
}

func TestHandle_DecodedViolations(t *testing.T) {
	t.Parallel()

	t.Run("fails an otherwise valid request", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{id: "unused"}
		d, _ := newDispatcher(p)

		bad := validate.Violation{Msg: "Invalid value", Param: "email.fromName", Location: "body"}
		status, body := d.Handle(context.Background(), validRequest(), bad)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ValidationErrorResponse{
			Success: false,
			Errors:  []validate.Violation{bad},
		}, body)
		assert.Zero(t, p.calls)
	})

	t.Run("reported alongside rule violations", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{id: "unused"}
		d, _ := newDispatcher(p)

		req := validRequest()
		req.SMTP.Host = ""
		req.Email.Subject = ""

		status, body := d.Handle(context.Background(), req,
			validate.Violation{Msg: "Invalid value", Param: "smtp.host", Location: "body"})

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ValidationErrorResponse{
			Success: false,
			Errors: []validate.Violation{
				{Msg: "Invalid value", Param: "smtp.host", Location: "body"},
				{Msg: "Subject is required", Param: "email.subject", Location: "body"},
			},
		}, body)
	})
}

func TestHandle_EmptyPayload(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	d, _ := newDispatcher(p)

	status, body := d.Handle(context.Background(), &email.SendRequest{})

	assert.Equal(t, http.StatusBadRequest, status)
	resp, ok := body.(ValidationErrorResponse)
	require.True(t, ok)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "smtp.host", resp.Errors[0].Param)
	assert.Zero(t, p.calls)
}

func TestHandle_EnvelopeFields(t *testing.T) {
	t.Parallel()

	p := &mockProvider{id: "id"}
	d, _ := newDispatcher(p)

	req := validRequest()
	req.SMTP.Crypto = email.CryptoSSL
	req.SMTP.Port = 465
	req.Email.FromEmail = "me@x.com"
	req.Email.FromName = "Me"
	req.Email.To = []string{"a@y.com", "b@y.com"}
	req.Email.Bcc = []string{"hidden@y.com"}
	req.Email.Attachments = []email.Attachment{{Filename: "a.txt", Content: "aGVsbG8="}}

	status, _ := d.Handle(context.Background(), req)
	require.Equal(t, http.StatusOK, status)

	assert.True(t, p.lastTC.Secure)
	assert.False(t, p.lastTC.RequireUpgrade)
	assert.Equal(t, `"Me" <me@x.com>`, p.lastEnv.From)
	assert.Equal(t, "a@y.com, b@y.com", p.lastEnv.To)
	assert.Equal(t, "hidden@y.com", p.lastEnv.Bcc)
	assert.Empty(t, p.lastEnv.Cc)
	assert.Len(t, p.lastEnv.Attachments, 1)
}

func TestHandle_PasswordNeverLogged(t *testing.T) {
	t.Parallel()

	d, logs := newDispatcher(&mockProvider{id: "id"})

	req := validRequest()
	req.SMTP.Password = "s3cr3t-value"

	status, _ := d.Handle(context.Background(), req)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, logs.String(), "email sent")
	assert.Contains(t, logs.String(), "smtp.x.com")
	assert.NotContains(t, logs.String(), "s3cr3t-value")
}

func TestHandle_FreshTransportPerRequest(t *testing.T) {
	t.Parallel()

	p := &mockProvider{id: "id"}
	d, _ := newDispatcher(p)

	first := validRequest()
	_, _ = d.Handle(context.Background(), first)
	firstTC := p.lastTC

	second := validRequest()
	second.SMTP.Host = "other.x.com"
	second.SMTP.Crypto = email.CryptoNone
	_, _ = d.Handle(context.Background(), second)

	assert.Equal(t, "smtp.x.com", firstTC.Host)
	assert.Equal(t, "other.x.com", p.lastTC.Host)
	assert.False(t, p.lastTC.RequireUpgrade)
	assert.Equal(t, 2, p.calls)
}

func TestReject(t *testing.T) {
	t.Parallel()

	status, body := Reject([]validate.Violation{{Msg: "Invalid value", Param: "email.to", Location: "body"}})
	assert.Equal(t, http.StatusBadRequest, status)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"errors":[{"msg":"Invalid value","param":"email.to","location":"body"}]}`, string(raw))
}
