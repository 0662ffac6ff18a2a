package message

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Parsed is a decoded RFC 5322 message. It mirrors what Build writes and
// is used to inspect composed or received messages.
type Parsed struct {
	From        string
	To          []string
	Cc          []string
	ReplyTo     []string
	Subject     string
	MessageID   string
	TextBody    string
	HTMLBody    string
	Attachments []DecodedAttachment
	Header      mail.Header
}

var wordDecoder = new(mime.WordDecoder)

// Parse decodes a raw message. Parts it cannot interpret are skipped.
func Parse(raw []byte) (*Parsed, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	h := msg.Header
	p := &Parsed{
		Header:    h,
		From:      h.Get("From"),
		MessageID: h.Get("Message-Id"),
		To:        parseAddressList(h.Get("To")),
		Cc:        parseAddressList(h.Get("Cc")),
		ReplyTo:   parseAddressList(h.Get("Reply-To")),
		Subject:   h.Get("Subject"),
	}
	if decoded, err := wordDecoder.DecodeHeader(p.Subject); err == nil {
		p.Subject = decoded
	}

	if err := p.readEntity(h, msg.Body); err != nil {
		return nil, err
	}
	return p, nil
}

// partHeader is the subset of header access readEntity needs; both
// mail.Header and textproto.MIMEHeader satisfy it.
type partHeader interface {
	Get(key string) string
}

// readEntity stores the content of one MIME entity, recursing into
// multipart bodies.
func (p *Parsed) readEntity(h partHeader, body io.Reader) error {
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if params["boundary"] == "" {
			return fmt.Errorf("multipart message missing boundary")
		}
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read next part: %w", err)
			}
			// A broken part does not spoil its siblings.
			_ = p.readEntity(part.Header, part)
		}
	}

	// multipart.Reader has already removed quoted-printable encoding from
	// parts, and drops the header when it does.
	content, err := decodeContent(h.Get("Content-Transfer-Encoding"), body)
	if err != nil {
		return fmt.Errorf("failed to read %s content: %w", mediaType, err)
	}

	disposition, dparams, _ := mime.ParseMediaType(h.Get("Content-Disposition"))
	if disposition == "attachment" || dparams["filename"] != "" {
		filename := dparams["filename"]
		if filename == "" {
			filename = params["name"]
		}
		p.Attachments = append(p.Attachments, DecodedAttachment{
			Filename:    filename,
			ContentType: mediaType,
			Content:     content,
		})
		return nil
	}

	switch {
	case mediaType == "text/html" && p.HTMLBody == "":
		p.HTMLBody = string(content)
	case mediaType == "text/plain" && p.TextBody == "":
		p.TextBody = string(content)
	}
	return nil
}

// decodeContent reads r and removes its Content-Transfer-Encoding.
func decodeContent(encoding string, r io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		decoded, ok := decodeBase64(string(raw))
		if !ok {
			return nil, fmt.Errorf("invalid base64 content")
		}
		return decoded, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}
