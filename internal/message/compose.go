package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/shineum/mailrelay/internal/email"
)

const (
	// base64LineLength is the maximum encoded line length per RFC 2045.
	base64LineLength = 76

	// foldLength is the line length header folding aims for (RFC 5322 2.1.1).
	foldLength = 78
)

// entity is a MIME entity: its own content headers plus an encoded body.
type entity struct {
	header textproto.MIMEHeader
	body   []byte
}

// Build renders env as a complete message. The Bcc list is used for
// delivery only and never appears in the headers.
func Build(env *email.Envelope, messageID string, date time.Time) ([]byte, error) {
	var buf bytes.Buffer

	writeAddressHeader(&buf, "From", env.From)
	writeAddressHeader(&buf, "To", env.To)
	if env.Cc != "" {
		writeAddressHeader(&buf, "Cc", env.Cc)
	}
	if env.ReplyTo != "" {
		writeAddressHeader(&buf, "Reply-To", env.ReplyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(env.Subject)))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID)
	writeHeader(&buf, "MIME-Version", "1.0")

	body, err := buildBody(env)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"Content-Type", "Content-Transfer-Encoding"} {
		if v := body.header.Get(key); v != "" {
			writeHeader(&buf, key, v)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(body.body)
	if !bytes.HasSuffix(body.body, []byte("\r\n")) {
		buf.WriteString("\r\n")
	}

	return buf.Bytes(), nil
}

// buildBody lays out the message body:
//
//	text or html only  -> single part
//	text and html      -> multipart/alternative
//	with attachments   -> multipart/mixed{body, attachment...}
func buildBody(env *email.Envelope) (entity, error) {
	var content entity
	switch {
	case env.Text != "" && env.HTML != "":
		alt, err := multipartEntity("alternative", []entity{
			textEntity("text/plain", env.Text),
			textEntity("text/html", env.HTML),
		})
		if err != nil {
			return entity{}, err
		}
		content = alt
	case env.HTML != "":
		content = textEntity("text/html", env.HTML)
	default:
		content = textEntity("text/plain", env.Text)
	}

	if len(env.Attachments) == 0 {
		return content, nil
	}

	parts := []entity{content}
	for _, a := range env.Attachments {
		parts = append(parts, attachmentEntity(DecodeAttachment(a)))
	}
	return multipartEntity("mixed", parts)
}

func textEntity(mediaType, text string) entity {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	// Writes to a bytes.Buffer do not fail.
	_, _ = w.Write([]byte(text))
	_ = w.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"charset": "utf-8"}))
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	return entity{header: h, body: buf.Bytes()}
}

func attachmentEntity(a DecodedAttachment) entity {
	contentType := sanitizeHeader(a.ContentType)
	if mediaType, params, err := mime.ParseMediaType(contentType); err == nil {
		params["name"] = a.Filename
		contentType = mime.FormatMediaType(mediaType, params)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	return entity{header: h, body: encodeBase64WithLineBreaks(a.Content)}
}

func multipartEntity(subtype string, parts []entity) (entity, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		pw, err := w.CreatePart(p.header)
		if err != nil {
			return entity{}, fmt.Errorf("failed to create %s part: %w", subtype, err)
		}
		if _, err := pw.Write(p.body); err != nil {
			return entity{}, fmt.Errorf("failed to write %s part: %w", subtype, err)
		}
	}
	if err := w.Close(); err != nil {
		return entity{}, fmt.Errorf("failed to close %s part: %w", subtype, err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", mime.FormatMediaType("multipart/"+subtype, map[string]string{"boundary": w.Boundary()}))
	return entity{header: h, body: buf.Bytes()}, nil
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var buf bytes.Buffer
	for i := 0; i < len(encoded); i += base64LineLength {
		end := min(i+base64LineLength, len(encoded))
		buf.WriteString(encoded[i:end])
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// formatAddressList re-encodes a comma-separated address list so display
// names are quoted or RFC 2047 encoded. Values that do not parse as
// addresses (a bare SMTP username, say) are written as given.
func formatAddressList(raw string) string {
	raw = sanitizeHeader(raw)

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		return raw
	}

	formatted := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr.Name == "" {
			formatted = append(formatted, addr.Address)
			continue
		}
		formatted = append(formatted, addr.String())
	}
	return strings.Join(formatted, ", ")
}

// sanitizeHeader folds CR and LF into spaces so caller-supplied values
// cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
}

// writeHeader writes an unstructured header, folding at spaces. Encoded
// words produced by mime.QEncoding are space separated, so long encoded
// subjects fold too.
func writeHeader(buf *bytes.Buffer, key, value string) {
	writeFolded(buf, key, strings.Split(value, " "), "")
}

// writeAddressHeader writes an address list header folded after commas.
func writeAddressHeader(buf *bytes.Buffer, key, list string) {
	writeFolded(buf, key, strings.Split(formatAddressList(list), ", "), ",")
}

// writeFolded writes key followed by words separated by sep and a space.
// A line is broken before the space once adding the next word would pass
// foldLength. A single word longer than that stays on its own line.
func writeFolded(buf *bytes.Buffer, key string, words []string, sep string) {
	buf.WriteString(key)
	buf.WriteByte(':')
	lineLen := len(key) + 1

	for i, w := range words {
		if i < len(words)-1 {
			w += sep
		}
		if i > 0 && w != "" && lineLen+1+len(w) > foldLength {
			buf.WriteString("\r\n")
			lineLen = 0
		}
		buf.WriteByte(' ')
		buf.WriteString(w)
		lineLen += 1 + len(w)
	}
	buf.WriteString("\r\n")
}
