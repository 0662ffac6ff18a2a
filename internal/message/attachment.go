package message

import (
	"encoding/base64"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/shineum/mailrelay/internal/email"
)

const (
	defaultAttachmentName = "attachment"
	defaultContentType    = "application/octet-stream"
	dataURIContentType    = "text/plain;charset=US-ASCII"
)

// DecodedAttachment is an attachment ready to be written as a MIME part.
type DecodedAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// DecodeAttachment decodes the text content of an attachment.
//
// A data URI is decoded according to its own encoding. Other content is
// treated as standard base64, and attached as raw text when it is not
// valid base64.
func DecodeAttachment(a email.Attachment) DecodedAttachment {
	out := DecodedAttachment{
		Filename:    a.Filename,
		ContentType: a.ContentType,
	}
	if out.Filename == "" {
		out.Filename = defaultAttachmentName
	}

	var uriType string
	if strings.HasPrefix(a.Content, "data:") {
		out.Content, uriType = decodeDataURI(a.Content)
	} else if decoded, ok := decodeBase64(a.Content); ok {
		out.Content = decoded
	} else {
		out.Content = []byte(a.Content)
	}

	if out.ContentType == "" {
		out.ContentType = uriType
	}
	if out.ContentType == "" {
		out.ContentType = mime.TypeByExtension(filepath.Ext(out.Filename))
	}
	if out.ContentType == "" {
		out.ContentType = defaultContentType
	}

	return out
}

// decodeDataURI decodes an RFC 2397 data URI and returns its payload and
// media type. A URI without a comma is attached verbatim.
func decodeDataURI(uri string) ([]byte, string) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return []byte(uri), ""
	}

	meta, data := rest[:comma], rest[comma+1:]
	isBase64 := strings.HasSuffix(strings.ToLower(meta), ";base64")
	if isBase64 {
		meta = meta[:len(meta)-len(";base64")]
	}
	if meta == "" {
		meta = dataURIContentType
	}

	if isBase64 {
		if decoded, ok := decodeBase64(data); ok {
			return decoded, meta
		}
		return []byte(data), meta
	}

	if unescaped, err := url.PathUnescape(data); err == nil {
		return []byte(unescaped), meta
	}
	return []byte(data), meta
}

// decodeBase64 accepts padded standard base64 only, with optional line
// breaks. Any other character, including spaces, means the value is text.
func decodeBase64(s string) ([]byte, bool) {
	if strings.Trim(s, "\r\n") == "" {
		return nil, false
	}
	// StdEncoding skips CR and LF itself.
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return decoded, true
}
