// Package email parses raw inbound email bytes into the fields the
// processing pipeline needs: sender, recipient, subject and body.
package email

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Message holds the parsed fields of an inbound email.
type Message struct {
	FromName    string
	FromAddress string
	To          string
	Subject     string
	HTML        string
	Text        string
}

// Body returns the HTML body when present, falling back to plain text.
func (m *Message) Body() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Text
}

// SourceLabel returns the best provenance label for extracted articles:
// the sender's display name, then the subject, then "unknown".
func (m *Message) SourceLabel() string {
	if m.FromName != "" {
		return m.FromName
	}
	if m.Subject != "" {
		return m.Subject
	}
	return "unknown"
}

// Parse parses a raw RFC 5322 message, walking multipart bodies to find
// the HTML and plain-text parts.
func Parse(raw []byte) (*Message, error) {
	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	msg := &Message{
		Subject: decodeHeader(parsed.Header.Get("Subject")),
	}

	if from, err := mail.ParseAddress(parsed.Header.Get("From")); err == nil {
		msg.FromName = from.Name
		msg.FromAddress = from.Address
	}
	if tos, err := parsed.Header.AddressList("To"); err == nil && len(tos) > 0 {
		msg.To = tos[0].Address
	}

	contentType := parsed.Header.Get("Content-Type")
	encoding := parsed.Header.Get("Content-Transfer-Encoding")
	if err := walkBody(msg, parsed.Body, contentType, encoding); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return msg, nil
}

// walkBody collects text/html and text/plain content from the body,
// recursing into multipart containers.
func walkBody(msg *Message, body io.Reader, contentType, encoding string) error {
	mediaType := "text/plain"
	var params map[string]string
	if contentType != "" {
		var err error
		mediaType, params, err = mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = "text/plain"
		}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart body without boundary")
		}
		reader := multipart.NewReader(body, boundary)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("next part: %w", err)
			}
			partType := part.Header.Get("Content-Type")
			partEncoding := part.Header.Get("Content-Transfer-Encoding")
			if err := walkBody(msg, part, partType, partEncoding); err != nil {
				return err
			}
		}
	}

	content, err := decodeContent(body, encoding)
	if err != nil {
		return err
	}

	switch mediaType {
	case "text/html":
		if msg.HTML == "" {
			msg.HTML = content
		}
	case "text/plain":
		if msg.Text == "" {
			msg.Text = content
		}
	}
	return nil
}

// decodeContent applies the content-transfer-encoding to the body bytes.
func decodeContent(body io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// decodeHeader decodes RFC 2047 encoded-word headers.
func decodeHeader(value string) string {
	decoder := mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
