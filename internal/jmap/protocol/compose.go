package protocol

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is a message to be rendered as RFC 5322 and uploaded, e.g. for
// Email/import. HTMLBody is optional.
type Message struct {
	From      EmailAddress
	To        []EmailAddress
	Cc        []EmailAddress
	Subject   string
	Body      string
	HTMLBody  string
	Date      time.Time
	MessageId string
	InReplyTo string
}

// BuildMessage renders m as an RFC 5322 message. The body is a single
// text/plain part, or a multipart/alternative of text and HTML when
// HTMLBody is set.
func BuildMessage(m *Message) ([]byte, error) {
	if m.From.Email == "" {
		return nil, fmt.Errorf("message has no From address")
	}

	var h mail.Header
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetAddressList("From", toMailAddresses([]EmailAddress{m.From}))
	if len(m.To) > 0 {
		h.SetAddressList("To", toMailAddresses(m.To))
	}
	if len(m.Cc) > 0 {
		h.SetAddressList("Cc", toMailAddresses(m.Cc))
	}
	h.SetSubject(m.Subject)
	if m.MessageId != "" {
		h.SetMessageID(m.MessageId)
	} else if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate Message-Id: %w", err)
	}
	if m.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{m.InReplyTo})
	}

	var buf bytes.Buffer
	if m.HTMLBody != "" {
		if err := writeAlternative(&buf, h, m.Body, m.HTMLBody); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, m.Body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAlternative(out io.Writer, h mail.Header, text, html string) error {
	mw, err := mail.CreateWriter(out, h)
	if err != nil {
		return fmt.Errorf("failed to create message writer: %w", err)
	}
	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("failed to create inline writer: %w", err)
	}
	for _, part := range []struct{ contentType, body string }{
		{"text/plain", text},
		{"text/html", html},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(ph)
		if err != nil {
			return fmt.Errorf("failed to create %s part: %w", part.contentType, err)
		}
		if _, err := io.WriteString(pw, part.body); err != nil {
			return fmt.Errorf("failed to write %s part: %w", part.contentType, err)
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("failed to finish %s part: %w", part.contentType, err)
		}
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("failed to finish alternative: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}

func toMailAddresses(in []EmailAddress) []*mail.Address {
	out := make([]*mail.Address, 0, len(in))
	for _, a := range in {
		out = append(out, &mail.Address{Name: a.Name, Address: a.Email})
	}
	return out
}
