package mailer

import (
	"context"
	"fmt"
	"mime/quotedprintable"
	"net/smtp"
	"strings"

	"github.com/avolkovs/authkeeper/internal/common"
)

// SMTPTransport delivers messages over plain SMTP. Auth is optional: with an
// empty username the transport speaks unauthenticated SMTP (local relay,
// mailhog in development).
type SMTPTransport struct {
	addr     string
	host     string
	username string
	password string
}

// NewSMTPTransport constructs a transport for the given addr ("host:port").
func NewSMTPTransport(addr, username, password string) *SMTPTransport {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return &SMTPTransport{addr: addr, host: host, username: username, password: password}
}

// Send submits the message to the configured relay. A transport-level
// failure is reported as common.ErrorUnavailable so the queue retries it.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if t.username != "" {
		auth = smtp.PlainAuth("", t.username, t.password, t.host)
	}

	body, err := buildMIME(msg)
	if err != nil {
		return err
	}

	if err := smtp.SendMail(t.addr, auth, msg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("%w: smtp send: %v", common.ErrorUnavailable, err)
	}

	return nil
}

// buildMIME renders a multipart/alternative body carrying both the text and
// the HTML part.
func buildMIME(msg *Message) ([]byte, error) {
	const boundary = "authkeeper-alt"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	} {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", part.contentType)
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		b.WriteString("\r\n")

		w := quotedprintable.NewWriter(&b)
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String()), nil
}
