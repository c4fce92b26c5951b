// Package mailer assembles outbound HTML messages and sends them through
// the Gmail API as the impersonated workspace user.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/sells-group/leadflow/pkg/google"
)

// Sender delivers one message; implemented by Mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// Mailer sends HTML email from a fixed mailbox.
type Mailer struct {
	gmail    google.GmailSender
	from     string
	fromName string
}

var _ Sender = (*Mailer)(nil)

// New creates a Mailer sending as from (display name optional).
func New(gmail google.GmailSender, from, fromName string) *Mailer {
	return &Mailer{gmail: gmail, from: from, fromName: fromName}
}

// Send builds and submits a message, returning the Gmail message ID.
// Transport errors are returned as-is.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	msg, err := BuildMessage(m.from, m.fromName, to, subject, htmlBody)
	if err != nil {
		return "", err
	}

	id, err := m.gmail.SendRaw(ctx, "me", base64.RawURLEncoding.EncodeToString(msg))
	if err != nil {
		return "", err
	}

	zap.L().Info("mailer: message sent",
		zap.String("to", to),
		zap.String("message_id", id),
	)
	return id, nil
}

// EncodeSubject returns s as an RFC 2047 UTF-8 base64 encoded word.
func EncodeSubject(s string) string {
	return "=?utf-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
}

// BuildMessage renders an RFC 2822 message with an HTML body.
func BuildMessage(from, fromName, to, subject, htmlBody string) ([]byte, error) {
	if strings.TrimSpace(to) == "" {
		return nil, eris.New("mailer: recipient is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, eris.New("mailer: sender is required")
	}

	msg := gomail.NewMessage(gomail.SetCharset("UTF-8"), gomail.SetEncoding(gomail.Base64))
	if fromName != "" {
		msg.SetHeader("From", msg.FormatAddress(from, fromName))
	} else {
		msg.SetHeader("From", from)
	}
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", EncodeSubject(subject))
	msg.SetBody("text/html", ToHTML(htmlBody))

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, eris.Wrap(err, "mailer: render message")
	}
	return buf.Bytes(), nil
}

var htmlTagRe = regexp.MustCompile(`(?i)<(p|br|div|html|body|table|ul|ol|span|a|strong|em|h[1-6])[\s>/]`)

// ToHTML passes HTML bodies through and converts plain text into
// paragraphs with line breaks.
func ToHTML(body string) string {
	if htmlTagRe.MatchString(body) {
		return body
	}
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(body), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
