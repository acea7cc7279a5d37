package services

import (
	"fmt"
	"html"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/quickapply/backend/internal/models"
)

// OutgoingMail is one application email. HTMLBody is already rendered.
type OutgoingMail struct {
	To       string
	Subject  string
	HTMLBody string
}

// ComposeMessage builds the RFC 5322 message sent as the profile owner, with the
// profile's links appended under the body.
func ComposeMessage(sender *models.Profile, m OutgoingMail, now time.Time) ([]byte, error) {
	to, err := mail.ParseAddress(sanitizeHeader(m.To))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidRecipient, "%q", m.To)
	}
	if sender.Email == "" {
		return nil, errors.Wrap(ErrInvalidProfile, "sender has no email")
	}
	from := &mail.Address{Name: sanitizeHeader(sender.FullName), Address: sender.Email}

	subject := sanitizeHeader(m.Subject)
	if subject == "" {
		subject = "(no subject)"
	}

	headers := []string{
		fmt.Sprintf("To: %s", to.String()),
		fmt.Sprintf("From: %s", from.String()),
		fmt.Sprintf("Reply-To: %s", sender.Email),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		fmt.Sprintf("Date: %s", now.Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
	}

	body, err := encodeQuotedPrintable(normalizeBody(m.HTMLBody + linksHTML(sender.Links())))
	if err != nil {
		return nil, errors.Wrap(err, "encode body")
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body + "\r\n"), nil
}

// encodeQuotedPrintable keeps every body line under the 76 octet limit of RFC 2045.
func encodeQuotedPrintable(body string) (string, error) {
	var b strings.Builder
	w := quotedprintable.NewWriter(&b)
	if _, err := w.Write([]byte(body)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func linksHTML(links []models.ProfileLink) string {
	if len(links) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div style="margin-top: 24px; padding-top: 24px; border-top: 2px solid #000000;">`)
	b.WriteString(`<p style="margin: 0 0 12px 0; font-weight: 700; font-size: 14px; color: #000000;">My Links:</p>`)
	b.WriteString(`<div>`)
	for _, l := range links {
		fmt.Fprintf(&b,
			`<a href="%s" style="display: inline-block; margin: 0 8px 8px 0; padding: 8px 16px; border: 2px solid #000000; color: #000000; text-decoration: none; font-weight: 600; font-size: 13px;">%s</a>`,
			html.EscapeString(l.URL), html.EscapeString(l.Label))
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return strings.TrimSpace(body)
}
