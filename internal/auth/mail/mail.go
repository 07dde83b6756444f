// Package mail renders and delivers the transactional emails of the auth
// service: one-time codes and password reset links.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"math"
	"strings"
	texttemplate "text/template"
	"time"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const productName = "QuickFix"

type templateData struct {
	Product string
	Code    string
	Link    string
	Minutes int
}

var (
	otpText = texttemplate.Must(texttemplate.New("otp").Parse(
		`Your {{.Product}} verification code is {{.Code}}.

It expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.
`))

	otpHTML = htmltemplate.Must(htmltemplate.New("otp").Parse(`<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>{{.Product}} verification code</h2>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
    <p>This code expires in {{.Minutes}} minutes.</p>
    <p style="color: #888; font-size: 12px;">If you did not request this code, you can ignore this email.</p>
  </body>
</html>`))

	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		`A password reset was requested for your {{.Product}} account.

Open the link below to choose a new password. It expires in {{.Minutes}} minutes.

{{.Link}}

If you did not request a reset, you can ignore this email.
`))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Reset your {{.Product}} password</h2>
    <p>A password reset was requested for your account. The link expires in {{.Minutes}} minutes.</p>
    <p><a href="{{.Link}}" style="background: #667eea; color: #fff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Choose a new password</a></p>
    <p style="color: #888; font-size: 12px;">If you did not request a reset, you can ignore this email.</p>
  </body>
</html>`))
)

// OTPMessage renders the one-time code email.
func OTPMessage(to, code string, ttl time.Duration) (Message, error) {
	return render(to, productName+" verification code", otpText, otpHTML, templateData{
		Product: productName,
		Code:    code,
		Minutes: minutes(ttl),
	})
}

// ResetMessage renders the password reset email.
func ResetMessage(to, link string, ttl time.Duration) (Message, error) {
	return render(to, "Reset your "+productName+" password", resetText, resetHTML, templateData{
		Product: productName,
		Link:    link,
		Minutes: minutes(ttl),
	})
}

func render(to, subject string, text *texttemplate.Template, html *htmltemplate.Template, data templateData) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, fmt.Errorf("failed to render html body: %w", err)
	}
	return Message{
		To:      strings.TrimSpace(to),
		Subject: subject,
		Text:    tb.String(),
		HTML:    hb.String(),
	}, nil
}

func minutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
