package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultResendEndpoint = "https://api.resend.com/emails"
	defaultSendTimeout    = 10 * time.Second
)

// ResendMailer delivers mail through the Resend HTTP API.
type ResendMailer struct {
	APIKey   string
	From     string
	Endpoint string
	Client   *http.Client

	// TestingInbox, when set, receives every message instead of the real
	// recipient. The intended recipient is kept in the subject.
	TestingInbox string
}

// NewResendMailer returns a mailer with the default endpoint and a 10
// second client timeout.
func NewResendMailer(apiKey, from, testingInbox string) *ResendMailer {
	return &ResendMailer{
		APIKey:       apiKey,
		From:         from,
		Endpoint:     DefaultResendEndpoint,
		Client:       &http.Client{Timeout: defaultSendTimeout},
		TestingInbox: testingInbox,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send implements Sender.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if m.APIKey == "" {
		return errors.New("resend: api key is not configured")
	}

	to, subject := msg.To, msg.Subject
	if m.TestingInbox != "" && m.TestingInbox != msg.To {
		to = m.TestingInbox
		subject = fmt.Sprintf("[TO: %s] %s", msg.To, msg.Subject)
	}

	body, err := json.Marshal(resendRequest{
		From:    m.From,
		To:      []string{to},
		Subject: subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("resend: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client().Do(req)
	if err != nil {
		return fmt.Errorf("resend: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr resendError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("resend: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("resend: status %d", resp.StatusCode)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (m *ResendMailer) endpoint() string {
	if m.Endpoint == "" {
		return DefaultResendEndpoint
	}
	return m.Endpoint
}

func (m *ResendMailer) client() *http.Client {
	if m.Client == nil {
		return &http.Client{Timeout: defaultSendTimeout}
	}
	return m.Client
}
