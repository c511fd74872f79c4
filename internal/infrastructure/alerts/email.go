package alerts

import (
	"fmt"
	"os"

	"github.com/resendlabs/resend-go"
)

// EmailSender defines the interface for sending alert emails, allowing for
// mock implementations in tests.
type EmailSender interface {
	SendAlertEmail(subject, body string) error
}

// ResendClient is the concrete implementation of EmailSender using the
// Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
	toEmail   string
}

// NewEmailSender creates a Resend-backed sender. It returns an error when
// RESEND_API_KEY is unset so callers can fall back to log-only alerting.
func NewEmailSender(toEmail string) (EmailSender, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}
	if toEmail == "" {
		return nil, fmt.Errorf("alert recipient address is required")
	}

	fromEmail := os.Getenv("ALERT_EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "alerts@screen-machine.local"
	}

	fromName := os.Getenv("ALERT_EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "Screen Machine"
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
	}, nil
}

// SendAlertEmail composes and sends one alert email.
func (c *ResendClient) SendAlertEmail(subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{c.toEmail},
		Subject: subject,
		Html:    fmt.Sprintf("<p style=\"font-family: Helvetica, sans-serif; font-size: 16px;\">%s</p>", body),
	}

	if _, err := c.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send alert email via Resend: %w", err)
	}
	return nil
}
