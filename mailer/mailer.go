// Package mailer sends plain-text notification emails.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Sender interface {
	SendText(ctx context.Context, toAddress, subject, body string) error
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	sendgridClient *sendgrid.Client
	fromName       string
	fromAddress    string
}

func NewSendGrid(sendgridClient *sendgrid.Client, fromName, fromAddress string) *SendGrid {
	return &SendGrid{
		sendgridClient: sendgridClient,
		fromName:       fromName,
		fromAddress:    fromAddress,
	}
}

func (s *SendGrid) SendText(ctx context.Context, toAddress, subject, body string) error {
	message := mail.NewV3Mail()
	message.From = mail.NewEmail(s.fromName, s.fromAddress)
	message.Subject = subject

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail("", toAddress))
	message.Personalizations = append(message.Personalizations, personalization)

	message.Content = append(message.Content, mail.NewContent("text/plain", body))

	resp, err := s.sendgridClient.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through Sendgrid: %d %s", resp.StatusCode, resp.Body)
	}

	return nil
}

// Log writes messages to the structured log instead of sending them.  Used
// for local runs without a SendGrid key.
type Log struct{}

func (Log) SendText(ctx context.Context, toAddress, subject, body string) error {
	slog.InfoContext(ctx, "Not sending email", slog.String("to", toAddress), slog.String("subject", subject), slog.String("body", body))
	return nil
}
