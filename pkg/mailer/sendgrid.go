package mailer

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	TextBody  string
	HTMLBody  string
}

// Mailer sends transactional email.
type Mailer interface {
	Send(msg Message) error
}

// SendGridMailer delivers messages through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGridMailer constructs a SendGrid-backed mailer.
func NewSendGridMailer(apiKey, fromName, fromAddress string, logger *zap.Logger) *SendGridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridMailer{
		apiKey: apiKey,
		from:   sgmail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

// Send delivers a single message.
func (m *SendGridMailer) Send(msg Message) error {
	if msg.ToAddress == "" {
		return fmt.Errorf("message has no recipient")
	}
	body := sgmail.NewSingleEmail(m.from, msg.Subject, sgmail.NewEmail(msg.ToName, msg.ToAddress), msg.TextBody, msg.HTMLBody)
	client := sendgrid.NewSendClient(m.apiKey)
	res, err := client.Send(body)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	m.logger.Debug("email sent", zap.String("to", msg.ToAddress), zap.String("subject", msg.Subject))
	return nil
}

// NoopMailer discards messages and is used when email delivery is disabled.
type NoopMailer struct{}

// Send implements Mailer.
func (NoopMailer) Send(Message) error { return nil }
