package alert

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailNotifier sends alerts through SendGrid.
type EmailNotifier struct {
	from *mail.Email
	to   []*mail.Email
	send func(ctx context.Context, msg *mail.SGMailV3) error
}

func NewEmailNotifier(apiKey, from string, to []string) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if from == "" || len(to) == 0 {
		return nil, fmt.Errorf("email sender and recipients are required")
	}

	client := sendgrid.NewSendClient(apiKey)
	n := &EmailNotifier{
		from: mail.NewEmail("Strategy Manager", from),
		send: func(ctx context.Context, msg *mail.SGMailV3) error {
			resp, err := client.SendWithContext(ctx, msg)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
			}
			return nil
		},
	}
	for _, addr := range to {
		n.to = append(n.to, mail.NewEmail("", addr))
	}
	return n, nil
}

func (n *EmailNotifier) Notify(ctx context.Context, a Alert) error {
	subject := fmt.Sprintf("[%s] %s", a.Severity, a.Title)
	body := a.Text()

	for _, to := range n.to {
		msg := mail.NewSingleEmail(n.from, subject, to, body, "")
		if err := n.send(ctx, msg); err != nil {
			return fmt.Errorf("send alert email to %s: %w", to.Address, err)
		}
	}
	return nil
}
