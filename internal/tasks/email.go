// AngelaMos | 2026
// email.go

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carterperez-dev/homeser/internal/mail"
)

const TypeSendEmail = "send_email"

type EmailPayload struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	To      []string `json:"to"`
	HTML    bool     `json:"html,omitempty"`
}

// SendEmail queues an email for a worker to deliver.
func (q *Queue) SendEmail(ctx context.Context, p EmailPayload) (string, error) {
	return q.Enqueue(ctx, TypeSendEmail, p)
}

// EmailHandler delivers queued emails through sender.
func EmailHandler(sender mail.Sender) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) string {
		var p EmailPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Sprintf("Failed to send email: %v", err)
		}

		err := sender.Send(ctx, mail.Message{
			To:      p.To,
			Subject: p.Subject,
			Body:    p.Body,
			HTML:    p.HTML,
		})
		if err != nil {
			return fmt.Sprintf("Failed to send email: %v", err)
		}

		return "Email sent successfully to " + strings.Join(p.To, ", ")
	}
}

// EmailLookup resolves a user id to a delivery address.
type EmailLookup func(ctx context.Context, userID int64) (string, error)

// OrderNotifier queues an order confirmation after checkout.
type OrderNotifier struct {
	queue   *Queue
	lookup  EmailLookup
	baseURL string
}

func NewOrderNotifier(queue *Queue, lookup EmailLookup, baseURL string) *OrderNotifier {
	return &OrderNotifier{queue: queue, lookup: lookup, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *OrderNotifier) OrderPlaced(ctx context.Context, userID, orderID int64) error {
	email, err := n.lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up order recipient: %w", err)
	}

	_, err = n.queue.SendEmail(ctx, EmailPayload{
		Subject: fmt.Sprintf("Your HomeSer order #%d", orderID),
		Body: fmt.Sprintf(
			"Thank you for your order #%d.\n\nYou can follow it at %s/orders/\n",
			orderID, n.baseURL,
		),
		To: []string{email},
	})
	return err
}
