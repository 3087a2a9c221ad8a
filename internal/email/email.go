// Package email sends one-shot templated transactional mail. Callers treat
// every send as best-effort: failures are logged by the caller, never
// propagated into a transaction.
package email

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/smtp"
	"strings"
)

// Message is a rendered mail ready for transport.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers rendered messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPTransport delivers over plain SMTP with AUTH.
type SMTPTransport struct {
	Addr string
	From string
	Auth smtp.Auth
}

func (t *SMTPTransport) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", t.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	return smtp.SendMail(t.Addr, t.Auth, t.From, []string{msg.To}, []byte(b.String()))
}

// LogTransport writes mail to the log instead of sending; used in dev and
// tests.
type LogTransport struct {
	Logger *log.Logger
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.Logger.Printf("email: to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

// Service renders the store's transactional templates.
type Service struct {
	transport Transport
	logger    *log.Logger
}

func New(transport Transport, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{transport: transport, logger: logger}
}

func (s *Service) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("email: empty recipient")
	}
	return s.transport.Send(ctx, Message{To: to, Subject: subject, Body: body})
}

func (s *Service) SendOrderConfirmation(ctx context.Context, to, orderID, receiptURL string) error {
	body := fmt.Sprintf(
		"Thank you for your order!\n\nYour order %s has been placed and is being processed.\n", orderID)
	if receiptURL != "" {
		body += fmt.Sprintf("\nView your receipt: %s\n", receiptURL)
	}
	return s.send(ctx, to, "Order Confirmation", body)
}

func (s *Service) SendStatusUpdate(ctx context.Context, to, orderID, status string) error {
	body := fmt.Sprintf("Your order %s is now %s.\n", orderID, status)
	return s.send(ctx, to, "Order Status Update", body)
}

func (s *Service) SendRefundUpdate(ctx context.Context, to, orderID string, amountCents int64) error {
	body := fmt.Sprintf(
		"A refund of %s has been issued for your order %s. It may take a few business days to appear on your statement.\n",
		formatAmount(amountCents), orderID)
	return s.send(ctx, to, "Refund Update", body)
}

func (s *Service) SendCancellationConfirmation(ctx context.Context, to, orderID string) error {
	body := fmt.Sprintf("Your order %s has been cancelled.\n", orderID)
	return s.send(ctx, to, "Cancellation Confirmation", body)
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
