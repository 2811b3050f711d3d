package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

// Notifier tells a requester what happened to their request.
type Notifier interface {
	AccountCreated(ctx context.Context, req *domain.NewAccountRequest) error
	AccountRejected(ctx context.Context, req *domain.NewAccountRequest, reasons []string) error
}

// MailNotifier delivers over SMTP. With no SMTP address configured it logs
// instead, which is what development environments want.
type MailNotifier struct {
	from     string
	smtpAddr string
	logger   *zap.Logger
}

// NewMailNotifier builds the notifier.
func NewMailNotifier(from, smtpAddr string, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{from: from, smtpAddr: smtpAddr, logger: logger}
}

func (n *MailNotifier) AccountCreated(ctx context.Context, req *domain.NewAccountRequest) error {
	subject := fmt.Sprintf("Account %s created", req.Identifier)
	body := fmt.Sprintf("Hello %s,\n\nYour account %q has been created.\n", req.FullName, req.Identifier)
	return n.send(req.ContactEmail, subject, body)
}

func (n *MailNotifier) AccountRejected(ctx context.Context, req *domain.NewAccountRequest, reasons []string) error {
	subject := fmt.Sprintf("Account request %s rejected", req.Identifier)
	body := fmt.Sprintf("Hello %s,\n\nYour request for account %q was not approved:\n\n- %s\n",
		req.FullName, req.Identifier, strings.Join(reasons, "\n- "))
	return n.send(req.ContactEmail, subject, body)
}

func (n *MailNotifier) send(to, subject, body string) error {
	if n.smtpAddr == "" {
		n.logger.Info("notification (smtp not configured)",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", n.from, to, subject, body)
	if err := smtp.SendMail(n.smtpAddr, nil, n.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", to, err)
	}
	return nil
}
