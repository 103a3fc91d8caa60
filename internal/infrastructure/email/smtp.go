package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"checkoutgo/internal/application/checkout/usecases"
	sharedConfig "checkoutgo/internal/shared/config"
)

// SMTPReceiptSender delivers payment receipts over SMTP. It satisfies the
// confirmation usecase's ReceiptNotifier.
type SMTPReceiptSender struct {
	cfg    sharedConfig.EmailConfig
	dialer *gomail.Dialer
}

func NewSMTPReceiptSender(cfg sharedConfig.EmailConfig) *SMTPReceiptSender {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)

	return &SMTPReceiptSender{
		cfg:    cfg,
		dialer: dialer,
	}
}

func (s *SMTPReceiptSender) SendReceipt(ctx context.Context, cmd usecases.ReceiptCommand) error {
	subject := fmt.Sprintf("Payment receipt %s", cmd.Reference)

	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<h2>Thank you for your payment</h2>
			<p>We received your payment of <strong>%s</strong> via %s.</p>
			<p>Reference: %s</p>
			<p>Paid at: %s</p>
		</body>
		</html>
	`, cmd.Amount, cmd.Provider, cmd.Reference, cmd.PaidAt.Format("2006-01-02 15:04 MST"))

	plainBody := fmt.Sprintf(`
Thank you for your payment.

We received your payment of %s via %s.

Reference: %s
Paid at: %s
	`, cmd.Amount, cmd.Provider, cmd.Reference, cmd.PaidAt.Format("2006-01-02 15:04 MST"))

	return s.sendEmail(cmd.Email, subject, htmlBody, plainBody)
}

func (s *SMTPReceiptSender) sendEmail(to, subject, htmlBody, plainBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.FromAddress, s.cfg.FromName))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
