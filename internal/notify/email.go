// Package notify sends best-effort owner notifications over SMTP.
package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/config"
)

// Sender handles sending emails via SMTP. Deliveries run in their own
// goroutine and never fail the operation that triggered them.
type Sender struct {
	cfg *config.Config
	log *logrus.Logger
}

// NewSender creates a new email sender.
func NewSender(cfg *config.Config, log *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// TransferReceipt mails a receipt for a committed transfer.
func (s *Sender) TransferReceipt(to, username string, amount decimal.Decimal, fromMasked, toMasked string) {
	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"A transfer of %s has been completed.\n"+
			"From card: %s\n"+
			"To card: %s\n"+
			"Transfer time: %s\n"+
			"\nBest regards,\nCard Service",
		username, amount, fromMasked, toMasked, time.Now().Format("2006-01-02 15:04:05"),
	)
	go s.send(to, "Transfer Receipt", body)
}

// CardBlocked mails a notice that the owner's card was blocked.
func (s *Sender) CardBlocked(to, username, masked, reason string) {
	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your card %s has been blocked at your request.\n",
		username, masked,
	)
	if reason != "" {
		body += fmt.Sprintf("Reason: %s\n", reason)
	}
	body += "\nBest regards,\nCard Service"
	go s.send(to, "Card Blocked", body)
}

func (s *Sender) send(to, subject, body string) {
	if to == "" || s.cfg.SMTPHost == "" {
		return
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.log.Errorf("Failed to send email to %s: %v", to, err)
		return
	}
	s.log.Infof("Email sent to %s: %s", to, subject)
}
