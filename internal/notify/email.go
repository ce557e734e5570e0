// Package notify delivers best-effort email notifications for loan events.
package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ledgerbank/ledger-service/internal/config"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether SMTP delivery is configured
func (s *Sender) Enabled() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SenderEmail != ""
}

// LoanGranted notifies the user that a loan was credited to their account
func (s *Sender) LoanGranted(username, to string, amount, newDebt decimal.Decimal) {
	if !s.Enabled() || to == "" {
		return
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"A loan of %s has been credited to your account.\n"+
			"Transaction time: %s\n"+
			"Your outstanding debt is now %s.\n"+
			"\nBest regards,\nLedger Service",
		username, amount, time.Now().Format("2006-01-02 15:04:05"), newDebt,
	)
	s.send(to, "Loan Granted", body)
}

// LoanRepaid notifies the user that a loan payment was applied
func (s *Sender) LoanRepaid(username, to string, amount, remainingDebt decimal.Decimal) {
	if !s.Enabled() || to == "" {
		return
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your loan payment of %s has been applied.\n"+
			"Transaction time: %s\n"+
			"Your remaining debt is %s.\n"+
			"\nBest regards,\nLedger Service",
		username, amount, time.Now().Format("2006-01-02 15:04:05"), remainingDebt,
	)
	s.send(to, "Loan Payment Received", body)
}

func (s *Sender) send(to, subject, body string) {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return
	}

	s.logger.Infof("Email sent to %s: %s", to, subject)
}
