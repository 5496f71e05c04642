package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"tripmate-backend/internal/config"
)

// Outcome classifies a send attempt. Transient failures are logged by the
// caller and never retried inline; permanent failures are dropped.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTransient
	OutcomePermanent
)

// Mailer sends a single notification message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) Outcome
}

const sendTimeout = 10 * time.Second

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) configured() bool {
	return m.cfg.Host != "" && m.cfg.Port != 0 && m.cfg.From != ""
}

// Send delivers one message within a 10-second budget. Network failures are
// transient; configuration and protocol rejections are permanent.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) Outcome {
	if !m.configured() {
		return OutcomePermanent
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		to, from, subject, body,
	))

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(sendCtx, "tcp", addr)
	if err != nil {
		return OutcomeTransient
	}
	if deadline, ok := sendCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return OutcomeTransient
	}
	defer client.Close()

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return OutcomePermanent
			}
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return OutcomePermanent
	}
	if err := client.Rcpt(to); err != nil {
		return OutcomePermanent
	}
	wc, err := client.Data()
	if err != nil {
		return OutcomeTransient
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return OutcomeTransient
	}
	if err := wc.Close(); err != nil {
		return OutcomeTransient
	}
	_ = client.Quit()
	return OutcomeOK
}
