package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"eventhub/internal/dto"
)

type Config struct {
	Host     string
	Port     string
	From     string
	Password string
	// Inbox receives contact-form messages.
	Inbox string
}

type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// Send delivers one templated message. Failures are returned for logging
// only; nothing upstream retries.
func (m *Mailer) Send(job dto.MailJob) error {
	var to, subject, body string

	switch job.Kind {
	case dto.MailRegistrationConfirmed:
		to = job.To
		subject = fmt.Sprintf("Registration confirmed: %s", job.EventTitle)
		body = fmt.Sprintf(
			"Hi %s!\n\nYour %s ticket for \"%s\" is confirmed.\nSee you there!",
			job.FullName, job.TicketType, job.EventTitle,
		)
	case dto.MailContact:
		to = m.cfg.Inbox
		subject = fmt.Sprintf("Contact form: %s", job.Subject)
		body = fmt.Sprintf("From: %s <%s>\n\n%s", job.FromName, job.FromEmail, job.Body)
	default:
		return fmt.Errorf("unknown mail job kind %q", job.Kind)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, to, subject, body,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("Email sent to %s (kind: %s)", to, job.Kind)
	return nil
}
