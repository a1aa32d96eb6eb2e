package actions

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"

	"github.com/bctelemetry/bctb/internal/store"
)

// SMTPSender is the wire seam: the dispatcher composes the message, the
// sender moves the bytes. The default implementation is stdlib net/smtp;
// tests substitute a recorder.
type SMTPSender interface {
	Send(addr string, secure bool, auth smtp.Auth, from string, to []string, msg []byte) error
}

type netSMTPSender struct{}

// Send delivers over plain SMTP with opportunistic STARTTLS, or over an
// implicit-TLS connection when secure is set (the 465-style transport).
func (netSMTPSender) Send(addr string, secure bool, auth smtp.Auth, from string, to []string, msg []byte) error {
	if !secure {
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// sendSMTPEmail delivers the notification over plain SMTP. The password is
// read from SMTP_PASSWORD at send time (config value is the fallback);
// recipients come from the action override or the configured default list.
func (d *Dispatcher) sendSMTPEmail(ctx context.Context, req store.RequestedAction, agentName string) error {
	cfg, ok := d.actionConfig(store.ActionEmailSMTP)
	if !ok || cfg.Host == "" || cfg.Port == 0 {
		return &Error{Type: store.ActionEmailSMTP, Message: "SMTP host/port not configured (agents.actions.email-smtp)"}
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients = cfg.Recipients
	}
	if len(recipients) == 0 {
		return &Error{Type: store.ActionEmailSMTP, Message: "no recipients: neither the action nor the config names any"}
	}

	password := os.Getenv("SMTP_PASSWORD")
	if password == "" {
		password = cfg.Password
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	if from == "" {
		return &Error{Type: store.ActionEmailSMTP, Message: "no from address configured"}
	}

	subject := fmt.Sprintf("%s %s", severityEmoji(req.Severity), req.Title)
	msg := buildMailMessage(from, recipients, subject, req.Message, agentName)

	var auth smtp.Auth
	if cfg.User != "" && password != "" {
		auth = smtp.PlainAuth("", cfg.User, password, cfg.Host)
	}

	// net/smtp has no context hook; honor cancellation before the blocking
	// send rather than mid-flight.
	if err := ctx.Err(); err != nil {
		return &Error{Type: store.ActionEmailSMTP, Message: "cancelled", Err: err}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := d.smtp.Send(addr, cfg.Secure, auth, from, recipients, msg); err != nil {
		return &Error{Type: store.ActionEmailSMTP, Message: "send failed", Err: err}
	}
	return nil
}

func buildMailMessage(from string, to []string, subject, body, agentName string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	fmt.Fprintf(&b, "\r\n\r\n-- \nSent by monitoring agent %q\r\n", agentName)
	return []byte(b.String())
}

// sanitizeHeader strips CR/LF so action titles cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
