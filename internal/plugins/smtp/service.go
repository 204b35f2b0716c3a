package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strconv"
	"strings"
	"time"
)

// dialTimeout bounds the TCP/TLS connect to the mail server.
const dialTimeout = 10 * time.Second

// MailService sends email. The Outbox is the only caller in request paths.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// smtpService implements MailService over net/smtp.
type smtpService struct {
	settings Settings
}

// NewSMTPService creates a mail service for the given account.
func NewSMTPService(settings Settings) MailService {
	if settings.Port <= 0 {
		settings.Port = 587
	}
	if settings.Encryption == "" {
		settings.Encryption = EncryptionStartTLS
	}
	return &smtpService{settings: settings}
}

// IsConfigured returns true if a host and sender address are set.
func (s *smtpService) IsConfigured(_ context.Context) bool {
	return s.settings.Host != "" && s.settings.FromAddress != ""
}

// SendMail delivers one plain-text message. The context deadline bounds the
// whole exchange, not just the dial.
func (s *smtpService) SendMail(ctx context.Context, to []string, subject, body string) error {
	if !s.IsConfigured(ctx) {
		return fmt.Errorf("smtp is not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := buildMessage(s.settings, Mail{To: to, Subject: subject, Body: body, Date: time.Now().UTC()})
	addr := net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := gosmtp.NewClient(conn, s.settings.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if s.settings.Encryption == EncryptionStartTLS {
		tlsConfig := &tls.Config{ServerName: s.settings.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}

	if s.settings.Username != "" {
		auth := gosmtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	return sendMessage(client, s.settings.FromAddress, to, msg)
}

// dial opens the connection: implicit TLS for "ssl", plain TCP otherwise
// (STARTTLS upgrades it afterwards).
func (s *smtpService) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	if s.settings.Encryption == EncryptionSSL {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.settings.Host, MinVersion: tls.VersionTLS12},
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s (SSL): %w", addr, err)
		}
		return conn, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return conn, nil
}

// sendMessage handles MAIL FROM, RCPT TO, DATA for an existing SMTP client.
func sendMessage(client *gosmtp.Client, from string, to []string, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", recipient, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}

// buildMessage renders an RFC 5322 plain-text message with CRLF line endings.
// The subject is Q-encoded so non-ASCII survives transport.
func buildMessage(settings Settings, m Mail) string {
	from := mail.Address{Name: settings.FromName, Address: settings.FromAddress}

	var msg strings.Builder
	msg.WriteString("From: " + from.String() + "\r\n")
	msg.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", m.Subject) + "\r\n")
	msg.WriteString("Date: " + m.Date.Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return msg.String()
}
