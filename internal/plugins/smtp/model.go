// Package smtp provides outbound transactional email for Gatehouse. The mail
// account comes from the environment (MAIL_*). Request handlers never send
// directly: they enqueue on the Outbox, which delivers in the background so a
// mail failure can't undo or fail the operation that triggered it.
package smtp

import (
	"time"

	"github.com/keyxmakerx/gatehouse/internal/config"
)

// Encryption modes for the SMTP connection.
const (
	EncryptionStartTLS = "starttls"
	EncryptionSSL      = "ssl"
	EncryptionNone     = "none"
)

// Settings is the SMTP account used for sending. Built from config.MailConfig.
type Settings struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	Encryption  string
}

// SettingsFromConfig maps the mail section of the app config.
func SettingsFromConfig(cfg config.MailConfig) Settings {
	return Settings{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		Encryption:  cfg.Encryption,
	}
}

// Mail represents an email message to be sent.
type Mail struct {
	To      []string
	Subject string
	Body    string
	Date    time.Time
}
