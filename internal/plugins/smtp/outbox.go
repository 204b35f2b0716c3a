package smtp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/keyxmakerx/gatehouse/internal/metrics"
)

// Outbox delivers mail in the background. Enqueue never blocks on the
// network and never reports delivery errors to the caller; failures are
// logged and counted.
type Outbox struct {
	mail    MailService
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewOutbox wraps a MailService. timeout bounds each send.
func NewOutbox(mail MailService, timeout time.Duration) *Outbox {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Outbox{mail: mail, timeout: timeout}
}

// Enqueue schedules one message. After Close it drops the message.
func (o *Outbox) Enqueue(to, subject, body string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		slog.Warn("outbox closed, dropping mail", slog.String("subject", subject))
		metrics.RecordMail(metrics.MailSkipped)
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		o.deliver(to, subject, body)
	}()
}

// deliver runs on its own goroutine with a fresh context: the request that
// enqueued the message has usually finished by now.
func (o *Outbox) deliver(to, subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if !o.mail.IsConfigured(ctx) {
		slog.Debug("mail not configured, skipping", slog.String("subject", subject))
		metrics.RecordMail(metrics.MailSkipped)
		return
	}

	if err := o.mail.SendMail(ctx, []string{to}, subject, body); err != nil {
		slog.Error("sending mail failed",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.Any("error", err),
		)
		metrics.RecordMail(metrics.MailFailed)
		return
	}

	slog.Info("mail sent", slog.String("to", to), slog.String("subject", subject))
	metrics.RecordMail(metrics.MailSent)
}

// Close stops accepting mail and waits for in-flight sends, or until ctx
// is done.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
