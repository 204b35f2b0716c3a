package smtp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMailService records sends and can be told to fail or block.
type mockMailService struct {
	mu         sync.Mutex
	configured bool
	sendErr    error
	block      chan struct{}
	sent       []string
}

func (m *mockMailService) IsConfigured(_ context.Context) bool { return m.configured }

func (m *mockMailService) SendMail(ctx context.Context, to []string, subject, _ string) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to[0]+"|"+subject)
	return m.sendErr
}

func (m *mockMailService) sentMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestOutbox_DeliversInBackground(t *testing.T) {
	mail := &mockMailService{configured: true}
	o := NewOutbox(mail, time.Second)

	o.Enqueue("alice@example.com", "Welcome", "hi")
	require.NoError(t, o.Close(context.Background()))

	assert.Equal(t, []string{"alice@example.com|Welcome"}, mail.sentMessages())
}

func TestOutbox_EnqueueDoesNotBlock(t *testing.T) {
	mail := &mockMailService{configured: true, block: make(chan struct{})}
	o := NewOutbox(mail, time.Minute)

	done := make(chan struct{})
	go func() {
		o.Enqueue("alice@example.com", "Welcome", "hi")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on delivery")
	}

	close(mail.block)
	require.NoError(t, o.Close(context.Background()))
}

func TestOutbox_FailureIsSwallowed(t *testing.T) {
	mail := &mockMailService{configured: true, sendErr: errors.New("550 mailbox unavailable")}
	o := NewOutbox(mail, time.Second)

	o.Enqueue("alice@example.com", "Welcome", "hi")
	assert.NoError(t, o.Close(context.Background()))
	assert.Len(t, mail.sentMessages(), 1)
}

func TestOutbox_SkipsWhenNotConfigured(t *testing.T) {
	mail := &mockMailService{configured: false}
	o := NewOutbox(mail, time.Second)

	o.Enqueue("alice@example.com", "Welcome", "hi")
	require.NoError(t, o.Close(context.Background()))
	assert.Empty(t, mail.sentMessages())
}

func TestOutbox_DropsAfterClose(t *testing.T) {
	mail := &mockMailService{configured: true}
	o := NewOutbox(mail, time.Second)
	require.NoError(t, o.Close(context.Background()))

	o.Enqueue("alice@example.com", "Welcome", "hi")
	require.NoError(t, o.Close(context.Background()))
	assert.Empty(t, mail.sentMessages())
}

func TestOutbox_CloseHonoursContext(t *testing.T) {
	mail := &mockMailService{configured: true, block: make(chan struct{})}
	defer close(mail.block)
	o := NewOutbox(mail, time.Minute)
	o.Enqueue("alice@example.com", "Welcome", "hi")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Close(ctx), context.DeadlineExceeded)
}
