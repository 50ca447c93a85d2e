package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	delay time.Duration
	err   error
	sent  []*gomail.Message
}

func (s *fakeSender) DialAndSend(msgs ...*gomail.Message) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msgs...)
	return nil
}

func newTestMailer(s sender, timeout time.Duration) *PasswordResetMailer {
	return &PasswordResetMailer{
		from:     "noreply@example.com",
		fromName: "Expense Tracker",
		timeout:  timeout,
		codeTTL:  10 * time.Minute,
		sender:   s,
	}
}

func TestSendPasswordReset(t *testing.T) {
	s := &fakeSender{}
	m := newTestMailer(s, time.Second)

	if err := m.SendPasswordReset(context.Background(), "user@example.com", "Ann", "123456", "https://app/auth/restore-password?code=123456"); err != nil {
		t.Fatalf("SendPasswordReset error: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.sent))
	}

	msg := s.sent[0]
	if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != resetSubject {
		t.Fatalf("unexpected subject %v", got)
	}
	if got := msg.GetHeader("To"); len(got) != 1 || !strings.Contains(got[0], "user@example.com") {
		t.Fatalf("unexpected recipient %v", got)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo error: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"123456", "text/plain", "text/html", "10 minutes"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected message to contain %q", want)
		}
	}
}

func TestSendPasswordResetFailure(t *testing.T) {
	boom := errors.New("connection refused")
	m := newTestMailer(&fakeSender{err: boom}, time.Second)

	if err := m.SendPasswordReset(context.Background(), "user@example.com", "", "123456", "link"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestSendPasswordResetTimeout(t *testing.T) {
	m := newTestMailer(&fakeSender{delay: 200 * time.Millisecond}, 10*time.Millisecond)

	err := m.SendPasswordReset(context.Background(), "user@example.com", "", "123456", "link")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSendPasswordResetCancelledContext(t *testing.T) {
	s := &fakeSender{}
	m := newTestMailer(s, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.SendPasswordReset(ctx, "user@example.com", "", "123456", "link"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(s.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestNewPasswordResetMailerRequiresHost(t *testing.T) {
	if m := NewPasswordResetMailer(Config{From: "noreply@example.com"}); m != nil {
		t.Fatalf("expected nil mailer without host")
	}
	var m *PasswordResetMailer
	if err := m.SendPasswordReset(context.Background(), "a@b.c", "", "1", "l"); err == nil {
		t.Fatalf("expected error from nil mailer")
	}
}
