package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

const resetSubject = "Reset your Expense Tracker password"

var resetHTML = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset your password. Your reset code is:</p>
  <p style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
  <p><a href="{{.Link}}">Reset your password</a></p>
  <p>The code expires in {{.Minutes}} minutes. If you did not request a reset, ignore this email.</p>
</body>
</html>`))

type resetData struct {
	Name    string
	Code    string
	Link    string
	Minutes int
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type PasswordResetMailer struct {
	from     string
	fromName string
	timeout  time.Duration
	codeTTL  time.Duration
	sender   sender
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
	CodeTTL  time.Duration
}

// NewPasswordResetMailer returns nil when SMTP is not configured.
func NewPasswordResetMailer(cfg Config) *PasswordResetMailer {
	host := strings.TrimSpace(cfg.Host)
	if host == "" || strings.TrimSpace(cfg.From) == "" {
		return nil
	}
	dialer := gomail.NewDialer(host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	return &PasswordResetMailer{
		from:     strings.TrimSpace(cfg.From),
		fromName: cfg.FromName,
		timeout:  cfg.Timeout,
		codeTTL:  cfg.CodeTTL,
		sender:   dialer,
	}
}

// SendPasswordReset delivers the code and link. It gives up when ctx is done
// or the configured timeout passes, whichever comes first.
func (m *PasswordResetMailer) SendPasswordReset(ctx context.Context, email, name, code, link string) error {
	if m == nil || m.sender == nil {
		return errors.New("mailer not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.buildMessage(email, name, code, link)
	if err != nil {
		return err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	result := make(chan error, 1)
	go func() {
		result <- m.sender.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send password reset: %w", ctx.Err())
	case err := <-result:
		if err != nil {
			return fmt.Errorf("send password reset: %w", err)
		}
		return nil
	}
}

func (m *PasswordResetMailer) buildMessage(email, name, code, link string) (*gomail.Message, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("recipient is empty")
	}
	if name == "" {
		name = email
	}
	minutes := int(math.Ceil(m.codeTTL.Minutes()))

	var html bytes.Buffer
	if err := resetHTML.Execute(&html, resetData{Name: name, Code: code, Link: link, Minutes: minutes}); err != nil {
		return nil, fmt.Errorf("render reset email: %w", err)
	}
	text := fmt.Sprintf("Hello %s,\n\nYour password reset code is: %s\n\nReset your password: %s\n\n"+
		"The code expires in %d minutes. If you did not request a reset, ignore this email.\n",
		name, code, link, minutes)

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.from, m.fromName))
	msg.SetHeader("To", msg.FormatAddress(email, name))
	msg.SetHeader("Subject", resetSubject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html.String())
	return msg, nil
}
