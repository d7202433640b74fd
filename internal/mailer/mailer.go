package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// Mailer delivers one-time codes to users. Implementations must be safe for
// concurrent use.
type Mailer interface {
	SendRegistrationOTP(ctx context.Context, to, code string) error
	SendPasswordResetOTP(ctx context.Context, to, code string) error
}

// Config holds SMTP transport configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends OTP emails over SMTP. Port 465 uses implicit TLS; other ports
// use STARTTLS when the server offers it.
type SMTP struct {
	cfg         Config
	dialTimeout time.Duration
}

// NewSMTP creates an SMTP mailer.
func NewSMTP(cfg Config) *SMTP {
	return &SMTP{cfg: cfg, dialTimeout: 10 * time.Second}
}

// SendRegistrationOTP emails a signup verification code.
func (m *SMTP) SendRegistrationOTP(ctx context.Context, to, code string) error {
	return m.send(ctx, to, "Verify your email", "Confirm your registration", code)
}

// SendPasswordResetOTP emails a password reset code.
func (m *SMTP) SendPasswordResetOTP(ctx context.Context, to, code string) error {
	return m.send(ctx, to, "Reset your password", "Reset your password", code)
}

func (m *SMTP) send(ctx context.Context, to, subject, heading, code string) error {
	msg := buildMessage(m.cfg.From, to, subject, otpEmailBody(heading, code))

	done := make(chan error, 1)
	go func() {
		done <- m.deliver(to, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", to, ctx.Err())
	}
}

func (m *SMTP) deliver(to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.Port == 465 {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: m.dialTimeout}, "tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	} else {
		conn, err = net.DialTimeout("tcp", addr, m.dialTimeout)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if m.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		htmlBody + "\r\n")
}
