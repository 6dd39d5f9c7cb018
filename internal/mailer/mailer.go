// Package mailer отправляет письма с экспортом через SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"os"
	"strings"
	"time"
)

// Ошибки отправки.
var (
	// ErrInvalidAddress — адрес получателя не разбирается.
	ErrInvalidAddress = errors.New("invalid mail address")

	// ErrSend — SMTP-сервер не принял письмо.
	ErrSend = errors.New("send mail failed")
)

// Mail — одно письмо одному получателю.
type Mail struct {
	FromName string
	From     string
	To       string
	Subject  string
	Body     string
}

// Config — параметры SMTP.
type Config struct {
	Addr     string `yaml:"addr"`
	From     string `yaml:"from"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ConfigFromEnv читает SMTP_ADDR, SMTP_FROM, SMTP_USER, SMTP_PASSWORD.
func ConfigFromEnv() Config {
	cfg := Config{
		Addr: "localhost:25",
		From: "noreply@localhost",
	}
	if v := os.Getenv("SMTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.From = v
	}
	cfg.User = os.Getenv("SMTP_USER")
	cfg.Password = os.Getenv("SMTP_PASSWORD")
	return cfg
}

// Redacted возвращает копию конфигурации со скрытым паролем.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "******"
	}
	return c
}

// sendFunc — сигнатура smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP отправляет письма через SMTP-сервер.
type SMTP struct {
	cfg    Config
	auth   smtp.Auth
	send   sendFunc
	logger *slog.Logger
}

// NewSMTP создаёт отправителя. Без SMTP_USER авторизация не используется.
func NewSMTP(cfg Config, logger *slog.Logger) *SMTP {
	if logger == nil {
		logger = slog.Default()
	}

	var auth smtp.Auth
	if cfg.User != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host)
	}

	return &SMTP{
		cfg:    cfg,
		auth:   auth,
		send:   smtp.SendMail,
		logger: logger,
	}
}

// Send отправляет письмо. ctx проверяется только до начала отправки:
// net/smtp не поддерживает отмену.
func (s *SMTP) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to, err := ParseAddress(m.To)
	if err != nil {
		return err
	}

	from := m.From
	if from == "" {
		from = s.cfg.From
	}

	msg := compose(m, from, to)

	if err := s.send(s.cfg.Addr, s.auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSend, to, err)
	}

	s.logger.Debug("mail sent", "to", to, "subject", m.Subject)
	return nil
}

// ParseAddress проверяет и нормализует адрес получателя.
func ParseAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return addr.Address, nil
}

// compose собирает RFC 5322 сообщение.
func compose(m Mail, from, to string) []byte {
	sender := mail.Address{Name: m.FromName, Address: from}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sender.String())
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}
