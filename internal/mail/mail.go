// Package mail sends transactional emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
)

var (
	ErrNoRecipient   = errors.New("mail: recipient is required")
	ErrNotConfigured = errors.New("mail: smtp is not configured")
)

// Security modes for the SMTP connection.
const (
	SecureSSL      = "ssl"
	SecureSTARTTLS = "starttls"
	SecureNone     = "none"
)

// Message is a multipart/alternative email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when a host is configured and a logging
// sender otherwise.
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	if !cfg.Enabled() {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, logger)
}

// SMTPSender delivers mail through one SMTP connection per message.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	fromName string
	secure   string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSMTPSender builds a sender from configuration. An unknown security mode
// is derived from the port: 465 is implicit TLS, anything else STARTTLS.
func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	if from == "" {
		from = "no-reply@nonotalk.local"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		fromName: cfg.FromName,
		secure:   resolveSecure(cfg.Secure, cfg.Port),
		timeout:  timeout,
		logger:   logger.Named("mail"),
	}
}

func resolveSecure(mode string, port int) string {
	switch mode = strings.ToLower(strings.TrimSpace(mode)); mode {
	case SecureSSL, SecureSTARTTLS, SecureNone:
		return mode
	}
	if port == 465 {
		return SecureSSL
	}
	return SecureSTARTTLS
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	body, err := Compose((&netmail.Address{Name: s.fromName, Address: s.from}).String(), msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	s.logger.Debug("smtp connecting", zap.String("addr", addr), zap.String("secure", s.secure), zap.String("from", s.from))

	client, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.secure == SecureSTARTTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.user != "" && s.password != "" {
		if err := client.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	} else {
		s.logger.Warn("smtp credentials missing, sending without authentication")
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: s.timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.secure == SecureSSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	return client, nil
}

// Compose renders msg as an RFC 5322 message with plain text and HTML parts.
func Compose(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	for _, part := range []struct{ kind, body string }{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	} {
		if part.body == "" {
			continue
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", part.kind+"; charset=utf-8")
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", part.kind, err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("encode %s part: %w", part.kind, err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode %s part: %w", part.kind, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), nil
}

// LogSender records messages instead of sending them. It is used when no
// SMTP host is configured and reports every message as undelivered.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	s.logger.Info("smtp not configured, email not sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return ErrNotConfigured
}
