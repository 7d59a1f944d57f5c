// Package mailer submits campaign email to a configured SMTP relay.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	smtp "github.com/emersion/go-smtp"
)

// TLS modes for the relay connection.
const (
	TLSNone     = "none"
	TLSStartTLS = "starttls"
	TLSImplicit = "tls"
)

// Message is one outbound email batch: a single body delivered to every
// recipient in one SMTP transaction.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer sends a message as a single batch.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// DeliveryError represents a delivery error with type information
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// IsTemporaryError checks if the error is temporary
func IsTemporaryError(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true // Assume temporary if unknown
}

// Config contains relay connection settings.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLS       string // none, starttls, tls
	LocalName string
	Timeout   time.Duration
}

// SMTPMailer submits messages to a single SMTP relay host.
type SMTPMailer struct {
	cfg    Config
	logger *slog.Logger
}

// NewSMTPMailer creates a new relay mailer
func NewSMTPMailer(cfg Config, logger *slog.Logger) *SMTPMailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send delivers the message to all recipients in one transaction. The whole
// batch succeeds or fails as a unit; the returned error is always a
// *DeliveryError carrying the temporary/permanent classification.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return &DeliveryError{
			Temporary: false,
			Message:   "no recipients",
		}
	}

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("connection failed to %s: %v", addr, err),
		}
	}
	defer conn.Close()

	// Bound the whole transaction
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	client, err := m.newClient(conn)
	if err != nil {
		return m.categorizeError(err, "handshake")
	}
	defer client.Close()

	if err := client.Hello(m.cfg.LocalName); err != nil {
		return m.categorizeError(err, "HELO")
	}

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return m.categorizeError(err, "AUTH")
		}
	}

	if err := client.Mail(msg.From, nil); err != nil {
		return m.categorizeError(err, "MAIL FROM")
	}

	for _, recipient := range msg.To {
		if err := client.Rcpt(recipient, nil); err != nil {
			return m.categorizeError(err, fmt.Sprintf("RCPT TO %s", recipient))
		}
	}

	wc, err := client.Data()
	if err != nil {
		return m.categorizeError(err, "DATA")
	}

	if _, err := wc.Write(buildMessage(msg, m.cfg.LocalName)); err != nil {
		wc.Close()
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("failed to write message data: %v", err),
		}
	}

	if err := wc.Close(); err != nil {
		return m.categorizeError(err, "DATA close")
	}

	client.Quit()

	m.logger.Info("message delivered",
		"relay", addr,
		"from", msg.From,
		"recipients", len(msg.To),
	)

	return nil
}

// newClient wraps the connection according to the configured TLS mode.
func (m *SMTPMailer) newClient(conn net.Conn) (*smtp.Client, error) {
	switch m.cfg.TLS {
	case TLSImplicit:
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
		return smtp.NewClient(tlsConn), nil
	case TLSStartTLS:
		return smtp.NewClientStartTLS(conn, &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
	default:
		return smtp.NewClient(conn), nil
	}
}

// categorizeError determines if an SMTP error is temporary or permanent
func (m *SMTPMailer) categorizeError(err error, stage string) *DeliveryError {
	msg := fmt.Sprintf("%s failed: %v", stage, err)

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		// 5xx codes are permanent, 4xx temporary
		return &DeliveryError{
			Temporary: smtpErr.Code < 500,
			Message:   msg,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DeliveryError{
			Temporary: true,
			Message:   msg,
		}
	}

	// Assume temporary by default
	return &DeliveryError{
		Temporary: true,
		Message:   msg,
	}
}
