package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	smtp "github.com/emersion/go-smtp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSMTPMailerDefaults(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "relay.example.com", Port: 587}, testLogger())
	if m.cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", m.cfg.Timeout)
	}
	if m.cfg.LocalName != "localhost" {
		t.Errorf("expected default local name localhost, got %s", m.cfg.LocalName)
	}
}

func TestSendNoRecipients(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "relay.example.com", Port: 587}, testLogger())

	err := m.Send(context.Background(), &Message{From: "noreply@example.com", Subject: "hi"})
	if err == nil {
		t.Fatal("Send() with no recipients should fail")
	}
	if IsTemporaryError(err) {
		t.Error("no-recipients error should be permanent")
	}
}

func TestDeliveryError(t *testing.T) {
	tempErr := &DeliveryError{Temporary: true, Message: "connection refused"}
	if tempErr.Error() != "connection refused" {
		t.Errorf("Error() = %q", tempErr.Error())
	}

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"temporary delivery error", &DeliveryError{Temporary: true}, true},
		{"permanent delivery error", &DeliveryError{Temporary: false}, false},
		{"unknown error", errors.New("unknown"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTemporaryError(tc.err); got != tc.expected {
				t.Errorf("IsTemporaryError() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "relay.example.com", Port: 587}, testLogger())

	tests := []struct {
		name          string
		err           error
		wantTemporary bool
	}{
		{
			name:          "550 user unknown",
			err:           &smtp.SMTPError{Code: 550, Message: "user unknown"},
			wantTemporary: false,
		},
		{
			name:          "552 mailbox full",
			err:           &smtp.SMTPError{Code: 552, Message: "mailbox full"},
			wantTemporary: false,
		},
		{
			name:          "421 service unavailable",
			err:           &smtp.SMTPError{Code: 421, Message: "service not available"},
			wantTemporary: true,
		},
		{
			name:          "450 mailbox busy",
			err:           &smtp.SMTPError{Code: 450, Message: "mailbox busy"},
			wantTemporary: true,
		},
		{
			name:          "plain error assumed temporary",
			err:           errors.New("broken pipe"),
			wantTemporary: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			de := m.categorizeError(tc.err, "RCPT TO")
			if de.Temporary != tc.wantTemporary {
				t.Errorf("categorizeError().Temporary = %v, want %v", de.Temporary, tc.wantTemporary)
			}
			if !strings.Contains(de.Message, "RCPT TO") {
				t.Errorf("error message %q missing stage", de.Message)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	msg := &Message{
		From:    "noreply@example.com",
		To:      []string{"alice@example.com", "bob@example.com"},
		Subject: "Weekly digest",
		Body:    "line one\nline two",
	}

	data := string(buildMessage(msg, "mail.example.com"))

	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: alice@example.com, bob@example.com\r\n",
		"Subject: Weekly digest\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"line one\r\nline two",
	} {
		if !strings.Contains(data, want) {
			t.Errorf("message missing %q\n%s", want, data)
		}
	}

	header, _, ok := strings.Cut(data, "\r\n\r\n")
	if !ok {
		t.Fatal("message has no header/body separator")
	}
	if !strings.Contains(header, "Message-ID: <") || !strings.Contains(header, "@mail.example.com>") {
		t.Error("message missing Message-ID header")
	}
	if !strings.Contains(header, "Date: ") {
		t.Error("message missing Date header")
	}
}

func TestBuildMessageSanitizesSubject(t *testing.T) {
	msg := &Message{
		From:    "noreply@example.com",
		To:      []string{"alice@example.com"},
		Subject: "evil\r\nBcc: spy@example.com",
		Body:    "x",
	}

	data := string(buildMessage(msg, "mail.example.com"))
	if strings.Contains(data, "Bcc:") {
		t.Error("header injection through subject not prevented")
	}
}

// --- integration against an in-process SMTP server ---

type receivedMessage struct {
	From string
	To   []string
	Data string
}

type testBackend struct {
	mu         sync.Mutex
	received   []receivedMessage
	rejectRcpt bool
}

func (b *testBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &testSession{backend: b}, nil
}

func (b *testBackend) messages() []receivedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]receivedMessage(nil), b.received...)
}

type testSession struct {
	backend *testBackend
	from    string
	to      []string
}

func (s *testSession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *testSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	if s.backend.rejectRcpt {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "user unknown"}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	s.backend.received = append(s.backend.received, receivedMessage{
		From: s.from,
		To:   append([]string(nil), s.to...),
		Data: string(data),
	})
	s.backend.mu.Unlock()
	return nil
}

func (s *testSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *testSession) Logout() error { return nil }

func startTestServer(t *testing.T, backend *testBackend) int {
	t.Helper()

	srv := smtp.NewServer(backend)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	return l.Addr().(*net.TCPAddr).Port
}

func TestSendDeliversBatch(t *testing.T) {
	backend := &testBackend{}
	port := startTestServer(t, backend)

	m := NewSMTPMailer(Config{
		Host:    "127.0.0.1",
		Port:    port,
		TLS:     TLSNone,
		Timeout: 5 * time.Second,
	}, testLogger())

	msg := &Message{
		From:    "noreply@example.com",
		To:      []string{"alice@example.com", "bob@example.com"},
		Subject: "Weekly digest",
		Body:    "Hello!",
	}
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msgs := backend.messages()
	if len(msgs) != 1 {
		t.Fatalf("server received %d messages, want 1 batch", len(msgs))
	}
	got := msgs[0]
	if got.From != "noreply@example.com" {
		t.Errorf("envelope from = %q", got.From)
	}
	if len(got.To) != 2 {
		t.Errorf("envelope recipients = %v, want 2", got.To)
	}
	if !strings.Contains(got.Data, "Subject: Weekly digest") {
		t.Errorf("message data missing subject:\n%s", got.Data)
	}
}

func TestSendRejectedRecipientIsPermanent(t *testing.T) {
	backend := &testBackend{rejectRcpt: true}
	port := startTestServer(t, backend)

	m := NewSMTPMailer(Config{
		Host:    "127.0.0.1",
		Port:    port,
		TLS:     TLSNone,
		Timeout: 5 * time.Second,
	}, testLogger())

	err := m.Send(context.Background(), &Message{
		From:    "noreply@example.com",
		To:      []string{"ghost@example.com"},
		Subject: "hi",
		Body:    "x",
	})
	if err == nil {
		t.Fatal("Send() to rejected recipient should fail")
	}
	if IsTemporaryError(err) {
		t.Errorf("550 rejection should be permanent, got %v", err)
	}
	if len(backend.messages()) != 0 {
		t.Error("no message should have been accepted")
	}
}

func TestSendConnectionRefusedIsTemporary(t *testing.T) {
	// Grab a free port and close it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	m := NewSMTPMailer(Config{
		Host:    "127.0.0.1",
		Port:    port,
		TLS:     TLSNone,
		Timeout: 2 * time.Second,
	}, testLogger())

	err = m.Send(context.Background(), &Message{
		From:    "noreply@example.com",
		To:      []string{"alice@example.com"},
		Subject: "hi",
		Body:    "x",
	})
	if err == nil {
		t.Fatal("Send() to closed port should fail")
	}
	if !IsTemporaryError(err) {
		t.Errorf("connection failure should be temporary, got %v", err)
	}
}
