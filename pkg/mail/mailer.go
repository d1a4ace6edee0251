// Package mail delivers outbound email over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ErrSMTPDisabled is returned by Send when email.smtp.enabled is false.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

const defaultSMTPTimeout = 10 * time.Second

// Message is an outbound email. When HTMLBody is set the message is sent as
// multipart/alternative with Body as the plain-text part.
type Message struct {
	From     string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer sends email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings configures the SMTP relay. UseTLS dials implicit TLS
// (port 465); otherwise STARTTLS is negotiated when the server offers it.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

// smtpSession is the subset of *smtp.Client used once a connection is
// established and authenticated.
type smtpSession interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type dialFunc func(ctx context.Context, cfg SMTPSettings) (smtpSession, error)

type smtpMailer struct {
	cfg  SMTPSettings
	dial dialFunc
	now  func() time.Time
}

// NewSMTPMailer validates cfg and returns a relay-backed Mailer. A disabled
// configuration is accepted; its Send always returns ErrSMTPDisabled.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("smtp: host is required when enabled")
		}
		if cfg.Port <= 0 {
			return nil, errors.New("smtp: port is required when enabled")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &smtpMailer{cfg: cfg, dial: dialRelay, now: time.Now}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}

	from, to, err := m.envelope(msg)
	if err != nil {
		return err
	}
	payload, err := compose(from, to, msg, m.now())
	if err != nil {
		return err
	}

	session, err := m.dial(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := session.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := session.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: finish data: %w", err)
	}
	return session.Quit()
}

// envelope resolves the sender and the de-duplicated recipient list.
func (m *smtpMailer) envelope(msg Message) (*mail.Address, []string, error) {
	raw := strings.TrimSpace(msg.From)
	if raw == "" {
		raw = strings.TrimSpace(m.cfg.From)
	}
	if raw == "" {
		return nil, nil, errors.New("smtp: sender address is required")
	}
	from, err := mail.ParseAddress(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}

	to := uniqueAddresses(msg.To)
	if len(to) == 0 {
		return nil, nil, errors.New("smtp: at least one recipient is required")
	}
	for i, rcpt := range to {
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return nil, nil, fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
		to[i] = addr.Address
	}
	return from, to, nil
}

// uniqueAddresses trims addresses and drops blanks and case-insensitive repeats.
func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]bool, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}

// dialRelay connects, upgrades to TLS and authenticates against the relay.
func dialRelay(ctx context.Context, cfg SMTPSettings) (smtpSession, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	netDialer := &net.Dialer{Timeout: cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: netDialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: handshake: %w", err)
	}

	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}

	if strings.TrimSpace(cfg.Username) != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			_ = client.Close()
			return nil, errors.New("smtp: server does not support AUTH")
		}
		if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp: auth: %w", err)
		}
	}
	return client, nil
}
