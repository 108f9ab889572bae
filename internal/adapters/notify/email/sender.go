package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"deja/internal/ports/notify"
)

var ErrDisabled = errors.New("email sender disabled")

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender manda alertas por SMTP.
type Sender struct {
	cfg  Config
	dial dialer
}

func New(cfg Config) (*Sender, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.From) == "" {
			return nil, errors.New("email: host and from are required")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseTLS
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	return &Sender{cfg: cfg, dial: d}, nil
}

func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	m, err := buildMessage(s.cfg.From, msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.dial.DialAndSend(m) }()

	wait := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return context.DeadlineExceeded
	}
}

func buildMessage(from string, msg notify.Message) (*gomail.Message, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, errors.New("email: recipient is required")
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return nil, errors.New("email: subject is required")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", msg.Body)
	return m, nil
}
