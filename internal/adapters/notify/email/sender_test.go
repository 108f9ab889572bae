package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"deja/internal/ports/notify"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func newTestSender(d dialer) *Sender {
	s, _ := New(Config{Enabled: true, Host: "smtp.example.com", Port: 587, From: "alertas@deja.app"})
	s.dial = d
	return s
}

func TestSend(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(d)

	err := s.Send(context.Background(), notify.Message{To: "ana@example.com", Subject: "Estoque crítico", Body: "Losartana: 2 dias"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	var buf bytes.Buffer
	_, err = d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "To: ana@example.com")
	assert.Contains(t, buf.String(), "Losartana: 2 dias")
}

func TestSendErrors(t *testing.T) {
	s := newTestSender(&fakeDialer{err: errors.New("connection refused")})
	err := s.Send(context.Background(), notify.Message{To: "ana@example.com", Subject: "x", Body: "y"})
	assert.ErrorContains(t, err, "connection refused")

	err = s.Send(context.Background(), notify.Message{Subject: "x"})
	assert.Error(t, err, "recipient required")

	disabled, err := New(Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, disabled.Send(context.Background(), notify.Message{To: "a@b.c", Subject: "x"}), ErrDisabled)

	_, err = New(Config{Enabled: true})
	assert.Error(t, err)
}
