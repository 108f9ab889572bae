package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deja/internal/platform/httpclient"
	"deja/internal/ports/notify"
)

var ErrDisabled = errors.New("sms sender disabled")

// Sender publica SMS en un gateway HTTP: POST {base}/v1/messages.
type Sender struct {
	client  *httpclient.Client
	from    string
	enabled bool
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func New(client *httpclient.Client, from string, enabled bool) *Sender {
	return &Sender{client: client, from: from, enabled: enabled}
}

func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.enabled {
		return ErrDisabled
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("sms: recipient is required")
	}

	text := strings.TrimSpace(msg.Body)
	if msg.Subject != "" {
		text = strings.TrimSpace(msg.Subject + "\n" + text)
	}

	var resp sendResponse
	if err := s.client.DoJSON(ctx, "POST", "/v1/messages", nil, sendRequest{To: to, From: s.from, Text: text}, &resp); err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	return nil
}
