package push

import (
	"context"

	"github.com/rs/zerolog"

	"deja/internal/ports/notify"
)

// Sender registra la notificación en el log. Los clientes móviles la
// leen por GET /alerts; no hay proveedor de push configurado.
type Sender struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Sender {
	return &Sender{log: log.With().Str("channel", string(notify.ChannelPush)).Logger()}
}

func (s *Sender) Send(_ context.Context, msg notify.Message) error {
	s.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("push notification")
	return nil
}
