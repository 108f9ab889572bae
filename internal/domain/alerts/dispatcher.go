package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"deja/internal/domain/settings"
	"deja/internal/platform/metrics"
	"deja/internal/ports/notify"
)

// OwnerLister lista los representantes a notificar.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// Dispatcher envía un resumen de alertas por cada canal elegido en la configuración.
type Dispatcher struct {
	alerts   *Service
	settings SettingsSource
	senders  map[notify.Channel]notify.Sender
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewDispatcher(alerts *Service, cfg SettingsSource, senders map[notify.Channel]notify.Sender, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{alerts: alerts, settings: cfg, senders: senders, metrics: m, log: log}
}

type Report struct {
	OwnerUserID string
	Alerts      int
	Sent        []notify.Channel
	Failed      map[notify.Channel]error
	// Err: el representante no se pudo procesar (derivar alertas o leer su configuración).
	Err error
}

// Dispatch deriva las alertas del representante y las envía. Sin alertas no envía nada.
// Un canal que falla no impide los demás.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerUserID string) (Report, error) {
	rep := Report{OwnerUserID: ownerUserID, Failed: map[notify.Channel]error{}}

	items, err := d.alerts.Derive(ctx, ownerUserID)
	if err != nil {
		return rep, err
	}
	rep.Alerts = len(items)
	if len(items) == 0 {
		return rep, nil
	}

	cfg, err := d.settings.Get(ctx, ownerUserID)
	if err != nil {
		return rep, err
	}

	subject, body := Digest(items)
	for _, ch := range cfg.Channels {
		sender, ok := d.senders[ch]
		if !ok {
			d.log.Warn().Str("channel", string(ch)).Msg("no sender configured for channel")
			continue
		}

		msg := notify.Message{To: recipient(cfg, ch), Subject: subject, Body: body}
		if err := sender.Send(ctx, msg); err != nil {
			rep.Failed[ch] = err
			d.metrics.AlertDispatched(string(ch), false)
			d.log.Error().Err(err).Str("owner_user_id", ownerUserID).Str("channel", string(ch)).Msg("alert dispatch failed")
			continue
		}
		rep.Sent = append(rep.Sent, ch)
		d.metrics.AlertDispatched(string(ch), true)
	}

	d.log.Info().
		Str("owner_user_id", ownerUserID).
		Int("alerts", rep.Alerts).
		Int("sent", len(rep.Sent)).
		Int("failed", len(rep.Failed)).
		Msg("alerts dispatched")
	return rep, nil
}

// DispatchAll recorre la unión de representantes de todas las fuentes
// (medicamentos, recetas, configuraciones guardadas). Un representante que
// falla queda con Report.Err y no corta el recorrido.
func (d *Dispatcher) DispatchAll(ctx context.Context, sources ...OwnerLister) ([]Report, error) {
	ids, err := unionOwners(ctx, sources)
	if err != nil {
		return nil, err
	}
	out := make([]Report, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rep, err := d.Dispatch(ctx, id)
		if err != nil {
			rep.Err = err
			d.log.Error().Err(err).Str("owner_user_id", id).Msg("alert dispatch skipped owner")
		}
		out = append(out, rep)
	}
	return out, nil
}

func unionOwners(ctx context.Context, sources []OwnerLister) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, src := range sources {
		ids, err := src.ListOwners(ctx)
		if err != nil {
			return nil, fmt.Errorf("list owners: %w", err)
		}
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func Digest(items []Alert) (string, string) {
	critical := 0
	for _, a := range items {
		if a.Severity == SeverityCritical {
			critical++
		}
	}
	subject := fmt.Sprintf("Deja: %d alertas (%d críticas)", len(items), critical)

	var b strings.Builder
	for _, a := range items {
		fmt.Fprintf(&b, "[%s] %s\n", a.Severity, a.Message)
	}
	return subject, b.String()
}

func recipient(cfg settings.Settings, ch notify.Channel) string {
	switch ch {
	case notify.ChannelEmail:
		return cfg.ContactEmail
	case notify.ChannelSMS:
		return cfg.ContactPhone
	default:
		return cfg.OwnerUserID
	}
}
