package settings

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deja/internal/platform/metrics"
	"deja/internal/platform/phone"
	"deja/internal/ports/notify"
)

var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	repo        Repository
	metrics     *metrics.Metrics
	phoneRegion string

	log zerolog.Logger
	now func() time.Time
}

func NewService(repo Repository, m *metrics.Metrics, phoneRegion string, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		metrics:     m,
		phoneRegion: phoneRegion,
		log:         log,
		now:         time.Now,
	}
}

// Get nunca devuelve vacío: la primera lectura crea la fila con defaults.
func (s *Service) Get(ctx context.Context, ownerUserID string) (Settings, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Settings{}, ErrInvalidInput
	}

	st, created, err := s.repo.GetOrCreate(ctx, Defaults(ownerUserID, s.now()))
	if err != nil {
		return Settings{}, fmt.Errorf("get or create settings: %w", err)
	}
	if created {
		s.metrics.SettingsCreated()
		s.log.Info().Str("owner_user_id", ownerUserID).Msg("alert settings created with defaults")
	}
	return st, nil
}

// StockThresholds para el módulo de stock.
func (s *Service) StockThresholds(ctx context.Context, ownerUserID string) (int, int, error) {
	st, err := s.Get(ctx, ownerUserID)
	if err != nil {
		return 0, 0, err
	}
	return st.CriticalStockDays, st.LowStockDays, nil
}

type Input struct {
	CriticalStockDays     int
	LowStockDays          int
	DelayToleranceMinutes int
	PrescriptionLeadDays  int
	Channels              []string
	ContactEmail          string
	ContactPhone          string
}

func (s *Service) Update(ctx context.Context, ownerUserID string, in Input) (Settings, error) {
	st, err := s.Get(ctx, ownerUserID)
	if err != nil {
		return Settings{}, err
	}

	switch {
	case in.CriticalStockDays < 0:
		return Settings{}, fmt.Errorf("%w: critical_stock_days must not be negative", ErrInvalidInput)
	case in.LowStockDays < in.CriticalStockDays:
		return Settings{}, fmt.Errorf("%w: low_stock_days must be >= critical_stock_days", ErrInvalidInput)
	case in.DelayToleranceMinutes < 0:
		return Settings{}, fmt.Errorf("%w: delay_tolerance_minutes must not be negative", ErrInvalidInput)
	case in.PrescriptionLeadDays < 0:
		return Settings{}, fmt.Errorf("%w: prescription_lead_days must not be negative", ErrInvalidInput)
	}

	channels, err := normalizeChannels(in.Channels)
	if err != nil {
		return Settings{}, err
	}

	email := strings.TrimSpace(in.ContactEmail)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: contact_email", ErrInvalidInput)
		}
		email = addr.Address
	}
	tel, err := phone.Normalize(in.ContactPhone, s.phoneRegion)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: contact_phone", ErrInvalidInput)
	}

	for _, ch := range channels {
		if ch == notify.ChannelEmail && email == "" {
			return Settings{}, fmt.Errorf("%w: email channel needs contact_email", ErrInvalidInput)
		}
		if ch == notify.ChannelSMS && tel == "" {
			return Settings{}, fmt.Errorf("%w: sms channel needs contact_phone", ErrInvalidInput)
		}
	}

	st.CriticalStockDays = in.CriticalStockDays
	st.LowStockDays = in.LowStockDays
	st.DelayToleranceMinutes = in.DelayToleranceMinutes
	st.PrescriptionLeadDays = in.PrescriptionLeadDays
	st.Channels = channels
	st.ContactEmail = email
	st.ContactPhone = tel
	st.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// ListOwners: representantes con configuración guardada (para el dispatch por CLI).
func (s *Service) ListOwners(ctx context.Context) ([]string, error) {
	return s.repo.ListOwners(ctx)
}

func normalizeChannels(in []string) ([]notify.Channel, error) {
	seen := map[notify.Channel]bool{}
	out := make([]notify.Channel, 0, len(in))
	for _, raw := range in {
		ch := notify.Channel(strings.ToLower(strings.TrimSpace(raw)))
		if !ch.Valid() {
			return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, raw)
		}
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out, nil
}
