package settings

import (
	"time"

	"deja/internal/ports/notify"
)

// Settings es la configuración de alertas del representante (una por usuario).
type Settings struct {
	OwnerUserID string

	CriticalStockDays     int
	LowStockDays          int
	DelayToleranceMinutes int
	PrescriptionLeadDays  int

	Channels     []notify.Channel
	ContactEmail string
	ContactPhone string // E.164

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	DefaultCriticalStockDays     = 3
	DefaultLowStockDays          = 7
	DefaultDelayToleranceMinutes = 30
	DefaultPrescriptionLeadDays  = 7
)

func Defaults(ownerUserID string, now time.Time) Settings {
	return Settings{
		OwnerUserID:           ownerUserID,
		CriticalStockDays:     DefaultCriticalStockDays,
		LowStockDays:          DefaultLowStockDays,
		DelayToleranceMinutes: DefaultDelayToleranceMinutes,
		PrescriptionLeadDays:  DefaultPrescriptionLeadDays,
		Channels:              []notify.Channel{notify.ChannelPush},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (s Settings) HasChannel(c notify.Channel) bool {
	for _, ch := range s.Channels {
		if ch == c {
			return true
		}
	}
	return false
}
