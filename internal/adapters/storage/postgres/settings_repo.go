package postgres

import (
	"context"
	"database/sql"

	"deja/internal/domain/settings"
	"deja/internal/ports/notify"
)

type SettingsRepo struct {
	db *sql.DB
}

func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

const settingsColumns = `
	owner_user_id,
	critical_stock_days, low_stock_days,
	delay_tolerance_minutes, prescription_lead_days,
	channels, contact_email, contact_phone,
	created_at, updated_at`

// GetOrCreate se apoya en ON CONFLICT: con lecturas concurrentes solo
// una inserta (RowsAffected == 1) y todas leen la misma fila.
func (r *SettingsRepo) GetOrCreate(ctx context.Context, d settings.Settings) (settings.Settings, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_settings (`+settingsColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (owner_user_id) DO NOTHING
	`,
		d.OwnerUserID,
		d.CriticalStockDays, d.LowStockDays,
		d.DelayToleranceMinutes, d.PrescriptionLeadDays,
		channelsToText(d.Channels), d.ContactEmail, d.ContactPhone,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return settings.Settings{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return settings.Settings{}, false, err
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM alert_settings WHERE owner_user_id = $1`, d.OwnerUserID)

	var s settings.Settings
	var channels []string
	if err := row.Scan(
		&s.OwnerUserID,
		&s.CriticalStockDays, &s.LowStockDays,
		&s.DelayToleranceMinutes, &s.PrescriptionLeadDays,
		array(&channels), &s.ContactEmail, &s.ContactPhone,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return settings.Settings{}, false, err
	}
	s.Channels = make([]notify.Channel, 0, len(channels))
	for _, c := range channels {
		s.Channels = append(s.Channels, notify.Channel(c))
	}
	return s, n == 1, nil
}

func (r *SettingsRepo) Update(ctx context.Context, s settings.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_settings (`+settingsColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (owner_user_id) DO UPDATE SET
			critical_stock_days = EXCLUDED.critical_stock_days,
			low_stock_days = EXCLUDED.low_stock_days,
			delay_tolerance_minutes = EXCLUDED.delay_tolerance_minutes,
			prescription_lead_days = EXCLUDED.prescription_lead_days,
			channels = EXCLUDED.channels,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			updated_at = EXCLUDED.updated_at
	`,
		s.OwnerUserID,
		s.CriticalStockDays, s.LowStockDays,
		s.DelayToleranceMinutes, s.PrescriptionLeadDays,
		channelsToText(s.Channels), s.ContactEmail, s.ContactPhone,
		s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *SettingsRepo) ListOwners(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT owner_user_id FROM alert_settings ORDER BY owner_user_id`)
}

func channelsToText(in []notify.Channel) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		out = append(out, string(c))
	}
	return out
}
