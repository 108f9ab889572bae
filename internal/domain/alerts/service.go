package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"deja/internal/domain/prescriptions"
	"deja/internal/domain/settings"
	"deja/internal/domain/stock"
	"deja/internal/platform/dates"
)

type StockSource interface {
	ListStatuses(ctx context.Context, ownerUserID string) ([]stock.Status, error)
}

type PrescriptionSource interface {
	List(ctx context.Context, userID, patientID string) ([]prescriptions.Prescription, error)
}

type SettingsSource interface {
	Get(ctx context.Context, ownerUserID string) (settings.Settings, error)
}

type Service struct {
	stock         StockSource
	prescriptions PrescriptionSource
	settings      SettingsSource

	now func() time.Time
}

func NewService(st StockSource, rx PrescriptionSource, cfg SettingsSource) *Service {
	return &Service{stock: st, prescriptions: rx, settings: cfg, now: time.Now}
}

// Derive calcula las alertas vigentes del representante para hoy.
// Orden: critical primero, luego por fecha más próxima.
func (s *Service) Derive(ctx context.Context, ownerUserID string) ([]Alert, error) {
	cfg, err := s.settings.Get(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.stock.ListStatuses(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("stock statuses: %w", err)
	}
	rx, err := s.prescriptions.List(ctx, ownerUserID, "")
	if err != nil {
		return nil, fmt.Errorf("prescriptions: %w", err)
	}

	today := dates.Day(s.now())
	out := append(StockAlerts(statuses), PrescriptionAlerts(rx, today, cfg.PrescriptionLeadDays)...)
	sortAlerts(out)
	return out, nil
}

func StockAlerts(statuses []stock.Status) []Alert {
	out := []Alert{}
	for _, st := range statuses {
		var a Alert
		switch st.Level {
		case stock.LevelCritical:
			a = Alert{Kind: KindStockCritical, Severity: SeverityCritical}
		case stock.LevelWarning:
			a = Alert{Kind: KindStockLow, Severity: SeverityWarning}
		default:
			continue
		}
		a.MedicationID = st.MedicationID
		a.DueDate = st.RunOutDate
		switch {
		case st.Negative:
			a.Message = fmt.Sprintf("%s: stock negativo (%s)", st.MedicationName, st.Stock.String())
		case st.DaysRemaining != nil:
			a.Message = fmt.Sprintf("%s: %d días de stock", st.MedicationName, *st.DaysRemaining)
		default:
			a.Message = fmt.Sprintf("%s: stock bajo", st.MedicationName)
		}
		out = append(out, a)
	}
	return out
}

func PrescriptionAlerts(items []prescriptions.Prescription, today time.Time, leadDays int) []Alert {
	out := []Alert{}
	for _, p := range items {
		due := p.ExpiryDate
		switch {
		case p.Expired(today):
			out = append(out, Alert{
				Kind:           KindPrescriptionExpired,
				Severity:       SeverityCritical,
				PrescriptionID: p.ID,
				PatientID:      p.PatientID,
				Message:        fmt.Sprintf("receta %s vencida el %s", p.Type, due.Format(dates.Layout)),
				DueDate:        &due,
			})
		case p.ExpiresWithin(today, leadDays):
			out = append(out, Alert{
				Kind:           KindPrescriptionExpiring,
				Severity:       SeverityWarning,
				PrescriptionID: p.ID,
				PatientID:      p.PatientID,
				Message:        fmt.Sprintf("receta %s vence el %s", p.Type, due.Format(dates.Layout)),
				DueDate:        &due,
			})
		}
	}
	return out
}

func sortAlerts(items []Alert) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Severity != b.Severity {
			return a.Severity == SeverityCritical
		}
		switch {
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		default:
			return a.DueDate.Before(*b.DueDate)
		}
	})
}
