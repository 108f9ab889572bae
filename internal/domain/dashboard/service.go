package dashboard

import (
	"context"

	"deja/internal/domain/alerts"
	"deja/internal/domain/caregivers"
	"deja/internal/domain/medications"
	"deja/internal/domain/patients"
	"deja/internal/domain/stock"
)

const nextAlertsLimit = 5

type (
	PatientLister interface {
		ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error)
	}
	CaregiverSource interface {
		ListCaregivers(ctx context.Context, ownerUserID string) ([]caregivers.Caregiver, error)
		Today(ctx context.Context, ownerUserID string) ([]caregivers.Segment, error)
	}
	MedicationLister interface {
		ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error)
	}
	StockSource interface {
		ListStatuses(ctx context.Context, ownerUserID string) ([]stock.Status, error)
	}
	AlertSource interface {
		Derive(ctx context.Context, ownerUserID string) ([]alerts.Alert, error)
	}
)

type Summary struct {
	Patients    int
	Caregivers  int
	Medications int

	StockOK       int
	StockWarning  int
	StockCritical int

	TodayShifts []caregivers.Segment

	AlertCount int
	NextAlerts []alerts.Alert
}

// Service arma el resumen de la pantalla de inicio de la app móvil.
type Service struct {
	patients    PatientLister
	caregivers  CaregiverSource
	medications MedicationLister
	stock       StockSource
	alerts      AlertSource
}

func NewService(p PatientLister, c CaregiverSource, m MedicationLister, st StockSource, a AlertSource) *Service {
	return &Service{patients: p, caregivers: c, medications: m, stock: st, alerts: a}
}

func (s *Service) Summary(ctx context.Context, ownerUserID string) (Summary, error) {
	var out Summary

	pts, err := s.patients.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}
	out.Patients = len(pts)

	cgs, err := s.caregivers.ListCaregivers(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}
	for _, c := range cgs {
		if c.Active {
			out.Caregivers++
		}
	}

	meds, err := s.medications.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}
	out.Medications = len(meds)

	statuses, err := s.stock.ListStatuses(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}
	for _, st := range statuses {
		switch st.Level {
		case stock.LevelCritical:
			out.StockCritical++
		case stock.LevelWarning:
			out.StockWarning++
		default:
			out.StockOK++
		}
	}

	out.TodayShifts, err = s.caregivers.Today(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}

	items, err := s.alerts.Derive(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}
	out.AlertCount = len(items)
	if len(items) > nextAlertsLimit {
		items = items[:nextAlertsLimit]
	}
	out.NextAlerts = items
	return out, nil
}
