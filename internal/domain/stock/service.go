package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deja/internal/domain/accessgrants"
	"deja/internal/domain/medications"
	"deja/internal/platform/dates"
	"deja/internal/platform/metrics"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

const DefaultTargetDays = 30

// Catalog es lo que stock necesita de medications.
type Catalog interface {
	GetByID(ctx context.Context, id string) (medications.Medication, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error)
	ListPosologiesByMedication(ctx context.Context, medicationID string) ([]medications.Posology, error)
}

// ThresholdSource devuelve los umbrales configurados del representante.
type ThresholdSource interface {
	StockThresholds(ctx context.Context, ownerUserID string) (critical, low int, err error)
}

type Authorizer interface {
	Authorize(ctx context.Context, ownerUserID, patientID, userID string, scope accessgrants.Scope) error
}

type Service struct {
	repo       Repository
	catalog    Catalog
	thresholds ThresholdSource
	grants     Authorizer
	metrics    *metrics.Metrics

	log zerolog.Logger
	now func() time.Time
}

func NewService(repo Repository, catalog Catalog, thresholds ThresholdSource, grants Authorizer, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		catalog:    catalog,
		thresholds: thresholds,
		grants:     grants,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

type MovementInput struct {
	Direction    string
	Quantity     *decimal.Decimal
	Boxes        *decimal.Decimal // alternativa a Quantity: Boxes × BoxQuantity
	Date         *time.Time       // nil => hoy
	Reason       string
	UnitPrice    *decimal.Decimal
	Installments *int
}

// RegisterMovement agrega una entrada al libro. Puede hacerlo el dueño del
// medicamento o un co-cuidador con stock:write sobre algún paciente que lo toma.
func (s *Service) RegisterMovement(ctx context.Context, userID, medicationID string, in MovementInput) (Movement, error) {
	med, err := s.medication(ctx, medicationID)
	if err != nil {
		return Movement{}, err
	}
	if err := s.authorizeWrite(ctx, med, userID); err != nil {
		return Movement{}, err
	}

	dir := Direction(strings.ToLower(strings.TrimSpace(in.Direction)))
	if !dir.Valid() {
		return Movement{}, fmt.Errorf("%w: direction must be in or out", ErrInvalidInput)
	}

	qty, err := quantity(in, med.BoxQuantity)
	if err != nil {
		return Movement{}, err
	}

	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return Movement{}, fmt.Errorf("%w: unit_price must not be negative", ErrInvalidInput)
	}
	if in.Installments != nil && *in.Installments < 1 {
		return Movement{}, fmt.Errorf("%w: installments must be at least 1", ErrInvalidInput)
	}

	now := s.now()
	date := dates.Day(now)
	if in.Date != nil {
		date = dates.Day(*in.Date)
	}

	m := Movement{
		ID:           uuid.NewString(),
		OwnerUserID:  med.OwnerUserID,
		MedicationID: med.ID,
		Direction:    dir,
		Quantity:     qty,
		Date:         date,
		Reason:       strings.TrimSpace(in.Reason),
		UnitPrice:    in.UnitPrice,
		Installments: in.Installments,
		Status:       MovementActive,
		ActorUserID:  userID,
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Movement{}, err
	}

	s.metrics.MovementRegistered(string(dir))
	s.log.Info().
		Str("medication_id", med.ID).
		Str("direction", string(dir)).
		Str("quantity", qty.String()).
		Str("actor", userID).
		Msg("stock movement registered")
	return m, nil
}

// VoidMovement excluye el movimiento del cálculo sin borrarlo. Solo el dueño.
// Anular dos veces devuelve el movimiento tal cual.
func (s *Service) VoidMovement(ctx context.Context, userID, medicationID, movementID, reason string) (Movement, error) {
	med, err := s.medication(ctx, medicationID)
	if err != nil {
		return Movement{}, err
	}
	if med.OwnerUserID != userID {
		return Movement{}, ErrForbidden
	}

	m, err := s.repo.GetByID(ctx, movementID)
	if err != nil {
		return Movement{}, err
	}
	if m.MedicationID != med.ID {
		return Movement{}, ErrNotFound
	}
	if !m.Active() {
		return m, nil
	}

	now := s.now()
	m.Status = MovementVoided
	m.VoidedAt = &now
	m.VoidedBy = userID
	m.VoidReason = strings.TrimSpace(reason)
	if err := s.repo.Update(ctx, m); err != nil {
		return Movement{}, err
	}

	s.log.Info().Str("movement_id", m.ID).Str("medication_id", med.ID).Msg("stock movement voided")
	return m, nil
}

func (s *Service) ListMovements(ctx context.Context, userID, medicationID string, f Filter) ([]Movement, error) {
	med, err := s.medication(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, med, userID); err != nil {
		return nil, err
	}

	if f.Direction != "" && !f.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction must be in or out", ErrInvalidInput)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: to before from", ErrInvalidInput)
	}
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.List(ctx, med.ID, f)
}

// StatusOf calcula stock, días restantes y nivel de un medicamento del usuario.
func (s *Service) StatusOf(ctx context.Context, userID, medicationID string) (Status, error) {
	med, err := s.medication(ctx, medicationID)
	if err != nil {
		return Status{}, err
	}
	if err := s.authorizeRead(ctx, med, userID); err != nil {
		return Status{}, err
	}
	th, err := s.Thresholds(ctx, med.OwnerUserID)
	if err != nil {
		return Status{}, err
	}
	return s.evaluate(ctx, med, th)
}

// ListStatuses evalúa todos los medicamentos del representante.
// Orden: critical, warning, ok; dentro de cada nivel, menos días primero.
func (s *Service) ListStatuses(ctx context.Context, ownerUserID string) ([]Status, error) {
	meds, err := s.catalog.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	th, err := s.Thresholds(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(meds))
	for _, med := range meds {
		st, err := s.evaluate(ctx, med, th)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sortStatuses(out)
	return out, nil
}

// Replenishment: items en warning o critical con cajas sugeridas para cubrir targetDays.
func (s *Service) Replenishment(ctx context.Context, ownerUserID string, targetDays int) ([]ReplenishmentItem, error) {
	if targetDays <= 0 {
		targetDays = DefaultTargetDays
	}
	statuses, err := s.ListStatuses(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}

	out := []ReplenishmentItem{}
	for _, st := range statuses {
		if st.Level == LevelOK {
			continue
		}
		units, boxes := SuggestBoxes(st, st.BoxQuantity, targetDays)
		out = append(out, ReplenishmentItem{
			Status:         st,
			TargetDays:     targetDays,
			SuggestedUnits: units,
			SuggestedBoxes: boxes,
		})
	}
	return out, nil
}

// Thresholds lee los umbrales del representante (crea la configuración si no existe).
func (s *Service) Thresholds(ctx context.Context, ownerUserID string) (Thresholds, error) {
	if s.thresholds == nil {
		return DefaultThresholds, nil
	}
	critical, low, err := s.thresholds.StockThresholds(ctx, ownerUserID)
	if err != nil {
		return Thresholds{}, fmt.Errorf("load thresholds: %w", err)
	}
	return Thresholds{CriticalDays: critical, LowDays: low}, nil
}

// DeleteByMedication se engancha al borrado de medicamentos.
func (s *Service) DeleteByMedication(ctx context.Context, medicationID string) error {
	return s.repo.DeleteByMedication(ctx, medicationID)
}

func (s *Service) evaluate(ctx context.Context, med medications.Medication, th Thresholds) (Status, error) {
	movements, err := s.repo.List(ctx, med.ID, Filter{ActiveOnly: true})
	if err != nil {
		return Status{}, err
	}
	posologies, err := s.catalog.ListPosologiesByMedication(ctx, med.ID)
	if err != nil {
		return Status{}, err
	}

	today := dates.Day(s.now())
	st := Evaluate(CurrentStock(movements), medications.TotalDailyConsumption(posologies, today), th, today)
	st.MedicationID = med.ID
	st.MedicationName = med.Name
	st.BoxQuantity = med.BoxQuantity
	return st, nil
}

func (s *Service) medication(ctx context.Context, id string) (medications.Medication, error) {
	med, err := s.catalog.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, medications.ErrNotFound) {
		return medications.Medication{}, ErrNotFound
	}
	return med, err
}

func (s *Service) authorizeWrite(ctx context.Context, med medications.Medication, userID string) error {
	return s.authorize(ctx, med, userID, accessgrants.ScopeStockWrite)
}

// authorizeRead: quien puede ver la medicación del paciente ve su stock.
func (s *Service) authorizeRead(ctx context.Context, med medications.Medication, userID string) error {
	return s.authorize(ctx, med, userID, accessgrants.ScopeMedicationsRead, accessgrants.ScopeStockWrite)
}

// authorize acepta al dueño o a un grant activo con alguno de los scopes
// sobre cualquier paciente que toma el medicamento.
func (s *Service) authorize(ctx context.Context, med medications.Medication, userID string, scopes ...accessgrants.Scope) error {
	if med.OwnerUserID == userID {
		return nil
	}
	if s.grants == nil {
		return ErrForbidden
	}
	posologies, err := s.catalog.ListPosologiesByMedication(ctx, med.ID)
	if err != nil {
		return err
	}
	for _, p := range posologies {
		for _, scope := range scopes {
			if s.grants.Authorize(ctx, med.OwnerUserID, p.PatientID, userID, scope) == nil {
				return nil
			}
		}
	}
	return ErrForbidden
}

func quantity(in MovementInput, boxQuantity decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case in.Quantity != nil && in.Boxes != nil:
		return decimal.Zero, fmt.Errorf("%w: send quantity or boxes, not both", ErrInvalidInput)
	case in.Boxes != nil:
		if !in.Boxes.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: boxes must be positive", ErrInvalidInput)
		}
		if !boxQuantity.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: medication has no box quantity", ErrInvalidInput)
		}
		return in.Boxes.Mul(boxQuantity), nil
	case in.Quantity != nil:
		if !in.Quantity.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
		}
		return *in.Quantity, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: quantity is required", ErrInvalidInput)
	}
}

func levelRank(l Level) int {
	switch l {
	case LevelCritical:
		return 0
	case LevelWarning:
		return 1
	default:
		return 2
	}
}

func sortStatuses(items []Status) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if levelRank(a.Level) != levelRank(b.Level) {
			return levelRank(a.Level) < levelRank(b.Level)
		}
		switch {
		case a.DaysRemaining == nil && b.DaysRemaining == nil:
		case a.DaysRemaining == nil:
			return false
		case b.DaysRemaining == nil:
			return true
		case *a.DaysRemaining != *b.DaysRemaining:
			return *a.DaysRemaining < *b.DaysRemaining
		}
		return a.MedicationName < b.MedicationName
	})
}
