package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

type MovementStatus string

const (
	MovementActive MovementStatus = "active"
	MovementVoided MovementStatus = "voided"
)

// Movement es una entrada del libro de stock. Nunca se edita la cantidad:
// una corrección es anular (void) y registrar otra.
type Movement struct {
	ID           string
	OwnerUserID  string // dueño del medicamento
	MedicationID string

	Direction Direction
	Quantity  decimal.Decimal // siempre > 0; el signo lo da Direction
	Date      time.Time
	Reason    string

	UnitPrice    *decimal.Decimal
	Installments *int

	Status      MovementStatus
	ActorUserID string // quien registró (owner o co-cuidador con stock:write)

	VoidedAt   *time.Time
	VoidedBy   string
	VoidReason string

	CreatedAt time.Time
}

func (m Movement) Active() bool {
	return m.Status != MovementVoided
}

// Filter para listar movimientos. Limit 0 => sin límite.
type Filter struct {
	Direction  Direction
	From       *time.Time
	To         *time.Time
	Query      string // busca en Reason
	Limit      int
	ActiveOnly bool
}

const MaxListLimit = 200

type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

type Thresholds struct {
	CriticalDays int
	LowDays      int
}

var DefaultThresholds = Thresholds{CriticalDays: 3, LowDays: 7}

// Status es el estado derivado de un medicamento: nada de esto se persiste.
type Status struct {
	MedicationID     string
	MedicationName   string
	BoxQuantity      decimal.Decimal
	Stock            decimal.Decimal
	Negative         bool
	DailyConsumption decimal.Decimal
	DaysRemaining    *int // nil => sin estimación (consumo <= 0)
	RunOutDate       *time.Time
	Level            Level
}

type ReplenishmentItem struct {
	Status
	TargetDays     int
	SuggestedUnits decimal.Decimal
	SuggestedBoxes int64
}
