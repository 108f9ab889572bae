package alerts

import "time"

type Kind string

const (
	KindStockCritical        Kind = "stock_critical"
	KindStockLow             Kind = "stock_low"
	KindPrescriptionExpiring Kind = "prescription_expiring"
	KindPrescriptionExpired  Kind = "prescription_expired"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert es derivada: se calcula en cada lectura, no se persiste.
type Alert struct {
	Kind     Kind
	Severity Severity

	MedicationID   string
	PrescriptionID string
	PatientID      string

	Message string
	// DueDate: fecha de quiebre de stock o de vencimiento de la receta.
	DueDate *time.Time
}
