package prescriptions

import (
	"time"

	"deja/internal/platform/dates"
)

type Type string

const (
	TypeSimple Type = "simple"
	TypeB      Type = "B"
	TypeC1     Type = "C1"
	TypeC2     Type = "C2"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSimple, TypeB, TypeC1, TypeC2:
		return true
	default:
		return false
	}
}

// ValidityDays: receta simple 180 días, controladas (B, C1, C2) 30.
func (t Type) ValidityDays() int {
	if t == TypeSimple {
		return 180
	}
	return 30
}

func ExpiryFor(t Type, issue time.Time) time.Time {
	return dates.AddDays(dates.Day(issue), t.ValidityDays())
}

type File struct {
	Name        string
	ContentType string
	Size        int64
	Key         string // clave en el blob store
}

// Link asocia la receta a una fila medicamento-paciente.
type Link struct {
	MedicationID string
	PatientID    string
}

type Prescription struct {
	ID          string
	OwnerUserID string
	PatientID   string

	Type       Type
	IssueDate  time.Time
	ExpiryDate time.Time
	Reusable   bool
	Notes      string

	File  File
	Links []Link

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Prescription) Expired(today time.Time) bool {
	return dates.Day(today).After(p.ExpiryDate)
}

// ExpiresWithin: vigente y vence en leadDays o menos.
func (p Prescription) ExpiresWithin(today time.Time, leadDays int) bool {
	if p.Expired(today) {
		return false
	}
	return dates.DaysBetween(today, p.ExpiryDate) <= leadDays
}
