package accessgrants

import "time"

type Scope string

const (
	ScopePatientRead     Scope = "patient:read"
	ScopeMedicationsRead Scope = "medications:read"
	ScopeSchedulesRead   Scope = "schedules:read"
	ScopeStockWrite      Scope = "stock:write"
)

// DefaultScopes aplica cuando la invitación no especifica scopes.
var DefaultScopes = []Scope{ScopePatientRead, ScopeMedicationsRead}

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant comparte un paciente del representante (owner) con otro usuario (co-cuidador).
type Grant struct {
	ID string

	PatientID string

	OwnerUserID   string
	GranteeUserID string

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
