package patients

import "time"

// Sex del paciente.
// @Enum male, female, other, unknown
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexOther   Sex = "other"
	SexUnknown Sex = "unknown"
)

func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther, SexUnknown:
		return true
	default:
		return false
	}
}

// EmergencyContact es opcional; Phone se guarda en E.164.
type EmergencyContact struct {
	Name     string
	Phone    string
	Relation string
}

// Patient es la persona cuidada. Pertenece a un representante (OwnerUserID).
type Patient struct {
	ID          string
	OwnerUserID string

	Name      string
	BirthDate *time.Time
	Sex       Sex

	HealthNotes string
	Allergies   string

	EmergencyContact EmergencyContact

	CreatedAt time.Time
	UpdatedAt time.Time
}
