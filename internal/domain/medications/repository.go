package medications

import "context"

type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Medication, error)
	// ListOwners: representantes con al menos un medicamento, ordenados.
	ListOwners(ctx context.Context) ([]string, error)
}

// PosologyRepository devuelve cada Posology con sus Phases cargadas.
// Create devuelve ErrConflict si ya existe la fila (medicationID, patientID).
type PosologyRepository interface {
	Create(ctx context.Context, p Posology) error
	Update(ctx context.Context, p Posology) error
	Delete(ctx context.Context, medicationID, patientID string) error
	Get(ctx context.Context, medicationID, patientID string) (Posology, error)
	ListByMedication(ctx context.Context, medicationID string) ([]Posology, error)
	ListByPatient(ctx context.Context, patientID string) ([]Posology, error)
	ReplacePhases(ctx context.Context, posologyID string, phases []Phase) error
	DeleteByMedication(ctx context.Context, medicationID string) error
}
