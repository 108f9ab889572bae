package prescriptions

import "context"

// Repository guarda metadata y links; los bytes van al blob store.
type Repository interface {
	Create(ctx context.Context, p Prescription) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Prescription, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Prescription, error)
	ListByPatient(ctx context.Context, patientID string) ([]Prescription, error)
	ListOwners(ctx context.Context) ([]string, error)
}
