package patients

import "context"

type Repository interface {
	Create(ctx context.Context, p Patient) error
	Update(ctx context.Context, p Patient) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Patient, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Patient, error)
}
