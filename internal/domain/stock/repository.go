package stock

import "context"

// Repository es append-only salvo por la anulación (Update de estado).
type Repository interface {
	Create(ctx context.Context, m Movement) error
	Update(ctx context.Context, m Movement) error
	GetByID(ctx context.Context, id string) (Movement, error)
	// List ordena por Date desc y luego CreatedAt desc.
	List(ctx context.Context, medicationID string, f Filter) ([]Movement, error)
	DeleteByMedication(ctx context.Context, medicationID string) error
}
