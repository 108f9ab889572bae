package caregivers

import "context"

type CaregiverRepository interface {
	Create(ctx context.Context, c Caregiver) error
	Update(ctx context.Context, c Caregiver) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Caregiver, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Caregiver, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, s Schedule) error
	Update(ctx context.Context, s Schedule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Schedule, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Schedule, error)
	ListByPatient(ctx context.Context, patientID string) ([]Schedule, error)
	DeleteByCaregiver(ctx context.Context, caregiverID string) error
}
