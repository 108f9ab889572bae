package settings

import "context"

type Repository interface {
	// GetOrCreate devuelve la fila del dueño o inserta defaults si no existe.
	// created es true solo para la llamada que efectivamente insertó.
	GetOrCreate(ctx context.Context, defaults Settings) (s Settings, created bool, err error)
	Update(ctx context.Context, s Settings) error
	ListOwners(ctx context.Context) ([]string, error)
}
