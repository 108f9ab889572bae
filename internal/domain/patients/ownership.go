package patients

import "context"

// OwnerOf expone el representante de un paciente.
// Lo consumen accessgrants, caregivers, medications y prescriptions sin importar este paquete.
func (s *Service) OwnerOf(ctx context.Context, patientID string) (string, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return "", err
	}
	return p.OwnerUserID, nil
}

// DeleteGuard bloquea el borrado mientras otro módulo referencie al paciente
// (posologías, recetas).
type DeleteGuard interface {
	PatientInUse(ctx context.Context, patientID string) (bool, error)
}

// Detacher limpia referencias blandas al paciente antes de borrarlo
// (turnos de cuidadores).
type Detacher interface {
	DetachPatient(ctx context.Context, patientID string) error
}
