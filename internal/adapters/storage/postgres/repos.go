package postgres

import (
	"deja/internal/domain/accessgrants"
	"deja/internal/domain/caregivers"
	"deja/internal/domain/medications"
	"deja/internal/domain/patients"
	"deja/internal/domain/prescriptions"
	"deja/internal/domain/settings"
	"deja/internal/domain/stock"
)

var (
	_ patients.Repository            = (*PatientsRepo)(nil)
	_ accessgrants.Repository        = (*AccessGrantsRepo)(nil)
	_ caregivers.CaregiverRepository = (*CaregiversRepo)(nil)
	_ caregivers.ScheduleRepository  = (*SchedulesRepo)(nil)
	_ medications.Repository         = (*MedicationsRepo)(nil)
	_ medications.PosologyRepository = (*PosologiesRepo)(nil)
	_ stock.Repository               = (*MovementsRepo)(nil)
	_ settings.Repository            = (*SettingsRepo)(nil)
	_ prescriptions.Repository       = (*PrescriptionsRepo)(nil)
)
