package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"deja/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

const medicationColumns = `
	id, owner_user_id,
	name, dosage_amount, dosage_unit, form, route,
	box_quantity, instructions,
	created_at, updated_at`

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (`+medicationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		m.ID, m.OwnerUserID,
		m.Name, m.DosageAmount, m.DosageUnit, m.Form, m.Route,
		m.BoxQuantity, m.Instructions,
		m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			dosage_amount = $3,
			dosage_unit = $4,
			form = $5,
			route = $6,
			box_quantity = $7,
			instructions = $8,
			updated_at = $9
		WHERE id = $1
	`,
		m.ID,
		m.Name, m.DosageAmount, m.DosageUnit, m.Form, m.Route,
		m.BoxQuantity, m.Instructions,
		m.UpdatedAt,
	)
	return affectedOrNotFound(res, err, medications.ErrNotFound)
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	return affectedOrNotFound(res, err, medications.ErrNotFound)
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, medications.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)
	m, err := scanMedication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, err
}

func (r *MedicationsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MedicationsRepo) ListOwners(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT owner_user_id FROM medications ORDER BY owner_user_id`)
}

func scanMedication(s scanner) (medications.Medication, error) {
	var m medications.Medication
	err := s.Scan(
		&m.ID, &m.OwnerUserID,
		&m.Name, &m.DosageAmount, &m.DosageUnit, &m.Form, &m.Route,
		&m.BoxQuantity, &m.Instructions,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// PosologiesRepo guarda la fila medicamento-paciente y sus fases en
// posology_phases, ordenadas por position.
type PosologiesRepo struct {
	db *sql.DB
}

func NewPosologiesRepo(db *sql.DB) *PosologiesRepo {
	return &PosologiesRepo{db: db}
}

const posologyColumns = `
	id, owner_user_id, medication_id, patient_id,
	frequency, administration_times, half_dose, custom_frequency,
	units_per_dose, as_needed,
	treatment_type, start_date, end_date,
	tapering, prescription_id,
	created_at, updated_at`

func (r *PosologiesRepo) Create(ctx context.Context, p medications.Posology) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posologies (`+posologyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		p.ID, p.OwnerUserID, p.MedicationID, p.PatientID,
		string(p.Frequency), nonNil(p.AdministrationTimes), p.HalfDose, p.CustomFrequency,
		p.UnitsPerDose, p.AsNeeded,
		string(p.TreatmentType), toNullTime(p.StartDate), toNullTime(p.EndDate),
		p.Tapering, p.PrescriptionID,
		p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return medications.ErrConflict
	}
	return err
}

// Update no toca las fases: esas cambian solo con ReplacePhases.
func (r *PosologiesRepo) Update(ctx context.Context, p medications.Posology) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posologies
		SET
			frequency = $3,
			administration_times = $4,
			half_dose = $5,
			custom_frequency = $6,
			units_per_dose = $7,
			as_needed = $8,
			treatment_type = $9,
			start_date = $10,
			end_date = $11,
			tapering = $12,
			prescription_id = $13,
			updated_at = $14
		WHERE medication_id = $1 AND patient_id = $2
	`,
		p.MedicationID, p.PatientID,
		string(p.Frequency), nonNil(p.AdministrationTimes), p.HalfDose, p.CustomFrequency,
		p.UnitsPerDose, p.AsNeeded,
		string(p.TreatmentType), toNullTime(p.StartDate), toNullTime(p.EndDate),
		p.Tapering, p.PrescriptionID,
		p.UpdatedAt,
	)
	return affectedOrNotFound(res, err, medications.ErrNotFound)
}

func (r *PosologiesRepo) Delete(ctx context.Context, medicationID, patientID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM posologies WHERE medication_id = $1 AND patient_id = $2
	`, medicationID, patientID)
	return affectedOrNotFound(res, err, medications.ErrNotFound)
}

func (r *PosologiesRepo) Get(ctx context.Context, medicationID, patientID string) (medications.Posology, error) {
	items, err := r.list(ctx, `
		SELECT `+posologyColumns+`
		FROM posologies
		WHERE medication_id = $1 AND patient_id = $2
	`, medicationID, patientID)
	if err != nil {
		return medications.Posology{}, err
	}
	if len(items) == 0 {
		return medications.Posology{}, medications.ErrNotFound
	}
	return items[0], nil
}

func (r *PosologiesRepo) ListByMedication(ctx context.Context, medicationID string) ([]medications.Posology, error) {
	return r.list(ctx, `
		SELECT `+posologyColumns+`
		FROM posologies
		WHERE medication_id = $1
		ORDER BY created_at ASC
	`, medicationID)
}

func (r *PosologiesRepo) ListByPatient(ctx context.Context, patientID string) ([]medications.Posology, error) {
	return r.list(ctx, `
		SELECT `+posologyColumns+`
		FROM posologies
		WHERE patient_id = $1
		ORDER BY created_at ASC
	`, patientID)
}

// ReplacePhases borra e inserta en una transacción.
func (r *PosologiesRepo) ReplacePhases(ctx context.Context, posologyID string, phases []medications.Phase) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM posologies WHERE id = $1)`, posologyID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return medications.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM posology_phases WHERE posology_id = $1`, posologyID); err != nil {
		return err
	}
	for i, ph := range phases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posology_phases (
				posology_id, position, kind, dosage, frequency,
				start_date, end_date, instructions
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			posologyID, i, string(ph.Kind), ph.Dosage, string(ph.Frequency),
			ph.StartDate, toNullTime(ph.EndDate), ph.Instructions,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PosologiesRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posologies WHERE medication_id = $1`, medicationID)
	return err
}

func (r *PosologiesRepo) list(ctx context.Context, query string, args ...any) ([]medications.Posology, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Posology, 0)
	for rows.Next() {
		p, err := scanPosology(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadPhases(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PosologiesRepo) loadPhases(ctx context.Context, items []medications.Posology) error {
	tapering := make([]string, 0)
	idx := make(map[string]int, len(items))
	for i, p := range items {
		idx[p.ID] = i
		if p.Tapering {
			tapering = append(tapering, p.ID)
		}
	}
	if len(tapering) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT posology_id, kind, dosage, frequency, start_date, end_date, instructions
		FROM posology_phases
		WHERE posology_id = ANY($1)
		ORDER BY posology_id, position
	`, tapering)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var posologyID, kind, freq string
		var ph medications.Phase
		var end sql.NullTime
		if err := rows.Scan(&posologyID, &kind, &ph.Dosage, &freq, &ph.StartDate, &end, &ph.Instructions); err != nil {
			return err
		}
		ph.Kind = medications.PhaseKind(kind)
		ph.Frequency = medications.Frequency(freq)
		ph.StartDate = utcDay(ph.StartDate)
		ph.EndDate = fromNullDate(end)

		i := idx[posologyID]
		items[i].Phases = append(items[i].Phases, ph)
	}
	return rows.Err()
}

func scanPosology(s scanner) (medications.Posology, error) {
	var p medications.Posology
	var freq, treatment string
	var times []string
	var start, end sql.NullTime

	if err := s.Scan(
		&p.ID, &p.OwnerUserID, &p.MedicationID, &p.PatientID,
		&freq, array(&times), &p.HalfDose, &p.CustomFrequency,
		&p.UnitsPerDose, &p.AsNeeded,
		&treatment, &start, &end,
		&p.Tapering, &p.PrescriptionID,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return medications.Posology{}, err
	}

	p.Frequency = medications.Frequency(freq)
	p.AdministrationTimes = times
	p.TreatmentType = medications.TreatmentType(treatment)
	p.StartDate = fromNullDate(start)
	p.EndDate = fromNullDate(end)
	return p, nil
}
