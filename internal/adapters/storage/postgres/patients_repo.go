package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"deja/internal/domain/patients"
)

type PatientsRepo struct {
	db *sql.DB
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

const patientColumns = `
	id, owner_user_id,
	name, birth_date, sex,
	health_notes, allergies,
	emergency_name, emergency_phone, emergency_relation,
	created_at, updated_at`

func (r *PatientsRepo) Create(ctx context.Context, p patients.Patient) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID,
		p.OwnerUserID,
		p.Name,
		toNullTime(p.BirthDate),
		string(p.Sex),
		p.HealthNotes,
		p.Allergies,
		p.EmergencyContact.Name,
		p.EmergencyContact.Phone,
		p.EmergencyContact.Relation,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PatientsRepo) Update(ctx context.Context, p patients.Patient) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET
			name = $2,
			birth_date = $3,
			sex = $4,
			health_notes = $5,
			allergies = $6,
			emergency_name = $7,
			emergency_phone = $8,
			emergency_relation = $9,
			updated_at = $10
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		toNullTime(p.BirthDate),
		string(p.Sex),
		p.HealthNotes,
		p.Allergies,
		p.EmergencyContact.Name,
		p.EmergencyContact.Phone,
		p.EmergencyContact.Relation,
		p.UpdatedAt,
	)
	return affectedOrNotFound(res, err, patients.ErrNotFound)
}

func (r *PatientsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return affectedOrNotFound(res, err, patients.ErrNotFound)
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return patients.Patient{}, patients.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return patients.Patient{}, patients.ErrNotFound
	}
	return p, err
}

func (r *PatientsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]patients.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPatient(s scanner) (patients.Patient, error) {
	var p patients.Patient
	var sex string
	var birth sql.NullTime

	if err := s.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&birth,
		&sex,
		&p.HealthNotes,
		&p.Allergies,
		&p.EmergencyContact.Name,
		&p.EmergencyContact.Phone,
		&p.EmergencyContact.Relation,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return patients.Patient{}, err
	}

	p.Sex = patients.Sex(sex)
	p.BirthDate = fromNullDate(birth)
	return p, nil
}

// affectedOrNotFound traduce un UPDATE/DELETE sin filas al ErrNotFound del dominio.
func affectedOrNotFound(res sql.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound
	}
	return nil
}
