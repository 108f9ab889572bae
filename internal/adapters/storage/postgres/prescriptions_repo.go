package postgres

import (
	"context"
	"database/sql"
	"strings"

	"deja/internal/domain/prescriptions"
)

type PrescriptionsRepo struct {
	db *sql.DB
}

func NewPrescriptionsRepo(db *sql.DB) *PrescriptionsRepo {
	return &PrescriptionsRepo{db: db}
}

const prescriptionColumns = `
	id, owner_user_id, patient_id,
	type, issue_date, expiry_date, reusable, notes,
	file_name, file_content_type, file_size, file_key,
	created_at, updated_at`

func (r *PrescriptionsRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prescriptions (`+prescriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		p.ID, p.OwnerUserID, p.PatientID,
		string(p.Type), p.IssueDate, p.ExpiryDate, p.Reusable, p.Notes,
		p.File.Name, p.File.ContentType, p.File.Size, p.File.Key,
		p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return err
	}

	for _, l := range p.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prescription_links (prescription_id, medication_id, patient_id)
			VALUES ($1,$2,$3)
			ON CONFLICT DO NOTHING
		`, p.ID, l.MedicationID, l.PatientID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete arrastra los links por ON DELETE CASCADE.
func (r *PrescriptionsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	return affectedOrNotFound(res, err, prescriptions.ErrNotFound)
}

func (r *PrescriptionsRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	items, err := r.list(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return prescriptions.Prescription{}, err
	}
	if len(items) == 0 {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	return items[0], nil
}

func (r *PrescriptionsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]prescriptions.Prescription, error) {
	return r.list(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
}

func (r *PrescriptionsRepo) ListByPatient(ctx context.Context, patientID string) ([]prescriptions.Prescription, error) {
	return r.list(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at ASC
	`, patientID)
}

func (r *PrescriptionsRepo) ListOwners(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT owner_user_id FROM prescriptions ORDER BY owner_user_id`)
}

func (r *PrescriptionsRepo) list(ctx context.Context, query string, args ...any) ([]prescriptions.Prescription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]prescriptions.Prescription, 0)
	for rows.Next() {
		var p prescriptions.Prescription
		var typ string
		if err := rows.Scan(
			&p.ID, &p.OwnerUserID, &p.PatientID,
			&typ, &p.IssueDate, &p.ExpiryDate, &p.Reusable, &p.Notes,
			&p.File.Name, &p.File.ContentType, &p.File.Size, &p.File.Key,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Type = prescriptions.Type(typ)
		p.IssueDate = utcDay(p.IssueDate)
		p.ExpiryDate = utcDay(p.ExpiryDate)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLinks(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PrescriptionsRepo) loadLinks(ctx context.Context, items []prescriptions.Prescription) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	idx := make(map[string]int, len(items))
	for i, p := range items {
		ids = append(ids, p.ID)
		idx[p.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT prescription_id, medication_id, patient_id
		FROM prescription_links
		WHERE prescription_id = ANY($1)
		ORDER BY prescription_id, medication_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var l prescriptions.Link
		if err := rows.Scan(&id, &l.MedicationID, &l.PatientID); err != nil {
			return err
		}
		i := idx[id]
		items[i].Links = append(items[i].Links, l)
	}
	return rows.Err()
}

