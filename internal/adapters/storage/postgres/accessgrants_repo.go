package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"deja/internal/domain/accessgrants"
)

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

const grantColumns = `
	id, patient_id, owner_user_id, grantee_user_id,
	scopes, status,
	created_at, updated_at, revoked_at`

func (r *AccessGrantsRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.PatientID,
		g.OwnerUserID,
		g.GranteeUserID,
		scopesToTextArray(g.Scopes),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *AccessGrantsRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		scopesToTextArray(g.Scopes),
		string(g.Status),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE id = $1`, id)
	return scanGrantRow(row)
}

func (r *AccessGrantsRepo) ListByPatient(ctx context.Context, patientID string) ([]accessgrants.Grant, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE patient_id = $1
		ORDER BY created_at ASC
	`, patientID)
}

func (r *AccessGrantsRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]accessgrants.Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE grantee_user_id = $1
		ORDER BY updated_at DESC
	`, granteeUserID)
}

func (r *AccessGrantsRepo) GetActiveGrant(ctx context.Context, patientID, granteeUserID string) (accessgrants.Grant, error) {
	patientID = strings.TrimSpace(patientID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if patientID == "" || granteeUserID == "" {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE patient_id = $1
		  AND grantee_user_id = $2
		  AND status = 'active'
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, patientID, granteeUserID)
	return scanGrantRow(row)
}

func (r *AccessGrantsRepo) list(ctx context.Context, query string, args ...any) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrantRow(row *sql.Row) (accessgrants.Grant, error) {
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, err
}

func scanGrant(s scanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	var status string
	var scopes []string
	var revokedAt sql.NullTime

	if err := s.Scan(
		&g.ID,
		&g.PatientID,
		&g.OwnerUserID,
		&g.GranteeUserID,
		array(&scopes),
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		return accessgrants.Grant{}, err
	}

	g.Status = accessgrants.Status(status)
	g.Scopes = textArrayToScopes(scopes)
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}

func scopesToTextArray(in []accessgrants.Scope) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func textArrayToScopes(in []string) []accessgrants.Scope {
	out := make([]accessgrants.Scope, 0, len(in))
	for _, s := range in {
		out = append(out, accessgrants.Scope(s))
	}
	return out
}
