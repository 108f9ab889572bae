package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"deja/internal/domain/caregivers"
)

type CaregiversRepo struct {
	db *sql.DB
}

func NewCaregiversRepo(db *sql.DB) *CaregiversRepo {
	return &CaregiversRepo{db: db}
}

const caregiverColumns = `
	id, owner_user_id,
	name, phone, email, role, notes, active,
	created_at, updated_at`

func (r *CaregiversRepo) Create(ctx context.Context, c caregivers.Caregiver) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO caregivers (`+caregiverColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		c.ID, c.OwnerUserID,
		c.Name, c.Phone, c.Email, c.Role, c.Notes, c.Active,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *CaregiversRepo) Update(ctx context.Context, c caregivers.Caregiver) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE caregivers
		SET name = $2, phone = $3, email = $4, role = $5, notes = $6, active = $7, updated_at = $8
		WHERE id = $1
	`, c.ID, c.Name, c.Phone, c.Email, c.Role, c.Notes, c.Active, c.UpdatedAt)
	return affectedOrNotFound(res, err, caregivers.ErrNotFound)
}

func (r *CaregiversRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM caregivers WHERE id = $1`, id)
	return affectedOrNotFound(res, err, caregivers.ErrNotFound)
}

func (r *CaregiversRepo) GetByID(ctx context.Context, id string) (caregivers.Caregiver, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return caregivers.Caregiver{}, caregivers.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+caregiverColumns+` FROM caregivers WHERE id = $1`, id)
	c, err := scanCaregiver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return caregivers.Caregiver{}, caregivers.ErrNotFound
	}
	return c, err
}

func (r *CaregiversRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]caregivers.Caregiver, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+caregiverColumns+`
		FROM caregivers
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]caregivers.Caregiver, 0)
	for rows.Next() {
		c, err := scanCaregiver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCaregiver(s scanner) (caregivers.Caregiver, error) {
	var c caregivers.Caregiver
	err := s.Scan(
		&c.ID, &c.OwnerUserID,
		&c.Name, &c.Phone, &c.Email, &c.Role, &c.Notes, &c.Active,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

type SchedulesRepo struct {
	db *sql.DB
}

func NewSchedulesRepo(db *sql.DB) *SchedulesRepo {
	return &SchedulesRepo{db: db}
}

const scheduleColumns = `
	id, owner_user_id, caregiver_id,
	patient_ids, days, start_minute, end_minute,
	notes, created_at, updated_at`

func (r *SchedulesRepo) Create(ctx context.Context, s caregivers.Schedule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		s.ID, s.OwnerUserID, s.CaregiverID,
		nonNil(s.PatientIDs), weekdaysToInts(s.Days), int(s.Start), int(s.End),
		s.Notes, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *SchedulesRepo) Update(ctx context.Context, s caregivers.Schedule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET
			caregiver_id = $2,
			patient_ids = $3,
			days = $4,
			start_minute = $5,
			end_minute = $6,
			notes = $7,
			updated_at = $8
		WHERE id = $1
	`,
		s.ID, s.CaregiverID,
		nonNil(s.PatientIDs), weekdaysToInts(s.Days), int(s.Start), int(s.End),
		s.Notes, s.UpdatedAt,
	)
	return affectedOrNotFound(res, err, caregivers.ErrNotFound)
}

func (r *SchedulesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return affectedOrNotFound(res, err, caregivers.ErrNotFound)
}

func (r *SchedulesRepo) GetByID(ctx context.Context, id string) (caregivers.Schedule, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return caregivers.Schedule{}, caregivers.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return caregivers.Schedule{}, caregivers.ErrNotFound
	}
	return s, err
}

func (r *SchedulesRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]caregivers.Schedule, error) {
	return r.list(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
}

func (r *SchedulesRepo) ListByPatient(ctx context.Context, patientID string) ([]caregivers.Schedule, error) {
	return r.list(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE $1 = ANY(patient_ids)
		ORDER BY created_at ASC
	`, patientID)
}

func (r *SchedulesRepo) DeleteByCaregiver(ctx context.Context, caregiverID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE caregiver_id = $1`, caregiverID)
	return err
}

func (r *SchedulesRepo) list(ctx context.Context, query string, args ...any) ([]caregivers.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]caregivers.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSchedule(sc scanner) (caregivers.Schedule, error) {
	var s caregivers.Schedule
	var patientIDs []string
	var days []int32
	var start, end int

	if err := sc.Scan(
		&s.ID, &s.OwnerUserID, &s.CaregiverID,
		array(&patientIDs), array(&days), &start, &end,
		&s.Notes, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return caregivers.Schedule{}, err
	}

	s.PatientIDs = patientIDs
	s.Days = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		s.Days = append(s.Days, time.Weekday(d))
	}
	s.Start = caregivers.Clock(start)
	s.End = caregivers.Clock(end)
	return s, nil
}

func weekdaysToInts(days []time.Weekday) []int32 {
	out := make([]int32, 0, len(days))
	for _, d := range days {
		out = append(out, int32(d))
	}
	return out
}

// nonNil evita mandar NULL a columnas text[] NOT NULL.
func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
