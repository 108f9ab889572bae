package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"deja/internal/domain/stock"
)

type MovementsRepo struct {
	db *sql.DB
}

func NewMovementsRepo(db *sql.DB) *MovementsRepo {
	return &MovementsRepo{db: db}
}

const movementColumns = `
	id, owner_user_id, medication_id,
	direction, quantity, movement_date, reason,
	unit_price, installments,
	status, actor_user_id,
	voided_at, voided_by, void_reason,
	created_at`

func (r *MovementsRepo) Create(ctx context.Context, m stock.Movement) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		m.ID, m.OwnerUserID, m.MedicationID,
		string(m.Direction), m.Quantity, m.Date, m.Reason,
		toNullDecimal(m.UnitPrice), toNullInt(m.Installments),
		string(m.Status), m.ActorUserID,
		toNullTime(m.VoidedAt), m.VoidedBy, m.VoidReason,
		m.CreatedAt,
	)
	return err
}

// Update solo persiste el estado de anulación; el resto del movimiento es inmutable.
func (r *MovementsRepo) Update(ctx context.Context, m stock.Movement) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stock_movements
		SET status = $2, voided_at = $3, voided_by = $4, void_reason = $5
		WHERE id = $1
	`, m.ID, string(m.Status), toNullTime(m.VoidedAt), m.VoidedBy, m.VoidReason)
	return affectedOrNotFound(res, err, stock.ErrNotFound)
}

func (r *MovementsRepo) GetByID(ctx context.Context, id string) (stock.Movement, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return stock.Movement{}, stock.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id)
	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return stock.Movement{}, stock.ErrNotFound
	}
	return m, err
}

func (r *MovementsRepo) List(ctx context.Context, medicationID string, f stock.Filter) ([]stock.Movement, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + movementColumns + ` FROM stock_movements WHERE medication_id = $1`)

	args := []any{medicationID}
	argN := 2

	if f.ActiveOnly {
		sb.WriteString(" AND status = 'active'")
	}
	if f.Direction != "" {
		sb.WriteString(fmt.Sprintf(" AND direction = $%d", argN))
		args = append(args, string(f.Direction))
		argN++
	}
	if f.From != nil {
		sb.WriteString(fmt.Sprintf(" AND movement_date >= $%d", argN))
		args = append(args, *f.From)
		argN++
	}
	if f.To != nil {
		sb.WriteString(fmt.Sprintf(" AND movement_date <= $%d", argN))
		args = append(args, *f.To)
		argN++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		sb.WriteString(fmt.Sprintf(" AND reason ILIKE $%d", argN))
		args = append(args, "%"+q+"%")
		argN++
	}

	sb.WriteString(" ORDER BY movement_date DESC, created_at DESC, id DESC")
	if f.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]stock.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MovementsRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE medication_id = $1`, medicationID)
	return err
}

func scanMovement(s scanner) (stock.Movement, error) {
	var m stock.Movement
	var direction, status string
	var unitPrice decimal.NullDecimal
	var installments sql.NullInt32
	var voidedAt sql.NullTime

	if err := s.Scan(
		&m.ID, &m.OwnerUserID, &m.MedicationID,
		&direction, &m.Quantity, &m.Date, &m.Reason,
		&unitPrice, &installments,
		&status, &m.ActorUserID,
		&voidedAt, &m.VoidedBy, &m.VoidReason,
		&m.CreatedAt,
	); err != nil {
		return stock.Movement{}, err
	}

	m.Direction = stock.Direction(direction)
	m.Status = stock.MovementStatus(status)
	m.Date = utcDay(m.Date)
	m.VoidedAt = fromNullTime(voidedAt)
	if unitPrice.Valid {
		v := unitPrice.Decimal
		m.UnitPrice = &v
	}
	if installments.Valid {
		v := int(installments.Int32)
		m.Installments = &v
	}
	return m, nil
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func toNullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
