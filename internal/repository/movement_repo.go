package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bombona_tracker/internal/models"

	"github.com/google/uuid"
)

type MovementSQLite struct {
	db *sql.DB
}

func NewMovementSQLite(db *sql.DB) *MovementSQLite { return &MovementSQLite{db: db} }

var _ MovementRepo = (*MovementSQLite)(nil)

const (
	selectMovementsSQL = `SELECT id, container_id, previous_status, new_status, previous_location, new_location, custodian, client, notes, occurred_at FROM movements`

	insertMovementSQL = `
		INSERT INTO movements (id, container_id, previous_status, new_status, previous_location, new_location, custodian, client, notes, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
)

var movementOrderColumns = map[string]string{
	"data_movimentacao": "occurred_at",
}

func movementArgs(m models.Movement) []any {
	return []any{
		m.ID,
		m.ContainerID,
		string(m.PreviousStatus),
		string(m.NewStatus),
		m.PreviousLocation,
		m.NewLocation,
		m.Custodian,
		m.Client,
		m.Notes,
		formatTime(m.OccurredAt),
	}
}

// Create appends a movement. Entries are never updated or deleted.
func (r *MovementSQLite) Create(ctx context.Context, m models.Movement) (models.Movement, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now()
	}
	m.OccurredAt = m.OccurredAt.UTC()

	if _, err := r.db.ExecContext(ctx, insertMovementSQL, movementArgs(m)...); err != nil {
		return models.Movement{}, fmt.Errorf("insert movement for %q: %w", m.ContainerID, err)
	}
	return m, nil
}

func (r *MovementSQLite) List(ctx context.Context, order Ordering, limit int) ([]models.Movement, error) {
	clause, err := orderClause(order, movementOrderColumns, OrderMovedDesc)
	if err != nil {
		return nil, err
	}
	q := selectMovementsSQL + clause
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, q, args...)
}

// Filter returns matching movements, newest first.
func (r *MovementSQLite) Filter(ctx context.Context, f MovementFilter) ([]models.Movement, error) {
	var (
		conds []string
		args  []any
	)
	if f.ContainerID != "" {
		conds = append(conds, "container_id = ?")
		args = append(args, f.ContainerID)
	}
	q := selectMovementsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at DESC"
	return r.query(ctx, q, args...)
}

func (r *MovementSQLite) query(ctx context.Context, q string, args ...any) ([]models.Movement, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	out := make([]models.Movement, 0, 64)
	for rows.Next() {
		var (
			m             models.Movement
			prevSt, newSt string
			occurred      string
		)
		if err := rows.Scan(
			&m.ID,
			&m.ContainerID,
			&prevSt,
			&newSt,
			&m.PreviousLocation,
			&m.NewLocation,
			&m.Custodian,
			&m.Client,
			&m.Notes,
			&occurred,
		); err != nil {
			return nil, err
		}
		// an empty previous status is legal for the first movement
		m.PreviousStatus = models.Status(prevSt)
		st, err := models.ParseStatus(newSt)
		if err != nil {
			return nil, fmt.Errorf("movement %s: %w", m.ID, err)
		}
		m.NewStatus = st
		if m.OccurredAt, err = parseTime(occurred); err != nil {
			return nil, fmt.Errorf("movement %s occurred_at: %w", m.ID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
