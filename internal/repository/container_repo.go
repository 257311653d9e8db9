package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bombona_tracker/internal/models"

	"github.com/google/uuid"
)

type ContainerSQLite struct {
	db *sql.DB
}

func NewContainerSQLite(db *sql.DB) *ContainerSQLite {
	return &ContainerSQLite{db: db}
}

var _ ContainerRepo = (*ContainerSQLite)(nil)

const (
	containerColumns = `id, qr_code, identification_number, status, location, custodian, client, capacity, last_update, notes, created_at`

	selectContainersSQL    = `SELECT ` + containerColumns + ` FROM containers`
	selectContainerByIDSQL = selectContainersSQL + ` WHERE id = ?`

	insertContainerSQL = `
		INSERT INTO containers (id, qr_code, identification_number, status, location, custodian, client, capacity, last_update, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	updateContainerSQL = `
		UPDATE containers
		SET status = ?, location = ?, custodian = ?, client = ?, notes = ?, last_update = ?
		WHERE id = ?
	`
)

var containerOrderColumns = map[string]string{
	"data_ultima_atualizacao": "last_update",
	"created_date":            "created_at",
	"numero_identificacao":    "identification_number",
	"status":                  "status",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContainer(row rowScanner) (models.Container, error) {
	var (
		c                   models.Container
		status              string
		lastUpdate, created string
	)
	if err := row.Scan(
		&c.ID,
		&c.QRCode,
		&c.IdentificationNumber,
		&status,
		&c.Location,
		&c.Custodian,
		&c.Client,
		&c.Capacity,
		&lastUpdate,
		&c.Notes,
		&created,
	); err != nil {
		return models.Container{}, err
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return models.Container{}, fmt.Errorf("container %s: %w", c.ID, err)
	}
	c.Status = st
	if c.LastUpdate, err = parseTime(lastUpdate); err != nil {
		return models.Container{}, fmt.Errorf("container %s last_update: %w", c.ID, err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return models.Container{}, fmt.Errorf("container %s created_at: %w", c.ID, err)
	}
	return c, nil
}

func collectContainers(rows *sql.Rows) ([]models.Container, error) {
	defer rows.Close()
	out := make([]models.Container, 0, 32)
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns containers in the given order; limit <= 0 means no limit.
func (r *ContainerSQLite) List(ctx context.Context, order Ordering, limit int) ([]models.Container, error) {
	clause, err := orderClause(order, containerOrderColumns, OrderLastUpdateDesc)
	if err != nil {
		return nil, err
	}
	q := selectContainersSQL + clause
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return collectContainers(rows)
}

// Filter returns containers matching every set field, newest update first.
func (r *ContainerSQLite) Filter(ctx context.Context, f ContainerFilter) ([]models.Container, error) {
	var (
		conds []string
		args  []any
	)
	if f.QRCode != "" {
		conds = append(conds, "qr_code = ?")
		args = append(args, f.QRCode)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Custodian != nil {
		conds = append(conds, "custodian = ?")
		args = append(args, *f.Custodian)
	}

	q := selectContainersSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY last_update DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("filter containers: %w", err)
	}
	return collectContainers(rows)
}

func (r *ContainerSQLite) Get(ctx context.Context, id string) (*models.Container, error) {
	c, err := scanContainer(r.db.QueryRowContext(ctx, selectContainerByIDSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select container %q: %w", id, err)
	}
	return &c, nil
}

// Create inserts c, assigning an id and timestamps when missing.
func (r *ContainerSQLite) Create(ctx context.Context, c models.Container) (models.Container, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	created := formatTime(c.CreatedAt)
	if c.LastUpdate.IsZero() {
		c.LastUpdate, _ = parseTime(created)
	}
	c.CreatedAt, _ = parseTime(created)

	_, err := r.db.ExecContext(ctx, insertContainerSQL,
		c.ID,
		c.QRCode,
		c.IdentificationNumber,
		string(c.Status),
		c.Location,
		c.Custodian,
		c.Client,
		c.Capacity,
		formatTime(c.LastUpdate),
		c.Notes,
		created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Container{}, fmt.Errorf("insert container %q: %w", c.QRCode, ErrDuplicate)
		}
		return models.Container{}, fmt.Errorf("insert container %q: %w", c.QRCode, err)
	}
	return c, nil
}

func (r *ContainerSQLite) Update(ctx context.Context, id string, p models.ContainerPatch) (models.Container, error) {
	res, err := r.db.ExecContext(ctx, updateContainerSQL, patchArgs(id, p)...)
	if err != nil {
		return models.Container{}, fmt.Errorf("update container %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Container{}, fmt.Errorf("update container %q: %w", id, ErrNotFound)
	}
	c, err := scanContainer(r.db.QueryRowContext(ctx, selectContainerByIDSQL, id))
	if err != nil {
		return models.Container{}, fmt.Errorf("reload container %q: %w", id, err)
	}
	return c, nil
}

// ApplyMovement runs the container update and the movement insert in one transaction.
func (r *ContainerSQLite) ApplyMovement(ctx context.Context, id string, p models.ContainerPatch, m models.Movement) (models.Container, models.Movement, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Container{}, models.Movement{}, fmt.Errorf("begin movement tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := scanContainer(tx.QueryRowContext(ctx, selectContainerByIDSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Container{}, models.Movement{}, fmt.Errorf("container %q: %w", id, ErrNotFound)
		}
		return models.Container{}, models.Movement{}, fmt.Errorf("select container %q: %w", id, err)
	}

	if p.LastUpdate.IsZero() {
		p.LastUpdate = m.OccurredAt
	}
	if p.LastUpdate.IsZero() {
		p.LastUpdate = time.Now()
	}
	if _, err := tx.ExecContext(ctx, updateContainerSQL, patchArgs(id, p)...); err != nil {
		return models.Container{}, models.Movement{}, fmt.Errorf("update container %q: %w", id, err)
	}

	m = movementFor(id, prev, p, m)
	if _, err := tx.ExecContext(ctx, insertMovementSQL, movementArgs(m)...); err != nil {
		return models.Container{}, models.Movement{}, fmt.Errorf("insert movement for %q: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Container{}, models.Movement{}, fmt.Errorf("commit movement tx: %w", err)
	}

	updated := prev
	updated.Apply(p)
	updated.LastUpdate = p.LastUpdate.UTC()
	return updated, m, nil
}

func patchArgs(id string, p models.ContainerPatch) []any {
	return []any{
		string(p.Status),
		p.Location,
		p.Custodian,
		p.Client,
		p.Notes,
		formatTime(p.LastUpdate),
		id,
	}
}

// movementFor fills the derived fields of m from the stored row and the patch.
func movementFor(id string, prev models.Container, p models.ContainerPatch, m models.Movement) models.Movement {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = p.LastUpdate
	}
	m.OccurredAt = m.OccurredAt.UTC()
	m.ContainerID = id
	m.PreviousStatus = prev.Status
	m.NewStatus = p.Status
	m.PreviousLocation = prev.Location
	m.NewLocation = p.Location
	return m
}
