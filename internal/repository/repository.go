package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bombona_tracker/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrPartialWrite marks a container update whose movement entry could not
	// be recorded and whose compensation also failed.
	ErrPartialWrite = errors.New("partial write")
)

// Ordering names a record field; a leading '-' sorts descending.
type Ordering string

const (
	OrderLastUpdateDesc Ordering = "-data_ultima_atualizacao"
	OrderCreatedDesc    Ordering = "-created_date"
	OrderMovedDesc      Ordering = "-data_movimentacao"
)

// ContainerFilter matches containers exactly on every non-empty field.
type ContainerFilter struct {
	QRCode    string
	Status    models.Status
	Custodian *string // nil: any custodian; pointer to "": unassigned
}

// MovementFilter matches movements exactly on every non-empty field.
type MovementFilter struct {
	ContainerID string
}

type Authorization interface {
	Create(email, fullName, role, hash string) (int, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id int) (*models.User, error)
}

type ContainerRepo interface {
	List(ctx context.Context, order Ordering, limit int) ([]models.Container, error)
	Filter(ctx context.Context, f ContainerFilter) ([]models.Container, error)
	// Get returns (nil, nil) when no container has the id.
	Get(ctx context.Context, id string) (*models.Container, error)
	Create(ctx context.Context, c models.Container) (models.Container, error)
	Update(ctx context.Context, id string, p models.ContainerPatch) (models.Container, error)
	// ApplyMovement updates the container and appends m as one unit. The
	// previous and new status/location of m are taken from the stored row and p.
	ApplyMovement(ctx context.Context, id string, p models.ContainerPatch, m models.Movement) (models.Container, models.Movement, error)
}

type MovementRepo interface {
	List(ctx context.Context, order Ordering, limit int) ([]models.Movement, error)
	Filter(ctx context.Context, f MovementFilter) ([]models.Movement, error)
	Create(ctx context.Context, m models.Movement) (models.Movement, error)
}

type Repository struct {
	Containers ContainerRepo
	Movements  MovementRepo
	Auth       Authorization
}

// NewRepository keeps every record kind in the SQLite database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Containers: NewContainerSQLite(db),
		Movements:  NewMovementSQLite(db),
		Auth:       NewUserRepository(db),
	}
}

// NewRemoteRepository keeps containers and movements in the remote entity
// store and users in the local database.
func NewRemoteRepository(db *sql.DB, remote *RemoteStore) *Repository {
	return &Repository{
		Containers: remote.Containers(),
		Movements:  remote.Movements(),
		Auth:       NewUserRepository(db),
	}
}

// orderClause turns an Ordering into an ORDER BY clause using the allowed
// field -> column map, falling back to def.
func orderClause(o Ordering, columns map[string]string, def Ordering) (string, error) {
	if o == "" {
		o = def
	}
	field := string(o)
	dir := "ASC"
	if strings.HasPrefix(field, "-") {
		field = field[1:]
		dir = "DESC"
	}
	col, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("unsupported ordering %q", string(o))
	}
	return " ORDER BY " + col + " " + dir, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC(), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
