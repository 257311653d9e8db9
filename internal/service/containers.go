package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
)

const qrPrefix = "BOM-"

type ContainerService struct {
	containers repository.ContainerRepo
	movements  repository.MovementRepo
	dash       Dashboard
	log        *logger.Logger
	now        func() time.Time
}

func NewContainerService(c repository.ContainerRepo, m repository.MovementRepo, dash Dashboard, log *logger.Logger) *ContainerService {
	if log == nil {
		log = logger.Nop()
	}
	return &ContainerService{containers: c, movements: m, dash: dash, log: log.Named("containers"), now: time.Now}
}

var _ Containers = (*ContainerService)(nil)

// List loads the candidates from the store (exact filters pushed down) and
// applies search and location matching in memory.
func (s *ContainerService) List(ctx context.Context, q ContainerQuery) ([]models.Container, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrValidation, q.Status)
	}
	if !containerOrderings[q.OrderBy] {
		return nil, fmt.Errorf("%w: unsupported ordering %q", ErrValidation, string(q.OrderBy))
	}

	var (
		all []models.Container
		err error
	)
	if q.Status != "" || q.Custodian != nil {
		all, err = s.containers.Filter(ctx, repository.ContainerFilter{Status: q.Status, Custodian: q.Custodian})
		if err == nil {
			err = sortContainers(all, q.OrderBy)
		}
	} else {
		all, err = s.containers.List(ctx, q.OrderBy, 0)
	}
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := all[:0]
	for _, c := range all {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.IdentificationNumber), search) &&
			!strings.Contains(strings.ToLower(c.QRCode), search) {
			continue
		}
		if !models.MatchesLocation(c.Location, q.Location) {
			continue
		}
		out = append(out, c)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

var containerOrderings = map[repository.Ordering]bool{
	"":                             true,
	repository.OrderLastUpdateDesc: true,
	repository.OrderCreatedDesc:    true,
	"data_ultima_atualizacao":      true,
	"created_date":                 true,
}

func sortContainers(cs []models.Container, order repository.Ordering) error {
	var less func(a, b models.Container) bool
	switch order {
	case "", repository.OrderLastUpdateDesc:
		return nil // store order
	case repository.OrderCreatedDesc:
		less = func(a, b models.Container) bool { return a.CreatedAt.After(b.CreatedAt) }
	case "data_ultima_atualizacao":
		less = func(a, b models.Container) bool { return a.LastUpdate.Before(b.LastUpdate) }
	case "created_date":
		less = func(a, b models.Container) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return fmt.Errorf("%w: unsupported ordering %q", ErrValidation, string(order))
	}
	sort.SliceStable(cs, func(i, j int) bool { return less(cs[i], cs[j]) })
	return nil
}

func (s *ContainerService) Get(ctx context.Context, id string) (models.Container, error) {
	c, err := s.containers.Get(ctx, id)
	if err != nil {
		return models.Container{}, err
	}
	if c == nil {
		return models.Container{}, fmt.Errorf("container %q: %w", id, ErrNotFound)
	}
	return *c, nil
}

// FindByQR returns the container issued with code.
func (s *ContainerService) FindByQR(ctx context.Context, code string) (models.Container, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Container{}, fmt.Errorf("%w: qr code is required", ErrValidation)
	}
	found, err := s.containers.Filter(ctx, repository.ContainerFilter{QRCode: code})
	if err != nil {
		return models.Container{}, err
	}
	if len(found) == 0 {
		return models.Container{}, fmt.Errorf("qr %q: %w", code, ErrNotFound)
	}
	return found[0], nil
}

// Create registers a container and records its first movement.
func (s *ContainerService) Create(ctx context.Context, in CreateContainerInput, actor models.Identity) (models.Container, error) {
	in.IdentificationNumber = strings.TrimSpace(in.IdentificationNumber)
	if in.IdentificationNumber == "" {
		return models.Container{}, fmt.Errorf("%w: identification number is required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = models.StatusClean
	}
	if !in.Status.Valid() {
		return models.Container{}, fmt.Errorf("%w: status %q", ErrValidation, in.Status)
	}
	if in.Capacity < 0 {
		return models.Container{}, fmt.Errorf("%w: capacity must not be negative", ErrValidation)
	}
	in.QRCode = strings.TrimSpace(in.QRCode)
	if in.QRCode == "" {
		code, err := GenerateQRCode(s.now())
		if err != nil {
			return models.Container{}, err
		}
		in.QRCode = code
	}

	now := s.now()
	c, err := s.containers.Create(ctx, models.Container{
		QRCode:               in.QRCode,
		IdentificationNumber: in.IdentificationNumber,
		Status:               in.Status,
		Location:             strings.TrimSpace(in.Location),
		Custodian:            strings.TrimSpace(in.Custodian),
		Client:               strings.TrimSpace(in.Client),
		Capacity:             in.Capacity,
		Notes:                strings.TrimSpace(in.Notes),
		LastUpdate:           now,
		CreatedAt:            now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Container{}, fmt.Errorf("%w: qr code %q already issued", ErrConflict, in.QRCode)
		}
		return models.Container{}, err
	}

	if _, err := s.movements.Create(ctx, models.Movement{
		ContainerID: c.ID,
		NewStatus:   c.Status,
		NewLocation: c.Location,
		Custodian:   actor.Email,
		Client:      c.Client,
		Notes:       c.Notes,
		OccurredAt:  now,
	}); err != nil {
		s.log.Warnw("initial_movement_failed", "container", c.ID, "err", err)
	}

	s.dash.Invalidate(ctx)
	s.log.Infow("container_created", "container", c.ID, "qr", c.QRCode, "by", actor.Email)
	return c, nil
}

// History returns the movements of a container, newest first.
func (s *ContainerService) History(ctx context.Context, id string) ([]models.Movement, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.movements.Filter(ctx, repository.MovementFilter{ContainerID: id})
}

// InTransit lists the containers email is carrying.
func (s *ContainerService) InTransit(ctx context.Context, email string) ([]models.Container, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	return s.containers.Filter(ctx, repository.ContainerFilter{Status: models.StatusInTransit, Custodian: &email})
}

func (s *ContainerService) RecentMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	if limit <= 0 {
		limit = recentLimit
	}
	return s.movements.List(ctx, repository.OrderMovedDesc, limit)
}

const qrSuffixLen = 9

var base36 = big.NewInt(36)

// GenerateQRCode returns "BOM-<unix millis>-<9 base36 chars>".
func GenerateQRCode(now time.Time) (string, error) {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	b.WriteString(qrPrefix)
	b.WriteString(fmt.Sprint(now.UnixMilli()))
	b.WriteByte('-')
	for i := 0; i < qrSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, base36)
		if err != nil {
			return "", fmt.Errorf("generate qr code: %w", err)
		}
		b.WriteByte(digits[n.Int64()])
	}
	return b.String(), nil
}
