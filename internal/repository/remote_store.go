package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"

	"github.com/go-resty/resty/v2"
)

// Entity kinds of the remote store.
const (
	KindContainer = "Bombona"
	KindMovement  = "Movimentacao"
)

type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// RemoteStore talks to a REST entity store:
//
//	GET  /entities/{kind}?sort=-field&limit=n&field=value
//	GET  /entities/{kind}/{id}
//	POST /entities/{kind}
//	PUT  /entities/{kind}/{id}
//
// Each call is atomic on its own; there are no multi-record transactions.
//
// GET and PUT are retried on transport errors. POST is sent once: a create
// whose response was lost may already be stored.
type RemoteStore struct {
	client *resty.Client
	once   *resty.Client
	log    *logger.Logger
}

func NewRemoteStore(cfg RemoteConfig, log *logger.Logger) *RemoteStore {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	log = log.Named("remote_store")
	return &RemoteStore{
		client: newRestyClient(cfg, log).
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(3 * time.Second),
		once: newRestyClient(cfg, log),
		log:  log,
	}
}

func newRestyClient(cfg RemoteConfig, log *logger.Logger) *resty.Client {
	client := resty.New().
		SetLogger(log).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api_key", cfg.APIKey)
	}
	return client
}

func (s *RemoteStore) Containers() *RemoteContainers { return &RemoteContainers{store: s} }

func (s *RemoteStore) Movements() *RemoteMovements { return &RemoteMovements{store: s} }

func (s *RemoteStore) list(ctx context.Context, kind string, params map[string]string, out any) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get("/entities/" + kind)
	return s.check(resp, err, http.MethodGet, kind)
}

func (s *RemoteStore) get(ctx context.Context, kind, id string, out any) (bool, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(out).
		Get("/entities/" + kind + "/{id}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if err := s.check(resp, err, http.MethodGet, kind+"/"+id); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RemoteStore) create(ctx context.Context, kind string, body, out any) error {
	resp, err := s.once.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post("/entities/" + kind)
	return s.check(resp, err, http.MethodPost, kind)
}

func (s *RemoteStore) update(ctx context.Context, kind, id string, body, out any) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(body).
		SetResult(out).
		Put("/entities/" + kind + "/{id}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("update %s %q: %w", kind, id, ErrNotFound)
	}
	return s.check(resp, err, http.MethodPut, kind+"/"+id)
}

func (s *RemoteStore) check(resp *resty.Response, err error, method, target string) error {
	if err != nil {
		return fmt.Errorf("remote %s %s: %w", method, target, err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusConflict {
			return fmt.Errorf("remote %s %s: %w", method, target, ErrDuplicate)
		}
		return fmt.Errorf("remote %s %s: status %d: %s", method, target, resp.StatusCode(), resp.String())
	}
	return nil
}

func listParams(order Ordering, limit int) map[string]string {
	params := map[string]string{}
	if order != "" {
		params["sort"] = string(order)
	}
	if limit > 0 {
		params["limit"] = fmt.Sprint(limit)
	}
	return params
}

func patchBody(p models.ContainerPatch) map[string]any {
	return map[string]any{
		"status":                  p.Status,
		"localizacao_atual":       p.Location,
		"responsavel_atual":       p.Custodian,
		"cliente_atual":           p.Client,
		"observacoes":             p.Notes,
		"data_ultima_atualizacao": p.LastUpdate.UTC(),
	}
}

type RemoteContainers struct {
	store *RemoteStore
}

var _ ContainerRepo = (*RemoteContainers)(nil)

func (r *RemoteContainers) List(ctx context.Context, order Ordering, limit int) ([]models.Container, error) {
	if order == "" {
		order = OrderLastUpdateDesc
	}
	var out []models.Container
	if err := r.store.list(ctx, KindContainer, listParams(order, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteContainers) Filter(ctx context.Context, f ContainerFilter) ([]models.Container, error) {
	params := listParams(OrderLastUpdateDesc, 0)
	if f.QRCode != "" {
		params["codigo_qr"] = f.QRCode
	}
	if f.Status != "" {
		params["status"] = string(f.Status)
	}
	if f.Custodian != nil {
		params["responsavel_atual"] = *f.Custodian
	}
	var out []models.Container
	if err := r.store.list(ctx, KindContainer, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteContainers) Get(ctx context.Context, id string) (*models.Container, error) {
	var c models.Container
	found, err := r.store.get(ctx, KindContainer, id, &c)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

func (r *RemoteContainers) Create(ctx context.Context, c models.Container) (models.Container, error) {
	var out models.Container
	if err := r.store.create(ctx, KindContainer, c, &out); err != nil {
		return models.Container{}, err
	}
	return out, nil
}

func (r *RemoteContainers) Update(ctx context.Context, id string, p models.ContainerPatch) (models.Container, error) {
	var out models.Container
	if err := r.store.update(ctx, KindContainer, id, patchBody(p), &out); err != nil {
		return models.Container{}, err
	}
	return out, nil
}

// ApplyMovement updates the container, then creates the movement. When the
// movement cannot be created the container update is reverted; if that
// fails too the error wraps ErrPartialWrite.
func (r *RemoteContainers) ApplyMovement(ctx context.Context, id string, p models.ContainerPatch, m models.Movement) (models.Container, models.Movement, error) {
	prev, err := r.Get(ctx, id)
	if err != nil {
		return models.Container{}, models.Movement{}, err
	}
	if prev == nil {
		return models.Container{}, models.Movement{}, fmt.Errorf("container %q: %w", id, ErrNotFound)
	}
	if p.LastUpdate.IsZero() {
		p.LastUpdate = m.OccurredAt
	}
	if p.LastUpdate.IsZero() {
		p.LastUpdate = time.Now()
	}

	updated, err := r.Update(ctx, id, p)
	if err != nil {
		return models.Container{}, models.Movement{}, err
	}

	m = movementFor(id, *prev, p, m)
	created, err := r.store.Movements().Create(ctx, m)
	if err == nil {
		return updated, created, nil
	}

	// compensate on a fresh context: the caller's may be what failed
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, rerr := r.Update(cctx, id, prev.Patch()); rerr != nil {
		r.store.log.Errorw("remote_compensation_failed", "container", id, "err", rerr, "cause", err)
		return models.Container{}, models.Movement{}, fmt.Errorf("%w: container %q updated but movement not recorded: %w (restore failed: %v)",
			ErrPartialWrite, id, err, rerr)
	}
	r.store.log.Infow("remote_update_reverted", "container", id, "cause", err)
	return models.Container{}, models.Movement{}, fmt.Errorf("record movement for %q (container restored): %w", id, err)
}

type RemoteMovements struct {
	store *RemoteStore
}

var _ MovementRepo = (*RemoteMovements)(nil)

func (r *RemoteMovements) List(ctx context.Context, order Ordering, limit int) ([]models.Movement, error) {
	if order == "" {
		order = OrderMovedDesc
	}
	var out []models.Movement
	if err := r.store.list(ctx, KindMovement, listParams(order, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteMovements) Filter(ctx context.Context, f MovementFilter) ([]models.Movement, error) {
	params := listParams(OrderMovedDesc, 0)
	if f.ContainerID != "" {
		params["bombona_id"] = f.ContainerID
	}
	var out []models.Movement
	if err := r.store.list(ctx, KindMovement, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteMovements) Create(ctx context.Context, m models.Movement) (models.Movement, error) {
	if m.ContainerID == "" {
		return models.Movement{}, errors.New("movement without container id")
	}
	var out models.Movement
	if err := r.store.create(ctx, KindMovement, m, &out); err != nil {
		return models.Movement{}, err
	}
	return out, nil
}
