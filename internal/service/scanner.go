package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
)

type ScannerService struct {
	containers repository.ContainerRepo
	dash       Dashboard
	log        *logger.Logger
	now        func() time.Time
}

func NewScannerService(c repository.ContainerRepo, dash Dashboard, log *logger.Logger) *ScannerService {
	if log == nil {
		log = logger.Nop()
	}
	return &ScannerService{containers: c, dash: dash, log: log.Named("scanner"), now: time.Now}
}

var _ Scanner = (*ScannerService)(nil)

func (s *ScannerService) Lookup(ctx context.Context, qr string) (models.Container, error) {
	qr = strings.TrimSpace(qr)
	if qr == "" {
		return models.Container{}, fmt.Errorf("%w: qr code is required", ErrValidation)
	}
	found, err := s.containers.Filter(ctx, repository.ContainerFilter{QRCode: qr})
	if err != nil {
		return models.Container{}, err
	}
	if len(found) == 0 {
		return models.Container{}, fmt.Errorf("qr %q: %w", qr, ErrNotFound)
	}
	return found[0], nil
}

// Apply updates the scanned container and records exactly one movement.
// The actor becomes the custodian. Client is written as given whatever the
// status, so callers resend the current client to keep it.
func (s *ScannerService) Apply(ctx context.Context, qr string, in UpdateInput, actor models.Identity) (models.Container, models.Movement, error) {
	if in.Status == "" {
		return models.Container{}, models.Movement{}, fmt.Errorf("%w: status is required", ErrValidation)
	}
	if !in.Status.Valid() {
		return models.Container{}, models.Movement{}, fmt.Errorf("%w: status %q", ErrValidation, in.Status)
	}
	if strings.TrimSpace(actor.Email) == "" {
		return models.Container{}, models.Movement{}, fmt.Errorf("%w: actor email is required", ErrValidation)
	}

	c, err := s.Lookup(ctx, qr)
	if err != nil {
		return models.Container{}, models.Movement{}, err
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = c.Location
	}
	client := strings.TrimSpace(in.Client)
	now := s.now()
	patch := models.ContainerPatch{
		Status:     in.Status,
		Location:   location,
		Custodian:  actor.Email,
		Client:     client,
		Notes:      strings.TrimSpace(in.Notes),
		LastUpdate: now,
	}

	updated, mv, err := s.containers.ApplyMovement(ctx, c.ID, patch, models.Movement{
		Custodian:  actor.Email,
		Client:     client,
		Notes:      patch.Notes,
		OccurredAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Container{}, models.Movement{}, fmt.Errorf("qr %q: %w", qr, ErrNotFound)
		}
		return models.Container{}, models.Movement{}, err
	}

	s.dash.Invalidate(ctx)
	s.log.Infow("container_moved",
		"container", updated.ID,
		"from", mv.PreviousStatus,
		"to", mv.NewStatus,
		"by", actor.Email,
	)
	return updated, mv, nil
}
