package service

import (
	"context"
	"fmt"

	"bombona_tracker/internal/repository"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultLabelSize = 256
	maxLabelSize     = 1024
)

// LabelService renders printable QR labels.
type LabelService struct {
	containers repository.ContainerRepo
}

func NewLabelService(c repository.ContainerRepo) *LabelService {
	return &LabelService{containers: c}
}

var _ Labels = (*LabelService)(nil)

func (s *LabelService) LabelPNG(ctx context.Context, id string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultLabelSize
	}
	if size > maxLabelSize {
		return nil, fmt.Errorf("%w: label size must be at most %d", ErrValidation, maxLabelSize)
	}
	c, err := s.containers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("container %q: %w", id, ErrNotFound)
	}
	png, err := qrcode.Encode(c.QRCode, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode label for %q: %w", c.QRCode, err)
	}
	return png, nil
}
