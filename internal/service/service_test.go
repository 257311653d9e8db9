package service

import (
	"context"
	"testing"
	"time"

	"bombona_tracker/internal/cache"
	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
	"bombona_tracker/internal/repository/db"

	"github.com/stretchr/testify/require"
)

var (
	ana  = models.Identity{ID: 1, Email: "ana@example.com", FullName: "Ana"}
	joao = models.Identity{ID: 2, Email: "joao@example.com", FullName: "João"}
)

func newRepos(t *testing.T) *repository.Repository {
	t.Helper()
	conn, err := db.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return repository.NewRepository(conn)
}

func newTestService(t *testing.T, opt Options) (*Service, *repository.Repository) {
	t.Helper()
	repos := newRepos(t)
	if opt.SigningKey == "" {
		opt.SigningKey = testSigningKey
	}
	if opt.CaptureConfig == (capture.Config{}) {
		opt.CaptureConfig = capture.Config{
			Interval:       20 * time.Millisecond,
			RequestTimeout: 2 * time.Second,
		}
	}
	svc := NewService(repos, cache.NewMemoryKV(), opt, nil)
	t.Cleanup(svc.Capture.Close)
	return svc, repos
}

// seed stores a container directly, bypassing the service.
func seed(t *testing.T, repos *repository.Repository, c models.Container) models.Container {
	t.Helper()
	if c.Status == "" {
		c.Status = models.StatusClean
	}
	if c.IdentificationNumber == "" {
		c.IdentificationNumber = "N-" + c.QRCode
	}
	out, err := repos.Containers.Create(context.Background(), c)
	require.NoError(t, err)
	return out
}

func strPtr(s string) *string { return &s }
