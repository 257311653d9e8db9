package service

import (
	"context"
	"io"
	"time"

	"bombona_tracker/internal/cache"
	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
)

type Authorization interface {
	SignUp(email, fullName, password string) (int, error)
	GenerateToken(ctx context.Context, email, password string) (string, error)
	ParseToken(ctx context.Context, accessToken string) (int, error)
	CurrentUser(userID int) (models.Identity, error)
	// Logout revokes the token until it expires. Failures are only logged.
	Logout(ctx context.Context, accessToken string)
}

// Containers is the container registry: listing, registration and history.
type Containers interface {
	List(ctx context.Context, q ContainerQuery) ([]models.Container, error)
	Get(ctx context.Context, id string) (models.Container, error)
	FindByQR(ctx context.Context, code string) (models.Container, error)
	Create(ctx context.Context, in CreateContainerInput, actor models.Identity) (models.Container, error)
	History(ctx context.Context, id string) ([]models.Movement, error)
	InTransit(ctx context.Context, email string) ([]models.Container, error)
	RecentMovements(ctx context.Context, limit int) ([]models.Movement, error)
}

// Scanner resolves scanned codes and applies status updates.
type Scanner interface {
	Lookup(ctx context.Context, qr string) (models.Container, error)
	Apply(ctx context.Context, qr string, in UpdateInput, actor models.Identity) (models.Container, models.Movement, error)
}

type Dashboard interface {
	Summary(ctx context.Context, email, locationKey string) (Summary, error)
	Invalidate(ctx context.Context)
}

type Export interface {
	CSV(ctx context.Context, w io.Writer, q ContainerQuery) (int, error)
	XLSX(ctx context.Context, w io.Writer, q ContainerQuery) (int, error)
	FileName(ext string, now time.Time) string
}

type Labels interface {
	LabelPNG(ctx context.Context, id string, size int) ([]byte, error)
}

// Capture runs camera sessions for users and resolves their payloads.
type Capture interface {
	Open(ctx context.Context, userID int, source Source) (SessionView, error)
	Current(userID int, source Source) (SessionView, bool)
	Cancel(userID int, source Source) error
	Submit(ctx context.Context, userID int, source Source, payload string) (ScanResult, error)
	Await(ctx context.Context, userID int, source Source) (ScanResult, error)
	Watch(userID int, source Source) (<-chan capture.Transition, error)
	Grant(userID int) error
	Deny(userID int, reason string) error
	PushFrame(userID int, data []byte) error
	Release(userID int)
	Close()
}

type Service struct {
	Authorization
	Containers
	Scanner
	Dashboard
	Export
	Labels
	Capture
}

// Options carries the runtime settings of the services.
type Options struct {
	SigningKey     string
	TokenTTL       time.Duration
	CacheTTL       time.Duration
	ExportLocation *time.Location

	CaptureConfig capture.Config
	// DeviceCamera backs the shared "device" source; nil disables it.
	DeviceCamera capture.Camera
	Decoder      capture.Decoder
}

func NewService(repos *repository.Repository, kv cache.KV, opt Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if kv == nil {
		kv = cache.NewMemoryKV()
	}
	dash := NewDashboardService(repos.Containers, repos.Movements, kv, opt.CacheTTL, log)
	containers := NewContainerService(repos.Containers, repos.Movements, dash, log)
	scanner := NewScannerService(repos.Containers, dash, log)
	return &Service{
		Authorization: NewAuthService(repos.Auth, kv, opt.SigningKey, opt.TokenTTL, log),
		Containers:    containers,
		Scanner:       scanner,
		Dashboard:     dash,
		Export:        NewExportService(containers, opt.ExportLocation),
		Labels:        NewLabelService(repos.Containers),
		Capture:       NewCaptureService(scanner, opt.CaptureConfig, opt.DeviceCamera, opt.Decoder, log),
	}
}
