package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bombona_tracker/internal/cache"
	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"

	"github.com/google/uuid"
)

const (
	// AlertAge is how long a container may go without an update before it is flagged.
	AlertAge    = 24 * time.Hour
	recentLimit = 10

	defaultCacheTTL = 30 * time.Second
	dashGenKey      = "dashboard:gen"
	dashKeyPrefix   = "dashboard:summary:"
)

type DashboardService struct {
	containers repository.ContainerRepo
	movements  repository.MovementRepo
	kv         cache.KV
	ttl        time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewDashboardService(c repository.ContainerRepo, m repository.MovementRepo, kv cache.KV, ttl time.Duration, log *logger.Logger) *DashboardService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DashboardService{containers: c, movements: m, kv: kv, ttl: ttl, log: log.Named("dashboard"), now: time.Now}
}

var _ Dashboard = (*DashboardService)(nil)

// Summary builds the dashboard for email, restricted to the sector named by
// locationKey ("" or "all" for every sector).
func (s *DashboardService) Summary(ctx context.Context, email, locationKey string) (Summary, error) {
	locationKey = strings.TrimSpace(locationKey)
	key := s.cacheKey(ctx, email, locationKey)
	if key != "" {
		var cached Summary
		err := cache.GetJSON(ctx, s.kv, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warnw("dashboard_cache_read_failed", "err", err)
		}
	}

	sum, err := s.build(ctx, email, locationKey)
	if err != nil {
		return Summary{}, err
	}

	if key != "" {
		if err := cache.SetJSON(ctx, s.kv, key, sum, s.ttl); err != nil {
			s.log.Warnw("dashboard_cache_write_failed", "err", err)
		}
	}
	return sum, nil
}

func (s *DashboardService) build(ctx context.Context, email, locationKey string) (Summary, error) {
	all, err := s.containers.List(ctx, repository.OrderLastUpdateDesc, 0)
	if err != nil {
		return Summary{}, err
	}
	recent, err := s.movements.List(ctx, repository.OrderMovedDesc, recentLimit)
	if err != nil {
		return Summary{}, err
	}

	now := s.now()
	counts := make(map[models.Status]int, len(models.AllStatuses()))
	sum := Summary{
		Location:    locationKey,
		Mine:        []models.Container{},
		Alerts:      []models.Container{},
		Recent:      recent,
		GeneratedAt: now.UTC(),
	}
	for _, c := range all {
		if !models.MatchesLocation(c.Location, locationKey) {
			continue
		}
		sum.Total++
		counts[c.Status]++
		if c.Custodian == "" || strings.EqualFold(c.Custodian, email) {
			sum.Mine = append(sum.Mine, c)
		}
		if now.Sub(c.LastUpdate) > AlertAge {
			sum.Alerts = append(sum.Alerts, c)
		}
	}
	for _, meta := range models.StatusCatalog() {
		sum.ByStatus = append(sum.ByStatus, StatusCount{StatusMeta: meta, Count: counts[meta.Value]})
	}
	return sum, nil
}

// Invalidate drops every cached summary by rotating the cache generation.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Set(ctx, dashGenKey, uuid.NewString(), 0); err != nil {
		s.log.Warnw("dashboard_invalidate_failed", "err", err)
	}
}

// cacheKey returns "" when caching is unavailable.
func (s *DashboardService) cacheKey(ctx context.Context, email, locationKey string) string {
	if s.kv == nil {
		return ""
	}
	gen, err := s.kv.Get(ctx, dashGenKey)
	if errors.Is(err, cache.ErrMiss) {
		gen = uuid.NewString()
		err = s.kv.Set(ctx, dashGenKey, gen, 0)
	}
	if err != nil {
		s.log.Warnw("dashboard_cache_unavailable", "err", err)
		return ""
	}
	return dashKeyPrefix + gen + ":" + strings.ToLower(email) + ":" + locationKey
}
