package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

const (
	globalStatsCacheKey     = "stats:orders:global"
	managerStatsCachePrefix = "stats:orders:manager:"
)

type statisticsRepository interface {
	StatusCounts(ctx context.Context) ([]models.StatusCount, int, error)
	ManagerStatusCounts(ctx context.Context, managerID string) ([]models.StatusCount, int, error)
}

type statisticsUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// StatisticsService computes per-status order counts for dashboards.
type StatisticsService struct {
	orders  statisticsRepository
	users   statisticsUserReader
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewStatisticsService constructs the statistics service.
func NewStatisticsService(orders statisticsRepository, users statisticsUserReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{orders: orders, users: users, cache: cache, metrics: metrics, logger: logger}
}

// GlobalStatusCounts returns the aggregate over every order. The payload
// always enumerates all five statuses plus the null bucket, zero-filled,
// with the null bucket last and the rest in lexical order; dashboards rely
// on the fixed shape. The second return reports whether the cache served
// the payload.
func (s *StatisticsService) GlobalStatusCounts(ctx context.Context) (*models.OrderStatistics, bool, error) {
	var cached models.OrderStatistics
	if hit, err := s.cacheGet(ctx, globalStatsCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	start := time.Now()
	counts, total, err := s.orders.StatusCounts(ctx)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("statistics_orders", time.Since(start))
	}
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate order statistics")
	}

	occurring := bucketize(counts)
	buckets := make([]models.StatusBucket, 0, len(models.OrderStatuses)+1)
	for _, status := range sortedStatuses() {
		buckets = append(buckets, models.StatusBucket{Status: status, Count: occurring[status]})
	}
	buckets = append(buckets, models.StatusBucket{Status: models.StatusNull, Count: occurring[models.StatusNull]})

	result := &models.OrderStatistics{TotalCount: total, Statuses: buckets}
	s.cacheSet(ctx, globalStatsCacheKey, result)
	return result, false, nil
}

// ManagerStatusCounts returns the same aggregate restricted to one
// manager's orders. Unlike the global payload only buckets that actually
// occur are returned, with no zero fill.
func (s *StatisticsService) ManagerStatusCounts(ctx context.Context, userID string) (*models.OrderStatistics, bool, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	cacheKey := managerStatsCachePrefix + userID
	var cached models.OrderStatistics
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	start := time.Now()
	counts, total, err := s.orders.ManagerStatusCounts(ctx, userID)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("statistics_manager", time.Since(start))
	}
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate manager statistics")
	}

	buckets := make([]models.StatusBucket, 0, len(counts))
	for _, c := range counts {
		status := models.StatusNull
		if c.Status != nil {
			status = *c.Status
		}
		buckets = append(buckets, models.StatusBucket{Status: status, Count: c.Count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i].Status, buckets[j].Status
		if (a == models.StatusNull) != (b == models.StatusNull) {
			return b == models.StatusNull
		}
		return a < b
	})

	result := &models.OrderStatistics{TotalCount: total, Statuses: buckets}
	s.cacheSet(ctx, cacheKey, result)
	return result, false, nil
}

func bucketize(counts []models.StatusCount) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		if c.Status == nil {
			out[models.StatusNull] += c.Count
			continue
		}
		out[*c.Status] += c.Count
	}
	return out
}

func sortedStatuses() []string {
	statuses := make([]string, len(models.OrderStatuses))
	copy(statuses, models.OrderStatuses)
	sort.Strings(statuses)
	return statuses
}

func (s *StatisticsService) cacheGet(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.Get(ctx, key, dest)
}

func (s *StatisticsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("failed to cache statistics", zap.String("key", key), zap.Error(err))
	}
}
