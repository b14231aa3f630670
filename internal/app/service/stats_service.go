package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/metrics"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
)

// StatsCache is satisfied by *redis.Cache; nil disables caching.
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type ProductRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type ProductStats struct {
	Product            ProductRef          `json:"product"`
	OverallStats       rating.OverallStats `json:"overall_stats"`
	RatingDistribution []rating.Bucket     `json:"rating_distribution"`
	MonthlyTrends      []rating.MonthTrend `json:"monthly_trends"`
	TopTags            []rating.TagCount   `json:"top_tags"`
}

// cachedStats is only valid for the trend window it was computed in.
type cachedStats struct {
	WindowStart time.Time    `json:"window_start"`
	Stats       ProductStats `json:"stats"`
}

type StatsService interface {
	GetProductStats(ctx context.Context, productID uint) (*ProductStats, error)
	RatingDistribution(ctx context.Context, productID uint) ([]rating.Bucket, error)
	MonthlyTrend(ctx context.Context, productID uint) ([]rating.MonthTrend, error)
	TopTags(ctx context.Context, productID uint, limit int) ([]rating.TagCount, error)
	Invalidate(ctx context.Context, productID uint)
}

type statsService struct {
	productRepo repository.ProductRepository
	reviewRepo  repository.ReviewRepository
	tagRepo     repository.ReviewTagRepository
	cache       StatsCache
	topTagLimit int
	now         func() time.Time
}

type StatsOption func(*statsService)

// WithClock replaces time.Now as the source of "now" for trend windows.
func WithClock(now func() time.Time) StatsOption {
	return func(s *statsService) { s.now = now }
}

func WithStatsCache(cache StatsCache) StatsOption {
	return func(s *statsService) { s.cache = cache }
}

func NewStatsService(
	productRepo repository.ProductRepository,
	reviewRepo repository.ReviewRepository,
	tagRepo repository.ReviewTagRepository,
	topTagLimit int,
	opts ...StatsOption,
) StatsService {
	s := &statsService{
		productRepo: productRepo,
		reviewRepo:  reviewRepo,
		tagRepo:     tagRepo,
		topTagLimit: topTagLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func statsCacheKey(productID uint) string {
	return fmt.Sprintf("product:%d", productID)
}

func (s *statsService) GetProductStats(ctx context.Context, productID uint) (*ProductStats, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}

	now := s.now()
	windowStart := rating.WindowStart(now)

	if s.cache != nil {
		var cached cachedStats
		found, err := s.cache.GetJSON(ctx, statsCacheKey(productID), &cached)
		if err == nil && found && cached.WindowStart.Equal(windowStart) {
			metrics.StatsCacheLookups.WithLabelValues("hit").Inc()
			return &cached.Stats, nil
		}
		metrics.StatsCacheLookups.WithLabelValues("miss").Inc()
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("load product %d: %w", productID, err)
	}

	samples, err := s.reviewRepo.ListSamples(ctx, productID, nil)
	if err != nil {
		return nil, fmt.Errorf("load reviews of product %d: %w", productID, err)
	}

	trend, err := rating.MonthlyTrend(samples, now)
	if err != nil {
		return nil, err
	}

	tags, err := s.tagRepo.TopTags(ctx, productID, s.topTagLimit)
	if err != nil {
		return nil, fmt.Errorf("load top tags of product %d: %w", productID, err)
	}

	stats := &ProductStats{
		Product:            ProductRef{ID: product.ID, Name: product.Name},
		OverallStats:       rating.Overall(samples),
		RatingDistribution: rating.Distribution(samples),
		MonthlyTrends:      trend,
		TopTags:            tags,
	}

	if s.cache != nil {
		entry := cachedStats{WindowStart: windowStart, Stats: *stats}
		if err := s.cache.SetJSON(ctx, statsCacheKey(productID), entry); err != nil {
			logger.Warn("Failed to cache product stats", map[string]interface{}{
				"product_id": productID,
				"error":      err.Error(),
			})
		}
	}
	return stats, nil
}

func (s *statsService) RatingDistribution(ctx context.Context, productID uint) ([]rating.Bucket, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}
	samples, err := s.reviewRepo.ListSamples(ctx, productID, nil)
	if err != nil {
		return nil, fmt.Errorf("load reviews of product %d: %w", productID, err)
	}
	return rating.Distribution(samples), nil
}

func (s *statsService) MonthlyTrend(ctx context.Context, productID uint) ([]rating.MonthTrend, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}
	now := s.now()
	if now.IsZero() {
		return nil, fmt.Errorf("%w: now must be set", ErrInvalidInput)
	}

	since := rating.WindowStart(now)
	samples, err := s.reviewRepo.ListSamples(ctx, productID, &since)
	if err != nil {
		return nil, fmt.Errorf("load reviews of product %d: %w", productID, err)
	}
	return rating.MonthlyTrend(samples, now)
}

func (s *statsService) TopTags(ctx context.Context, productID uint, limit int) ([]rating.TagCount, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.topTagLimit
	}
	return s.tagRepo.TopTags(ctx, productID, limit)
}

func (s *statsService) Invalidate(ctx context.Context, productID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey(productID)); err != nil {
		logger.Warn("Failed to invalidate product stats cache", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
	}
}
