package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/metrics"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
)

// AggregateService keeps the denormalized product counters (average rating,
// total reviews) and the per-product tag counts in step with the reviews.
type AggregateService interface {
	// RecomputeProductAggregates re-reads every review of the product and writes
	// the result in its own transaction. A product that no longer exists yields
	// (nil, nil).
	RecomputeProductAggregates(ctx context.Context, productID uint) (*rating.Summary, error)
	// RecomputeWithTx is RecomputeProductAggregates inside the caller's transaction.
	RecomputeWithTx(ctx context.Context, tx *gorm.DB, productID uint) (*rating.Summary, error)
	// ApplyTagDelta increments and decrements normalized tag counters.
	ApplyTagDelta(ctx context.Context, tx *gorm.DB, productID uint, added, removed map[string]int) error
	// RebuildProduct recomputes the counters and rebuilds the tag rows from scratch.
	RebuildProduct(ctx context.Context, productID uint) (*rating.Summary, error)
	// RebuildAll runs RebuildProduct for every product and returns how many were rebuilt.
	RebuildAll(ctx context.Context) (int, error)
}

type aggregateService struct {
	db          *gorm.DB
	productRepo repository.ProductRepository
	reviewRepo  repository.ReviewRepository
	tagRepo     repository.ReviewTagRepository
	policy      rating.TotalPolicy
}

func NewAggregateService(
	db *gorm.DB,
	productRepo repository.ProductRepository,
	reviewRepo repository.ReviewRepository,
	tagRepo repository.ReviewTagRepository,
	policy rating.TotalPolicy,
) AggregateService {
	return &aggregateService{
		db:          db,
		productRepo: productRepo,
		reviewRepo:  reviewRepo,
		tagRepo:     tagRepo,
		policy:      policy,
	}
}

func (s *aggregateService) RecomputeProductAggregates(ctx context.Context, productID uint) (*rating.Summary, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}

	var summary *rating.Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, err = s.RecomputeWithTx(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *aggregateService) RecomputeWithTx(ctx context.Context, tx *gorm.DB, productID uint) (*rating.Summary, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}
	started := time.Now()

	if _, err := s.productRepo.WithTx(tx).FindByIDForUpdate(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Skipping aggregate recompute: product not found", map[string]interface{}{
				"product_id": productID,
			})
			metrics.ObserveRecompute("skipped", started)
			return nil, nil
		}
		metrics.ObserveRecompute("error", started)
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}

	samples, err := s.reviewRepo.WithTx(tx).ListSamples(ctx, productID, nil)
	if err != nil {
		metrics.ObserveRecompute("error", started)
		return nil, fmt.Errorf("load reviews of product %d: %w", productID, err)
	}

	summary := rating.Summarize(samples, s.policy)

	found, err := s.productRepo.WithTx(tx).UpdateAggregates(ctx, productID, summary.Average, summary.Total)
	if err != nil {
		metrics.ObserveRecompute("error", started)
		return nil, fmt.Errorf("write aggregates of product %d: %w", productID, err)
	}
	if !found {
		logger.Warn("Product vanished before aggregate write", map[string]interface{}{
			"product_id": productID,
		})
		metrics.ObserveRecompute("skipped", started)
		return nil, nil
	}

	metrics.ObserveRecompute("ok", started)
	logger.Debug("Product aggregates recomputed", map[string]interface{}{
		"product_id":     productID,
		"average_rating": summary.Average,
		"total_reviews":  summary.Total,
		"rated_reviews":  summary.Rated,
	})
	return &summary, nil
}

func (s *aggregateService) ApplyTagDelta(ctx context.Context, tx *gorm.DB, productID uint, added, removed map[string]int) error {
	tags := s.tagRepo.WithTx(tx)

	// 정렬된 순서로 갱신해 동시 트랜잭션 간 잠금 순서를 고정
	for _, name := range sortedKeys(removed) {
		if err := tags.Decrement(ctx, productID, name, removed[name]); err != nil {
			return fmt.Errorf("decrement tag %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(added) {
		if err := tags.Increment(ctx, productID, name, added[name]); err != nil {
			return fmt.Errorf("increment tag %q: %w", name, err)
		}
	}
	return nil
}

func (s *aggregateService) RebuildProduct(ctx context.Context, productID uint) (*rating.Summary, error) {
	if err := rating.ValidateProductID(productID); err != nil {
		return nil, err
	}

	var summary *rating.Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, err = s.RecomputeWithTx(ctx, tx, productID)
		if err != nil || summary == nil {
			return err
		}

		tagLists, err := s.reviewRepo.WithTx(tx).ListTagsByProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("load tags of product %d: %w", productID, err)
		}
		return s.tagRepo.WithTx(tx).Replace(ctx, productID, rating.CountTags(tagLists...))
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *aggregateService) RebuildAll(ctx context.Context) (int, error) {
	ids, err := s.productRepo.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}

	rebuilt := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		summary, err := s.RebuildProduct(ctx, id)
		if err != nil {
			logger.Error("Failed to rebuild product aggregates", err, map[string]interface{}{
				"product_id": id,
			})
			return rebuilt, err
		}
		if summary != nil {
			rebuilt++
		}
	}

	logger.Info("Rebuilt aggregates for all products", map[string]interface{}{
		"products": rebuilt,
	})
	return rebuilt, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
