package repository

import (
	"context"
	"sort"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewTagRepository interface {
	WithTx(tx *gorm.DB) ReviewTagRepository
	Increment(ctx context.Context, productID uint, tagName string, by int) error
	Decrement(ctx context.Context, productID uint, tagName string, by int) error
	Replace(ctx context.Context, productID uint, counts map[string]int) error
	DeleteByProduct(ctx context.Context, productID uint) error
	TopTags(ctx context.Context, productID uint, limit int) ([]rating.TagCount, error)
}

type reviewTagRepository struct {
	db *gorm.DB
}

func NewReviewTagRepository(db *gorm.DB) ReviewTagRepository {
	return &reviewTagRepository{db: db}
}

func (r *reviewTagRepository) WithTx(tx *gorm.DB) ReviewTagRepository {
	return &reviewTagRepository{db: tx}
}

// Increment 행이 없으면 by 로 생성, 있으면 usage_count + by (원자적 upsert)
func (r *reviewTagRepository) Increment(ctx context.Context, productID uint, tagName string, by int) error {
	if by <= 0 {
		return nil
	}

	tag := model.ReviewTag{
		ProductID: productID,
		TagName:   tagName,
		Count:     by,
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "tag_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"usage_count": gorm.Expr("review_tags.usage_count + ?", by),
			"updated_at":  tag.UpdatedAt,
		}),
	}).Create(&tag).Error
	if err != nil {
		logger.Error("Failed to increment review tag", err, map[string]interface{}{
			"product_id": productID,
			"tag":        tagName,
		})
		return err
	}
	return nil
}

// Decrement usage_count - by, 0 이하가 된 행은 삭제
func (r *reviewTagRepository) Decrement(ctx context.Context, productID uint, tagName string, by int) error {
	if by <= 0 {
		return nil
	}

	db := r.db.WithContext(ctx)
	err := db.Model(&model.ReviewTag{}).
		Where("product_id = ? AND tag_name = ?", productID, tagName).
		UpdateColumns(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count - ?", by),
			"updated_at":  time.Now(),
		}).Error
	if err != nil {
		logger.Error("Failed to decrement review tag", err, map[string]interface{}{
			"product_id": productID,
			"tag":        tagName,
		})
		return err
	}

	return db.Where("product_id = ? AND tag_name = ? AND usage_count <= 0", productID, tagName).
		Delete(&model.ReviewTag{}).Error
}

// Replace 상품의 태그 행 전체를 counts 로 재구성
func (r *reviewTagRepository) Replace(ctx context.Context, productID uint, counts map[string]int) error {
	if err := r.DeleteByProduct(ctx, productID); err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	rows := make([]model.ReviewTag, 0, len(names))
	for _, name := range names {
		if counts[name] <= 0 {
			continue
		}
		rows = append(rows, model.ReviewTag{
			ProductID: productID,
			TagName:   name,
			Count:     counts[name],
			UpdatedAt: now,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		logger.Error("Failed to rebuild review tags", err, map[string]interface{}{
			"product_id": productID,
		})
		return err
	}
	return nil
}

func (r *reviewTagRepository) DeleteByProduct(ctx context.Context, productID uint) error {
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&model.ReviewTag{}).Error
}

// TopTags 사용 횟수 내림차순, 같으면 이름순
func (r *reviewTagRepository) TopTags(ctx context.Context, productID uint, limit int) ([]rating.TagCount, error) {
	query := r.db.WithContext(ctx).Model(&model.ReviewTag{}).
		Where("product_id = ?", productID).
		Order("usage_count DESC").
		Order("tag_name ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.ReviewTag
	if err := query.Find(&rows).Error; err != nil {
		logger.Error("Failed to load top tags", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}

	tags := make([]rating.TagCount, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, rating.TagCount{TagName: row.TagName, Count: row.Count})
	}
	return tags, nil
}
