package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductSort string

const (
	ProductSortNewest        ProductSort = "newest"
	ProductSortOldest        ProductSort = "oldest"
	ProductSortHighestRating ProductSort = "highest_rating"
	ProductSortLowestRating  ProductSort = "lowest_rating"
)

type ProductFilter struct {
	Category string
	Search   string
	SortBy   ProductSort
	Limit    int
	Offset   int
}

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Product, error)
	FindByName(ctx context.Context, name string) (*model.Product, error)
	FindWithFilter(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListIDs(ctx context.Context) ([]uint, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	UpdateAggregates(ctx context.Context, id uint, average float64, total int) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepository{db: tx}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":     product.Name,
		"category": product.Category,
	})

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
	})
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate PostgreSQL 에서는 SELECT ... FOR UPDATE 로 행을 잠금.
// SQLite 는 쓰기 트랜잭션이 직렬화되므로 일반 조회와 동일
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Product, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var product model.Product
	if err := query.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindWithFilter(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	logger.Debug("Finding products with filter", map[string]interface{}{
		"category": filter.Category,
		"search":   filter.Search,
		"sort_by":  filter.SortBy,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})

	query := r.db.WithContext(ctx).Model(&model.Product{})

	if filter.Category != "" {
		query = query.Where("products.category = ?", filter.Category)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.ToLower(filter.Search))
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count products", err)
		return nil, 0, err
	}

	switch filter.SortBy {
	case ProductSortOldest:
		query = query.Order("products.created_at ASC")
	case ProductSortHighestRating:
		query = query.Order("products.average_rating DESC").Order("products.total_reviews DESC")
	case ProductSortLowestRating:
		query = query.Order("products.average_rating ASC").Order("products.total_reviews DESC")
	case ProductSortNewest:
		fallthrough
	default:
		query = query.Order("products.created_at DESC")
	}
	query = query.Order("products.id ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []model.Product
	if err := query.Find(&products).Error; err != nil {
		logger.Error("Failed to find products with filter", err)
		return nil, 0, err
	}

	logger.Debug("Products found with filter", map[string]interface{}{
		"count": len(products),
		"total": total,
	})
	return products, total, nil
}

// ListCategories 중복 없는 카테고리 목록 (이름순)
func (r *productRepository) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		logger.Error("Failed to list product categories", err)
		return nil, err
	}
	return categories, nil
}

func (r *productRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *productRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": id,
		"fields":     len(updates),
	})

	result := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update product", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateAggregates 평균 평점과 리뷰 수만 갱신. 상품이 없으면 false
func (r *productRepository) UpdateAggregates(ctx context.Context, id uint, average float64, total int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"average_rating": average,
			"total_reviews":  total,
		})
	if result.Error != nil {
		logger.Error("Failed to update product aggregates", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return false, result.Error
	}

	logger.Debug("Product aggregates written", map[string]interface{}{
		"product_id":     id,
		"average_rating": average,
		"total_reviews":  total,
		"rows_affected":  result.RowsAffected,
	})
	return result.RowsAffected > 0, nil
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete product", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
