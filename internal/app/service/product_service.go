package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit    = 10
	MaxProductPageLimit = 100
)

type ProductListQuery struct {
	Page     int
	Limit    int
	Sort     repository.ProductSort
	Category string
	Search   string
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

type ProductFilters struct {
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
	Sort     string `json:"sort"`
}

type ProductPage struct {
	Products   []model.Product `json:"products"`
	Pagination Pagination      `json:"pagination"`
	Categories []string        `json:"categories"`
	Filters    ProductFilters  `json:"filters"`
}

type ProductDetail struct {
	Product            *model.Product    `json:"product"`
	RatingDistribution []rating.Bucket   `json:"rating_distribution"`
	TopTags            []rating.TagCount `json:"top_tags"`
	RecentReviews      []model.Review    `json:"recent_reviews"`
	UserReview         *model.Review     `json:"user_review"`
}

type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    *string
	ImageURL    string
}

// ProductUpdate nil 필드는 변경하지 않음. 집계 필드는 포함하지 않음
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	ImageURL    *string
}

func (u ProductUpdate) fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Price != nil {
		fields["price"] = *u.Price
	}
	if u.Category != nil {
		fields["category"] = *u.Category
	}
	if u.ImageURL != nil {
		fields["image_url"] = *u.ImageURL
	}
	return fields
}

type ProductService interface {
	ListProducts(ctx context.Context, query ProductListQuery) (*ProductPage, error)
	GetProduct(ctx context.Context, id uint) (*model.Product, error)
	GetProductDetail(ctx context.Context, id uint, viewerID *uint) (*ProductDetail, error)
	CreateProduct(ctx context.Context, input ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uint, update ProductUpdate) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uint) error
}

type productService struct {
	db                *gorm.DB
	productRepo       repository.ProductRepository
	reviewRepo        repository.ReviewRepository
	tagRepo           repository.ReviewTagRepository
	stats             StatsService
	recentReviewLimit int
	topTagLimit       int
}

func NewProductService(
	db *gorm.DB,
	productRepo repository.ProductRepository,
	reviewRepo repository.ReviewRepository,
	tagRepo repository.ReviewTagRepository,
	stats StatsService,
	recentReviewLimit, topTagLimit int,
) ProductService {
	return &productService{
		db:                db,
		productRepo:       productRepo,
		reviewRepo:        reviewRepo,
		tagRepo:           tagRepo,
		stats:             stats,
		recentReviewLimit: recentReviewLimit,
		topTagLimit:       topTagLimit,
	}
}

func (s *productService) ListProducts(ctx context.Context, query ProductListQuery) (*ProductPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = DefaultPageLimit
	}
	if query.Limit > MaxProductPageLimit {
		query.Limit = MaxProductPageLimit
	}
	if query.Sort == "" {
		query.Sort = repository.ProductSortNewest
	}
	query.Search = strings.TrimSpace(query.Search)

	products, total, err := s.productRepo.FindWithFilter(ctx, repository.ProductFilter{
		Category: query.Category,
		Search:   query.Search,
		SortBy:   query.Sort,
		Limit:    query.Limit,
		Offset:   (query.Page - 1) * query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	categories, err := s.productRepo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	if categories == nil {
		categories = []string{}
	}

	return &ProductPage{
		Products:   products,
		Pagination: NewPagination(query.Page, query.Limit, total),
		Categories: categories,
		Filters: ProductFilters{
			Category: query.Category,
			Search:   query.Search,
			Sort:     string(query.Sort),
		},
	}, nil
}

func (s *productService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	if err := rating.ValidateProductID(id); err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return product, nil
}

func (s *productService) GetProductDetail(ctx context.Context, id uint, viewerID *uint) (*ProductDetail, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	distribution, err := s.stats.RatingDistribution(ctx, id)
	if err != nil {
		return nil, err
	}

	tags, err := s.stats.TopTags(ctx, id, s.topTagLimit)
	if err != nil {
		return nil, fmt.Errorf("load top tags: %w", err)
	}

	recent, err := s.reviewRepo.ListRecent(ctx, id, s.recentReviewLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent reviews: %w", err)
	}
	if recent == nil {
		recent = []model.Review{}
	}

	detail := &ProductDetail{
		Product:            product,
		RatingDistribution: distribution,
		TopTags:            tags,
		RecentReviews:      recent,
	}

	if viewerID != nil {
		own, err := s.reviewRepo.FindByUserAndProduct(ctx, *viewerID, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load viewer review: %w", err)
		}
		detail.UserReview = own
	}

	return detail, nil
}

func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*model.Product, error) {
	product := &model.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		ImageURL:    input.ImageURL,
	}
	if product.Name == "" || product.Price < 0 {
		return nil, fmt.Errorf("%w: name and non-negative price are required", ErrInvalidInput)
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	logger.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
	})
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uint, update ProductUpdate) (*model.Product, error) {
	if err := rating.ValidateProductID(id); err != nil {
		return nil, err
	}

	fields := update.fields()
	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}

	if err := s.productRepo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	s.stats.Invalidate(ctx, id)
	logger.Info("Product updated", map[string]interface{}{
		"product_id": id,
		"fields":     len(fields),
	})
	return s.GetProduct(ctx, id)
}

// DeleteProduct 상품, 리뷰(FK CASCADE), 태그 행을 함께 삭제
func (s *productService) DeleteProduct(ctx context.Context, id uint) error {
	if err := rating.ValidateProductID(id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tagRepo.WithTx(tx).DeleteByProduct(ctx, id); err != nil {
			return err
		}
		return s.productRepo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	s.stats.Invalidate(ctx, id)
	logger.Info("Product deleted", map[string]interface{}{
		"product_id": id,
	})
	return nil
}
