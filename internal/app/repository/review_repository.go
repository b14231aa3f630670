package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewSort string

const (
	ReviewSortNewest        ReviewSort = "newest"
	ReviewSortOldest        ReviewSort = "oldest"
	ReviewSortHighestRating ReviewSort = "highest_rating"
	ReviewSortLowestRating  ReviewSort = "lowest_rating"
	ReviewSortMostHelpful   ReviewSort = "most_helpful"
)

type ReviewFilter struct {
	ProductID uint
	Rating    *int
	SortBy    ReviewSort
	Limit     int
	Offset    int
}

// RatingAverage SQL 집계 결과 (AVG, COUNT(rating))
type RatingAverage struct {
	Average float64
	Count   int64
}

type ReviewRepository interface {
	WithTx(tx *gorm.DB) ReviewRepository
	Create(ctx context.Context, review *model.Review) error
	FindByID(ctx context.Context, id uint) (*model.Review, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Review, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uint) (*model.Review, error)
	FindByReviewerAndProduct(ctx context.Context, reviewerEmail string, productID uint) (*model.Review, error)
	ListByProduct(ctx context.Context, filter ReviewFilter) ([]model.Review, int64, error)
	ListRecent(ctx context.Context, productID uint, limit int) ([]model.Review, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Review, error)
	ListTagsByProduct(ctx context.Context, productID uint) ([][]string, error)
	ListSamples(ctx context.Context, productID uint, since *time.Time) ([]rating.Sample, error)
	AverageRating(ctx context.Context, productID uint) (RatingAverage, error)
	ListPhotoFilenames(ctx context.Context) ([]string, error)
	Update(ctx context.Context, review *model.Review) error
	Delete(ctx context.Context, id uint) error
	ToggleHelpful(ctx context.Context, reviewID, userID uint) (bool, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) WithTx(tx *gorm.DB) ReviewRepository {
	return &reviewRepository{db: tx}
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	logger.Debug("Creating review in database", map[string]interface{}{
		"product_id": review.ProductID,
		"user_id":    review.UserID,
	})

	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		logger.Error("Failed to create review in database", err, map[string]interface{}{
			"product_id": review.ProductID,
		})
		return err
	}
	return nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id uint) (*model.Review, error) {
	var review model.Review
	if err := r.db.WithContext(ctx).Preload("User").First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// FindByIDForUpdate 트랜잭션 안에서 최신 행을 다시 읽음 (PostgreSQL 은 FOR UPDATE)
func (r *reviewRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Review, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var review model.Review
	if err := query.First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByUserAndProduct(ctx context.Context, userID, productID uint) (*model.Review, error) {
	var review model.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// FindByReviewerAndProduct 계정 없는 리뷰를 작성자 이메일로 조회 (가져오기 멱등성)
func (r *reviewRepository) FindByReviewerAndProduct(ctx context.Context, reviewerEmail string, productID uint) (*model.Review, error) {
	var review model.Review
	err := r.db.WithContext(ctx).
		Where("reviewer_email = ? AND product_id = ?", reviewerEmail, productID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ListByProduct(ctx context.Context, filter ReviewFilter) ([]model.Review, int64, error) {
	logger.Debug("Listing reviews by product", map[string]interface{}{
		"product_id": filter.ProductID,
		"rating":     filter.Rating,
		"sort_by":    filter.SortBy,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})

	query := r.db.WithContext(ctx).Model(&model.Review{}).Where("product_id = ?", filter.ProductID)
	if filter.Rating != nil {
		query = query.Where("rating = ?", *filter.Rating)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count reviews", err)
		return nil, 0, err
	}

	switch filter.SortBy {
	case ReviewSortOldest:
		query = query.Order("created_at ASC")
	case ReviewSortHighestRating:
		query = query.Order("rating IS NULL").Order("rating DESC").Order("created_at DESC")
	case ReviewSortLowestRating:
		query = query.Order("rating IS NULL").Order("rating ASC").Order("created_at DESC")
	case ReviewSortMostHelpful:
		query = query.Order("helpful_count DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}
	query = query.Order("id DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var reviews []model.Review
	if err := query.Preload("User").Find(&reviews).Error; err != nil {
		logger.Error("Failed to list reviews", err, map[string]interface{}{
			"product_id": filter.ProductID,
		})
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) ListRecent(ctx context.Context, productID uint, limit int) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) ListByUser(ctx context.Context, userID uint) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListTagsByProduct 상품의 리뷰별 태그 목록 (태그 재계산용)
func (r *reviewRepository) ListTagsByProduct(ctx context.Context, productID uint) ([][]string, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Select("id", "tags").
		Where("product_id = ?", productID).
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}

	lists := make([][]string, 0, len(reviews))
	for _, rv := range reviews {
		lists = append(lists, rv.Tags)
	}
	return lists, nil
}

// ListSamples 집계에 필요한 컬럼만 조회. since 가 있으면 해당 시각 이후 작성분만
func (r *reviewRepository) ListSamples(ctx context.Context, productID uint, since *time.Time) ([]rating.Sample, error) {
	query := r.db.WithContext(ctx).
		Select("id", "rating", "created_at", "tags", "comment", "photos", "helpful_count").
		Where("product_id = ?", productID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	var reviews []model.Review
	if err := query.Find(&reviews).Error; err != nil {
		logger.Error("Failed to load review samples", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}

	samples := make([]rating.Sample, 0, len(reviews))
	for i := range reviews {
		rv := &reviews[i]
		samples = append(samples, rating.Sample{
			Rating:       rv.Rating,
			CreatedAt:    rv.CreatedAt,
			Tags:         rv.Tags,
			HasComment:   rv.HasComment(),
			PhotoCount:   len(rv.Photos),
			HelpfulCount: rv.HelpfulCount,
		})
	}
	return samples, nil
}

// AverageRating SQL AVG / COUNT(rating) 로 계산 (평점 없는 리뷰 제외)
func (r *reviewRepository) AverageRating(ctx context.Context, productID uint) (RatingAverage, error) {
	var result RatingAverage
	err := r.db.WithContext(ctx).Model(&model.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(rating) AS count").
		Where("product_id = ?", productID).
		Scan(&result).Error
	if err != nil {
		return RatingAverage{}, err
	}
	return result, nil
}

// ListPhotoFilenames 리뷰가 참조 중인 모든 사진 파일명
func (r *reviewRepository) ListPhotoFilenames(ctx context.Context) ([]string, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Select("id", "photos").
		Where("photos IS NOT NULL AND photos <> '' AND photos <> '[]' AND photos <> 'null'").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}

	var names []string
	for _, rv := range reviews {
		for _, p := range rv.Photos {
			names = append(names, p.Filename)
		}
	}
	return names, nil
}

func (r *reviewRepository) Update(ctx context.Context, review *model.Review) error {
	logger.Debug("Updating review in database", map[string]interface{}{
		"review_id": review.ID,
	})

	err := r.db.WithContext(ctx).
		Model(review).
		Select("rating", "comment", "tags", "photos", "updated_at").
		Updates(review).Error
	if err != nil {
		logger.Error("Failed to update review", err, map[string]interface{}{
			"review_id": review.ID,
		})
		return err
	}
	return nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Review{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete review", result.Error, map[string]interface{}{
			"review_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ToggleHelpful "도움이 돼요" 토글. 투표 후 상태(true=투표함) 반환
func (r *reviewRepository) ToggleHelpful(ctx context.Context, reviewID, userID uint) (bool, error) {
	var voted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vote model.ReviewHelpfulVote
		err := tx.Where("review_id = ? AND user_id = ?", reviewID, userID).First(&vote).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			vote = model.ReviewHelpfulVote{ReviewID: reviewID, UserID: userID}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			voted = true
			return tx.Model(&model.Review{}).
				Where("id = ?", reviewID).
				UpdateColumn("helpful_count", gorm.Expr("helpful_count + ?", 1)).Error
		} else if err != nil {
			return err
		}

		if err := tx.Delete(&vote).Error; err != nil {
			return err
		}
		voted = false
		return tx.Model(&model.Review{}).
			Where("id = ? AND helpful_count > 0", reviewID).
			UpdateColumn("helpful_count", gorm.Expr("helpful_count - ?", 1)).Error
	})
	if err != nil {
		logger.Error("Failed to toggle helpful vote", err, map[string]interface{}{
			"review_id": reviewID,
			"user_id":   userID,
		})
		return false, err
	}
	return voted, nil
}
