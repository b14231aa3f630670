package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/metrics"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/internal/storage"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	MaxTagsPerReview   = 10
	MaxTagLength       = 50
	MaxCommentLength   = 2000
	MaxReviewPageLimit = 50
)

// 리뷰 이벤트 타입
const (
	ReviewEventCreated = "review_created"
	ReviewEventUpdated = "review_updated"
	ReviewEventDeleted = "review_deleted"
)

// ReviewEvent 커밋된 리뷰 변경 알림 (상품 라이브 피드)
type ReviewEvent struct {
	Type          string  `json:"type"`
	ProductID     uint    `json:"product_id"`
	ReviewID      uint    `json:"review_id"`
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}

// ReviewEventPublisher is satisfied by the websocket hub.
type ReviewEventPublisher interface {
	PublishToProduct(productID uint, payload interface{})
}

type CreateReviewInput struct {
	ProductID uint
	Rating    *int
	Comment   *string
	Tags      []string
	Photos    []*multipart.FileHeader
}

// UpdateReviewInput nil 필드는 변경하지 않음. Comment 가 빈 문자열이면 본문 삭제
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
	Tags    *[]string
}

type ReviewListQuery struct {
	ProductID uint
	Page      int
	Limit     int
	Sort      repository.ReviewSort
	Rating    *int
}

type ReviewPage struct {
	Reviews    []model.Review `json:"reviews"`
	Pagination Pagination     `json:"pagination"`
}

type AverageRatingResult struct {
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int64   `json:"totalReviews"`
}

type HelpfulResult struct {
	Voted        bool `json:"voted"`
	HelpfulCount int  `json:"helpful_count"`
}

// Actor 요청자 (소유자 확인용)
type Actor struct {
	UserID  uint
	IsAdmin bool
}

type ReviewService interface {
	CreateReview(ctx context.Context, userID uint, input CreateReviewInput) (*model.Review, error)
	GetReview(ctx context.Context, id uint) (*model.Review, error)
	ListProductReviews(ctx context.Context, query ReviewListQuery) (*ReviewPage, error)
	ListMyReviews(ctx context.Context, userID uint) ([]model.Review, error)
	GetAverageRating(ctx context.Context, productID uint) (*AverageRatingResult, error)
	UpdateReview(ctx context.Context, actor Actor, reviewID uint, input UpdateReviewInput) (*model.Review, error)
	DeleteReview(ctx context.Context, actor Actor, reviewID uint) error
	ToggleHelpful(ctx context.Context, userID, reviewID uint) (*HelpfulResult, error)
}

type reviewService struct {
	db           *gorm.DB
	reviewRepo   repository.ReviewRepository
	productRepo  repository.ProductRepository
	aggregates   AggregateService
	stats        StatsService
	photos       storage.PhotoStorage
	maxPhotos    int
	maxPhotoSize int64
	publisher    ReviewEventPublisher
}

type ReviewOption func(*reviewService)

// WithPhotoStorage enables photo attachments.
func WithPhotoStorage(photos storage.PhotoStorage, maxPhotos int, maxPhotoSize int64) ReviewOption {
	return func(s *reviewService) {
		s.photos = photos
		s.maxPhotos = maxPhotos
		s.maxPhotoSize = maxPhotoSize
	}
}

func WithEventPublisher(publisher ReviewEventPublisher) ReviewOption {
	return func(s *reviewService) { s.publisher = publisher }
}

func NewReviewService(
	db *gorm.DB,
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	aggregates AggregateService,
	stats StatsService,
	opts ...ReviewOption,
) ReviewService {
	s := &reviewService{
		db:          db,
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		aggregates:  aggregates,
		stats:       stats,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeContent 평점/본문/태그 검증 후 저장 형태로 변환
func normalizeContent(ratingValue *int, comment *string, tags []string) (*string, []string, error) {
	if ratingValue != nil && !rating.ValidRating(*ratingValue) {
		return nil, nil, ErrInvalidRating
	}

	var text *string
	if comment != nil {
		if trimmed := strings.TrimSpace(*comment); trimmed != "" {
			if utf8.RuneCountInString(trimmed) > MaxCommentLength {
				return nil, nil, ErrCommentTooLong
			}
			text = &trimmed
		}
	}

	if ratingValue == nil && text == nil {
		return nil, nil, ErrEmptyReview
	}

	normalized := rating.NormalizeTags(tags)
	if len(normalized) > MaxTagsPerReview {
		return nil, nil, ErrTooManyTags
	}
	for _, t := range normalized {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, nil, ErrTagTooLong
		}
	}
	return text, normalized, nil
}

func (s *reviewService) validatePhotos(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return nil
	}
	if s.photos == nil {
		return errors.New("photo storage is not configured")
	}
	if s.maxPhotos > 0 && len(files) > s.maxPhotos {
		return ErrTooManyPhotos
	}
	for _, f := range files {
		if err := storage.ValidatePhoto(f, s.maxPhotoSize); err != nil {
			return err
		}
	}
	return nil
}

func (s *reviewService) savePhotos(ctx context.Context, files []*multipart.FileHeader) ([]model.Photo, error) {
	saved := make([]model.Photo, 0, len(files))
	for _, f := range files {
		photo, err := s.photos.Save(ctx, f)
		if err != nil {
			s.removePhotos(ctx, saved)
			return nil, fmt.Errorf("save photo %q: %w", f.Filename, err)
		}
		saved = append(saved, *photo)
	}
	return saved, nil
}

// removePhotos 실패해도 요청은 계속 진행 (고아 파일은 정리 작업이 삭제)
func (s *reviewService) removePhotos(ctx context.Context, photos []model.Photo) {
	if s.photos == nil {
		return
	}
	for _, p := range photos {
		if err := s.photos.Delete(ctx, p.Filename); err != nil {
			logger.Warn("Failed to remove review photo", map[string]interface{}{
				"filename": p.Filename,
				"error":    err.Error(),
			})
		}
	}
}

func (s *reviewService) lockProduct(ctx context.Context, tx *gorm.DB, productID uint) error {
	if _, err := s.productRepo.WithTx(tx).FindByIDForUpdate(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("lock product %d: %w", productID, err)
	}
	return nil
}

// afterCommit 캐시 무효화, 메트릭, 라이브 피드 알림
func (s *reviewService) afterCommit(ctx context.Context, eventType string, productID, reviewID uint, summary *rating.Summary) {
	s.stats.Invalidate(ctx, productID)

	label := strings.TrimPrefix(eventType, "review_")
	metrics.ReviewMutations.WithLabelValues(label).Inc()

	if s.publisher == nil {
		return
	}
	event := ReviewEvent{
		Type:      eventType,
		ProductID: productID,
		ReviewID:  reviewID,
	}
	if summary != nil {
		event.AverageRating = summary.Average
		event.TotalReviews = summary.Total
	}
	s.publisher.PublishToProduct(productID, event)
}

func (s *reviewService) CreateReview(ctx context.Context, userID uint, input CreateReviewInput) (*model.Review, error) {
	if err := rating.ValidateProductID(input.ProductID); err != nil {
		return nil, err
	}
	comment, tags, err := normalizeContent(input.Rating, input.Comment, input.Tags)
	if err != nil {
		return nil, err
	}
	if err := s.validatePhotos(input.Photos); err != nil {
		return nil, err
	}

	if _, err := s.reviewRepo.FindByUserAndProduct(ctx, userID, input.ProductID); err == nil {
		return nil, ErrReviewAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing review: %w", err)
	}

	var photos []model.Photo
	if len(input.Photos) > 0 {
		photos, err = s.savePhotos(ctx, input.Photos)
		if err != nil {
			return nil, err
		}
	}

	uid := userID
	review := &model.Review{
		ProductID: input.ProductID,
		UserID:    &uid,
		Rating:    input.Rating,
		Comment:   comment,
		Tags:      tags,
		Photos:    photos,
	}

	var summary *rating.Summary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockProduct(ctx, tx, input.ProductID); err != nil {
			return err
		}

		// 상품 잠금 이후 재확인 (동시 작성 방지)
		if _, err := s.reviewRepo.WithTx(tx).FindByUserAndProduct(ctx, userID, input.ProductID); err == nil {
			return ErrReviewAlreadyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.reviewRepo.WithTx(tx).Create(ctx, review); err != nil {
			return err
		}
		if err := s.aggregates.ApplyTagDelta(ctx, tx, input.ProductID, rating.CountTags(tags), nil); err != nil {
			return err
		}

		var err error
		summary, err = s.aggregates.RecomputeWithTx(ctx, tx, input.ProductID)
		return err
	})
	if err != nil {
		s.removePhotos(ctx, photos)
		return nil, err
	}

	s.afterCommit(ctx, ReviewEventCreated, review.ProductID, review.ID, summary)
	logger.Info("Review created", map[string]interface{}{
		"review_id":  review.ID,
		"product_id": review.ProductID,
		"user_id":    userID,
		"photos":     len(photos),
	})

	return s.GetReview(ctx, review.ID)
}

func (s *reviewService) GetReview(ctx context.Context, id uint) (*model.Review, error) {
	review, err := s.reviewRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("load review %d: %w", id, err)
	}
	return review, nil
}

func (s *reviewService) ensureProduct(ctx context.Context, productID uint) error {
	if err := rating.ValidateProductID(productID); err != nil {
		return err
	}
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("load product %d: %w", productID, err)
	}
	return nil
}

func (s *reviewService) ListProductReviews(ctx context.Context, query ReviewListQuery) (*ReviewPage, error) {
	if err := s.ensureProduct(ctx, query.ProductID); err != nil {
		return nil, err
	}
	if query.Rating != nil && !rating.ValidRating(*query.Rating) {
		return nil, ErrInvalidRating
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = DefaultPageLimit
	}
	if query.Limit > MaxReviewPageLimit {
		query.Limit = MaxReviewPageLimit
	}

	reviews, total, err := s.reviewRepo.ListByProduct(ctx, repository.ReviewFilter{
		ProductID: query.ProductID,
		Rating:    query.Rating,
		SortBy:    query.Sort,
		Limit:     query.Limit,
		Offset:    (query.Page - 1) * query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews of product %d: %w", query.ProductID, err)
	}
	if reviews == nil {
		reviews = []model.Review{}
	}

	return &ReviewPage{
		Reviews:    reviews,
		Pagination: NewPagination(query.Page, query.Limit, total),
	}, nil
}

func (s *reviewService) ListMyReviews(ctx context.Context, userID uint) ([]model.Review, error) {
	reviews, err := s.reviewRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews of user %d: %w", userID, err)
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}

// GetAverageRating 평점 있는 리뷰만으로 계산. totalReviews 는 평점 개수
func (s *reviewService) GetAverageRating(ctx context.Context, productID uint) (*AverageRatingResult, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	avg, err := s.reviewRepo.AverageRating(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("average rating of product %d: %w", productID, err)
	}
	return &AverageRatingResult{
		AverageRating: rating.Round1(avg.Average),
		TotalReviews:  avg.Count,
	}, nil
}

func (s *reviewService) UpdateReview(ctx context.Context, actor Actor, reviewID uint, input UpdateReviewInput) (*model.Review, error) {
	if input.Rating == nil && input.Comment == nil && input.Tags == nil {
		return nil, ErrEmptyUpdate
	}

	var (
		productID uint
		summary   *rating.Summary
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := s.reviewRepo.WithTx(tx)

		found, err := reviews.FindByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		productID = found.ProductID

		if err := s.lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		// 태그 델타는 잠금 이후 다시 읽은 행 기준
		review, err := reviews.FindByIDForUpdate(ctx, reviewID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		if review.UserID == nil || *review.UserID != actor.UserID {
			return ErrReviewForbidden
		}

		newRating := review.Rating
		if input.Rating != nil {
			newRating = input.Rating
		}
		newComment := review.Comment
		if input.Comment != nil {
			newComment = input.Comment
		}
		newTags := review.Tags
		if input.Tags != nil {
			newTags = *input.Tags
		}

		comment, tags, err := normalizeContent(newRating, newComment, newTags)
		if err != nil {
			return err
		}
		added, removed := rating.DiffTags(review.Tags, tags)

		review.Rating = newRating
		review.Comment = comment
		review.Tags = tags
		if err := reviews.Update(ctx, review); err != nil {
			return err
		}
		if err := s.aggregates.ApplyTagDelta(ctx, tx, productID, added, removed); err != nil {
			return err
		}

		summary, err = s.aggregates.RecomputeWithTx(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ReviewEventUpdated, productID, reviewID, summary)
	logger.Info("Review updated", map[string]interface{}{
		"review_id":  reviewID,
		"product_id": productID,
		"user_id":    actor.UserID,
	})

	return s.GetReview(ctx, reviewID)
}

// DeleteReview 작성자 또는 관리자만 삭제 가능. 사진 파일은 커밋 후 삭제
func (s *reviewService) DeleteReview(ctx context.Context, actor Actor, reviewID uint) error {
	var (
		deleted *model.Review
		summary *rating.Summary
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := s.reviewRepo.WithTx(tx)

		review, err := reviews.FindByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		isOwner := review.UserID != nil && *review.UserID == actor.UserID
		if !isOwner && !actor.IsAdmin {
			return ErrReviewForbidden
		}

		if err := s.lockProduct(ctx, tx, review.ProductID); err != nil {
			return err
		}
		if err := reviews.Delete(ctx, reviewID); err != nil {
			return err
		}
		if err := s.aggregates.ApplyTagDelta(ctx, tx, review.ProductID, nil, rating.CountTags(review.Tags)); err != nil {
			return err
		}

		summary, err = s.aggregates.RecomputeWithTx(ctx, tx, review.ProductID)
		if err != nil {
			return err
		}
		deleted = review
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReviewNotFound
		}
		return err
	}

	s.removePhotos(ctx, deleted.Photos)
	s.afterCommit(ctx, ReviewEventDeleted, deleted.ProductID, reviewID, summary)
	logger.Info("Review deleted", map[string]interface{}{
		"review_id":  reviewID,
		"product_id": deleted.ProductID,
		"user_id":    actor.UserID,
		"by_admin":   actor.IsAdmin && (deleted.UserID == nil || *deleted.UserID != actor.UserID),
	})
	return nil
}

func (s *reviewService) ToggleHelpful(ctx context.Context, userID, reviewID uint) (*HelpfulResult, error) {
	review, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	voted, err := s.reviewRepo.ToggleHelpful(ctx, reviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("toggle helpful vote: %w", err)
	}
	s.stats.Invalidate(ctx, review.ProductID)

	updated, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	return &HelpfulResult{Voted: voted, HelpfulCount: updated.HelpfulCount}, nil
}
