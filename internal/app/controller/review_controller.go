package controller

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	apperrors "github.com/ikkim/productreview-backend/internal/errors"
	"github.com/ikkim/productreview-backend/internal/middleware"
)

const photoFormField = "photos"

type ReviewController struct {
	reviewService service.ReviewService
}

func NewReviewController(reviewService service.ReviewService) *ReviewController {
	return &ReviewController{
		reviewService: reviewService,
	}
}

// CreateReviewRequest binds from JSON or multipart/form-data. In a form, tags
// may be repeated fields or a single JSON array string.
type CreateReviewRequest struct {
	Rating  *int     `json:"rating" form:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string  `json:"comment" form:"comment" binding:"omitempty,max=2000"`
	Tags    []string `json:"tags" form:"tags"`
}

type UpdateReviewRequest struct {
	Rating  *int      `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string   `json:"comment" binding:"omitempty,max=2000"`
	Tags    *[]string `json:"tags" binding:"omitempty,max=10,dive,review_tag"`
}

type ListReviewsQuery struct {
	Page  int    `form:"page" binding:"omitempty,min=1"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
	Sort  string `form:"sort" binding:"omitempty,oneof=newest oldest highest_rating lowest_rating most_helpful"`
}

type tagList struct {
	Tags []string `json:"tags" binding:"max=10,dive,review_tag"`
}

// expandTags accepts ["a","b"], a single `["a","b"]` form value, or a comma
// separated single value.
func expandTags(raw []string) ([]string, error) {
	if len(raw) != 1 {
		return raw, nil
	}
	single := strings.TrimSpace(raw[0])
	switch {
	case single == "":
		return nil, nil
	case strings.HasPrefix(single, "["):
		var tags []string
		if err := json.Unmarshal([]byte(single), &tags); err != nil {
			return nil, err
		}
		return tags, nil
	case strings.Contains(single, ","):
		return strings.Split(single, ","), nil
	}
	return raw, nil
}

func uploadedPhotos(c *gin.Context) []*multipart.FileHeader {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil
	}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[photoFormField]
}

func actorFromContext(c *gin.Context) (service.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, IsAdmin: middleware.IsAdmin(c)}, true
}

// CreateReview
// POST /api/v1/products/:id/reviews
func (ctrl *ReviewController) CreateReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tags, err := expandTags(req.Tags)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "태그 형식이 올바르지 않습니다")
		return
	}
	if err := binding.Validator.ValidateStruct(tagList{Tags: tags}); err != nil {
		respondBindError(c, err)
		return
	}

	photos := uploadedPhotos(c)
	review, err := ctrl.reviewService.CreateReview(c.Request.Context(), actor.UserID, service.CreateReviewInput{
		ProductID: productID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Tags:      tags,
		Photos:    photos,
	})
	if err != nil {
		respondServiceError(c, err, "create review")
		return
	}

	log.Info("Review created", map[string]interface{}{
		"review_id":  review.ID,
		"product_id": productID,
		"photos":     len(photos),
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "Review created successfully",
		"review":  review,
	})
}

// ListProductReviews
// GET /api/v1/products/:id/reviews
func (ctrl *ReviewController) ListProductReviews(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var query ListReviewsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	ratingFilter, ok := parseOptionalInt(c, "rating")
	if !ok {
		return
	}

	page, err := ctrl.reviewService.ListProductReviews(c.Request.Context(), service.ReviewListQuery{
		ProductID: productID,
		Page:      query.Page,
		Limit:     query.Limit,
		Sort:      repository.ReviewSort(query.Sort),
		Rating:    ratingFilter,
	})
	if err != nil {
		respondServiceError(c, err, "list product reviews")
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetAverageRating
// GET /api/v1/products/:id/reviews/average
func (ctrl *ReviewController) GetAverageRating(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	avg, err := ctrl.reviewService.GetAverageRating(c.Request.Context(), productID)
	if err != nil {
		respondServiceError(c, err, "get product average rating")
		return
	}
	c.JSON(http.StatusOK, avg)
}

// GetReview
// GET /api/v1/reviews/:id
func (ctrl *ReviewController) GetReview(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	review, err := ctrl.reviewService.GetReview(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get review")
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// UpdateReview (owner only)
// PUT /api/v1/reviews/:id
func (ctrl *ReviewController) UpdateReview(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := ctrl.reviewService.UpdateReview(c.Request.Context(), actor, id, service.UpdateReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
		Tags:    req.Tags,
	})
	if err != nil {
		respondServiceError(c, err, "update review")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review updated successfully",
		"review":  review,
	})
}

// DeleteReview (owner or admin)
// DELETE /api/v1/reviews/:id
func (ctrl *ReviewController) DeleteReview(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := ctrl.reviewService.DeleteReview(c.Request.Context(), actor, id); err != nil {
		respondServiceError(c, err, "delete review")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review deleted successfully",
	})
}

// ToggleHelpful
// POST /api/v1/reviews/:id/helpful
func (ctrl *ReviewController) ToggleHelpful(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := ctrl.reviewService.ToggleHelpful(c.Request.Context(), actor.UserID, id)
	if err != nil {
		respondServiceError(c, err, "toggle helpful vote on review")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMyReviews
// GET /api/v1/users/me/reviews
func (ctrl *ReviewController) ListMyReviews(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	reviews, err := ctrl.reviewService.ListMyReviews(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err, "list my reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"count":   len(reviews),
	})
}
