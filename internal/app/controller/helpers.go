package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/productreview-backend/internal/app/service"
	apperrors "github.com/ikkim/productreview-backend/internal/errors"
	"github.com/ikkim/productreview-backend/internal/middleware"
	"github.com/ikkim/productreview-backend/internal/storage"
	"github.com/ikkim/productreview-backend/pkg/util"
	"github.com/ikkim/productreview-backend/pkg/validator"
)

// parseIDParam responds 400 and returns false when the path id is not a
// positive integer.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID parameter", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "잘못된 ID입니다")
		return 0, false
	}
	return uint(id), true
}

// parseOptionalInt returns nil for an absent query parameter.
func parseOptionalInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, name+" 값이 올바르지 않습니다")
		return nil, false
	}
	return &v, true
}

func respondBindError(c *gin.Context, err error) {
	middleware.GetLoggerFromContext(c).Warn("Invalid request body", map[string]interface{}{
		"error": err.Error(),
	})
	if fields := validator.FieldErrors(err); fields != nil {
		apperrors.RespondWithValidationError(c, fields)
		return
	}
	apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
}

// respondServiceError maps service sentinels to error codes and falls back to
// the database error parser.
func respondServiceError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력값이 올바르지 않습니다")
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ProductNotFound, "상품을 찾을 수 없습니다")
	case errors.Is(err, service.ErrReviewNotFound):
		apperrors.NotFound(c, apperrors.ReviewNotFound, "리뷰를 찾을 수 없습니다")
	case errors.Is(err, service.ErrUserNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "사용자를 찾을 수 없습니다")
	case errors.Is(err, service.ErrEmptyUpdate):
		apperrors.BadRequest(c, apperrors.ProductEmptyUpdate, "수정할 항목이 없습니다")
	case errors.Is(err, service.ErrReviewAlreadyExists):
		apperrors.Conflict(c, apperrors.ReviewAlreadyExists, "이미 이 상품에 리뷰를 작성하셨습니다")
	case errors.Is(err, service.ErrReviewForbidden):
		apperrors.Forbidden(c, apperrors.AuthzOwnerOnly, "본인이 작성한 리뷰만 수정/삭제할 수 있습니다")
	case errors.Is(err, service.ErrEmptyReview):
		apperrors.BadRequest(c, apperrors.ReviewEmpty, "평점 또는 리뷰 내용을 입력해주세요")
	case errors.Is(err, service.ErrInvalidRating):
		apperrors.BadRequest(c, apperrors.ReviewInvalidRating, "평점은 1~5 사이의 값이어야 합니다")
	case errors.Is(err, service.ErrTooManyTags):
		apperrors.BadRequest(c, apperrors.ReviewTooManyTags, "태그는 최대 10개까지 입력할 수 있습니다")
	case errors.Is(err, service.ErrTagTooLong), errors.Is(err, service.ErrCommentTooLong):
		apperrors.BadRequest(c, apperrors.ValidationTooLong, err.Error())
	case errors.Is(err, service.ErrTooManyPhotos):
		apperrors.BadRequest(c, apperrors.UploadTooManyFiles, "사진은 최대 5장까지 업로드할 수 있습니다")
	case errors.Is(err, storage.ErrInvalidFileType):
		apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "이미지 파일만 업로드할 수 있습니다 (jpeg, jpg, png, gif, webp)")
	case errors.Is(err, storage.ErrFileTooLarge):
		apperrors.BadRequest(c, apperrors.UploadFileTooLarge, "파일 크기가 너무 큽니다")
	case errors.Is(err, service.ErrEmailAlreadyExists):
		apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "이미 사용 중인 이메일입니다")
	case errors.Is(err, service.ErrInvalidCredentials):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "이메일 또는 비밀번호가 올바르지 않습니다")
	case errors.Is(err, util.ErrPasswordTooShort):
		apperrors.BadRequest(c, apperrors.AuthWeakPassword, "비밀번호는 8자 이상이어야 합니다")
	default:
		middleware.GetLoggerFromContext(c).Error("Request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, err, context)
	}
}
