package service

import (
	"errors"

	"github.com/ikkim/productreview-backend/internal/rating"
)

var (
	// ErrInvalidInput is the aggregation core's sentinel so errors.Is matches
	// validation failures from either layer.
	ErrInvalidInput = rating.ErrInvalidInput

	ErrProductNotFound = errors.New("product not found")
	ErrEmptyUpdate     = errors.New("no fields to update")

	ErrReviewNotFound      = errors.New("review not found")
	ErrReviewAlreadyExists = errors.New("review already exists for this product")
	ErrReviewForbidden     = errors.New("review belongs to another user")
	ErrEmptyReview         = errors.New("rating or comment is required")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrTooManyTags         = errors.New("too many tags")
	ErrTagTooLong          = errors.New("tag is too long")
	ErrCommentTooLong      = errors.New("comment is too long")
	ErrTooManyPhotos       = errors.New("too many photos")

	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)
