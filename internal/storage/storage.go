package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/productreview-backend/internal/app/model"
)

var (
	ErrInvalidFileType = errors.New("only image files are allowed (jpeg, jpg, png, gif, webp)")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
)

const filenamePrefix = "review-"

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedContentTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
}

// PhotoStorage 리뷰 사진 저장소 (로컬 디스크 또는 S3)
type PhotoStorage interface {
	Save(ctx context.Context, file *multipart.FileHeader) (*model.Photo, error)
	Delete(ctx context.Context, filename string) error
	List(ctx context.Context) ([]string, error)
}

// ValidatePhoto 확장자, Content-Type, 크기 검사
func ValidatePhoto(file *multipart.FileHeader, maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return ErrInvalidFileType
	}

	if contentType := file.Header.Get("Content-Type"); contentType != "" {
		if err := ValidateContentType(contentType, allowedContentTypes); err != nil {
			return ErrInvalidFileType
		}
	}

	if maxSize > 0 && file.Size > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, file.Size, maxSize)
	}
	return nil
}

// ValidateContentType validates the content type
func ValidateContentType(contentType string, allowedTypes []string) error {
	for _, allowed := range allowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return nil
		}
	}
	return fmt.Errorf("content type %s is not allowed", contentType)
}

// NewFilename review-<uuid><ext>
func NewFilename(original string) string {
	return filenamePrefix + uuid.New().String() + strings.ToLower(filepath.Ext(original))
}

// IsManagedFilename 이 저장소가 생성한 파일명인지 (정리 작업 대상 판별)
func IsManagedFilename(name string) bool {
	return strings.HasPrefix(name, filenamePrefix) && allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

func copyUpload(file *multipart.FileHeader, dst io.Writer) (int64, error) {
	src, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return io.Copy(dst, src)
}
