package errors

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자 친화적 메시지
	Status  int    // HTTP 상태 코드
}

// ParseError DB 에러를 코드/메시지로 변환 (PostgreSQL, SQLite 메시지 모두 처리)
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "서버 오류가 발생했습니다",
			Status:  http.StatusInternalServerError,
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    notFoundCode(context),
			Message: getNotFoundMessage(context),
			Status:  http.StatusNotFound,
		}
	}

	errLower := strings.ToLower(err.Error())

	switch {
	// PostgreSQL 23505 / SQLite UNIQUE constraint failed
	case strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint"):
		return parseDuplicateKeyError(errLower)

	// PostgreSQL 23503 / SQLite FOREIGN KEY constraint failed
	case strings.Contains(errLower, "foreign key constraint"):
		return parseForeignKeyError(errLower)

	// PostgreSQL 23502 / SQLite NOT NULL constraint failed
	case strings.Contains(errLower, "not-null constraint") || strings.Contains(errLower, "not null constraint"):
		return ErrorInfo{Code: ValidationRequired, Message: "필수 항목이 누락되었습니다", Status: http.StatusBadRequest}

	// PostgreSQL 23514 / SQLite CHECK constraint failed
	case strings.Contains(errLower, "check constraint"):
		if strings.Contains(errLower, "rating") {
			return ErrorInfo{Code: ReviewInvalidRating, Message: "평점은 1~5 사이의 값이어야 합니다", Status: http.StatusBadRequest}
		}
		return ErrorInfo{Code: ValidationInvalidInput, Message: "입력값이 유효하지 않습니다", Status: http.StatusBadRequest}
	}

	return ErrorInfo{
		Code:    InternalDatabaseError,
		Message: getDefaultErrorMessage(context),
		Status:  http.StatusInternalServerError,
	}
}

func parseDuplicateKeyError(errLower string) ErrorInfo {
	switch {
	case strings.Contains(errLower, "idx_review_user_product") ||
		(strings.Contains(errLower, "reviews") && strings.Contains(errLower, "user_id")):
		return ErrorInfo{Code: ReviewAlreadyExists, Message: "이미 이 상품에 리뷰를 작성하셨습니다", Status: http.StatusConflict}
	case strings.Contains(errLower, "email"):
		return ErrorInfo{Code: AuthEmailAlreadyExists, Message: "이미 사용 중인 이메일입니다", Status: http.StatusConflict}
	}
	return ErrorInfo{Code: ResourceAlreadyExists, Message: "이미 존재하는 데이터입니다", Status: http.StatusConflict}
}

func parseForeignKeyError(errLower string) ErrorInfo {
	switch {
	case strings.Contains(errLower, "still referenced"):
		return ErrorInfo{Code: ResourceConflict, Message: "연결된 데이터가 있어 삭제할 수 없습니다", Status: http.StatusConflict}
	case strings.Contains(errLower, "product_id") || strings.Contains(errLower, "fk_products"):
		return ErrorInfo{Code: ProductNotFound, Message: "존재하지 않는 상품입니다", Status: http.StatusNotFound}
	case strings.Contains(errLower, "user_id") || strings.Contains(errLower, "fk_users"):
		return ErrorInfo{Code: ResourceNotFound, Message: "존재하지 않는 사용자입니다", Status: http.StatusNotFound}
	}
	return ErrorInfo{Code: ResourceNotFound, Message: "참조하는 데이터를 찾을 수 없습니다", Status: http.StatusNotFound}
}

func notFoundCode(context string) string {
	contextLower := strings.ToLower(context)
	switch {
	case strings.Contains(contextLower, "product"):
		return ProductNotFound
	case strings.Contains(contextLower, "review"):
		return ReviewNotFound
	}
	return ResourceNotFound
}

// getNotFoundMessage context에 따른 Not Found 메시지
func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "product"):
		return "상품을 찾을 수 없습니다"
	case strings.Contains(contextLower, "review"):
		return "리뷰를 찾을 수 없습니다"
	case strings.Contains(contextLower, "user"):
		return "사용자를 찾을 수 없습니다"
	}
	return "요청한 데이터를 찾을 수 없습니다"
}

// getDefaultErrorMessage context에 따른 기본 에러 메시지
func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"):
		return "등록 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	case strings.Contains(contextLower, "update"):
		return "수정 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	case strings.Contains(contextLower, "delete"):
		return "삭제 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}
	return "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
}

// ParseAndRespond 에러를 파싱하여 상태 코드와 함께 응답
func ParseAndRespond(c interface{ JSON(int, interface{}) }, err error, context string) {
	info := ParseError(err, context)
	c.JSON(info.Status, ErrorResponse{
		Error:   info.Code,
		Message: info.Message,
	})
}
