package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		respond     func(c *gin.Context)
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "unauthorized default message",
			respond:     func(c *gin.Context) { Unauthorized(c, "") },
			wantStatus:  http.StatusUnauthorized,
			wantCode:    AuthUnauthorized,
			wantMessage: "로그인이 필요합니다",
		},
		{
			name:        "forbidden default code",
			respond:     func(c *gin.Context) { Forbidden(c, "", "") },
			wantStatus:  http.StatusForbidden,
			wantCode:    AuthzForbidden,
			wantMessage: "접근 권한이 없습니다",
		},
		{
			name:        "forbidden owner only",
			respond:     func(c *gin.Context) { Forbidden(c, AuthzOwnerOnly, "본인이 작성한 리뷰만 수정/삭제할 수 있습니다") },
			wantStatus:  http.StatusForbidden,
			wantCode:    AuthzOwnerOnly,
			wantMessage: "본인이 작성한 리뷰만 수정/삭제할 수 있습니다",
		},
		{
			name:        "conflict",
			respond:     func(c *gin.Context) { Conflict(c, ReviewAlreadyExists, "이미 이 상품에 리뷰를 작성하셨습니다") },
			wantStatus:  http.StatusConflict,
			wantCode:    ReviewAlreadyExists,
			wantMessage: "이미 이 상품에 리뷰를 작성하셨습니다",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.respond(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestRespondWithValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithValidationError(c, map[string]string{"rating": "max"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ValidationInvalidInput, body.Error)
	assert.Equal(t, map[string]string{"rating": "max"}, body.Fields)
}
