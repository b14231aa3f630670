package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/productreview-backend/config"
	"github.com/ikkim/productreview-backend/internal/app/controller"
	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/ikkim/productreview-backend/internal/middleware"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/internal/router"
	"github.com/ikkim/productreview-backend/internal/storage"
	"github.com/ikkim/productreview-backend/internal/websocket"
	rediscache "github.com/ikkim/productreview-backend/pkg/redis"
	"github.com/ikkim/productreview-backend/pkg/validator"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type TestServer struct {
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *miniredis.Miniredis
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.Register())

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
		Upload: config.UploadConfig{Driver: "local", Dir: t.TempDir(), PublicPrefix: "/uploads/reviews", MaxFileSize: 1 << 20, MaxFiles: 5},
	}

	photos, err := storage.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.PublicPrefix)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	reviewRepo := repository.NewReviewRepository(testDB)
	tagRepo := repository.NewReviewTagRepository(testDB)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	authService := service.NewAuthService(userRepo, testSecret, 15*time.Minute, 7*24*time.Hour)
	aggregateService := service.NewAggregateService(testDB, productRepo, reviewRepo, tagRepo, rating.TotalAll)
	statsService := service.NewStatsService(productRepo, reviewRepo, tagRepo, 10,
		service.WithStatsCache(rediscache.NewCache(client, "stats", time.Minute)),
	)
	productService := service.NewProductService(testDB, productRepo, reviewRepo, tagRepo, statsService, 3, 10)
	reviewService := service.NewReviewService(testDB, reviewRepo, productRepo, aggregateService, statsService,
		service.WithPhotoStorage(photos, cfg.Upload.MaxFiles, cfg.Upload.MaxFileSize),
		service.WithEventPublisher(hub),
	)

	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewProductController(productService),
		controller.NewReviewController(reviewService),
		controller.NewStatsController(statsService, aggregateService),
		controller.NewFeedController(hub, productService, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(testSecret),
		cfg,
	)

	return &TestServer{Router: r.Setup(), DB: testDB, Redis: mr}
}

func (ts *TestServer) do(t *testing.T, method, path string, payload interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func (ts *TestServer) register(t *testing.T, email string) string {
	w, body := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": "password123",
		"name":     email,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["tokens"].(map[string]interface{})["access_token"].(string)
}

func TestCompleteReviewJourney(t *testing.T) {
	ts := setupIntegrationTest(t)

	// 1. 관리자 로그인 후 상품 등록
	t.Log("Step 1: Admin creates a product")
	ts.register(t, "admin@example.com")
	require.NoError(t, ts.DB.Model(&model.User{}).Where("email = ?", "admin@example.com").Update("role", model.RoleAdmin).Error)

	w, body := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := body["tokens"].(map[string]interface{})["access_token"].(string)

	w, body = ts.do(t, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":        "Espresso Machine",
		"description": "15 bar pump",
		"price":       299.0,
		"category":    "kitchen",
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := uint(body["product"].(map[string]interface{})["id"].(float64))
	productPath := fmt.Sprintf("/api/v1/products/%d", productID)

	// 2. 사용자 리뷰 작성
	t.Log("Step 2: Users write reviews")
	for i, payload := range []map[string]interface{}{
		{"rating": 5, "tags": []string{"Fast", "fast "}},
		{"rating": 5, "comment": "Great crema"},
		{"rating": 4},
		{"comment": "Arrived yesterday"},
	} {
		token := ts.register(t, fmt.Sprintf("user%d@example.com", i))
		w, _ = ts.do(t, http.MethodPost, productPath+"/reviews", payload, token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// 3. 상품 상세와 통계 확인
	t.Log("Step 3: Read aggregates")
	w, body = ts.do(t, http.MethodGet, productPath, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	product := body["product"].(map[string]interface{})
	assert.Equal(t, 4.7, product["average_rating"])
	assert.Equal(t, 4.0, product["total_reviews"])
	assert.Len(t, body["recent_reviews"], 3)

	w, body = ts.do(t, http.MethodGet, productPath+"/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{map[string]interface{}{"tagName": "fast", "count": 2.0}}, body["top_tags"])
	assert.True(t, ts.Redis.Exists(fmt.Sprintf("stats:product:%d", productID)))

	w, body = ts.do(t, http.MethodGet, productPath+"/reviews/average", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, body["totalReviews"])

	// 4. 리뷰 수정 시 캐시 무효화
	t.Log("Step 4: Update invalidates cached stats")
	w, body = ts.do(t, http.MethodGet, "/api/v1/users/me/reviews", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, body["count"])

	w, body = ts.do(t, http.MethodGet, productPath+"/reviews?sort=lowest_rating&limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	lowest := body["reviews"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 4.0, lowest["rating"])

	w, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/reviews/%d", uint(lowest["id"].(float64))), nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.Redis.Exists(fmt.Sprintf("stats:product:%d", productID)))

	w, body = ts.do(t, http.MethodGet, productPath+"/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	overall := body["overall_stats"].(map[string]interface{})
	assert.Equal(t, 5.0, overall["average_rating"])
	assert.Equal(t, 3.0, overall["total_reviews"])

	// 5. 상품 삭제
	t.Log("Step 5: Delete product")
	w, _ = ts.do(t, http.MethodDelete, productPath, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodGet, productPath+"/reviews", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
