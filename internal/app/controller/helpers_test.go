package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/ikkim/productreview-backend/internal/middleware"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/internal/storage"
	"github.com/ikkim/productreview-backend/internal/websocket"
	"github.com/ikkim/productreview-backend/pkg/util"
	"github.com/ikkim/productreview-backend/pkg/validator"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	hub      *websocket.Hub
	photoDir string
}

func setupControllerTest(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.Register())

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	photoDir := t.TempDir()
	photos, err := storage.NewLocalStorage(photoDir, "/uploads/reviews")
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	reviewRepo := repository.NewReviewRepository(testDB)
	tagRepo := repository.NewReviewTagRepository(testDB)

	authService := service.NewAuthService(userRepo, testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	aggregateService := service.NewAggregateService(testDB, productRepo, reviewRepo, tagRepo, rating.TotalAll)
	statsService := service.NewStatsService(productRepo, reviewRepo, tagRepo, 10)
	productService := service.NewProductService(testDB, productRepo, reviewRepo, tagRepo, statsService, 3, 10)
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	reviewService := service.NewReviewService(testDB, reviewRepo, productRepo, aggregateService, statsService,
		service.WithPhotoStorage(photos, 5, 1024*1024),
		service.WithEventPublisher(hub),
	)

	authCtrl := NewAuthController(authService)
	productCtrl := NewProductController(productService)
	reviewCtrl := NewReviewController(reviewService)
	statsCtrl := NewStatsController(statsService, aggregateService)
	feedCtrl := NewFeedController(hub, productService, []string{"*"})

	auth := middleware.NewAuthMiddleware(testJWTSecret)
	admin := auth.RequireRole(model.RoleAdmin)

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())

	router.POST("/auth/register", authCtrl.Register)
	router.POST("/auth/login", authCtrl.Login)
	router.GET("/auth/me", auth.Authenticate(), authCtrl.GetMe)

	router.GET("/products", productCtrl.ListProducts)
	router.GET("/products/:id", auth.OptionalAuthenticate(), productCtrl.GetProduct)
	router.POST("/products", auth.Authenticate(), admin, productCtrl.CreateProduct)
	router.PUT("/products/:id", auth.Authenticate(), admin, productCtrl.UpdateProduct)
	router.DELETE("/products/:id", auth.Authenticate(), admin, productCtrl.DeleteProduct)

	router.GET("/products/:id/stats", statsCtrl.GetProductStats)
	router.GET("/products/:id/rating-distribution", statsCtrl.GetRatingDistribution)
	router.GET("/products/:id/trend", statsCtrl.GetMonthlyTrend)
	router.GET("/products/:id/tags", statsCtrl.GetTopTags)
	router.POST("/admin/recompute", auth.Authenticate(), admin, statsCtrl.RecomputeAll)
	router.POST("/admin/products/:id/recompute", auth.Authenticate(), admin, statsCtrl.RecomputeProduct)

	router.GET("/products/:id/live", auth.OptionalAuthenticate(), feedCtrl.SubscribeProduct)
	router.GET("/products/:id/reviews", reviewCtrl.ListProductReviews)
	router.GET("/products/:id/reviews/average", reviewCtrl.GetAverageRating)
	router.POST("/products/:id/reviews", auth.Authenticate(), reviewCtrl.CreateReview)
	router.GET("/reviews/:id", reviewCtrl.GetReview)
	router.PUT("/reviews/:id", auth.Authenticate(), reviewCtrl.UpdateReview)
	router.DELETE("/reviews/:id", auth.Authenticate(), reviewCtrl.DeleteReview)
	router.POST("/reviews/:id/helpful", auth.Authenticate(), reviewCtrl.ToggleHelpful)
	router.GET("/users/me/reviews", auth.Authenticate(), reviewCtrl.ListMyReviews)

	return &testEnv{router: router, db: testDB, hub: hub, photoDir: photoDir}
}

func (e *testEnv) createUser(t *testing.T, email string, role model.UserRole) (*model.User, string) {
	user := &model.User{Email: email, Name: email, Role: role}
	require.NoError(t, e.db.Create(user).Error)

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), testJWTSecret, time.Minute, time.Hour)
	require.NoError(t, err)
	return user, tokens.AccessToken
}

func (e *testEnv) createProduct(t *testing.T, name string) *model.Product {
	product := &model.Product{Name: name, Description: name, Price: 10}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func (e *testEnv) request(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) requestJSON(t *testing.T, method, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return e.request(method, path, body, "application/json", token)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	require.Equal(t, code, decodeBody(t, w)["error"])
}

