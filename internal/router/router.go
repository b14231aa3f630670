package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/productreview-backend/config"
	"github.com/ikkim/productreview-backend/internal/app/controller"
	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/metrics"
	"github.com/ikkim/productreview-backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	authController    *controller.AuthController
	productController *controller.ProductController
	reviewController  *controller.ReviewController
	statsController   *controller.StatsController
	feedController    *controller.FeedController
	authMiddleware    *middleware.AuthMiddleware
	config            *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	reviewController *controller.ReviewController,
	statsController *controller.StatsController,
	feedController *controller.FeedController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:    authController,
		productController: productController,
		reviewController:  reviewController,
		statsController:   statsController,
		feedController:    feedController,
		authMiddleware:    authMiddleware,
		config:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Product Review API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 로컬 드라이버일 때만 업로드 사진을 직접 서빙
	if r.config.Upload.Driver == "local" {
		router.Static(r.config.Upload.PublicPrefix, r.config.Upload.Dir)
	}

	authenticate := r.authMiddleware.Authenticate()
	adminOnly := r.authMiddleware.RequireRole(model.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.GET("/me", authenticate, r.authController.GetMe)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.authMiddleware.OptionalAuthenticate(), r.productController.GetProduct)
			products.POST("", authenticate, adminOnly, r.productController.CreateProduct)
			products.PUT("/:id", authenticate, adminOnly, r.productController.UpdateProduct)
			products.DELETE("/:id", authenticate, adminOnly, r.productController.DeleteProduct)

			products.GET("/:id/stats", r.statsController.GetProductStats)
			products.GET("/:id/rating-distribution", r.statsController.GetRatingDistribution)
			products.GET("/:id/trend", r.statsController.GetMonthlyTrend)
			products.GET("/:id/tags", r.statsController.GetTopTags)

			products.GET("/:id/reviews", r.reviewController.ListProductReviews)
			products.GET("/:id/reviews/average", r.reviewController.GetAverageRating)
			products.POST("/:id/reviews", authenticate, r.reviewController.CreateReview)

			products.GET("/:id/live", r.authMiddleware.OptionalAuthenticate(), r.feedController.SubscribeProduct)
		}

		reviews := v1.Group("/reviews")
		{
			reviews.GET("/:id", r.reviewController.GetReview)
			reviews.PUT("/:id", authenticate, r.reviewController.UpdateReview)
			reviews.DELETE("/:id", authenticate, r.reviewController.DeleteReview)
			reviews.POST("/:id/helpful", authenticate, r.reviewController.ToggleHelpful)
		}

		users := v1.Group("/users")
		users.Use(authenticate)
		{
			users.GET("/me/reviews", r.reviewController.ListMyReviews)
		}

		admin := v1.Group("/admin")
		admin.Use(authenticate, adminOnly)
		{
			admin.POST("/recompute", r.statsController.RecomputeAll)
			admin.POST("/products/:id/recompute", r.statsController.RecomputeProduct)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
