package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/middleware"
)

type StatsController struct {
	statsService     service.StatsService
	aggregateService service.AggregateService
}

func NewStatsController(statsService service.StatsService, aggregateService service.AggregateService) *StatsController {
	return &StatsController{
		statsService:     statsService,
		aggregateService: aggregateService,
	}
}

type TopTagsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// GetProductStats
// GET /api/v1/products/:id/stats
func (ctrl *StatsController) GetProductStats(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := ctrl.statsService.GetProductStats(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get product stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetRatingDistribution
// GET /api/v1/products/:id/rating-distribution
func (ctrl *StatsController) GetRatingDistribution(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	buckets, err := ctrl.statsService.RatingDistribution(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get rating distribution")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating_distribution": buckets})
}

// GetMonthlyTrend
// GET /api/v1/products/:id/trend
func (ctrl *StatsController) GetMonthlyTrend(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	trend, err := ctrl.statsService.MonthlyTrend(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get monthly trend")
		return
	}
	c.JSON(http.StatusOK, gin.H{"monthly_trends": trend})
}

// GetTopTags
// GET /api/v1/products/:id/tags
func (ctrl *StatsController) GetTopTags(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var query TopTagsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	tags, err := ctrl.statsService.TopTags(c.Request.Context(), id, query.Limit)
	if err != nil {
		respondServiceError(c, err, "get top tags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// RecomputeProduct rebuilds one product's counters and tag rows (admin only)
// POST /api/v1/admin/products/:id/recompute
func (ctrl *StatsController) RecomputeProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	summary, err := ctrl.aggregateService.RebuildProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "recompute product")
		return
	}
	if summary == nil {
		respondServiceError(c, service.ErrProductNotFound, "recompute product")
		return
	}

	ctrl.statsService.Invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"product_id":     id,
		"average_rating": summary.Average,
		"total_reviews":  summary.Total,
		"rated_reviews":  summary.Rated,
	})
}

// RecomputeAll rebuilds every product (admin only). Cached stats expire by TTL.
// POST /api/v1/admin/recompute
func (ctrl *StatsController) RecomputeAll(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	rebuilt, err := ctrl.aggregateService.RebuildAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "recompute all products")
		return
	}

	log.Info("Aggregates rebuilt on request", map[string]interface{}{
		"products": rebuilt,
	})
	c.JSON(http.StatusOK, gin.H{"products": rebuilt})
}
