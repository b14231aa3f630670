package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/middleware"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type ListProductsQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Sort     string `form:"sort" binding:"omitempty,oneof=newest oldest highest_rating lowest_rating"`
	Category string `form:"category" binding:"max=100"`
	Search   string `form:"search" binding:"max=100"`
}

type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required,max=200"`
	Description string   `json:"description" binding:"max=5000"`
	Price       *float64 `json:"price" binding:"required,gte=0"`
	Category    *string  `json:"category" binding:"omitempty,max=100"`
	ImageURL    string   `json:"image_url" binding:"omitempty,max=500,image_url"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string  `json:"description" binding:"omitempty,max=5000"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	Category    *string  `json:"category" binding:"omitempty,max=100"`
	ImageURL    *string  `json:"image_url" binding:"omitempty,max=500,image_url"`
}

// ListProducts returns a page of products
// GET /api/v1/products
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	var query ListProductsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := ctrl.productService.ListProducts(c.Request.Context(), service.ProductListQuery{
		Page:     query.Page,
		Limit:    query.Limit,
		Sort:     repository.ProductSort(query.Sort),
		Category: query.Category,
		Search:   query.Search,
	})
	if err != nil {
		respondServiceError(c, err, "list products")
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetProduct returns a product with its rating distribution, top tags,
// recent reviews and, when authenticated, the caller's own review
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var viewerID *uint
	if userID, exists := middleware.GetUserID(c); exists {
		viewerID = &userID
	}

	detail, err := ctrl.productService.GetProductDetail(c.Request.Context(), id, viewerID)
	if err != nil {
		respondServiceError(c, err, "get product")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// CreateProduct creates a new product (admin only)
// POST /api/v1/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := ctrl.productService.CreateProduct(c.Request.Context(), service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondServiceError(c, err, "create product")
		return
	}

	log.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

// UpdateProduct applies a partial update (admin only)
// PUT /api/v1/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := ctrl.productService.UpdateProduct(c.Request.Context(), id, service.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondServiceError(c, err, "update product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

// DeleteProduct removes a product and its reviews (admin only)
// DELETE /api/v1/products/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
	})
}
