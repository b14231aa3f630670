package controller

import (
	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/middleware"
	"github.com/ikkim/productreview-backend/internal/websocket"
)

// FeedController 상품 리뷰 실시간 피드 (WebSocket)
type FeedController struct {
	hub            *websocket.Hub
	productService service.ProductService
	upgrader       *gorillaws.Upgrader
}

func NewFeedController(hub *websocket.Hub, productService service.ProductService, allowedOrigins []string) *FeedController {
	return &FeedController{
		hub:            hub,
		productService: productService,
		upgrader:       websocket.NewUpgrader(allowedOrigins),
	}
}

// SubscribeProduct 리뷰 생성/수정/삭제 이벤트 구독
// GET /api/v1/products/:id/live
func (ctrl *FeedController) SubscribeProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := ctrl.productService.GetProduct(c.Request.Context(), productID); err != nil {
		respondServiceError(c, err, "subscribe product feed")
		return
	}

	raw, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 가 이미 에러 응답을 작성함
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
		return
	}

	var userID *uint
	if id, ok := middleware.GetUserID(c); ok {
		userID = &id
	}

	client := websocket.NewClient(ctrl.hub, &websocket.Conn{Conn: raw}, productID, userID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
