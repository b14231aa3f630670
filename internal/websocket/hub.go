package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ikkim/productreview-backend/pkg/logger"
)

const (
	// Rate limiting: 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10
)

// ClientMessage 클라이언트로부터 받은 메시지
type ClientMessage struct {
	Type string `json:"type"` // ping
}

// Client 상품 리뷰 피드를 구독 중인 WebSocket 클라이언트
type Client struct {
	Hub           *Hub
	Conn          *Conn
	ProductID     uint
	UserID        *uint // 비로그인 구독자는 nil
	Send          chan []byte
	MessageCount  int       // 최근 1초간 받은 메시지 수
	LastResetTime time.Time // 마지막 카운터 리셋 시간
	RateMu        sync.Mutex
}

// NewClient Send 버퍼를 가진 클라이언트 생성
func NewClient(hub *Hub, conn *Conn, productID uint, userID *uint) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		ProductID: productID,
		UserID:    userID,
		Send:      make(chan []byte, 64),
	}
}

// Hub 상품별 리뷰 피드 구독 관리자
type Hub struct {
	// 상품별 구독 클라이언트들 (ProductID -> set of *Client)
	rooms map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage 브로드캐스트 메시지
type BroadcastMessage struct {
	ProductID uint
	Message   []byte
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uint]map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
	}
}

// Run ctx 가 취소될 때까지 Hub 실행. 종료 시 남은 구독자 채널을 모두 닫는다.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.ProductID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.ProductID] = room
			}
			room[client] = true
			subscribers := len(room)
			h.mu.Unlock()
			logger.Info("Review feed subscriber registered", map[string]interface{}{
				"product_id":  client.ProductID,
				"subscribers": subscribers,
			})

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			var stale []*Client
			for client := range h.rooms[message.ProductID] {
				select {
				case client.Send <- message.Message:
				default:
					// Send 채널이 막혀있음
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range stale {
				logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
					"product_id": client.ProductID,
				})
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.ProductID]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.ProductID)
	}
	close(client.Send)

	logger.Info("Review feed subscriber unregistered", map[string]interface{}{
		"product_id":  client.ProductID,
		"subscribers": len(room),
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for productID, room := range h.rooms {
		for client := range room {
			close(client.Send)
		}
		delete(h.rooms, productID)
	}
}

// PublishToProduct 상품을 구독 중인 모든 클라이언트에게 이벤트 전송.
// 브로드캐스트 채널이 가득 차면 이벤트를 버린다.
func (h *Hub) PublishToProduct(productID uint, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal review event", err, map[string]interface{}{
			"product_id": productID,
		})
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{ProductID: productID, Message: data}:
	default:
		logger.Warn("Broadcast channel full, review event dropped", map[string]interface{}{
			"product_id": productID,
		})
	}
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SubscriberCount 상품 피드 구독자 수
func (h *Hub) SubscriberCount(productID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[productID])
}

// HandleClientMessage 클라이언트 메시지 처리. ping 에만 pong 으로 응답한다.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"product_id": client.ProductID,
			"count":      count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"product_id": client.ProductID,
			"error":      err.Error(),
		})
		return
	}

	if msg.Type != "ping" {
		return
	}

	pong, _ := json.Marshal(map[string]interface{}{
		"type":       "pong",
		"product_id": client.ProductID,
	})
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.rooms[client.ProductID][client] {
		return
	}
	select {
	case client.Send <- pong:
	default:
	}
}
