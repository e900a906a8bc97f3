package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// upgrader, HTTP bağlantısını WebSocket bağlantısına yükseltir.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin: Production'da domain kontrolü yapılmalı.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler, WebSocket bağlantı isteklerini işleyen HTTP handler'ı.
//
// Kimlik doğrulama YOKTUR — odalar sadece şifreyle korunur (non-goal:
// room password dışında auth). Her bağlantıya server bir UUID verir;
// bu UUID sistemin her yerinde bağlantının kimliğidir.
type Handler struct {
	hub *Hub
}

// NewHandler, yeni bir WebSocket handler oluşturur.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleConnection, HTTP bağlantısını WebSocket'e yükseltir ve client'ı
// Hub'a kaydeder.
//
// Flow:
// 1. HTTP → WebSocket upgrade
// 2. Bağlantıya UUID ata
// 3. Client oluştur, Hub'a kaydet
// 4. WritePump goroutine'ini başlat, ReadPump'ı bu goroutine'de çalıştır
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		connID: uuid.NewString(),
		send:   make(chan []byte, sendBufferSize),
	}

	h.hub.register <- client

	// ReadPump bu goroutine'de çalışmalı — aksi halde HTTP handler
	// hemen döner. ReadPump bağlantı kapanana kadar bloklar.
	go client.WritePump()
	client.ReadPump()
}
