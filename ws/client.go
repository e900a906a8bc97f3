package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/odam/models"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum
	// süre. 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum mesaj boyutu (byte).
	maxMessageSize = 4096

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	// Buffer doluysa client yavaş demektir — bağlantı koparılır.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen event'leri okur → callback'lere dağıtır
// - WritePump: send channel'ından gelen veriyi socket'e yazar
//
// gorilla/websocket aynı anda tek okuma ve tek yazma destekler;
// iki ayrı goroutine bu yüzden gereklidir.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// connID, upgrade sırasında server'ın ürettiği UUID.
	// Tüm sistemde bağlantının kimliği budur: presence kaydı, admin_id,
	// senderId damgası ve mesaj sahipliği hep bu değeri kullanır.
	connID string

	send chan []byte
	mu   sync.Mutex // conn.WriteMessage çağrılarını korur
}

// ReadPump, WebSocket bağlantısından gelen event'leri okur ve işler.
//
// Bağlantı kapanana kadar döngüde kalır; kapandığında client Hub'dan
// çıkarılır — unregister yolu disconnect teardown'unu tetikler, yani
// işlem ortasında kopan bir bağlantı bile sonuna kadar işlenir.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for conn %s: %v", c.connID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for conn %s: %v", c.connID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message from conn %s: %v", c.connID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'dan gelen event'leri türüne göre callback'lere
// dağıtır.
//
// Callback'ler ReadPump goroutine'inde SENKRON çalışır — aynı
// bağlantının event'leri gönderildikleri sırayla işlenir (join'den
// önce chat-message işlenmez). Engine broadcast'leri buffer'lı send
// channel'larına select/default ile yazar, bu yüzden senkron çağrı
// deadlock üretmez. Tek istisna disconnect callback'idir (bkz. Hub).
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder. Ack, Hub
		// üzerinden gider: send channel'ı Hub kilidi altında kapatılır
		// ve SendToConn client'ın hâlâ kayıtlı olduğunu aynı kilitle
		// kontrol eder. Channel'a buradan doğrudan yazmak, slow-client
		// drop sonrası kapanmış channel'a denk gelebilirdi.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for conn %s: %v", c.connID, err)
			return
		}
		c.hub.SendToConn(c.connID, Event{Op: OpHeartbeatAck})

	case OpJoinRoom:
		var req models.JoinRequest
		if !decode(event.Data, &req) {
			return
		}
		if c.hub.onJoinRoom != nil {
			c.hub.onJoinRoom(c.connID, req)
		}

	case OpChatMessage:
		var msg models.ChatMessage
		if !decode(event.Data, &msg) {
			return
		}
		if c.hub.onChatMessage != nil {
			c.hub.onChatMessage(c.connID, msg)
		}

	case OpTyping:
		var req TypingRequest
		if !decode(event.Data, &req) {
			return
		}
		if c.hub.onTyping != nil {
			c.hub.onTyping(c.connID, req)
		}

	case OpStopTyping:
		// stop-typing payload'ı düz bir string'tir: oda kodu.
		var roomCode string
		if !decode(event.Data, &roomCode) {
			return
		}
		if c.hub.onStopTyping != nil {
			c.hub.onStopTyping(c.connID, roomCode)
		}

	case OpReactMessage:
		var req ReactRequest
		if !decode(event.Data, &req) {
			return
		}
		if c.hub.onReact != nil {
			c.hub.onReact(c.connID, req)
		}

	case OpEditMessage:
		var req EditRequest
		if !decode(event.Data, &req) {
			return
		}
		if c.hub.onEdit != nil {
			c.hub.onEdit(c.connID, req)
		}

	case OpDeleteMessage:
		var req DeleteRequest
		if !decode(event.Data, &req) {
			return
		}
		if c.hub.onDelete != nil {
			c.hub.onDelete(c.connID, req)
		}

	case OpKickUser:
		var req KickRequest
		if !decode(event.Data, &req) {
			return
		}
		if c.hub.onKick != nil {
			c.hub.onKick(c.connID, req)
		}

	case OpLeaveRoom:
		if c.hub.onLeaveRoom != nil {
			c.hub.onLeaveRoom(c.connID)
		}

	default:
		log.Printf("[ws] unknown op from conn %s: %s", c.connID, event.Op)
	}
}

// decode, event.Data'yı hedef struct'a parse eder.
//
// event.Data tipi any'dir, doğrudan cast edilemez — JSON'a çevirip
// tekrar parse etmek en güvenli yöntemdir.
func decode(data any, target any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

// WritePump, send channel'ından gelen mesajları WebSocket'e yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e mesaj yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma yasaktır.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
