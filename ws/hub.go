package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/akinalp/odam/models"
)

// RoomBroadcaster, service katmanının oda bazlı event dağıtımı için
// kullandığı interface.
//
// Dependency Inversion: Engine, Hub'ın concrete struct'ına değil bu
// interface'e bağımlıdır — testlerde event'leri kaydeden bir fake geçilir.
type RoomBroadcaster interface {
	// JoinRoom, bağlantı hâlâ kayıtlıysa onu odanın grubuna ekler ve
	// true döner. false dönerse bağlantı çoktan kopmuştur — çağıran
	// üyelik kaydı OLUŞTURMAMALIDIR (disconnect teardown'u bu kayıttan
	// önce koşmuş olabilir, ghost üye temizlenemez).
	JoinRoom(connID, roomCode string) bool
	LeaveRoom(connID, roomCode string)
	BroadcastToRoom(roomCode string, event Event)
	BroadcastToRoomExcept(roomCode, excludeConnID string, event Event)
	SendToConn(connID string, event Event)
}

// Hub, tüm WebSocket bağlantılarını ve oda gruplarını yöneten merkezi
// yapıdır.
//
// Transport'un group-send primitive'i budur: bir bağlantı isimli bir
// gruba (odaya) eklenip çıkarılabilir; bir event tek bağlantıyı, bir
// grubun tamamını veya gönderen hariç tamamını hedefleyebilir.
//
// Hub sadece socket gruplarını bilir — kimin hangi isimle hangi odada
// olduğu (presence) engine'in state container'ında yaşar. İki kayıt
// bilinçli olarak ayrıdır: presence domain durumudur, grup üyeliği
// transport detayıdır.
type Hub struct {
	// mu: clients/rooms map'lerini koruyan read-write mutex.
	// Broadcast'ler okuma ağırlıklıdır, RLock ile paralel çalışır.
	mu sync.RWMutex

	// clients: connID → Client. Her WebSocket bağlantısının kendi
	// UUID'si vardır — aynı kullanıcı iki tab açarsa iki ayrı bağlantıdır.
	clients map[string]*Client

	// rooms: roomCode → connID → Client (oda broadcast grupları).
	rooms map[string]map[string]*Client

	// memberOf: connID → roomCode. Bir bağlantı en fazla bir grupta
	// olabilir; abrupt disconnect'te grup temizliği için gerekir.
	memberOf map[string]string

	// register/unregister: Client giriş/çıkış sinyalleri.
	// Run() goroutine'i bu channel'lardan select ile okur.
	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	seq atomic.Int64

	// Inbound event callback'leri — main.go'da engine'e bağlanır.
	// ws paketi services'e import ile bağımlı olmaz (circular import
	// riski: services zaten ws.Event kullanıyor).
	onJoinRoom    func(connID string, req models.JoinRequest)
	onChatMessage func(connID string, msg models.ChatMessage)
	onTyping      func(connID string, req TypingRequest)
	onStopTyping  func(connID, roomCode string)
	onReact       func(connID string, req ReactRequest)
	onEdit        func(connID string, req EditRequest)
	onDelete      func(connID string, req DeleteRequest)
	onKick        func(connID string, req KickRequest)
	onLeaveRoom   func(connID string)
	onDisconnect  func(connID string)
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		memberOf:   make(map[string]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// ─── Callback setter'ları — main.go wire-up sırasında çağrılır ───

func (h *Hub) OnJoinRoom(fn func(connID string, req models.JoinRequest)) { h.onJoinRoom = fn }
func (h *Hub) OnChatMessage(fn func(connID string, msg models.ChatMessage)) {
	h.onChatMessage = fn
}
func (h *Hub) OnTyping(fn func(connID string, req TypingRequest)) { h.onTyping = fn }
func (h *Hub) OnStopTyping(fn func(connID, roomCode string))      { h.onStopTyping = fn }
func (h *Hub) OnReact(fn func(connID string, req ReactRequest))   { h.onReact = fn }
func (h *Hub) OnEdit(fn func(connID string, req EditRequest))     { h.onEdit = fn }
func (h *Hub) OnDelete(fn func(connID string, req DeleteRequest)) { h.onDelete = fn }
func (h *Hub) OnKick(fn func(connID string, req KickRequest))     { h.onKick = fn }
func (h *Hub) OnLeaveRoom(fn func(connID string))                 { h.onLeaveRoom = fn }
func (h *Hub) OnDisconnect(fn func(connID string))                { h.onDisconnect = fn }

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, yeni bir client'ı Hub'a ekler.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.connID] = client
	log.Printf("[ws] client connected: conn=%s (total: %d)", client.connID, len(h.clients))
}

// removeClient, bir client'ı Hub'dan ve oda grubundan çıkarır, send
// channel'ını kapatır ve disconnect callback'ini tetikler.
//
// Callback ayrı goroutine'de çalışır: engine teardown sırasında
// broadcast yapar, broadcast RLock ister — buradaki Lock ile
// deadlock olmaması için senkron çağrılMAZ.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client.connID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.connID)
	close(client.send)

	if roomCode, ok := h.memberOf[client.connID]; ok {
		h.dropFromRoom(client.connID, roomCode)
	}

	log.Printf("[ws] client disconnected: conn=%s (remaining: %d)", client.connID, len(h.clients))
	h.mu.Unlock()

	if h.onDisconnect != nil {
		go h.onDisconnect(client.connID)
	}
}

// dropFromRoom, bağlantıyı oda grubundan çıkarır. mu tutulmuş olmalı.
func (h *Hub) dropFromRoom(connID, roomCode string) {
	delete(h.memberOf, connID)
	if group, ok := h.rooms[roomCode]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(h.rooms, roomCode)
		}
	}
}

// JoinRoom, bağlantıyı odanın broadcast grubuna ekler.
//
// Bağlantı artık kayıtlı değilse false döner — sessiz no-op DEĞİL.
// Engine bu durumda katılımı iptal eder; aksi halde disconnect
// teardown'u görülmeden eklenen üye kalıcı bir ghost olurdu.
func (h *Hub) JoinRoom(connID, roomCode string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}

	// Bir bağlantı tek bir grupta olabilir — önceki grup varsa bırak.
	if prev, ok := h.memberOf[connID]; ok && prev != roomCode {
		h.dropFromRoom(connID, prev)
	}

	group, ok := h.rooms[roomCode]
	if !ok {
		group = make(map[string]*Client)
		h.rooms[roomCode] = group
	}
	group[connID] = client
	h.memberOf[connID] = roomCode
	return true
}

// LeaveRoom, bağlantıyı odanın broadcast grubundan çıkarır.
// Kick'te hedef, leave'de istekte bulunan için çağrılır.
func (h *Hub) LeaveRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropFromRoom(connID, roomCode)
}

// BroadcastToRoom, odadaki tüm bağlantılara event gönderir.
func (h *Hub) BroadcastToRoom(roomCode string, event Event) {
	h.broadcast(roomCode, "", event)
}

// BroadcastToRoomExcept, gönderen hariç odadaki tüm bağlantılara event
// gönderir. Typing indicator asla gönderenin kendisine gitmez.
func (h *Hub) BroadcastToRoomExcept(roomCode, excludeConnID string, event Event) {
	h.broadcast(roomCode, excludeConnID, event)
}

func (h *Hub) broadcast(roomCode, excludeConnID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, client := range h.rooms[roomCode] {
		if connID == excludeConnID {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Buffer dolu — bu client yavaş, bağlantıyı kopar
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// SendToConn, tek bir bağlantıya event gönderir (room-error, kicked,
// room-left gibi requester/target-only event'ler için).
func (h *Hub) SendToConn(connID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for conn %s: %v", connID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[connID]; ok {
		select {
		case client.send <- data:
		default:
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.memberOf = make(map[string]string)
	log.Println("[ws] hub shut down, all connections closed")
}
