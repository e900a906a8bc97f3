// Package ws, WebSocket bağlantı yönetimi ve oda bazlı gerçek zamanlı
// event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları ve oda gruplarını yöneten merkezi yapı
// - Client: Her WebSocket bağlantısını temsil eder (ReadPump/WritePump)
// - Event: Client-server arası iletilen mesaj formatı
//
// Event akışı:
// 1. Client bir event gönderir (ör. join-room) → ReadPump okur
// 2. Client.handleEvent, Hub'a main.go'da bağlanmış callback'i çağırır
// 3. Callback engine'i (services.RoomService) çalıştırır
// 4. Engine, Hub'ın broadcast metodlarıyla odaya event yayar
// 5. Her üyenin WritePump'ı event'i kendi socket'ine yazar
package ws

import "github.com/akinalp/odam/models"

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op: Event türü — "join-room", "chat-message" vb.
// Data: Event'e özgü payload. stop-typing gibi bazı event'lerde düz
// string, delete-message broadcast'inde sadece messageId taşır.
// Seq: Her outbound event'e verilen artan sayı — client eksik event
// tespiti için takip edebilir.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operasyonları
const (
	OpJoinRoom      = "join-room"      // Odaya katıl veya oda oluştur
	OpChatMessage   = "chat-message"   // Mesaj gönder (server relay eder, iki yönde de kullanılır)
	OpTyping        = "typing"         // Kullanıcı yazıyor
	OpStopTyping    = "stop-typing"    // Kullanıcı yazmayı bıraktı
	OpReactMessage  = "react-message"  // Mesaja emoji toggle'la
	OpEditMessage   = "edit-message"   // Kendi mesajını düzenle (iki yönde de kullanılır)
	OpDeleteMessage = "delete-message" // Mesaj sil (iki yönde de kullanılır)
	OpKickUser      = "kick-user"      // Admin: üyeyi at
	OpLeaveRoom     = "leave-room"     // Odadan ayrıl
	OpHeartbeat     = "heartbeat"      // "hâlâ bağlıyım" sinyali — read deadline'ı yeniler
)

// Server → Client operasyonları
const (
	OpRoomError       = "room-error"       // Sadece istekte bulunana — statik hata metni
	OpRoomUsers       = "room-users"       // Tüm odaya — güncel üye listesi + adminId
	OpUpdateReactions = "update-reactions" // Tüm odaya — mesajın reaction özeti
	OpUserTyping      = "user-typing"      // Gönderen hariç odaya — yazan kullanıcının adı
	OpUserStopTyping  = "user-stop-typing" // Gönderen hariç odaya — temizleme sinyali
	OpKicked          = "kicked"           // Sadece hedefe — odadan atıldın
	OpRoomLeft        = "room-left"        // Sadece istekte bulunana — ayrılma onayı
	OpHeartbeatAck    = "heartbeat-ack"    // Heartbeat yanıtı
)

// TypingRequest, typing event'inin inbound payload'ı.
type TypingRequest struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
}

// ReactRequest, react-message event'inin inbound payload'ı.
// userName alanı client tarafından gönderilse bile YOKSAYILIR —
// reactor kimliği bağlantıdan alınır (spoofing önlemi).
type ReactRequest struct {
	RoomCode  string `json:"roomCode"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// EditRequest, edit-message event'inin inbound payload'ı.
type EditRequest struct {
	RoomCode  string `json:"roomCode"`
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

// DeleteRequest, delete-message event'inin inbound payload'ı.
type DeleteRequest struct {
	RoomCode  string `json:"roomCode"`
	MessageID string `json:"messageId"`
}

// KickRequest, kick-user event'inin inbound payload'ı.
type KickRequest struct {
	RoomCode string `json:"roomCode"`
	TargetID string `json:"targetId"`
}

// RoomUsersData, room-users broadcast'inin payload'ı.
// IsAdmin flag'leri her broadcast öncesi canonical admin_id ile
// yeniden hesaplanır.
type RoomUsersData struct {
	Users   []models.RoomUser `json:"users"`
	AdminID string            `json:"adminId"`
}

// ReactionUpdateData, update-reactions broadcast'inin payload'ı.
type ReactionUpdateData struct {
	MessageID string                 `json:"messageId"`
	Reactions []models.ReactionCount `json:"reactions"`
}

// EditBroadcast, edit-message broadcast'inin payload'ı.
type EditBroadcast struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}
