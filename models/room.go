// Package models — Room domain modeli.
//
// Room, durable store'daki tek bir oda kaydını temsil eder.
// Üyelik bilgisi burada DEĞİLDİR — üyeler process-local presence
// tablosunda yaşar (state paketi), oda kaydı sadece şifre ve
// admin kimliğini taşır.
package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akinalp/odam/pkg"
)

// Oda alanlarının sınırları.
const (
	MaxRoomCodeLength = 20
	MaxPasswordLength = 30
)

// Room, DB'deki "rooms" tablosunun Go karşılığı.
//
// Invariant: Her odanın en fazla bir admin'i vardır ve oda boş değilse
// AdminID o an bağlı bir üyeyi göstermek zorundadır. Admin ayrıldığında
// engine kalan üyelerden birini terfi ettirir; oda boşaldığı an kayıt silinir.
type Room struct {
	Code string `json:"code"`
	// PasswordHash, oda şifresinin bcrypt hash'i.
	// Şifre hiçbir zaman düz metin olarak saklanmaz; karşılaştırma
	// bcrypt.CompareHashAndPassword ile yapılır ve exact-match,
	// case-sensitive semantiği korunur.
	PasswordHash string `json:"-"`
	AdminID      string `json:"admin_id"`
}

// JoinRequest, join-room event'inin inbound payload'ı.
type JoinRequest struct {
	UserName string `json:"userName"`
	RoomCode string `json:"roomCode"`
	Password string `json:"password"`
	Create   bool   `json:"create"`
}

// Validate, alanları trim'ler ve sınırları kontrol eder.
//
// Kurallar:
// - userName: trim sonrası boş olamaz
// - roomCode: trim sonrası boş olamaz, en fazla 20 karakter
// - password: en fazla 30 karakter; create isteğinde boş olamaz
//
// Validation store'a gitmeden ÖNCE yapılır — geçersiz istek hiçbir
// durable-store çağrısı tetiklemez.
func (r *JoinRequest) Validate() error {
	r.UserName = strings.TrimSpace(r.UserName)
	r.RoomCode = strings.TrimSpace(r.RoomCode)
	r.Password = strings.TrimSpace(r.Password)

	if r.UserName == "" {
		return fmt.Errorf("%w: user name is required", pkg.ErrValidation)
	}
	if r.RoomCode == "" {
		return fmt.Errorf("%w: room code is required", pkg.ErrValidation)
	}
	if utf8.RuneCountInString(r.RoomCode) > MaxRoomCodeLength {
		return fmt.Errorf("%w: room code too long", pkg.ErrValidation)
	}
	if utf8.RuneCountInString(r.Password) > MaxPasswordLength {
		return fmt.Errorf("%w: password too long", pkg.ErrValidation)
	}
	if r.Create && r.Password == "" {
		return fmt.Errorf("%w: password is required to create a room", pkg.ErrPasswordRequired)
	}
	return nil
}

// ChatMessage, chat-message event'inin payload'ı.
//
// Mesajlar hiçbir yerde persist edilmez — sadece event payload'ı olarak
// var olurlar. MessageID client tarafından üretilir ve opak'tır; server
// onu asla yeniden türetmez. SenderID her zaman server tarafından
// bağlantının kimliğiyle damgalanır — client'ın gönderdiği değere
// GÜVENİLMEZ (spoofing önlemi).
type ChatMessage struct {
	RoomCode  string `json:"roomCode,omitempty"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	Time      string `json:"time"`
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId,omitempty"`
}

// Validate, relay öncesi alan kontrolü.
func (m *ChatMessage) Validate() error {
	if strings.TrimSpace(m.RoomCode) == "" {
		return fmt.Errorf("%w: room code is required", pkg.ErrValidation)
	}
	if strings.TrimSpace(m.UserName) == "" {
		return fmt.Errorf("%w: user name is required", pkg.ErrValidation)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: message text is required", pkg.ErrValidation)
	}
	return nil
}
