// Package services — Room Lifecycle Engine.
//
// Engine; join/create, admin atama ve devri, kick, leave/disconnect ve
// oda teardown'unu orkestra eder. Durable oda kaydı (repository) ile
// process-local presence'ı (state) tutarlı tutar ve sonuçta oluşan
// görünümü odaya broadcast eder.
//
// Eşzamanlılık disiplini: Her durable-store çağrısı bir suspend
// noktasıdır — o sırada başka bağlantıların handler'ları araya girer.
// Bu yüzden engine, bir suspend noktasından sonra karar verirken asla
// önceden yakaladığı oda kaydına güvenmez; canonical kaydı store'dan
// YENİDEN okur. Create yarışının hakemi de uygulama kodu değil,
// oda kodu üzerindeki UNIQUE constraint'tir.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/akinalp/odam/models"
	"github.com/akinalp/odam/pkg"
	"github.com/akinalp/odam/repository"
	"github.com/akinalp/odam/state"
	"github.com/akinalp/odam/ws"
)

// DepartCause, teardown'a giren bir ayrılığın nedeni.
// Teardown yolu her neden için aynıdır; sadece system mesajının
// metni değişir.
type DepartCause int

const (
	CauseLeave DepartCause = iota
	CauseDisconnect
	CauseKick
)

// message, ayrılan kullanıcı için system mesajı metnini üretir.
func (c DepartCause) message(name string) string {
	switch c {
	case CauseDisconnect:
		return name + " disconnected the chat."
	case CauseKick:
		return name + " was kicked from the room."
	default:
		return name + " left the chat."
	}
}

// RoomService, oda yaşam döngüsü iş mantığı interface'i.
//
// Tüm metodlar bağlantı kimliğini (connID) ilk parametre alır —
// kimlik her zaman transport'tan gelir, payload'dan asla.
type RoomService interface {
	// Join, odaya katılır veya create intent'i ile oda oluşturur.
	Join(ctx context.Context, connID string, req models.JoinRequest) error

	// Leave, paylaşılan teardown rutinidir: üyelik silme, admin devri,
	// boşalan odanın silinmesi. Hata durumunda bile bağlantının
	// attribution'ı temizlenir; bu yüzden error dönmez, loglar.
	Leave(ctx context.Context, connID string, cause DepartCause)

	// RelayMessage, chat mesajını senderId damgalayıp odaya fan-out eder.
	RelayMessage(ctx context.Context, connID string, msg models.ChatMessage) error

	// ToggleReaction, reactor'ün emoji'sini toggle/replace kuralıyla
	// günceller ve özeti broadcast eder.
	ToggleReaction(ctx context.Context, connID, roomCode, messageID, emoji string) error

	// EditMessage / DeleteMessage — yetki: kayıtlı mesaj sahibi;
	// delete için ek olarak odanın o anki admin'i. Yetkisiz denemeler
	// pkg.ErrUnauthorized döner; çağıran katman bunu SESSİZCE düşürür
	// (bilinçli fail-closed, fail-silent politikası).
	EditMessage(ctx context.Context, connID, roomCode, messageID, newText string) error
	DeleteMessage(ctx context.Context, connID, roomCode, messageID string) error

	// Typing / StopTyping — gönderen hariç odaya fan-out; durum tutulmaz.
	Typing(connID, roomCode, userName string)
	StopTyping(connID, roomCode string)

	// Kick — sadece o anki admin. Hedefe "kicked" gönderilir, hedef
	// broadcast grubundan çıkarılır ve aynı teardown yolu çalışır.
	Kick(ctx context.Context, connID, roomCode, targetID string) error
}

type roomService struct {
	roomRepo repository.RoomRepository
	table    *state.Table
	hub      ws.RoomBroadcaster

	// now, system mesajlarının zaman damgası için — testlerde sabitlenir.
	now func() time.Time
}

// NewRoomService, constructor.
func NewRoomService(roomRepo repository.RoomRepository, table *state.Table, hub ws.RoomBroadcaster) RoomService {
	return &roomService{
		roomRepo: roomRepo,
		table:    table,
		hub:      hub,
		now:      time.Now,
	}
}

// Join, odaya katılma/oluşturma akışı.
//
// Akış:
// 1. Validation — store'a gitmeden reddet
// 2. Oda lookup
// 3. Yok + create=false → RoomNotFound
//    Yok + create=true → bcrypt hash'le, joiner'ı admin yaparak oluştur.
//    Eşzamanlı create yarışında kaybeden ErrRoomConflict alır ve
//    kazananın odasına SESSİZCE KATILMAZ.
//    Var → şifre karşılaştır (exact match, case-sensitive)
// 4. Üyeliği kaydet (hub grubu + presence)
// 5. Canonical oda kaydını YENİDEN oku — create yarışı veya araya giren
//    bir handover admin_id'yi değiştirmiş olabilir
// 6. room-users + "joined" system mesajı broadcast
func (s *roomService) Join(ctx context.Context, connID string, req models.JoinRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if current, _, ok := s.table.Attribution(connID); ok {
		return fmt.Errorf("%w: connection already in room %s", pkg.ErrAlreadyInRoom, current)
	}

	created := false
	room, err := s.roomRepo.GetByCode(ctx, req.RoomCode)
	switch {
	case errors.Is(err, pkg.ErrRoomNotFound):
		if !req.Create {
			return pkg.ErrRoomNotFound
		}

		hash, hashErr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			return fmt.Errorf("failed to hash room password: %w", hashErr)
		}

		room = &models.Room{
			Code:         req.RoomCode,
			PasswordHash: string(hash),
			AdminID:      connID,
		}
		// İlk üye admin'dir — oluşturma anında kaydedilir, ayrı bir
		// terfi adımı yoktur.
		if createErr := s.roomRepo.Create(ctx, room); createErr != nil {
			return createErr
		}
		created = true

	case err != nil:
		return err

	default:
		if bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(req.Password)) != nil {
			return pkg.ErrIncorrectPassword
		}
	}

	// Bağlantı lookup ile grup kaydı arasında kopmuş olabilir — o
	// durumda disconnect teardown'u çoktan, attribution görmeden koştu.
	// Üyelik kaydı OLUŞTURULMAZ: ghost üye bir daha temizlenemez ve
	// admin'e bile terfi edebilirdi. Bu çağrıda oluşturulan taze oda
	// kaydı da sahipsiz kalmasın diye geri alınır.
	if !s.hub.JoinRoom(connID, req.RoomCode) {
		if created && s.table.MemberCount(req.RoomCode) == 0 {
			if delErr := s.roomRepo.Delete(ctx, req.RoomCode); delErr != nil {
				log.Printf("[room] failed to delete orphaned room %s: %v", req.RoomCode, delErr)
			}
			s.table.DropRoom(req.RoomCode)
		}
		return fmt.Errorf("connection %s is no longer registered", connID)
	}
	s.table.AddMember(req.RoomCode, connID, req.UserName)

	// Lookup'tan beri suspend noktaları geçti — bayat admin_id ile
	// broadcast yapmamak için canonical kaydı yeniden oku.
	adminID := room.AdminID
	if canonical, refetchErr := s.roomRepo.GetByCode(ctx, req.RoomCode); refetchErr == nil {
		adminID = canonical.AdminID
	} else {
		log.Printf("[room] refetch after join failed for %s: %v", req.RoomCode, refetchErr)
	}

	s.broadcastRoomUsers(req.RoomCode, adminID)
	s.broadcastSystemMessage(req.RoomCode, req.UserName+" joined the chat.")
	return nil
}

// Leave, leave/disconnect/kick'in ortak teardown rutini.
//
// Adımlar (sıra önemli):
// 1. Presence'tan üyeyi çıkar — zaten çıkarılmışsa dur (kick ile
//    voluntary leave yarışsa bile üye en fazla bir kez çıkarılır).
//    Kalan üye sayısı çıkarma ile AYNI kilit altında okunur.
// 2. Canonical oda kaydını yeniden oku
// 3. Oda boşaldıysa: kaydı sil, ephemeral durumu at, dur — broadcast
//    hedefi kalmadı. Silme tam bir kez olur çünkü sıfıra geçişi tam
//    olarak bir çağrı gözlemler; araya giren bir create-join'in taze
//    kaydı ikinci bir silmeyle yok edilemez.
// 4. Ayrılan admin'se: en erken katılmış kalan üyeyi durable store'da
//    terfi ettir
// 5. Yenilenmiş kaydı tekrar oku, room-users + system mesajı broadcast
//
// Attribution, sonuç ne olursa olsun temizlenir (defer) — bayat bir
// bağlantı gelecekteki lookup'larda asla üye sayılmaz.
func (s *roomService) Leave(ctx context.Context, connID string, cause DepartCause) {
	defer s.table.ClearAttribution(connID)

	roomCode, name, ok := s.table.Attribution(connID)
	if !ok {
		return
	}

	s.hub.LeaveRoom(connID, roomCode)

	removed, remaining := s.table.RemoveMember(roomCode, connID)
	if !removed {
		return
	}

	room, err := s.roomRepo.GetByCode(ctx, roomCode)
	if err != nil {
		// Store okunamadı — best-effort devam: boşalan odanın ephemeral
		// durumu atılır; üye kaldıysa bayat listeyle bırakılmaz,
		// bilinen presence admin bilgisi olmadan yine de yayılır.
		log.Printf("[room] teardown lookup failed for %s: %v", roomCode, err)
		if remaining == 0 {
			s.table.DropRoom(roomCode)
			return
		}
		s.broadcastRoomUsers(roomCode, "")
		s.broadcastSystemMessage(roomCode, cause.message(name))
		return
	}

	if remaining == 0 {
		if delErr := s.roomRepo.Delete(ctx, roomCode); delErr != nil {
			log.Printf("[room] failed to delete empty room %s: %v", roomCode, delErr)
		}
		s.table.DropRoom(roomCode)
		log.Printf("[room] room %s torn down (last member: %s)", roomCode, name)
		return
	}

	if room.AdminID == connID {
		if next, found := s.table.FirstRemaining(roomCode); found {
			if adminErr := s.roomRepo.SetAdmin(ctx, roomCode, next); adminErr != nil {
				log.Printf("[room] admin handover failed for %s: %v", roomCode, adminErr)
			}
		}
	}

	// Handover bir suspend noktasıydı — broadcast'ten önce canonical
	// admin_id'yi yeniden oku.
	adminID := ""
	if canonical, refetchErr := s.roomRepo.GetByCode(ctx, roomCode); refetchErr == nil {
		adminID = canonical.AdminID
	} else {
		log.Printf("[room] refetch after teardown failed for %s: %v", roomCode, refetchErr)
	}

	s.broadcastRoomUsers(roomCode, adminID)
	s.broadcastSystemMessage(roomCode, cause.message(name))
}

// RelayMessage, chat mesajını odaya iletir.
//
// senderId HER ZAMAN bağlantı kimliğiyle damgalanır — client'ın
// gönderdiği senderId yoksayılır. Mesaj sahipliği relay anında
// kaydedilir; edit/delete yetkisi bu kayıttan doğrulanır.
func (s *roomService) RelayMessage(ctx context.Context, connID string, msg models.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	roomCode, _, ok := s.table.Attribution(connID)
	if !ok || roomCode != msg.RoomCode {
		return fmt.Errorf("%w: not a member of room %s", pkg.ErrUnauthorized, msg.RoomCode)
	}

	if msg.MessageID != "" {
		s.table.RecordOwner(roomCode, msg.MessageID, connID)
	}

	s.hub.BroadcastToRoom(roomCode, ws.Event{
		Op: ws.OpChatMessage,
		Data: models.ChatMessage{
			UserName:  msg.UserName,
			Text:      msg.Text,
			Time:      msg.Time,
			MessageID: msg.MessageID,
			SenderID:  connID,
		},
	})
	return nil
}

// ToggleReaction, reactor'ün emoji'sini günceller ve özeti yayar.
// Reactor kimliği bağlantıdan alınır, payload'daki userName yoksayılır.
func (s *roomService) ToggleReaction(ctx context.Context, connID, roomCode, messageID, emoji string) error {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(emoji) == "" {
		return fmt.Errorf("%w: message id and emoji are required", pkg.ErrValidation)
	}

	if !s.table.HasMember(roomCode, connID) {
		return fmt.Errorf("%w: not a member of room %s", pkg.ErrUnauthorized, roomCode)
	}

	reactions := s.table.ToggleReaction(roomCode, messageID, connID, emoji)

	s.hub.BroadcastToRoom(roomCode, ws.Event{
		Op: ws.OpUpdateReactions,
		Data: ws.ReactionUpdateData{
			MessageID: messageID,
			Reactions: reactions,
		},
	})
	return nil
}

// EditMessage, mesaj düzenlemeyi odaya yayar.
//
// Yetki: sadece kayıtlı mesaj sahibi. Kayıt yoksa (restart öncesi mesaj
// gibi) yetki VERİLMEZ — fail-closed. Yetkisiz deneme ErrUnauthorized
// döner; ws wiring bunu sessizce düşürür.
func (s *roomService) EditMessage(ctx context.Context, connID, roomCode, messageID, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return fmt.Errorf("%w: new text is required", pkg.ErrValidation)
	}

	owner, ok := s.table.Owner(roomCode, messageID)
	if !ok || owner != connID {
		return fmt.Errorf("%w: not the sender of message %s", pkg.ErrUnauthorized, messageID)
	}

	s.hub.BroadcastToRoom(roomCode, ws.Event{
		Op: ws.OpEditMessage,
		Data: ws.EditBroadcast{
			MessageID: messageID,
			NewText:   newText,
		},
	})
	return nil
}

// DeleteMessage, mesaj silmeyi odaya yayar ve mesajın reaction +
// sahiplik durumunu temizler.
//
// Yetki: kayıtlı mesaj sahibi VEYA odanın o anki admin'i. Admin kontrolü
// cache'lenmiş bir değerle değil, istek anında store'dan okunan
// canonical kayıtla yapılır.
func (s *roomService) DeleteMessage(ctx context.Context, connID, roomCode, messageID string) error {
	owner, ok := s.table.Owner(roomCode, messageID)
	allowed := ok && owner == connID

	if !allowed {
		room, err := s.roomRepo.GetByCode(ctx, roomCode)
		allowed = err == nil && room.AdminID == connID
	}
	if !allowed {
		return fmt.Errorf("%w: not the sender or admin for message %s", pkg.ErrUnauthorized, messageID)
	}

	s.table.ClearMessage(roomCode, messageID)

	s.hub.BroadcastToRoom(roomCode, ws.Event{
		Op:   ws.OpDeleteMessage,
		Data: messageID,
	})
	return nil
}

// Typing, yazan kullanıcının adını gönderen HARİÇ odaya yayar.
// Server-side debounce yoktur; stop sinyali tamamen client'ın işidir.
func (s *roomService) Typing(connID, roomCode, userName string) {
	if !s.table.HasMember(roomCode, connID) {
		return
	}
	s.hub.BroadcastToRoomExcept(roomCode, connID, ws.Event{
		Op:   ws.OpUserTyping,
		Data: userName,
	})
}

// StopTyping, temizleme sinyalini gönderen hariç odaya yayar.
func (s *roomService) StopTyping(connID, roomCode string) {
	if !s.table.HasMember(roomCode, connID) {
		return
	}
	s.hub.BroadcastToRoomExcept(roomCode, connID, ws.Event{
		Op: ws.OpUserStopTyping,
	})
}

// Kick, admin'in bir üyeyi odadan atmasıdır.
//
// Yetki, istek ANINDA store'dan okunan canonical kayıtla doğrulanır —
// cache'lenmiş admin bilgisi devir yarışlarında bayatlayabilir.
// Başarıda: hedefe "kicked" bildirilir, hedef broadcast grubundan
// çıkarılır ve voluntary leave ile aynı teardown yolu çalışır
// (üyelik silme, gerekiyorsa admin devri, boşalan odanın silinmesi).
// Yetkisizlikte: sadece istekte bulunana hata gider, broadcast olmaz.
func (s *roomService) Kick(ctx context.Context, connID, roomCode, targetID string) error {
	room, err := s.roomRepo.GetByCode(ctx, roomCode)
	if err != nil {
		return err
	}
	if room.AdminID != connID {
		return fmt.Errorf("%w: only the room admin can kick", pkg.ErrUnauthorized)
	}
	if targetID == connID {
		return fmt.Errorf("%w: cannot kick yourself", pkg.ErrValidation)
	}
	if !s.table.HasMember(roomCode, targetID) {
		return fmt.Errorf("%w: target is not in the room", pkg.ErrValidation)
	}

	s.hub.SendToConn(targetID, ws.Event{Op: ws.OpKicked})
	s.Leave(ctx, targetID, CauseKick)
	return nil
}

// broadcastRoomUsers, güncel üye listesini isAdmin flag'leriyle yayar.
// isAdmin her çağrıda canonical admin_id ile yeniden hesaplanır.
func (s *roomService) broadcastRoomUsers(roomCode, adminID string) {
	members := s.table.Members(roomCode)

	users := make([]models.RoomUser, 0, len(members))
	for _, m := range members {
		users = append(users, models.RoomUser{
			ID:      m.ConnID,
			Name:    m.Name,
			IsAdmin: m.ConnID == adminID,
		})
	}

	s.hub.BroadcastToRoom(roomCode, ws.Event{
		Op: ws.OpRoomUsers,
		Data: ws.RoomUsersData{
			Users:   users,
			AdminID: adminID,
		},
	})
}

// broadcastSystemMessage, "System" imzalı bir chat mesajı yayar.
//
// messageId, client'ların ürettiği id'lerle çakışmayan sentetik bir
// token'dır (sys- prefix + server timestamp). time, localized
// saat:dakika formatındadır.
func (s *roomService) broadcastSystemMessage(roomCode, text string) {
	now := s.now()
	s.hub.BroadcastToRoom(roomCode, ws.Event{
		Op: ws.OpChatMessage,
		Data: models.ChatMessage{
			UserName:  "System",
			Text:      text,
			Time:      now.Format("15:04"),
			MessageID: fmt.Sprintf("sys-%d", now.UnixMilli()),
			SenderID:  "system",
		},
	})
}
