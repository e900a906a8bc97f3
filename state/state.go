// Package state, process-local oda durumunu tutar: presence tablosu,
// reaction tablosu ve mesaj sahipliği kayıtları.
//
// Global mutable map YOK — tüm durum, engine'in sahip olduğu tek bir
// Table nesnesinde yaşar ve her handler'a parametre olarak geçer.
// Restart'ta sıfırdan kurulur; sadece canlı bağlantıları yansıttığı
// için bu kabul edilebilir. Durable olan tek şey oda kaydıdır
// (repository paketi).
//
// Eşzamanlılık: Table process genelinde paylaşılır ve her handler
// goroutine'i tarafından mutate edilir. Tüm read-modify-write dizileri
// tek mutex altında çalışır; durable store'a giden her await noktasından
// sonra engine canonical oda kaydını YENİDEN okur — suspend öncesi
// yakalanan değere asla güvenmez.
package state

import (
	"sync"
	"time"

	"github.com/akinalp/odam/models"
)

// attribution, bir bağlantının hangi odada hangi isimle olduğu.
// Bir bağlantı aynı anda en fazla bir odaya ait olabilir.
type attribution struct {
	RoomCode string
	Name     string
}

// roomState, tek bir odanın ephemeral durumu.
type roomState struct {
	// members, katılım sırasına göre tutulur. Admin terfisi bu sıradan
	// yapılır: en erken katılmış, hâlâ mevcut üye.
	members []models.Member

	// reactions: messageID → reactorConnID → emoji.
	// Bir reactor'ün mesaj başına en fazla bir aktif emojisi olur.
	reactions map[string]map[string]string

	// owners: messageID → senderConnID. Relay sırasında kaydedilir;
	// edit/delete yetkisi bu kayıttan doğrulanır. MessageID içindeki
	// string prefix'e bakılMAZ — id forgery'ye açık olurdu.
	owners map[string]string
}

// Table, tüm process-local oda durumunu saran container.
type Table struct {
	mu    sync.Mutex
	rooms map[string]*roomState
	conns map[string]attribution
}

// NewTable, boş bir state container'ı oluşturur.
func NewTable() *Table {
	return &Table{
		rooms: make(map[string]*roomState),
		conns: make(map[string]attribution),
	}
}

// room, odanın state'ini döner, yoksa oluşturur. mu tutulmuş olmalı.
func (t *Table) room(code string) *roomState {
	rs, ok := t.rooms[code]
	if !ok {
		rs = &roomState{
			reactions: make(map[string]map[string]string),
			owners:    make(map[string]string),
		}
		t.rooms[code] = rs
	}
	return rs
}

// AddMember, bağlantıyı odaya üye olarak kaydeder ve attribution'ını yazar.
func (t *Table) AddMember(roomCode, connID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs := t.room(roomCode)
	rs.members = append(rs.members, models.Member{
		ConnID:   connID,
		Name:     name,
		JoinedAt: time.Now(),
	})
	t.conns[connID] = attribution{RoomCode: roomCode, Name: name}
}

// RemoveMember, bağlantıyı odanın üye listesinden çıkarır ve kalan üye
// sayısını AYNI kilit altında döner.
//
// Üye zaten yoksa removed=false — kick ile voluntary leave yarıştığında
// üye en fazla bir kez çıkarılmış olur. remaining, çıkarma ile atomik
// okunur: sıfıra geçişi tam olarak bir çağrı gözlemler. Ayrı bir
// MemberCount çağrısıyla karar vermek, iki eşzamanlı son-üye ayrılışının
// ikisine de "oda boşaldı" gösterip odayı iki kez sildirirdi.
func (t *Table) RemoveMember(roomCode, connID string) (removed bool, remaining int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return false, 0
	}
	for i, m := range rs.members {
		if m.ConnID == connID {
			rs.members = append(rs.members[:i], rs.members[i+1:]...)
			return true, len(rs.members)
		}
	}
	return false, len(rs.members)
}

// Members, odanın üyelerini katılım sırasıyla kopya olarak döner.
func (t *Table) Members(roomCode string) []models.Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return nil
	}
	out := make([]models.Member, len(rs.members))
	copy(out, rs.members)
	return out
}

// MemberCount, odadaki üye sayısını döner.
func (t *Table) MemberCount(roomCode string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return 0
	}
	return len(rs.members)
}

// HasMember, bağlantının odada üye olup olmadığını döner.
func (t *Table) HasMember(roomCode, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return false
	}
	for _, m := range rs.members {
		if m.ConnID == connID {
			return true
		}
	}
	return false
}

// FirstRemaining, admin terfisi için en erken katılmış üyeyi döner.
// Map iteration sırası gibi rastlantısal bir davranışa değil,
// üye listesinin katılım sırasına dayanır — deterministiktir.
func (t *Table) FirstRemaining(roomCode string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok || len(rs.members) == 0 {
		return "", false
	}
	return rs.members[0].ConnID, true
}

// DropRoom, odanın tüm ephemeral durumunu (üyeler, reaction'lar,
// sahiplik kayıtları) atar. Oda teardown'unda tam bir kez çağrılır.
func (t *Table) DropRoom(roomCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.rooms, roomCode)
}

// Attribution, bağlantının odasını ve görünen adını döner.
func (t *Table) Attribution(connID string) (roomCode, name string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.conns[connID]
	return a.RoomCode, a.Name, ok
}

// ClearAttribution, bağlantının oda/isim kaydını koşulsuz siler.
// Teardown hata yolunda bile çağrılır — bayat bir bağlantı sonraki
// lookup'larda asla yanlış sayılmamalıdır.
func (t *Table) ClearAttribution(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.conns, connID)
}
