package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/akinalp/odam/models"
	"github.com/akinalp/odam/pkg"
	"github.com/akinalp/odam/state"
	"github.com/akinalp/odam/ws"
)

// ─── Fake'ler ───

// fakeRoomRepo, RoomRepository'nin in-memory implementasyonu.
// Gerçek store gibi duplicate create'te pkg.ErrRoomConflict döner.
type fakeRoomRepo struct {
	mu          sync.Mutex
	rooms       map[string]models.Room
	deleteCalls int

	// getFn, GetByCode'u override eder — create yarışını simüle etmek
	// için ("oda yok" cevabından sonra Create'in conflict görmesi).
	getFn func(code string) (*models.Room, error)
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]models.Room)}
}

func (r *fakeRoomRepo) Create(_ context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[room.Code]; exists {
		return pkg.ErrRoomConflict
	}
	r.rooms[room.Code] = *room
	return nil
}

func (r *fakeRoomRepo) GetByCode(_ context.Context, code string) (*models.Room, error) {
	if r.getFn != nil {
		return r.getFn(code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil, pkg.ErrRoomNotFound
	}
	out := room
	return &out, nil
}

func (r *fakeRoomRepo) SetAdmin(_ context.Context, code, adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return pkg.ErrRoomNotFound
	}
	room.AdminID = adminID
	r.rooms[code] = room
	return nil
}

func (r *fakeRoomRepo) Delete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if _, ok := r.rooms[code]; !ok {
		return pkg.ErrRoomNotFound
	}
	delete(r.rooms, code)
	return nil
}

// sentEvent, fake hub'ın kaydettiği tek bir gönderim.
type sentEvent struct {
	kind   string // "room", "except", "conn"
	room   string
	target string // except: hariç tutulan conn, conn: hedef conn
	event  ws.Event
}

// fakeHub, ws.RoomBroadcaster'ın event kaydeden implementasyonu.
// dead'e eklenen bağlantılar için JoinRoom false döner — katılım
// sırasında kopan bağlantı simülasyonu.
type fakeHub struct {
	mu     sync.Mutex
	events []sentEvent
	joins  []string
	leaves []string
	dead   map[string]bool
}

func (h *fakeHub) JoinRoom(connID, roomCode string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dead[connID] {
		return false
	}
	h.joins = append(h.joins, connID+":"+roomCode)
	return true
}

func (h *fakeHub) LeaveRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaves = append(h.leaves, connID+":"+roomCode)
}

func (h *fakeHub) BroadcastToRoom(roomCode string, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{kind: "room", room: roomCode, event: event})
}

func (h *fakeHub) BroadcastToRoomExcept(roomCode, excludeConnID string, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{kind: "except", room: roomCode, target: excludeConnID, event: event})
}

func (h *fakeHub) SendToConn(connID string, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{kind: "conn", target: connID, event: event})
}

func (h *fakeHub) byOp(op string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.events {
		if e.event.Op == op {
			out = append(out, e)
		}
	}
	return out
}

func (h *fakeHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
	h.joins = nil
	h.leaves = nil
}

// lastSystemMessage, en son yayınlanan System chat mesajını döner.
func (h *fakeHub) lastSystemMessage(t *testing.T) models.ChatMessage {
	t.Helper()
	events := h.byOp(ws.OpChatMessage)
	for i := len(events) - 1; i >= 0; i-- {
		msg, ok := events[i].event.Data.(models.ChatMessage)
		if ok && msg.SenderID == "system" {
			return msg
		}
	}
	t.Fatal("no system message broadcast")
	return models.ChatMessage{}
}

func newTestService() (RoomService, *fakeRoomRepo, *fakeHub, *state.Table) {
	repo := newFakeRoomRepo()
	hub := &fakeHub{}
	table := state.NewTable()
	return NewRoomService(repo, table, hub), repo, hub, table
}

func join(t *testing.T, svc RoomService, connID, name, code, password string, create bool) {
	t.Helper()
	err := svc.Join(context.Background(), connID, models.JoinRequest{
		UserName: name,
		RoomCode: code,
		Password: password,
		Create:   create,
	})
	require.NoError(t, err)
}

// ─── Join / Create ───

func TestJoinCreatesRoomWithCreatorAsAdmin(t *testing.T) {
	svc, repo, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)

	room, err := repo.GetByCode(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "c1", room.AdminID)
	// Şifre düz metin saklanmaz
	assert.NotEqual(t, "pw", room.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte("pw")))

	assert.True(t, table.HasMember("ABCD", "c1"))
	assert.Equal(t, []string{"c1:ABCD"}, hub.joins)

	users := hub.byOp(ws.OpRoomUsers)
	require.Len(t, users, 1)
	data := users[0].event.Data.(ws.RoomUsersData)
	assert.Equal(t, "c1", data.AdminID)
	require.Len(t, data.Users, 1)
	assert.Equal(t, models.RoomUser{ID: "c1", Name: "Alice", IsAdmin: true}, data.Users[0])

	msg := hub.lastSystemMessage(t)
	assert.Equal(t, "Alice joined the chat.", msg.Text)
	assert.Equal(t, "System", msg.UserName)
	assert.Regexp(t, `^sys-\d+$`, msg.MessageID)
	assert.NotEmpty(t, msg.Time)
}

func TestJoinExistingRoom(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)

	users := hub.byOp(ws.OpRoomUsers)
	require.Len(t, users, 1)
	data := users[0].event.Data.(ws.RoomUsersData)
	assert.Equal(t, "c1", data.AdminID)
	require.Len(t, data.Users, 2)
	assert.Equal(t, models.RoomUser{ID: "c1", Name: "Alice", IsAdmin: true}, data.Users[0])
	assert.Equal(t, models.RoomUser{ID: "c2", Name: "Bob", IsAdmin: false}, data.Users[1])
}

func TestJoinMissingRoomWithoutCreateFails(t *testing.T) {
	svc, _, hub, table := newTestService()

	err := svc.Join(context.Background(), "c1", models.JoinRequest{
		UserName: "Alice", RoomCode: "NOPE", Password: "pw",
	})
	assert.ErrorIs(t, err, pkg.ErrRoomNotFound)
	assert.False(t, table.HasMember("NOPE", "c1"))
	assert.Empty(t, hub.events)
}

func TestJoinWrongPasswordFails(t *testing.T) {
	svc, _, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()

	err := svc.Join(context.Background(), "c2", models.JoinRequest{
		UserName: "Bob", RoomCode: "ABCD", Password: "wrong",
	})
	assert.ErrorIs(t, err, pkg.ErrIncorrectPassword)
	assert.False(t, table.HasMember("ABCD", "c2"))
	assert.Empty(t, hub.events)
}

func TestCreateRequiresPassword(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.Join(context.Background(), "c1", models.JoinRequest{
		UserName: "Alice", RoomCode: "ABCD", Create: true,
	})
	assert.ErrorIs(t, err, pkg.ErrPasswordRequired)
}

func TestJoinValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	err := svc.Join(ctx, "c1", models.JoinRequest{UserName: "  ", RoomCode: "ABCD", Password: "pw"})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	err = svc.Join(ctx, "c1", models.JoinRequest{UserName: "Alice", RoomCode: "", Password: "pw"})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	err = svc.Join(ctx, "c1", models.JoinRequest{
		UserName: "Alice", RoomCode: "THIS-CODE-IS-WAY-TOO-LONG", Password: "pw",
	})
	assert.ErrorIs(t, err, pkg.ErrValidation)
}

func TestJoinWhileInAnotherRoomRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)

	err := svc.Join(context.Background(), "c1", models.JoinRequest{
		UserName: "Alice", RoomCode: "EFGH", Password: "pw", Create: true,
	})
	assert.ErrorIs(t, err, pkg.ErrAlreadyInRoom)
}

// İki eşzamanlı create-join aynı kodla yarışır: ikisi de "oda yok"
// cevabını görür ama UNIQUE constraint sayesinde yalnızca biri
// oluşturur. Kaybeden açık bir conflict hatası alır — kazananın
// odasına sessizce alınMAZ.
func TestConcurrentCreateLoserGetsConflict(t *testing.T) {
	svc, repo, hub, table := newTestService()

	// Kazanan odayı oluşturdu
	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()

	// Kaybeden hâlâ "oda yok" görüyor (lookup create'ten önce yapılmıştı)
	repo.getFn = func(code string) (*models.Room, error) {
		return nil, pkg.ErrRoomNotFound
	}

	err := svc.Join(context.Background(), "c2", models.JoinRequest{
		UserName: "Mallory", RoomCode: "ABCD", Password: "other", Create: true,
	})
	assert.ErrorIs(t, err, pkg.ErrRoomConflict)
	assert.False(t, table.HasMember("ABCD", "c2"))
	assert.Empty(t, hub.events)

	repo.getFn = nil
	room, err := repo.GetByCode(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "c1", room.AdminID)
}

// Bağlantı, oda lookup'ı ile grup kaydı arasında koparsa disconnect
// teardown'u attribution görmeden koşmuştur. Katılım iptal edilir:
// ghost üye kaydedilmez ve bu çağrıda oluşturulan taze oda kaydı
// sahipsiz bırakılmaz.
func TestJoinAbortsWhenConnectionDroppedDuringCreate(t *testing.T) {
	svc, repo, hub, table := newTestService()
	hub.dead = map[string]bool{"c1": true}

	err := svc.Join(context.Background(), "c1", models.JoinRequest{
		UserName: "Alice", RoomCode: "ABCD", Password: "pw", Create: true,
	})
	require.Error(t, err)

	assert.False(t, table.HasMember("ABCD", "c1"))
	_, _, ok := table.Attribution("c1")
	assert.False(t, ok)

	// Taze oluşturulan kayıt geri alındı — oda sahipsiz kalmaz
	_, getErr := repo.GetByCode(context.Background(), "ABCD")
	assert.ErrorIs(t, getErr, pkg.ErrRoomNotFound)
	assert.Empty(t, hub.events)
}

func TestJoinAbortsWhenConnectionDroppedKeepsExistingRoom(t *testing.T) {
	svc, repo, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()
	hub.dead = map[string]bool{"c2": true}

	err := svc.Join(context.Background(), "c2", models.JoinRequest{
		UserName: "Bob", RoomCode: "ABCD", Password: "pw",
	})
	require.Error(t, err)

	// Mevcut oda ve üyeleri dokunulmamış kalır
	assert.False(t, table.HasMember("ABCD", "c2"))
	assert.True(t, table.HasMember("ABCD", "c1"))
	room, getErr := repo.GetByCode(context.Background(), "ABCD")
	require.NoError(t, getErr)
	assert.Equal(t, "c1", room.AdminID)
	assert.Empty(t, hub.events)
}

// ─── Leave / Disconnect / Teardown ───

func TestAdminHandoverOnDisconnect(t *testing.T) {
	svc, repo, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	hub.reset()

	svc.Leave(context.Background(), "c1", CauseDisconnect)

	// Durable admin_id güncellendi
	room, err := repo.GetByCode(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "c2", room.AdminID)

	// Kalan odaya yenilenmiş üye listesi gitti
	users := hub.byOp(ws.OpRoomUsers)
	require.Len(t, users, 1)
	data := users[0].event.Data.(ws.RoomUsersData)
	assert.Equal(t, "c2", data.AdminID)
	require.Len(t, data.Users, 1)
	assert.Equal(t, models.RoomUser{ID: "c2", Name: "Bob", IsAdmin: true}, data.Users[0])

	msg := hub.lastSystemMessage(t)
	assert.Equal(t, "Alice disconnected the chat.", msg.Text)
}

func TestHandoverPromotesEarliestJoined(t *testing.T) {
	svc, repo, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	join(t, svc, "c3", "Carol", "ABCD", "pw", false)
	hub.reset()

	svc.Leave(context.Background(), "c1", CauseLeave)

	room, err := repo.GetByCode(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "c2", room.AdminID)

	msg := hub.lastSystemMessage(t)
	assert.Equal(t, "Alice left the chat.", msg.Text)
}

func TestLastMemberLeaveDeletesRoomExactlyOnce(t *testing.T) {
	svc, repo, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ZZZZ", "pw", true)
	hub.reset()

	svc.Leave(context.Background(), "c1", CauseDisconnect)

	// Oda kaydı silindi, broadcast hedefi kalmadığı için event yok
	_, err := repo.GetByCode(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, pkg.ErrRoomNotFound)
	assert.Equal(t, 1, repo.deleteCalls)
	assert.Empty(t, hub.byOp(ws.OpRoomUsers))
	assert.Equal(t, 0, table.MemberCount("ZZZZ"))

	// İkinci leave no-op — oda iki kez silinmez
	svc.Leave(context.Background(), "c1", CauseDisconnect)
	assert.Equal(t, 1, repo.deleteCalls)

	// Aynı kodla yeni bir oda sıfırdan oluşturulabilir
	join(t, svc, "c9", "Nina", "ZZZZ", "newpw", true)
	room, err := repo.GetByCode(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Equal(t, "c9", room.AdminID)
}

func TestLeaveClearsAttributionEvenWhenStoreFails(t *testing.T) {
	svc, repo, _, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)

	repo.getFn = func(code string) (*models.Room, error) {
		return nil, pkg.ErrStoreUnavailable
	}
	svc.Leave(context.Background(), "c1", CauseLeave)

	// Store hatasında bile bağlantı bayat üye olarak kalmaz
	_, _, ok := table.Attribution("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, table.MemberCount("ABCD"))
}

// Teardown lookup'ı üye kalmışken başarısız olursa kalanlar bayat üye
// listesiyle bırakılmaz: presence, admin bilgisi olmadan best-effort
// yayılır.
func TestTeardownBroadcastsPresenceWhenStoreFails(t *testing.T) {
	svc, repo, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	hub.reset()

	repo.getFn = func(code string) (*models.Room, error) {
		return nil, pkg.ErrStoreUnavailable
	}
	svc.Leave(context.Background(), "c1", CauseLeave)

	users := hub.byOp(ws.OpRoomUsers)
	require.Len(t, users, 1)
	data := users[0].event.Data.(ws.RoomUsersData)
	assert.Empty(t, data.AdminID)
	require.Len(t, data.Users, 1)
	assert.Equal(t, models.RoomUser{ID: "c2", Name: "Bob", IsAdmin: false}, data.Users[0])

	msg := hub.lastSystemMessage(t)
	assert.Equal(t, "Alice left the chat.", msg.Text)
	assert.Equal(t, 1, table.MemberCount("ABCD"))
}

// ─── Kick ───

func TestKickByAdmin(t *testing.T) {
	svc, _, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	hub.reset()

	err := svc.Kick(context.Background(), "c1", "ABCD", "c2")
	require.NoError(t, err)

	// Hedef önce bilgilendirildi, sonra broadcast grubundan çıkarıldı
	kicked := hub.byOp(ws.OpKicked)
	require.Len(t, kicked, 1)
	assert.Equal(t, "c2", kicked[0].target)
	assert.Contains(t, hub.leaves, "c2:ABCD")

	assert.False(t, table.HasMember("ABCD", "c2"))
	_, _, ok := table.Attribution("c2")
	assert.False(t, ok)

	msg := hub.lastSystemMessage(t)
	assert.Equal(t, "Bob was kicked from the room.", msg.Text)
}

func TestKickByNonAdminRejected(t *testing.T) {
	svc, _, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	hub.reset()

	err := svc.Kick(context.Background(), "c2", "ABCD", "c1")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)

	// Broadcast yok, üyelik değişmedi
	assert.Empty(t, hub.events)
	assert.True(t, table.HasMember("ABCD", "c1"))
	assert.True(t, table.HasMember("ABCD", "c2"))
}

func TestKickLastOtherMemberKeepsRoomAlive(t *testing.T) {
	svc, repo, _, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)

	require.NoError(t, svc.Kick(context.Background(), "c1", "ABCD", "c2"))

	// Admin hâlâ içeride — oda silinmez
	room, err := repo.GetByCode(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "c1", room.AdminID)
	assert.Equal(t, 1, table.MemberCount("ABCD"))
}

// ─── Mesaj relay ───

func TestRelayStampsSenderAndRecordsOwner(t *testing.T) {
	svc, _, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()

	err := svc.RelayMessage(context.Background(), "c1", models.ChatMessage{
		RoomCode:  "ABCD",
		UserName:  "Alice",
		Text:      "hi",
		Time:      "12:30",
		MessageID: "m1",
		SenderID:  "spoofed", // client değerine güvenilmez
	})
	require.NoError(t, err)

	events := hub.byOp(ws.OpChatMessage)
	require.Len(t, events, 1)
	msg := events[0].event.Data.(models.ChatMessage)
	assert.Equal(t, "c1", msg.SenderID)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "m1", msg.MessageID)
	assert.Empty(t, msg.RoomCode) // outbound payload oda kodu taşımaz

	owner, ok := table.Owner("ABCD", "m1")
	require.True(t, ok)
	assert.Equal(t, "c1", owner)
}

func TestRelayRejectsNonMember(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()

	err := svc.RelayMessage(context.Background(), "intruder", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Eve", Text: "hi", MessageID: "m1",
	})
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	assert.Empty(t, hub.events)
}

// ─── Reaction'lar ───

func TestReactionToggleFlow(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)

	require.NoError(t, svc.RelayMessage(context.Background(), "c1", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Alice", Text: "hi", MessageID: "C1_1",
	}))
	hub.reset()

	// Bob 👍 ekledi
	require.NoError(t, svc.ToggleReaction(context.Background(), "c2", "ABCD", "C1_1", "👍"))
	updates := hub.byOp(ws.OpUpdateReactions)
	require.Len(t, updates, 1)
	data := updates[0].event.Data.(ws.ReactionUpdateData)
	assert.Equal(t, "C1_1", data.MessageID)
	require.Len(t, data.Reactions, 1)
	assert.Equal(t, models.ReactionCount{Emoji: "👍", Count: 1}, data.Reactions[0])

	// Bob aynı emojiyi tekrar gönderdi — toggle off, liste boşalır
	require.NoError(t, svc.ToggleReaction(context.Background(), "c2", "ABCD", "C1_1", "👍"))
	updates = hub.byOp(ws.OpUpdateReactions)
	require.Len(t, updates, 2)
	data = updates[1].event.Data.(ws.ReactionUpdateData)
	assert.Empty(t, data.Reactions)
}

func TestReactionRejectsNonMember(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()

	err := svc.ToggleReaction(context.Background(), "intruder", "ABCD", "m1", "👍")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	assert.Empty(t, hub.events)
}

// ─── Edit / Delete ───

func TestEditByOwner(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	require.NoError(t, svc.RelayMessage(context.Background(), "c1", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Alice", Text: "hi", MessageID: "m1",
	}))
	hub.reset()

	require.NoError(t, svc.EditMessage(context.Background(), "c1", "ABCD", "m1", "hello"))

	edits := hub.byOp(ws.OpEditMessage)
	require.Len(t, edits, 1)
	data := edits[0].event.Data.(ws.EditBroadcast)
	assert.Equal(t, ws.EditBroadcast{MessageID: "m1", NewText: "hello"}, data)
}

func TestEditByNonOwnerSuppressed(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	require.NoError(t, svc.RelayMessage(context.Background(), "c1", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Alice", Text: "hi", MessageID: "m1",
	}))
	hub.reset()

	err := svc.EditMessage(context.Background(), "c2", "ABCD", "m1", "hijacked")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	// Kimseye edit-message broadcast edilmedi
	assert.Empty(t, hub.events)
}

func TestDeleteByOwnerPurgesReactions(t *testing.T) {
	svc, _, hub, table := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	require.NoError(t, svc.RelayMessage(context.Background(), "c1", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Alice", Text: "hi", MessageID: "m1",
	}))
	require.NoError(t, svc.ToggleReaction(context.Background(), "c2", "ABCD", "m1", "👍"))
	hub.reset()

	require.NoError(t, svc.DeleteMessage(context.Background(), "c1", "ABCD", "m1"))

	deletes := hub.byOp(ws.OpDeleteMessage)
	require.Len(t, deletes, 1)
	assert.Equal(t, "m1", deletes[0].event.Data)

	assert.Empty(t, table.Reactions("ABCD", "m1"))
	_, ok := table.Owner("ABCD", "m1")
	assert.False(t, ok)
}

func TestDeleteByAdminAllowed(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	require.NoError(t, svc.RelayMessage(context.Background(), "c2", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Bob", Text: "spam", MessageID: "m2",
	}))
	hub.reset()

	// Admin, başkasının mesajını silebilir
	require.NoError(t, svc.DeleteMessage(context.Background(), "c1", "ABCD", "m2"))
	require.Len(t, hub.byOp(ws.OpDeleteMessage), 1)
}

func TestDeleteByNonOwnerNonAdminSuppressed(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	join(t, svc, "c3", "Carol", "ABCD", "pw", false)
	require.NoError(t, svc.RelayMessage(context.Background(), "c2", models.ChatMessage{
		RoomCode: "ABCD", UserName: "Bob", Text: "hi", MessageID: "m2",
	}))
	hub.reset()

	err := svc.DeleteMessage(context.Background(), "c3", "ABCD", "m2")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	assert.Empty(t, hub.events)
}

// ─── Typing ───

func TestTypingExcludesSender(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	join(t, svc, "c2", "Bob", "ABCD", "pw", false)
	hub.reset()

	svc.Typing("c1", "ABCD", "Alice")
	svc.StopTyping("c1", "ABCD")

	typing := hub.byOp(ws.OpUserTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, "except", typing[0].kind)
	assert.Equal(t, "c1", typing[0].target)
	assert.Equal(t, "Alice", typing[0].event.Data)

	stop := hub.byOp(ws.OpUserStopTyping)
	require.Len(t, stop, 1)
	assert.Equal(t, "c1", stop[0].target)
}

func TestTypingFromNonMemberIgnored(t *testing.T) {
	svc, _, hub, _ := newTestService()

	join(t, svc, "c1", "Alice", "ABCD", "pw", true)
	hub.reset()

	svc.Typing("ghost", "ABCD", "Ghost")
	assert.Empty(t, hub.events)
}
