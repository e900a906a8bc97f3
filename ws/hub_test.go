package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, connID string) *Client {
	return &Client{
		hub:    hub,
		connID: connID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Slow-client drop, send channel'ını Hub kilidi altında kapatır; o
// sırada client'ın ReadPump'ı hâlâ bir heartbeat işliyor olabilir.
// Ack bu yüzden Hub üzerinden gider: SendToConn kayıt kontrolünü aynı
// kilitle yapar ve kapanmış channel'a asla yazmaz — process panic etmez.
func TestSendToConnAfterRemovalDoesNotPanic(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	hub.addClient(client)
	hub.removeClient(client)

	assert.NotPanics(t, func() {
		hub.SendToConn("c1", Event{Op: OpHeartbeatAck})
	})
}

func TestSendToConnDeliversToRegisteredClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")
	hub.addClient(client)

	hub.SendToConn("c1", Event{Op: OpHeartbeatAck})

	select {
	case data := <-client.send:
		assert.Contains(t, string(data), OpHeartbeatAck)
	default:
		t.Fatal("expected an event in the send buffer")
	}
}

// JoinRoom, bağlantı artık kayıtlı değilse false döner — sessiz no-op
// olsaydı engine, disconnect teardown'u çoktan koşmuş bir bağlantı için
// temizlenemeyen bir ghost üye kaydederdi.
func TestJoinRoomReportsUnregisteredConn(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")
	hub.addClient(client)

	assert.True(t, hub.JoinRoom("c1", "ABCD"))
	assert.False(t, hub.JoinRoom("ghost", "ABCD"))

	hub.removeClient(client)
	assert.False(t, hub.JoinRoom("c1", "ABCD"))
}

func TestBroadcastSkipsRemovedClient(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "c1")
	c2 := newTestClient(hub, "c2")
	hub.addClient(c1)
	hub.addClient(c2)

	require.True(t, hub.JoinRoom("c1", "ABCD"))
	require.True(t, hub.JoinRoom("c2", "ABCD"))

	hub.removeClient(c1)

	assert.NotPanics(t, func() {
		hub.BroadcastToRoom("ABCD", Event{Op: OpRoomUsers})
	})

	select {
	case <-c2.send:
	default:
		t.Fatal("remaining member should still receive broadcasts")
	}
}
