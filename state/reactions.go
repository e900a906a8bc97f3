// Package state — reaction tablosu ve mesaj sahipliği kayıtları.
package state

import (
	"sort"

	"github.com/akinalp/odam/models"
)

// ToggleReaction, bir reactor'ün bir mesajdaki emoji'sini toggle/replace
// kuralıyla günceller ve güncel özeti döner.
//
// Kural: Bir reactor'ün mesaj başına en fazla bir aktif emojisi vardır.
// - Aynı emoji tekrar gönderilirse → kaldırılır (toggle off)
// - Farklı emoji gönderilirse → eskisinin YERİNE geçer (replace)
//
// Dönen özet [{emoji, count}] listesidir; count sıfıra düşen emojiler
// listeden çıkarılır. Özet her mutation'da yeniden hesaplanır.
func (t *Table) ToggleReaction(roomCode, messageID, reactorID, emoji string) []models.ReactionCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs := t.room(roomCode)

	reactors, ok := rs.reactions[messageID]
	if !ok {
		reactors = make(map[string]string)
		rs.reactions[messageID] = reactors
	}

	if reactors[reactorID] == emoji {
		delete(reactors, reactorID)
	} else {
		reactors[reactorID] = emoji
	}

	if len(reactors) == 0 {
		delete(rs.reactions, messageID)
	}

	return summarize(reactors)
}

// Reactions, bir mesajın güncel reaction özetini döner.
func (t *Table) Reactions(roomCode, messageID string) []models.ReactionCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return []models.ReactionCount{}
	}
	return summarize(rs.reactions[messageID])
}

// summarize, reactor → emoji map'inden [{emoji, count}] özetini üretir.
// Emoji'ye göre sıralanır — map iteration sırası deterministik değildir,
// broadcast payload'ı olmalıdır.
func summarize(reactors map[string]string) []models.ReactionCount {
	counts := make(map[string]int)
	for _, emoji := range reactors {
		counts[emoji]++
	}

	out := make([]models.ReactionCount, 0, len(counts))
	for emoji, count := range counts {
		out = append(out, models.ReactionCount{Emoji: emoji, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Emoji < out[j].Emoji })
	return out
}

// RecordOwner, relay edilen mesajın sahibini kaydeder.
//
// Sahiplik yapısal olarak messageID prefix'inden ÇIKARILMAZ — bu,
// id forgery'ye izin veren kırılgan bir string kontrolü olurdu.
// Bunun yerine server, relay anında gönderen bağlantının kimliğini
// buraya yazar ve edit/delete yetkisini bu kayıttan doğrular.
func (t *Table) RecordOwner(roomCode, messageID, senderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.room(roomCode).owners[messageID] = senderID
}

// Owner, mesajın kayıtlı sahibini döner. Kayıt yoksa (örneğin mesaj
// restart öncesinden kalmışsa) ok=false döner ve yetki verilmez.
func (t *Table) Owner(roomCode, messageID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return "", false
	}
	senderID, ok := rs.owners[messageID]
	return senderID, ok
}

// ClearMessage, silinen mesajın reaction ve sahiplik durumunu atar.
func (t *Table) ClearMessage(roomCode, messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rooms[roomCode]
	if !ok {
		return
	}
	delete(rs.reactions, messageID)
	delete(rs.owners, messageID)
}
