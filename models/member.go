package models

import "time"

// Member, bir odadaki bağlı tek bir üyeyi temsil eder.
// Sadece process-local presence tablosunda yaşar — restart'ta sıfırdan
// kurulur (canlı bağlantıları yansıttığı için kabul edilebilir).
//
// JoinedAt, admin terfi sırasını belirler: admin ayrıldığında
// kalan üyelerden en erken katılmış olan terfi eder. Map iteration
// sırasına güvenmek yerine açık, deterministik bir kuraldır.
type Member struct {
	ConnID   string
	Name     string
	JoinedAt time.Time
}

// RoomUser, room-users broadcast'indeki tek bir üye görünümü.
// IsAdmin her broadcast öncesi canonical admin_id ile yeniden hesaplanır —
// cache'lenmiş bir değer değildir.
type RoomUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// ReactionCount, update-reactions broadcast'indeki tek bir emoji özeti.
// Count sıfıra düşen emojiler listeden çıkarılır.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}
