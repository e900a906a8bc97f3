// Package repository, durable store erişim katmanıdır.
//
// Service katmanı concrete SQLite implementasyonuna değil, bu
// interface'e bağımlıdır — testlerde in-memory bir fake geçilebilir.
package repository

import (
	"context"

	"github.com/akinalp/odam/models"
)

// RoomRepository, oda kayıtlarının durable store işlemleri.
//
// Create: Odayı, verilen bağlantıyı admin yaparak oluşturur.
//   - code üzerindeki UNIQUE constraint yarışın hakemidir: aynı kodla
//     eşzamanlı iki create'ten kaybeden pkg.ErrRoomConflict alır.
//
// GetByCode: Oda yoksa pkg.ErrRoomNotFound döner.
//
// SetAdmin: Admin handover — ayrılan admin'in yerine kalan bir üyeyi yazar.
//
// Delete: Oda kaydını siler. Üye seti boşaldığı an engine tarafından
// tam olarak bir kez çağrılır.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByCode(ctx context.Context, code string) (*models.Room, error)
	SetAdmin(ctx context.Context, code, adminID string) error
	Delete(ctx context.Context, code string) error
}
