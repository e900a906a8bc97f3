// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Go'da error'lar basit değerlerdir. errors.New() ile sabit error
// değişkenleri tanımlarız, karşılaştırma errors.Is() ile yapılır:
//
//	if errors.Is(err, pkg.ErrRoomNotFound) { ... }
//
// Service katmanı bu error'ları %w ile wrap ederek döner,
// ws katmanı ClientMessage() ile kullanıcıya gösterilecek metne çevirir.
package pkg

import "errors"

// Domain-level error'lar.
//
// ErrValidation: Boş/fazla uzun isim, oda kodu veya şifre — store'a
// gitmeden reddedilir.
// ErrRoomConflict: İki bağlantı aynı oda kodunu aynı anda oluşturmaya
// çalıştı — UNIQUE constraint kaybedeni reddetti. Kaybeden, kazananın
// odasına sessizce alınmaz; açık bir hata alır.
// ErrStoreUnavailable: Durable store çağrısı başarısız oldu.
var (
	ErrValidation        = errors.New("validation failed")
	ErrRoomNotFound      = errors.New("room not found")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrPasswordRequired  = errors.New("password required")
	ErrRoomConflict      = errors.New("room already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// ClientMessage, bir domain error'ını kullanıcıya gösterilecek sabit
// metne çevirir.
//
// Güvenlik kuralı: room-error event'i asla internal detay sızdırmaz
// (store hata mesajı, stack bilgisi vb.) — sadece kullanıcının aksiyon
// alabileceği statik bir string döner. Bu yüzden err.Error() değil,
// buradaki sabit metinler kullanılır.
func ClientMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room does not exist."
	case errors.Is(err, ErrIncorrectPassword):
		return "Incorrect password."
	case errors.Is(err, ErrPasswordRequired):
		return "A password is required to create a room."
	case errors.Is(err, ErrRoomConflict):
		return "Room code is already taken."
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to do that."
	case errors.Is(err, ErrAlreadyInRoom):
		return "Leave your current room before joining another."
	case errors.Is(err, ErrValidation):
		return "Invalid name, room code or password."
	default:
		return "Something went wrong. Please try again."
	}
}
