package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/akinalp/odam/models"
	"github.com/akinalp/odam/pkg"
)

// sqliteRoomRepo, RoomRepository interface'inin SQLite implementasyonu.
type sqliteRoomRepo struct {
	db *sql.DB
}

// NewSQLiteRoomRepo, constructor — interface döner.
func NewSQLiteRoomRepo(db *sql.DB) RoomRepository {
	return &sqliteRoomRepo{db: db}
}

// Create, yeni bir oda kaydı ekler.
//
// Duplicate kod tespiti INSERT'in kendisine bırakılır: önce SELECT ile
// kontrol edip sonra INSERT yapmak iki eşzamanlı create'in ikisini de
// geçirirdi. PRIMARY KEY constraint DB seviyesinde atomiktir — kaybeden
// burada pkg.ErrRoomConflict alır ve kazananın odasına sessizce katılmaz.
func (r *sqliteRoomRepo) Create(ctx context.Context, room *models.Room) error {
	query := `INSERT INTO rooms (code, password_hash, admin_id) VALUES (?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, room.Code, room.PasswordHash, room.AdminID); err != nil {
		if isUniqueViolation(err) {
			return pkg.ErrRoomConflict
		}
		return fmt.Errorf("%w: failed to create room: %v", pkg.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *sqliteRoomRepo) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	query := `SELECT code, password_hash, admin_id FROM rooms WHERE code = ?`

	room := &models.Room{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&room.Code, &room.PasswordHash, &room.AdminID,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get room: %v", pkg.ErrStoreUnavailable, err)
	}

	return room, nil
}

func (r *sqliteRoomRepo) SetAdmin(ctx context.Context, code, adminID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET admin_id = ? WHERE code = ?`, adminID, code)
	if err != nil {
		return fmt.Errorf("%w: failed to set admin: %v", pkg.ErrStoreUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", pkg.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return pkg.ErrRoomNotFound
	}

	return nil
}

func (r *sqliteRoomRepo) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("%w: failed to delete room: %v", pkg.ErrStoreUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", pkg.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return pkg.ErrRoomNotFound
	}

	return nil
}

// isUniqueViolation, SQLite UNIQUE/PRIMARY KEY constraint hatasını tanır.
// modernc.org/sqlite yapısal bir hata tipi export etmediği için
// mesaj içeriğine bakılır.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
