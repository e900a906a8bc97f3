// Package main, odam relay server'ının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Database'i başlat (durable room store)
//  3. Repository'yi oluştur
//  4. Process-local state container'ı oluştur
//  5. WebSocket Hub'ı başlat
//  6. Room Lifecycle Engine'i oluştur
//  7. Hub'ın inbound event callback'lerini engine'e bağla
//  8. HTTP router + CORS
//  9. HTTP Server'ı başlat
// 10. Graceful shutdown
//
// Global değişken YOK — her şey burada oluşturulup birbirine bağlanır.
//
// Callback'ler neden burada bağlanıyor?
// Hub ws paketinde yaşar, engine services katmanında. Hub'ın services'e
// import ile bağımlı olmasını istemiyoruz (Dependency Inversion) —
// main.go tüm katmanları birbirine bağlayan wire-up noktasıdır.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/akinalp/odam/config"
	"github.com/akinalp/odam/database"
	"github.com/akinalp/odam/models"
	"github.com/akinalp/odam/pkg"
	"github.com/akinalp/odam/repository"
	"github.com/akinalp/odam/services"
	"github.com/akinalp/odam/state"
	"github.com/akinalp/odam/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] odam server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	//
	// Startup'ta store bağlantısı kurulamazsa process BAŞLAMAZ —
	// durable room kaydı olmadan relay tutarlı çalışamaz. Çalışma
	// zamanındaki store hataları ise engine'de best-effort tolere edilir.
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to load embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository ───
	roomRepo := repository.NewSQLiteRoomRepo(db.Conn)

	// ─── 4. Process-local state ───
	//
	// Presence + reaction + mesaj sahipliği tabloları. Ambient global
	// yerine engine'e referansla geçen tek bir container — restart'ta
	// sıfırdan kurulur, sadece canlı bağlantıları yansıtır.
	table := state.NewTable()

	// ─── 5. WebSocket Hub ───
	hub := ws.NewHub()
	go hub.Run()

	// ─── 6. Room Lifecycle Engine ───
	engine := services.NewRoomService(roomRepo, table, hub)

	// ─── 7. Hub callback'leri → engine ───
	//
	// sendError: Validation ve yetki hataları sadece istekte bulunan
	// bağlantıya, statik bir metinle bildirilir. Internal detay
	// (store hatası, stack) client'a asla sızmaz.
	sendError := func(connID string, err error) {
		hub.SendToConn(connID, ws.Event{Op: ws.OpRoomError, Data: pkg.ClientMessage(err)})
	}

	hub.OnJoinRoom(func(connID string, req models.JoinRequest) {
		if err := engine.Join(context.Background(), connID, req); err != nil {
			log.Printf("[room] join rejected for conn %s: %v", connID, err)
			sendError(connID, err)
		}
	})

	hub.OnChatMessage(func(connID string, msg models.ChatMessage) {
		if err := engine.RelayMessage(context.Background(), connID, msg); err != nil {
			log.Printf("[room] message dropped from conn %s: %v", connID, err)
		}
	})

	hub.OnTyping(func(connID string, req ws.TypingRequest) {
		engine.Typing(connID, req.RoomCode, req.UserName)
	})

	hub.OnStopTyping(func(connID, roomCode string) {
		engine.StopTyping(connID, roomCode)
	})

	hub.OnReact(func(connID string, req ws.ReactRequest) {
		if err := engine.ToggleReaction(context.Background(), connID, req.RoomCode, req.MessageID, req.Emoji); err != nil {
			log.Printf("[room] reaction dropped from conn %s: %v", connID, err)
		}
	})

	// Edit/delete: yetkisiz denemeler SESSİZCE düşürülür — istekte
	// bulunana da hata gitmez (bilinçli fail-closed, fail-silent
	// politikası). Sadece loglanır.
	hub.OnEdit(func(connID string, req ws.EditRequest) {
		if err := engine.EditMessage(context.Background(), connID, req.RoomCode, req.MessageID, req.NewText); err != nil {
			log.Printf("[room] edit suppressed for conn %s: %v", connID, err)
		}
	})

	hub.OnDelete(func(connID string, req ws.DeleteRequest) {
		if err := engine.DeleteMessage(context.Background(), connID, req.RoomCode, req.MessageID); err != nil {
			log.Printf("[room] delete suppressed for conn %s: %v", connID, err)
		}
	})

	hub.OnKick(func(connID string, req ws.KickRequest) {
		if err := engine.Kick(context.Background(), connID, req.RoomCode, req.TargetID); err != nil {
			log.Printf("[room] kick rejected for conn %s: %v", connID, err)
			sendError(connID, err)
		}
	})

	hub.OnLeaveRoom(func(connID string) {
		engine.Leave(context.Background(), connID, services.CauseLeave)
		hub.SendToConn(connID, ws.Event{Op: ws.OpRoomLeft})
	})

	// Disconnect'in cancellation'ı yoktur: işlem ortasında kopan
	// bağlantı bile teardown'dan sonuna kadar geçer.
	hub.OnDisconnect(func(connID string) {
		engine.Leave(context.Background(), connID, services.CauseDisconnect)
	})

	// ─── 8. HTTP Router ───
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"odam"}`)
	})

	wsHandler := ws.NewHandler(hub)
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	// ─── 9. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 10. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce WebSocket bağlantılarını kapat, sonra HTTP server'ı —
	// yeni request kabulü durur, mevcutlar 5sn içinde biter.
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
