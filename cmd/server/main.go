package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/larkwing-games/werewolf-server/internal/api"
	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/config"
	"github.com/larkwing-games/werewolf-server/internal/dispatch"
	"github.com/larkwing-games/werewolf-server/internal/game"
	"github.com/larkwing-games/werewolf-server/internal/profile"
	"github.com/larkwing-games/werewolf-server/internal/websocket"
)

func main() {
	cfg := config.Load()

	// A broken template table means unplayable games; refuse to start.
	if err := catalog.Validate(); err != nil {
		log.Fatalf("Template catalog invalid: %v", err)
	}

	profiles, err := profile.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open profile store: %v", err)
	}
	log.Printf("✓ Profile store at %s", cfg.DataDir)

	wsHub := websocket.NewHub()
	manager := game.NewManager(cfg.Durations, wsHub, profiles)
	dispatcher := dispatch.NewDispatcher(manager, wsHub)
	wsHub.SetHandler(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsHub.Run(ctx)
	log.Println("✓ WebSocket hub started")

	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := api.NewHandler(cfg, manager, profiles, wsHub)
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
