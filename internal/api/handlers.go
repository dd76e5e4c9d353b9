package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/config"
	"github.com/larkwing-games/werewolf-server/internal/game"
	"github.com/larkwing-games/werewolf-server/internal/models"
	"github.com/larkwing-games/werewolf-server/internal/profile"
	"github.com/larkwing-games/werewolf-server/internal/websocket"
)

var allowedAvatarExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// Handler carries the bootstrap surface: profile CRUD, room
// create/join/list, and the websocket upgrade.
type Handler struct {
	cfg      *config.Config
	manager  *game.Manager
	profiles *profile.Store
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
}

func NewHandler(cfg *config.Config, manager *game.Manager, profiles *profile.Store, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:      cfg,
		manager:  manager,
		profiles: profiles,
		hub:      hub,
		upgrader: gorillaws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts everything on the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	r.POST("/profiles", h.CreateProfile)
	r.GET("/profiles/:id", h.GetProfile)
	r.POST("/profiles/:id/avatar", h.UploadAvatar)
	r.Static("/data/avatars", h.profiles.AvatarDir())

	r.GET("/game-templates", h.ListTemplates)
	r.GET("/games", h.ListGames)
	r.POST("/games/create", h.CreateGame)
	r.POST("/games/:roomID/join", h.JoinGame)
	r.GET("/games/:roomID", h.GetGame)

	r.GET("/ws/:roomID/:playerID", h.ServeWS)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ----------------------------------------------------------------------------
// Profiles
// ----------------------------------------------------------------------------

func (h *Handler) CreateProfile(c *gin.Context) {
	var req models.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.profiles.Create(req.Name)
	if err != nil {
		log.Printf("Error creating profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create profile"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadAvatar(c *gin.Context) {
	file, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if file.Size > h.cfg.MaxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar too large"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAvatarExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read avatar"})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, h.cfg.MaxAvatarBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read avatar"})
		return
	}
	if int64(len(data)) > h.cfg.MaxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar too large"})
		return
	}

	p, err := h.profiles.SaveAvatar(c.Param("id"), ext, data)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		log.Printf("Error saving avatar: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save avatar"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// ----------------------------------------------------------------------------
// Rooms
// ----------------------------------------------------------------------------

func (h *Handler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.Templates())
}

func (h *Handler) ListGames(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.ListLobby())
}

func (h *Handler) CreateGame(c *gin.Context) {
	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.profiles.Get(req.HostProfileID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	room, player, err := h.manager.CreateRoom(game.ProfileInfo{
		ID:        p.ID,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
	}, req.GameConfig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.roomTicket(c, http.StatusCreated, room.ID(), player.ID)
}

func (h *Handler) JoinGame(c *gin.Context) {
	var req models.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, ok := h.manager.Room(c.Param("roomID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	p, err := h.profiles.Get(req.ProfileID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	player, err := room.Join(game.ProfileInfo{
		ID:        p.ID,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, game.ErrRoomFull), errors.Is(err, game.ErrGameStarted):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	h.roomTicket(c, http.StatusOK, room.ID(), player.ID)
}

func (h *Handler) GetGame(c *gin.Context) {
	room, ok := h.manager.Room(c.Param("roomID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	view, _ := room.Snapshot()
	c.JSON(http.StatusOK, view)
}

func (h *Handler) roomTicket(c *gin.Context, status int, roomID, playerID string) {
	token, err := GenerateChannelToken(h.cfg.JWTSecret, roomID, playerID)
	if err != nil {
		log.Printf("Error generating channel token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(status, models.RoomTicketResponse{
		RoomID:   roomID,
		PlayerID: playerID,
		Token:    token,
	})
}

// ----------------------------------------------------------------------------
// WebSocket upgrade
// ----------------------------------------------------------------------------

// ServeWS authenticates the channel ticket against the path, upgrades
// the connection and hands it to the hub.
func (h *Handler) ServeWS(c *gin.Context) {
	roomID := c.Param("roomID")
	playerID := c.Param("playerID")

	claims, err := ValidateChannelToken(h.cfg.JWTSecret, c.Query("token"))
	if err != nil || claims.RoomID != roomID || claims.PlayerID != playerID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid channel token"})
		return
	}

	room, ok := h.manager.Room(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	view, _ := room.Snapshot()
	known := false
	for _, p := range view.Players {
		if p.ID == playerID {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not in room"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, roomID, playerID)
	client.Register()
	go client.WritePump()
	go client.ReadPump()
}
