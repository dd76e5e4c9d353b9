package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

// reapDelay keeps a finished room visible long enough for clients to
// read the reveal before the registry drops it.
const reapDelay = 2 * time.Minute

// Manager owns the live rooms. It is passed explicitly to whoever
// needs it; there is no package-level instance.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	durations StageDurations
	sink      Sink
	recorder  ResultRecorder
	rngSeed   func() int64
}

func NewManager(durations StageDurations, sink Sink, recorder ResultRecorder) *Manager {
	return &Manager{
		rooms:     map[string]*Room{},
		durations: durations,
		sink:      sink,
		recorder:  recorder,
		rngSeed:   func() int64 { return time.Now().UnixNano() },
	}
}

// CreateRoom makes a room from a template and joins the host into it.
func (m *Manager) CreateRoom(host ProfileInfo, cfg models.GameConfig) (*Room, *models.Player, error) {
	tpl := catalog.DefaultTemplate()
	if cfg.TemplateName != "" {
		found, ok := catalog.TemplateByName(cfg.TemplateName)
		if !ok {
			return nil, nil, fmt.Errorf("unknown template %q: %w", cfg.TemplateName, ErrIllegalTarget)
		}
		tpl = found
	}

	m.mu.Lock()
	roomID := m.newRoomIDLocked()
	rng := rand.New(rand.NewSource(m.rngSeed()))
	room := NewRoom(roomID, tpl, cfg, m.durations, m.sink, m.recorder, rng, m.scheduleReap)
	m.rooms[roomID] = room
	m.mu.Unlock()

	player, err := room.Join(host)
	if err != nil {
		m.Remove(roomID)
		return nil, nil, err
	}
	return room, player, nil
}

// Room looks up a live room.
func (m *Manager) Room(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// ListLobby returns a summary of every live room.
func (m *Manager) ListLobby() []models.LobbyRoom {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]models.LobbyRoom, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.LobbyInfo())
	}
	return out
}

// Remove tears a room down and stops its timer.
func (m *Manager) Remove(roomID string) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()
	if ok {
		room.Close()
	}
}

func (m *Manager) scheduleReap(roomID string) {
	time.AfterFunc(reapDelay, func() { m.Remove(roomID) })
}

// newRoomIDLocked picks an unused six digit room code.
func (m *Manager) newRoomIDLocked() string {
	rng := rand.New(rand.NewSource(m.rngSeed()))
	for {
		id := fmt.Sprintf("%06d", rng.Intn(1000000))
		if _, taken := m.rooms[id]; !taken {
			return id
		}
	}
}
