package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkwing-games/werewolf-server/internal/game"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

type fakeSender struct {
	mu       sync.Mutex
	byPlayer map[string][]models.WSMessage
	public   []models.WSMessage
}

func newFakeSender() *fakeSender {
	return &fakeSender{byPlayer: map[string][]models.WSMessage{}}
}

func (s *fakeSender) Broadcast(roomID string, msg models.WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = append(s.public, msg)
}

func (s *fakeSender) SendTo(roomID, playerID string, msg models.WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPlayer[playerID] = append(s.byPlayer[playerID], msg)
}

func (s *fakeSender) sentTo(playerID string, t models.WSMessageType) []models.WSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WSMessage
	for _, m := range s.byPlayer[playerID] {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func frame(t *testing.T, msgType models.WSMessageType, payload any) []byte {
	t.Helper()
	body := map[string]any{"type": msgType}
	if payload != nil {
		body["payload"] = payload
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func setupRoom(t *testing.T, n int) (*Dispatcher, *fakeSender, *game.Manager, string) {
	t.Helper()
	sender := newFakeSender()
	manager := game.NewManager(game.DefaultDurations(), sender, nil)
	d := NewDispatcher(manager, sender)

	room, _, err := manager.CreateRoom(game.ProfileInfo{ID: "prof-0", Name: "host"}, models.GameConfig{
		TemplateName: "6人暗牌局",
	})
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		_, err := room.Join(game.ProfileInfo{ID: fmt.Sprintf("prof-%d", i), Name: fmt.Sprintf("guest-%d", i)})
		require.NoError(t, err)
	}
	t.Cleanup(func() { manager.Remove(room.ID()) })
	return d, sender, manager, room.ID()
}

func TestHandleFrame_ReadyAndSeatFlow(t *testing.T) {
	d, _, manager, roomID := setupRoom(t, 2)

	d.HandleFrame(roomID, "p1", frame(t, models.WSTypeTakeSeat, map[string]any{"seat": 3}))
	d.HandleFrame(roomID, "p1", frame(t, models.WSTypeReady, nil))

	room, ok := manager.Room(roomID)
	require.True(t, ok)
	view, _ := room.Snapshot()
	for _, p := range view.Players {
		if p.ID == "p1" {
			require.NotNil(t, p.Seat)
			assert.Equal(t, 3, *p.Seat)
			assert.True(t, p.IsReady)
		}
	}
}

func TestHandleFrame_CoordinatorErrorBecomesGameEvent(t *testing.T) {
	d, sender, _, roomID := setupRoom(t, 2)

	// Only the host can start.
	d.HandleFrame(roomID, "p1", frame(t, models.WSTypeStartGame, nil))

	events := sender.sentTo("p1", models.WSTypeGameEvent)
	require.Len(t, events, 1)
	payload := events[0].Payload.(models.GameEventPayload)
	assert.Equal(t, "NOT_HOST", payload.Code)
	assert.NotEmpty(t, payload.Message)
}

func TestHandleFrame_MalformedAndUnknownFramesDropped(t *testing.T) {
	d, sender, _, roomID := setupRoom(t, 2)

	d.HandleFrame(roomID, "p1", []byte("{not json"))
	d.HandleFrame(roomID, "p1", frame(t, "TELEPORT", nil))
	d.HandleFrame("999999", "p1", frame(t, models.WSTypeReady, nil))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Empty(t, sender.byPlayer["p1"], "drops produce no reply")
}

func TestHandleConnect_SendsSnapshotOnly_InLobby(t *testing.T) {
	d, sender, _, roomID := setupRoom(t, 2)

	d.HandleConnect(roomID, "p1")

	snaps := sender.sentTo("p1", models.WSTypeGameStateUpdate)
	require.Len(t, snaps, 1)
	view := snaps[0].Payload.(models.PublicGameState)
	assert.Equal(t, models.StageWaiting, view.Stage)
	assert.Len(t, view.Players, 2)
	// No stage timer in the lobby, so no catch-up STAGE_CHANGE.
	assert.Empty(t, sender.sentTo("p1", models.WSTypeStageChange))
}

func TestHandleConnect_MidStageIncludesResidualTimer(t *testing.T) {
	d, sender, _, roomID := setupRoom(t, 6)

	d.HandleFrame(roomID, "p0", frame(t, models.WSTypeStartGame, nil))
	d.HandleConnect(roomID, "p1")

	catchups := sender.sentTo("p1", models.WSTypeStageChange)
	require.Len(t, catchups, 1)
	payload := catchups[0].Payload.(models.StageChangePayload)
	assert.Equal(t, models.StageRoleAssign, payload.Stage)
	assert.Greater(t, payload.Timer, 0)
}

func TestHandleDisconnect_BroadcastsDrop(t *testing.T) {
	d, sender, _, roomID := setupRoom(t, 2)

	d.HandleDisconnect(roomID, "p1")

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.public, 3, "two join updates plus the drop notice")
	last := sender.public[len(sender.public)-1]
	assert.Equal(t, models.WSTypePlayerDisconnected, last.Type)
}
