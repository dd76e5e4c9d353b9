package game

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

// recordingSink captures everything a room emits so tests can assert
// on broadcasts and private sends.
type recordingSink struct {
	mu       sync.Mutex
	byPlayer map[string][]models.WSMessage
	public   []models.WSMessage
}

func newRecordingSink() *recordingSink {
	return &recordingSink{byPlayer: map[string][]models.WSMessage{}}
}

func (s *recordingSink) Broadcast(roomID string, msg models.WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = append(s.public, msg)
}

func (s *recordingSink) SendTo(roomID, playerID string, msg models.WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPlayer[playerID] = append(s.byPlayer[playerID], msg)
}

func (s *recordingSink) broadcasts(t models.WSMessageType) []models.WSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WSMessage
	for _, m := range s.public {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (s *recordingSink) sentTo(playerID string, t models.WSMessageType) []models.WSMessage {
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

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = nil
	s.byPlayer = map[string][]models.WSMessage{}
}

// recordingRecorder captures profile results handed over at game over.
type recordingRecorder struct {
	mu      sync.Mutex
	results map[string]struct {
		won   bool
		class string
	}
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{results: map[string]struct {
		won   bool
		class string
	}{}}
}

func (r *recordingRecorder) RecordResult(profileID string, won bool, roleClass string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[profileID] = struct {
		won   bool
		class string
	}{won, roleClass}
}

// testDurations keeps every real timer far in the future so tests can
// step stages deterministically with fireTimer.
func testDurations() StageDurations {
	return StageDurations{
		RoleAssign: 9999, NightStart: 9999, WerewolfTurn: 9999,
		WitchTurn: 9999, SeerTurn: 9999, GuardTurn: 9999,
		NightResolve: 9999, Dawn: 9999, SheriffElection: 9999,
		SheriffSpeech: 9999, SheriffVote: 9999, SheriffResult: 9999,
		SpeechOrder: 9999, Speech: 9999, Vote: 9999, VoteResolve: 9999,
	}
}

// newTestRoom builds a room on the named template with n joined
// players p0..p(n-1), seated in join order.
func newTestRoom(t *testing.T, templateName string, n int) (*Room, *recordingSink, *recordingRecorder) {
	t.Helper()
	tpl, ok := catalog.TemplateByName(templateName)
	require.True(t, ok, "template %q must exist", templateName)

	sink := newRecordingSink()
	recorder := newRecordingRecorder()
	room := NewRoom("123456", tpl, models.GameConfig{TemplateName: templateName},
		testDurations(), sink, recorder, rand.New(rand.NewSource(1)), nil)
	t.Cleanup(room.Close)

	for i := 0; i < n; i++ {
		p, err := room.Join(ProfileInfo{
			ID:   "profile-" + string(rune('a'+i)),
			Name: "player-" + string(rune('a'+i)),
		})
		require.NoError(t, err)
		require.NoError(t, room.TakeSeat(p.ID, i))
	}
	return room, sink, recorder
}

// startGame readies everyone, which auto-starts the game, then pins
// roles for determinism.
func startGame(t *testing.T, room *Room, roles map[string]models.Role) {
	t.Helper()
	for _, p := range snapshotPlayers(room) {
		require.NoError(t, room.SetReady(p.ID, true))
	}
	require.Equal(t, models.StageRoleAssign, stage(room))
	setRoles(room, roles)
}

// setRoles overrides the shuffled assignment. White box on purpose:
// scenario tests need fixed roles.
func setRoles(room *Room, roles map[string]models.Role) {
	room.mu.Lock()
	defer room.mu.Unlock()
	for id, role := range roles {
		if p := room.state.PlayerByID(id); p != nil {
			p.Role = role
		}
	}
}

// fireTimer simulates the current stage timer expiring.
func fireTimer(room *Room) {
	room.mu.Lock()
	room.timeoutLocked()
	emissions, posts := room.takeOutboxLocked()
	room.mu.Unlock()
	room.deliver(emissions, posts)
}

// fireUntil steps timers until the room reaches the wanted stage.
func fireUntil(t *testing.T, room *Room, want models.Stage) {
	t.Helper()
	for i := 0; i < 64; i++ {
		if stage(room) == want {
			return
		}
		fireTimer(room)
	}
	require.Equal(t, want, stage(room), "stage never reached")
}

func stage(room *Room) models.Stage {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.state.Stage
}

func currentSpeaker(room *Room) string {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.state.CurrentSpeakerID
}

func snapshotPlayers(room *Room) []*models.Player {
	room.mu.Lock()
	defer room.mu.Unlock()
	out := make([]*models.Player, len(room.state.Players))
	copy(out, room.state.Players)
	return out
}

func playerState(room *Room, id string) models.Player {
	room.mu.Lock()
	defer room.mu.Unlock()
	return *room.state.PlayerByID(id)
}

func gameState(room *Room) models.GameState {
	room.mu.Lock()
	defer room.mu.Unlock()
	return *room.state
}
