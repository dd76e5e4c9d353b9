package models

import "time"

// ============================================================================
// ROLES
// ============================================================================

type Role string

const (
	RoleVillager      Role = "VILLAGER"
	RoleWerewolf      Role = "WEREWOLF"
	RoleSeer          Role = "SEER"
	RoleWitch         Role = "WITCH"
	RoleHunter        Role = "HUNTER"
	RoleIdiot         Role = "IDIOT"
	RoleGuard         Role = "GUARD"
	RoleKnight        Role = "KNIGHT"
	RoleWolfKing      Role = "WOLF_KING"
	RoleWhiteWolfKing Role = "WHITE_WOLF_KING"
	RoleWolfBeauty    Role = "WOLF_BEAUTY"
	RoleSnowWolf      Role = "SNOW_WOLF"
	RoleGargoyle      Role = "GARGOYLE"
	RoleEvilKnight    Role = "EVIL_KNIGHT"
	RoleHiddenWolf    Role = "HIDDEN_WOLF"
)

type Winner string

const (
	WinnerGood Winner = "GOOD"
	WinnerWolf Winner = "WOLF"
)

// ============================================================================
// STAGES
// ============================================================================

type Stage string

const (
	StageWaiting         Stage = "WAITING"
	StageRoleAssign      Stage = "ROLE_ASSIGN"
	StageNightStart      Stage = "NIGHT_START"
	StageWerewolfTurn    Stage = "WEREWOLF_TURN"
	StageWitchTurn       Stage = "WITCH_TURN"
	StageSeerTurn        Stage = "SEER_TURN"
	StageGuardTurn       Stage = "GUARD_TURN"
	StageNightResolve    Stage = "NIGHT_RESOLVE"
	StageDawn            Stage = "DAWN"
	StageSheriffElection Stage = "SHERIFF_ELECTION"
	StageSheriffSpeech   Stage = "SHERIFF_SPEECH"
	StageSheriffVote     Stage = "SHERIFF_VOTE"
	StageSheriffResult   Stage = "SHERIFF_RESULT"
	StageSpeechOrder     Stage = "SPEECH_ORDER"
	StageDayDiscussion   Stage = "DAY_DISCUSSION"
	StageVote            Stage = "VOTE"
	StageVoteResolve     Stage = "VOTE_RESOLVE"
	StageGameOver        Stage = "GAME_OVER"
)

// ============================================================================
// PLAYERS AND TEMPLATES
// ============================================================================

type Player struct {
	ID          string `json:"id"`
	ProfileID   string `json:"profile_id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Seat        *int   `json:"seat,omitempty"`
	Role        Role   `json:"role,omitempty"`
	IsAlive     bool   `json:"is_alive"`
	IsHost      bool   `json:"is_host"`
	IsReady     bool   `json:"is_ready"`
	IsSheriff   bool   `json:"is_sheriff"`
	HasVotedOut bool   `json:"has_voted_out"` // revealed idiot, vote weight 0
}

type GameTemplate struct {
	Name         string       `json:"name"`
	PlayerCounts []int        `json:"player_counts"`
	Roles        map[Role]int `json:"roles"`
	Description  string       `json:"description"`
}

// SupportsCount reports whether the template is playable with n players.
func (t GameTemplate) SupportsCount(n int) bool {
	for _, c := range t.PlayerCounts {
		if c == n {
			return true
		}
	}
	return false
}

type GameConfig struct {
	TemplateName    string `json:"template_name"`
	IsPrivate       bool   `json:"is_private"`
	AllowSpectators bool   `json:"allow_spectators"`
}

const (
	ActionKill   = "KILL"
	ActionGuard  = "GUARD"
	ActionSave   = "SAVE"
	ActionPoison = "POISON"
	ActionCheck  = "CHECK"
)

// NightAction is one recorded night action for one actor.
type NightAction struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

// ============================================================================
// GAME STATE
// ============================================================================

// GameState is the authoritative record of one room. It is a passive
// value: all mutation happens inside the room coordinator under the
// room lock.
type GameState struct {
	RoomID  string     `json:"room_id"`
	HostID  string     `json:"host_id"`
	Config  GameConfig `json:"config"`
	Players []*Player  `json:"players"`
	Stage   Stage      `json:"stage"`
	Day     int        `json:"day"`
	Timer   int        `json:"timer"` // seconds remaining in the stage

	SpeechOrder      []string `json:"speech_order,omitempty"`
	CurrentSpeakerID string   `json:"current_speaker_id,omitempty"`

	NightActions       map[string]NightAction `json:"-"`
	WerewolfVotes      map[string]string      `json:"-"`
	WerewolfKillTarget string                 `json:"-"`
	WerewolfRevoteDone bool                   `json:"-"`
	DayVotes           map[string]string      `json:"-"`

	WitchHasSave           bool   `json:"-"`
	WitchHasPoison         bool   `json:"-"`
	WitchUsedPotionTonight bool   `json:"-"`
	WitchSaveTarget        string `json:"-"`
	WitchPoisonTarget      string `json:"-"`

	GuardTarget   string `json:"-"`
	LastGuardedID string `json:"-"`

	NightlyDeaths     []string          `json:"nightly_deaths"`
	SheriffCandidates []string          `json:"sheriff_candidates,omitempty"`
	SheriffVotes      map[string]string `json:"-"`

	Winner Winner `json:"winner,omitempty"`
}

// PlayerByID returns the player with the given room-scoped id, or nil.
func (s *GameState) PlayerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ============================================================================
// REDACTED VIEW
// ============================================================================

// PublicPlayer is the broadcast-safe projection of a Player. Roles never
// appear here; aliveness, seat and sheriff status are public knowledge.
type PublicPlayer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Seat        *int   `json:"seat,omitempty"`
	IsAlive     bool   `json:"is_alive"`
	IsHost      bool   `json:"is_host"`
	IsReady     bool   `json:"is_ready"`
	IsSheriff   bool   `json:"is_sheriff"`
	HasVotedOut bool   `json:"has_voted_out"`
}

// PublicGameState is the redacted view of a room. Night actions, werewolf
// votes, witch potion state and seer results are deliberately absent;
// they travel only on private panels.
type PublicGameState struct {
	RoomID            string         `json:"room_id"`
	HostID            string         `json:"host_id"`
	Config            GameConfig     `json:"config"`
	Players           []PublicPlayer `json:"players"`
	Stage             Stage          `json:"stage"`
	Day               int            `json:"day"`
	Timer             int            `json:"timer"`
	SpeechOrder       []string       `json:"speech_order,omitempty"`
	CurrentSpeakerID  string         `json:"current_speaker_id,omitempty"`
	NightlyDeaths     []string       `json:"nightly_deaths"`
	SheriffCandidates []string       `json:"sheriff_candidates,omitempty"`
	Winner            Winner         `json:"winner,omitempty"`
}

// PublicView projects a GameState into its broadcast-safe form.
func PublicView(s *GameState) PublicGameState {
	view := PublicGameState{
		RoomID:            s.RoomID,
		HostID:            s.HostID,
		Config:            s.Config,
		Stage:             s.Stage,
		Day:               s.Day,
		Timer:             s.Timer,
		SpeechOrder:       s.SpeechOrder,
		CurrentSpeakerID:  s.CurrentSpeakerID,
		NightlyDeaths:     s.NightlyDeaths,
		SheriffCandidates: s.SheriffCandidates,
		Winner:            s.Winner,
	}
	for _, p := range s.Players {
		view.Players = append(view.Players, ProjectPlayer(p))
	}
	return view
}

// ProjectPlayer redacts a single player.
func ProjectPlayer(p *Player) PublicPlayer {
	return PublicPlayer{
		ID:          p.ID,
		Name:        p.Name,
		AvatarURL:   p.AvatarURL,
		Seat:        p.Seat,
		IsAlive:     p.IsAlive,
		IsHost:      p.IsHost,
		IsReady:     p.IsReady,
		IsSheriff:   p.IsSheriff,
		HasVotedOut: p.HasVotedOut,
	}
}

// ============================================================================
// WEBSOCKET FRAMES
// ============================================================================

type WSMessageType string

const (
	// Client -> server
	WSTypeReady         WSMessageType = "READY"
	WSTypeTakeSeat      WSMessageType = "TAKE_SEAT"
	WSTypeStartGame     WSMessageType = "START_GAME"
	WSTypeWerewolfVote  WSMessageType = "WEREWOLF_VOTE"
	WSTypeWitchAction   WSMessageType = "WITCH_ACTION"
	WSTypeSeerCheck     WSMessageType = "SEER_CHECK"
	WSTypeGuardAction   WSMessageType = "GUARD_ACTION"
	WSTypeVotePlayer    WSMessageType = "VOTE_PLAYER"
	WSTypeRunForSheriff WSMessageType = "RUN_FOR_SHERIFF"
	WSTypeSheriffVote   WSMessageType = "SHERIFF_VOTE"
	WSTypePassTurn      WSMessageType = "PASS_TURN"
	WSTypeConfirmAction WSMessageType = "CONFIRM_ACTION"

	// Server -> client
	WSTypeStageChange        WSMessageType = "STAGE_CHANGE"
	WSTypeRoleAssignment     WSMessageType = "ROLE_ASSIGNMENT"
	WSTypeWerewolfPanel      WSMessageType = "WEREWOLF_PANEL"
	WSTypeWitchPanel         WSMessageType = "WITCH_PANEL"
	WSTypeSeerPanel          WSMessageType = "SEER_PANEL"
	WSTypeGuardPanel         WSMessageType = "GUARD_PANEL"
	WSTypeWerewolfVoteUpdate WSMessageType = "WEREWOLF_VOTE_UPDATE"
	WSTypeVoteUpdate         WSMessageType = "VOTE_UPDATE"
	WSTypeNightDeaths        WSMessageType = "NIGHT_DEATHS"
	WSTypeSeerResult         WSMessageType = "SEER_RESULT"
	WSTypeVoteResult         WSMessageType = "VOTE_RESULT"
	WSTypeSheriffElected     WSMessageType = "SHERIFF_ELECTED"
	WSTypeGameStateUpdate    WSMessageType = "GAME_STATE_UPDATE"
	WSTypeGameEvent          WSMessageType = "GAME_EVENT"
	WSTypeGameOver           WSMessageType = "GAME_OVER"
	WSTypePlayerDisconnected WSMessageType = "PLAYER_DISCONNECTED"
)

type WSMessage struct {
	Type      WSMessageType `json:"type"`
	Payload   any           `json:"payload,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

// ActionPayload covers every client frame body. Unused fields stay zero.
type ActionPayload struct {
	Action         string `json:"action,omitempty"` // WITCH_ACTION: SAVE or POISON
	TargetPlayerID string `json:"target_player_id,omitempty"`
	Seat           *int   `json:"seat,omitempty"`  // TAKE_SEAT
	Ready          *bool  `json:"ready,omitempty"` // READY, absent means true
}

type StageChangePayload struct {
	Stage   Stage          `json:"stage"`
	Timer   int            `json:"timer"`
	Day     int            `json:"day"`
	Players []PublicPlayer `json:"players"`
}

type RoleAssignmentPayload struct {
	Role      Role     `json:"role"`
	Teammates []string `json:"teammates,omitempty"` // wolf faction only
}

type WerewolfPanelPayload struct {
	Players   []PublicPlayer `json:"players"`
	Teammates []PublicPlayer `json:"teammates"`
}

type WitchPanelPayload struct {
	WerewolfTarget string         `json:"werewolf_target,omitempty"`
	HasSave        bool           `json:"has_save"`
	HasPoison      bool           `json:"has_poison"`
	Players        []PublicPlayer `json:"players"`
}

type SeerPanelPayload struct {
	Players []PublicPlayer `json:"players"`
}

type GuardPanelPayload struct {
	Players       []PublicPlayer `json:"players"`
	LastGuardedID string         `json:"last_guarded_id,omitempty"`
}

type VoteUpdatePayload struct {
	Votes map[string]string `json:"votes"`
}

type NightDeathsPayload struct {
	Day  int      `json:"day"`
	Dead []string `json:"dead"`
}

type SeerResultPayload struct {
	TargetPlayerID string `json:"target_player_id"`
	IsWolf         bool   `json:"is_wolf"`
}

type VoteResultPayload struct {
	Eliminated string            `json:"eliminated,omitempty"`
	Votes      map[string]string `json:"votes"`
}

type SheriffElectedPayload struct {
	SheriffID string `json:"sheriff_id,omitempty"`
}

type GameEventPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type GameOverPayload struct {
	Winner Winner          `json:"winner"`
	Roles  map[string]Role `json:"roles"`
}

type PlayerDisconnectedPayload struct {
	PlayerID string `json:"player_id"`
}

// ============================================================================
// REST MODELS
// ============================================================================

type CreateProfileRequest struct {
	Name string `json:"name" binding:"required,min=1,max=30"`
}

type CreateRoomRequest struct {
	HostProfileID string     `json:"host_profile_id" binding:"required"`
	GameConfig    GameConfig `json:"game_config"`
}

type JoinRoomRequest struct {
	ProfileID string `json:"profile_id" binding:"required"`
}

type RoomTicketResponse struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

type LobbyRoom struct {
	RoomID       string `json:"room_id"`
	HostName     string `json:"host_name"`
	PlayerCount  int    `json:"player_count"`
	MaxPlayers   int    `json:"max_players"`
	TemplateName string `json:"template_name"`
}
