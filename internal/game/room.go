package game

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

// Sink is where the room hands finished frames. The connection
// registry implements it; tests substitute a recorder.
type Sink interface {
	Broadcast(roomID string, msg models.WSMessage)
	SendTo(roomID, playerID string, msg models.WSMessage)
}

// ResultRecorder receives per-player results at game over. Called
// outside the room lock; the profile store implements it.
type ResultRecorder interface {
	RecordResult(profileID string, won bool, roleClass string)
}

// ProfileInfo is the slice of a profile the room needs at join time.
type ProfileInfo struct {
	ID        string
	Name      string
	AvatarURL string
}

type emission struct {
	playerID string // empty means broadcast
	msg      models.WSMessage
}

// Room is the serialized mutation authority for one game. Every public
// method takes the room lock, mutates, collects outbound frames, and
// flushes them after the lock is released. The stage timer is a single
// time.AfterFunc task bound to a generation counter; a stale expiry
// finds a bumped generation and no-ops.
type Room struct {
	id       string
	template models.GameTemplate

	mu            sync.Mutex
	state         *models.GameState
	timer         *time.Timer
	timerGen      uint64
	stageDeadline time.Time
	emissions     []emission
	postFuncs     []func()

	durations  StageDurations
	sink       Sink
	recorder   ResultRecorder
	rng        *rand.Rand
	onTerminal func(roomID string)
}

func NewRoom(id string, tpl models.GameTemplate, cfg models.GameConfig, durations StageDurations, sink Sink, recorder ResultRecorder, rng *rand.Rand, onTerminal func(string)) *Room {
	cfg.TemplateName = tpl.Name
	return &Room{
		id:       id,
		template: tpl,
		state: &models.GameState{
			RoomID: id,
			Config: cfg,
			Stage:  models.StageWaiting,
		},
		durations:  durations,
		sink:       sink,
		recorder:   recorder,
		rng:        rng,
		onTerminal: onTerminal,
	}
}

func (r *Room) ID() string { return r.id }

// MaxPlayers is the largest player count the room's template supports.
func (r *Room) MaxPlayers() int {
	max := 0
	for _, c := range r.template.PlayerCounts {
		if c > max {
			max = c
		}
	}
	return max
}

// Snapshot returns the redacted view plus the residual seconds on the
// current stage timer, for the connect-time catch-up frames.
func (r *Room) Snapshot() (models.PublicGameState, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := models.PublicView(r.state)
	residual := 0
	if !r.stageDeadline.IsZero() {
		if left := time.Until(r.stageDeadline); left > 0 {
			residual = int(left.Round(time.Second) / time.Second)
		}
	}
	view.Timer = residual
	return view, residual
}

// LobbyInfo summarizes the room for the lobby listing.
func (r *Room) LobbyInfo() models.LobbyRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	hostName := ""
	if host := r.state.PlayerByID(r.state.HostID); host != nil {
		hostName = host.Name
	}
	return models.LobbyRoom{
		RoomID:       r.id,
		HostName:     hostName,
		PlayerCount:  len(r.state.Players),
		MaxPlayers:   r.MaxPlayers(),
		TemplateName: r.template.Name,
	}
}

// ----------------------------------------------------------------------------
// Coordinator operations
// ----------------------------------------------------------------------------

// Join adds a player in WAITING. The first player becomes host.
// Player ids are room scoped, assigned in join order.
func (r *Room) Join(profile ProfileInfo) (*models.Player, error) {
	var joined *models.Player
	err := r.locked(func() error {
		if r.state.Stage != models.StageWaiting {
			return ErrGameStarted
		}
		if len(r.state.Players) >= r.MaxPlayers() {
			return ErrRoomFull
		}
		p := &models.Player{
			ID:        fmt.Sprintf("p%d", len(r.state.Players)),
			ProfileID: profile.ID,
			Name:      profile.Name,
			AvatarURL: profile.AvatarURL,
			IsAlive:   true,
			IsHost:    len(r.state.Players) == 0,
		}
		r.state.Players = append(r.state.Players, p)
		if p.IsHost {
			r.state.HostID = p.ID
		}
		joined = p
		r.broadcastStateLocked()
		return nil
	})
	return joined, err
}

// SetReady toggles readiness in WAITING. When every player is ready
// and the count fits the template, the game starts.
func (r *Room) SetReady(playerID string, ready bool) error {
	return r.locked(func() error {
		if r.state.Stage != models.StageWaiting {
			return ErrWrongStage
		}
		p := r.state.PlayerByID(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		p.IsReady = ready
		r.broadcastStateLocked()
		if ready && r.allReadyLocked() && r.template.SupportsCount(len(r.state.Players)) {
			r.beginGameLocked()
		}
		return nil
	})
}

func (r *Room) allReadyLocked() bool {
	for _, p := range r.state.Players {
		if !p.IsReady {
			return false
		}
	}
	return len(r.state.Players) > 0
}

// TakeSeat claims a seat in WAITING.
func (r *Room) TakeSeat(playerID string, seat int) error {
	return r.locked(func() error {
		if r.state.Stage != models.StageWaiting {
			return ErrWrongStage
		}
		p := r.state.PlayerByID(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if seat < 0 || seat >= r.MaxPlayers() {
			return ErrIllegalTarget
		}
		for _, other := range r.state.Players {
			if other.ID != playerID && other.Seat != nil && *other.Seat == seat {
				return ErrSeatTaken
			}
		}
		p.Seat = &seat
		r.broadcastStateLocked()
		return nil
	})
}

// Start lets the host begin the game without waiting for everyone to
// ready up. Seats still unassigned are filled automatically.
func (r *Room) Start(requesterID string) error {
	return r.locked(func() error {
		if r.state.Stage != models.StageWaiting {
			return ErrWrongStage
		}
		if requesterID != r.state.HostID {
			return ErrNotHost
		}
		if !r.template.SupportsCount(len(r.state.Players)) {
			return ErrBadCount
		}
		r.beginGameLocked()
		return nil
	})
}

// RecordAction accepts a night action from its stage's actor. KILL is
// the werewolf vote in action form and shares its path.
func (r *Room) RecordAction(actorID, action, targetID string) error {
	return r.locked(func() error {
		actor := r.state.PlayerByID(actorID)
		if actor == nil {
			return ErrPlayerNotFound
		}
		switch action {
		case models.ActionKill:
			return r.recordWerewolfVoteLocked(actor, targetID)
		case models.ActionGuard:
			return r.recordGuardLocked(actor, targetID)
		case models.ActionSave:
			return r.recordWitchSaveLocked(actor)
		case models.ActionPoison:
			return r.recordWitchPoisonLocked(actor, targetID)
		case models.ActionCheck:
			return r.recordSeerCheckLocked(actor, targetID)
		}
		return ErrNotEligible
	})
}

// RecordVote routes a vote to the werewolf, sheriff or exile ballot by
// the current stage. A repeat vote from the same voter overwrites.
func (r *Room) RecordVote(voterID, targetID string) error {
	return r.locked(func() error {
		voter := r.state.PlayerByID(voterID)
		if voter == nil {
			return ErrPlayerNotFound
		}
		switch r.state.Stage {
		case models.StageWerewolfTurn:
			return r.recordWerewolfVoteLocked(voter, targetID)
		case models.StageSheriffVote:
			return r.recordSheriffVoteLocked(voter, targetID)
		case models.StageVote:
			return r.recordDayVoteLocked(voter, targetID)
		}
		return ErrWrongStage
	})
}

// RunForSheriff registers a candidacy during the election window.
func (r *Room) RunForSheriff(playerID string) error {
	return r.locked(func() error {
		if r.state.Stage != models.StageSheriffElection {
			return ErrWrongStage
		}
		p := r.state.PlayerByID(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if !p.IsAlive {
			return ErrNotEligible
		}
		if !contains(r.state.SheriffCandidates, playerID) {
			r.state.SheriffCandidates = append(r.state.SheriffCandidates, playerID)
			r.broadcastStateLocked()
		}
		return nil
	})
}

// PassSpeakerTurn ends the current speaker's slot early.
func (r *Room) PassSpeakerTurn(playerID string) error {
	return r.locked(func() error {
		switch r.state.Stage {
		case models.StageSheriffSpeech:
			if r.state.CurrentSpeakerID != playerID {
				return ErrNotEligible
			}
			r.advanceSheriffSpeakerLocked()
			return nil
		case models.StageDayDiscussion:
			if r.state.CurrentSpeakerID != playerID {
				return ErrNotEligible
			}
			r.advanceSpeakerLocked()
			return nil
		}
		return ErrWrongStage
	})
}

// ConfirmNoAction is the current night actor declining to act, which
// completes the stage without waiting for the timer.
func (r *Room) ConfirmNoAction(playerID string) error {
	return r.locked(func() error {
		p := r.state.PlayerByID(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		caps := catalog.Caps(p.Role)
		var ok bool
		var next models.Stage
		switch r.state.Stage {
		case models.StageWitchTurn:
			ok = p.IsAlive && (caps.CanSave || caps.CanPoison)
			next = models.StageSeerTurn
		case models.StageSeerTurn:
			ok = p.IsAlive && caps.CanCheck
			next = models.StageGuardTurn
		case models.StageGuardTurn:
			ok = p.IsAlive && caps.CanGuard
			next = models.StageNightResolve
		default:
			return ErrWrongStage
		}
		if !ok {
			return ErrNotEligible
		}
		r.state.NightActions[playerID] = models.NightAction{Action: actionNone}
		r.advanceLocked(next)
		return nil
	})
}

// OnDisconnect announces the drop. Game state is untouched: the player
// keeps their role and aliveness and may reconnect.
func (r *Room) OnDisconnect(playerID string) {
	_ = r.locked(func() error {
		if r.state.PlayerByID(playerID) == nil {
			return nil
		}
		r.broadcastLocked(models.WSTypePlayerDisconnected, models.PlayerDisconnectedPayload{PlayerID: playerID})
		return nil
	})
}

// Close cancels the room's timer. Used at teardown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimerLocked()
}

// ----------------------------------------------------------------------------
// Night action recording
// ----------------------------------------------------------------------------

func (r *Room) recordWerewolfVoteLocked(voter *models.Player, targetID string) error {
	if r.state.Stage != models.StageWerewolfTurn {
		return ErrWrongStage
	}
	if !voter.IsAlive || !catalog.IsWolf(voter.Role) {
		return ErrNotEligible
	}
	target := r.state.PlayerByID(targetID)
	if target == nil || !target.IsAlive {
		return ErrIllegalTarget
	}
	r.state.WerewolfVotes[voter.ID] = targetID

	update := models.WSMessage{
		Type:      models.WSTypeWerewolfVoteUpdate,
		Payload:   models.VoteUpdatePayload{Votes: copyVotes(r.state.WerewolfVotes)},
		Timestamp: time.Now(),
	}
	for _, wolf := range livingWolves(r.state) {
		r.emissions = append(r.emissions, emission{playerID: wolf.ID, msg: update})
	}

	if len(r.state.WerewolfVotes) >= len(livingWolves(r.state)) {
		r.finishWerewolfTurnLocked()
	}
	return nil
}

func (r *Room) recordGuardLocked(actor *models.Player, targetID string) error {
	if r.state.Stage != models.StageGuardTurn {
		return ErrWrongStage
	}
	if !actor.IsAlive || !catalog.Caps(actor.Role).CanGuard {
		return ErrNotEligible
	}
	target := r.state.PlayerByID(targetID)
	if target == nil || !target.IsAlive {
		return ErrIllegalTarget
	}
	if targetID == r.state.LastGuardedID {
		return fmt.Errorf("cannot guard the same player twice in a row: %w", ErrIllegalTarget)
	}
	r.state.GuardTarget = targetID
	r.state.NightActions[actor.ID] = models.NightAction{Action: models.ActionGuard, Target: targetID}
	r.advanceLocked(models.StageNightResolve)
	return nil
}

func (r *Room) recordWitchSaveLocked(actor *models.Player) error {
	if r.state.Stage != models.StageWitchTurn {
		return ErrWrongStage
	}
	if !actor.IsAlive || !catalog.Caps(actor.Role).CanSave {
		return ErrNotEligible
	}
	if r.state.WitchUsedPotionTonight {
		return fmt.Errorf("one potion per night: %w", ErrNotEligible)
	}
	if !r.state.WitchHasSave {
		return fmt.Errorf("save potion exhausted: %w", ErrNotEligible)
	}
	if r.state.WerewolfKillTarget == "" {
		return fmt.Errorf("nobody to save: %w", ErrIllegalTarget)
	}
	// The potion is consumed on the action itself, even if the guard
	// would have protected the target anyway.
	r.state.WitchSaveTarget = r.state.WerewolfKillTarget
	r.state.WitchHasSave = false
	r.state.WitchUsedPotionTonight = true
	r.state.NightActions[actor.ID] = models.NightAction{Action: models.ActionSave, Target: r.state.WitchSaveTarget}
	r.advanceLocked(models.StageSeerTurn)
	return nil
}

func (r *Room) recordWitchPoisonLocked(actor *models.Player, targetID string) error {
	if r.state.Stage != models.StageWitchTurn {
		return ErrWrongStage
	}
	if !actor.IsAlive || !catalog.Caps(actor.Role).CanPoison {
		return ErrNotEligible
	}
	if r.state.WitchUsedPotionTonight {
		return fmt.Errorf("one potion per night: %w", ErrNotEligible)
	}
	if !r.state.WitchHasPoison {
		return fmt.Errorf("poison exhausted: %w", ErrNotEligible)
	}
	target := r.state.PlayerByID(targetID)
	if target == nil || !target.IsAlive {
		return ErrIllegalTarget
	}
	r.state.WitchPoisonTarget = targetID
	r.state.WitchHasPoison = false
	r.state.WitchUsedPotionTonight = true
	r.state.NightActions[actor.ID] = models.NightAction{Action: models.ActionPoison, Target: targetID}
	r.advanceLocked(models.StageSeerTurn)
	return nil
}

func (r *Room) recordSeerCheckLocked(actor *models.Player, targetID string) error {
	if r.state.Stage != models.StageSeerTurn {
		return ErrWrongStage
	}
	if !actor.IsAlive || !catalog.Caps(actor.Role).CanCheck {
		return ErrNotEligible
	}
	target := r.state.PlayerByID(targetID)
	if target == nil || !target.IsAlive || targetID == actor.ID {
		return ErrIllegalTarget
	}
	r.state.NightActions[actor.ID] = models.NightAction{Action: models.ActionCheck, Target: targetID}
	r.advanceLocked(models.StageGuardTurn)
	return nil
}

func (r *Room) recordSheriffVoteLocked(voter *models.Player, targetID string) error {
	if !voter.IsAlive {
		return ErrNotEligible
	}
	// Candidates abstain.
	if contains(r.state.SheriffCandidates, voter.ID) {
		return ErrNotEligible
	}
	if !contains(r.state.SheriffCandidates, targetID) {
		return ErrIllegalTarget
	}
	r.state.SheriffVotes[voter.ID] = targetID
	if r.sheriffVoteCompleteLocked() {
		r.advanceLocked(models.StageSheriffResult)
	}
	return nil
}

func (r *Room) recordDayVoteLocked(voter *models.Player, targetID string) error {
	if !voter.IsAlive || voter.HasVotedOut {
		return ErrNotEligible
	}
	target := r.state.PlayerByID(targetID)
	if target == nil || !target.IsAlive {
		return ErrIllegalTarget
	}
	r.state.DayVotes[voter.ID] = targetID
	r.broadcastLocked(models.WSTypeVoteUpdate, models.VoteUpdatePayload{Votes: copyVotes(r.state.DayVotes)})
	if r.dayVoteCompleteLocked() {
		r.advanceLocked(models.StageVoteResolve)
	}
	return nil
}

func (r *Room) sheriffVoteCompleteLocked() bool {
	for _, p := range livingPlayers(r.state) {
		if contains(r.state.SheriffCandidates, p.ID) {
			continue
		}
		if _, ok := r.state.SheriffVotes[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) dayVoteCompleteLocked() bool {
	for _, p := range livingPlayers(r.state) {
		if p.HasVotedOut {
			continue
		}
		if _, ok := r.state.DayVotes[p.ID]; !ok {
			return false
		}
	}
	return true
}

// ----------------------------------------------------------------------------
// Game start
// ----------------------------------------------------------------------------

func (r *Room) beginGameLocked() {
	r.assignSeatsLocked()
	r.state.WitchHasSave = true
	r.state.WitchHasPoison = true
	r.state.Day = 0
	r.advanceLocked(models.StageRoleAssign)
}

func (r *Room) assignSeatsLocked() {
	taken := map[int]bool{}
	for _, p := range r.state.Players {
		if p.Seat != nil {
			taken[*p.Seat] = true
		}
	}
	var free []int
	for seat := 0; seat < r.MaxPlayers(); seat++ {
		if !taken[seat] {
			free = append(free, seat)
		}
	}
	r.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	for _, p := range r.state.Players {
		if p.Seat == nil && len(free) > 0 {
			seat := free[0]
			free = free[1:]
			p.Seat = &seat
		}
	}
}

func (r *Room) assignRolesLocked() error {
	var deck []models.Role
	for role, n := range r.template.Roles {
		for i := 0; i < n; i++ {
			deck = append(deck, role)
		}
	}
	if len(deck) != len(r.state.Players) {
		return fmt.Errorf("%d roles for %d players: %w", len(deck), len(r.state.Players), ErrBadCount)
	}
	sort.Slice(deck, func(i, j int) bool { return deck[i] < deck[j] })
	r.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	ordered := make([]*models.Player, len(r.state.Players))
	copy(ordered, r.state.Players)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := 0, 0
		if ordered[i].Seat != nil {
			si = *ordered[i].Seat
		}
		if ordered[j].Seat != nil {
			sj = *ordered[j].Seat
		}
		return si < sj
	})
	for i, p := range ordered {
		p.Role = deck[i]
		p.IsAlive = true
	}
	return nil
}

func (r *Room) sendRoleAssignmentsLocked() {
	var wolfNames []string
	for _, wolf := range livingWolves(r.state) {
		wolfNames = append(wolfNames, wolf.Name)
	}
	for _, p := range r.state.Players {
		payload := models.RoleAssignmentPayload{Role: p.Role}
		if catalog.IsWolf(p.Role) {
			payload.Teammates = wolfNames
		}
		r.sendLocked(p.ID, models.WSTypeRoleAssignment, payload)
	}
}

// ----------------------------------------------------------------------------
// Stage machine
// ----------------------------------------------------------------------------

// advanceLocked cancels the stage timer and enters the next stage,
// skipping role stages nobody living can act in.
func (r *Room) advanceLocked(next models.Stage) {
	if r.state.Stage == models.StageGameOver {
		return
	}
	r.cancelTimerLocked()
	for {
		skipped, after := r.skipTargetLocked(next)
		if !skipped {
			break
		}
		next = after
	}
	r.enterStageLocked(next)
}

// skipTargetLocked implements the skip rule: a role-specific night
// stage with no living actor is passed through without broadcast.
func (r *Room) skipTargetLocked(next models.Stage) (bool, models.Stage) {
	switch next {
	case models.StageWerewolfTurn:
		if len(livingWolves(r.state)) == 0 {
			return true, models.StageWitchTurn
		}
	case models.StageWitchTurn:
		if len(livingWith(r.state, func(c catalog.Capabilities) bool { return c.CanSave || c.CanPoison })) == 0 {
			return true, models.StageSeerTurn
		}
	case models.StageSeerTurn:
		if len(livingWith(r.state, func(c catalog.Capabilities) bool { return c.CanCheck })) == 0 {
			return true, models.StageGuardTurn
		}
	case models.StageGuardTurn:
		if len(livingWith(r.state, func(c catalog.Capabilities) bool { return c.CanGuard })) == 0 {
			return true, models.StageNightResolve
		}
	case models.StageSheriffSpeech:
		if len(r.state.SheriffCandidates) == 0 {
			return true, models.StageSpeechOrder
		}
	}
	return false, next
}

func (r *Room) enterStageLocked(stage models.Stage) {
	r.state.Stage = stage
	log.Printf("[room %s] stage %s (day %d)", r.id, stage, r.state.Day)

	switch stage {
	case models.StageRoleAssign:
		if err := r.assignRolesLocked(); err != nil {
			r.abortLocked(err)
			return
		}
		r.announceStageLocked()
		r.sendRoleAssignmentsLocked()
		r.armTimerLocked()

	case models.StageNightStart:
		r.state.Day++
		resetNight(r.state)
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageWerewolfTurn:
		r.announceStageLocked()
		r.sendWolfPanelsLocked()
		r.armTimerLocked()

	case models.StageWitchTurn:
		r.announceStageLocked()
		r.sendWitchPanelLocked()
		r.armTimerLocked()

	case models.StageSeerTurn:
		r.announceStageLocked()
		r.sendSeerPanelLocked()
		r.armTimerLocked()

	case models.StageGuardTurn:
		r.announceStageLocked()
		r.sendGuardPanelLocked()
		r.armTimerLocked()

	case models.StageNightResolve:
		r.resolveNightLocked()

	case models.StageDawn:
		r.announceStageLocked()
		r.broadcastLocked(models.WSTypeNightDeaths, models.NightDeathsPayload{
			Day:  r.state.Day,
			Dead: append([]string{}, r.state.NightlyDeaths...),
		})
		r.armTimerLocked()

	case models.StageSheriffElection:
		r.state.SheriffCandidates = nil
		r.state.SheriffVotes = map[string]string{}
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageSheriffSpeech:
		r.state.CurrentSpeakerID = r.state.SheriffCandidates[0]
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageSheriffVote:
		r.state.CurrentSpeakerID = ""
		r.announceStageLocked()
		if r.sheriffVoteCompleteLocked() {
			r.advanceLocked(models.StageSheriffResult)
			return
		}
		r.armTimerLocked()

	case models.StageSheriffResult:
		if sheriffID := ResolveSheriffVotes(r.state); sheriffID != "" {
			if p := r.state.PlayerByID(sheriffID); p != nil {
				p.IsSheriff = true
			}
			r.broadcastLocked(models.WSTypeSheriffElected, models.SheriffElectedPayload{SheriffID: sheriffID})
		} else {
			r.broadcastLocked(models.WSTypeSheriffElected, models.SheriffElectedPayload{})
		}
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageSpeechOrder:
		r.state.SpeechOrder = DetermineSpeechOrder(r.state, r.rng)
		r.state.CurrentSpeakerID = ""
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageDayDiscussion:
		if len(r.state.SpeechOrder) == 0 {
			r.advanceLocked(models.StageVote)
			return
		}
		r.state.CurrentSpeakerID = r.state.SpeechOrder[0]
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageVote:
		r.state.DayVotes = map[string]string{}
		r.state.CurrentSpeakerID = ""
		r.announceStageLocked()
		r.armTimerLocked()

	case models.StageVoteResolve:
		r.resolveDayVoteLocked()

	case models.StageGameOver:
		r.finishGameLocked()
	}
}

// announceStageLocked broadcasts the STAGE_CHANGE frame for the
// current stage. The duration is looked up here so the frame and the
// timer always agree.
func (r *Room) announceStageLocked() {
	r.state.Timer = r.durations.For(r.state.Stage)
	r.broadcastLocked(models.WSTypeStageChange, models.StageChangePayload{
		Stage:   r.state.Stage,
		Timer:   r.state.Timer,
		Day:     r.state.Day,
		Players: publicPlayers(r.state.Players),
	})
}

func (r *Room) resolveNightLocked() {
	result := ResolveNight(r.state)
	for _, id := range result.Dead {
		if p := r.state.PlayerByID(id); p != nil {
			p.IsAlive = false
		}
	}
	r.state.NightlyDeaths = result.Dead
	r.state.LastGuardedID = r.state.GuardTarget

	// The check result goes to the seer even if the seer died tonight.
	for actorID, action := range r.state.NightActions {
		if action.Action != models.ActionCheck {
			continue
		}
		if isWolf, ok := result.Checked[action.Target]; ok {
			r.sendLocked(actorID, models.WSTypeSeerResult, models.SeerResultPayload{
				TargetPlayerID: action.Target,
				IsWolf:         isWolf,
			})
		}
	}

	r.announceStageLocked()
	if CheckGameOver(r.state) {
		r.advanceLocked(models.StageGameOver)
		return
	}
	r.armTimerLocked()
}

func (r *Room) resolveDayVoteLocked() {
	result := ResolveDayVotes(r.state)
	if result.Eliminated != "" {
		if p := r.state.PlayerByID(result.Eliminated); p != nil {
			if p.Role == models.RoleIdiot && !p.HasVotedOut {
				// The idiot is revealed, survives, and loses the vote.
				p.HasVotedOut = true
				r.broadcastLocked(models.WSTypeGameEvent, models.GameEventPayload{
					Message: fmt.Sprintf("%s is the idiot and survives the vote", p.Name),
					Code:    "IDIOT_REVEALED",
				})
				result.Eliminated = ""
			} else {
				p.IsAlive = false
			}
		}
	}
	r.broadcastLocked(models.WSTypeVoteResult, models.VoteResultPayload{
		Eliminated: result.Eliminated,
		Votes:      result.Votes,
	})
	r.announceStageLocked()
	if CheckGameOver(r.state) {
		r.advanceLocked(models.StageGameOver)
		return
	}
	r.armTimerLocked()
}

func (r *Room) finishGameLocked() {
	r.cancelTimerLocked()
	r.announceStageLocked()
	r.state.Timer = 0
	roles := make(map[string]models.Role, len(r.state.Players))
	for _, p := range r.state.Players {
		roles[p.ID] = p.Role
	}
	r.broadcastLocked(models.WSTypeGameOver, models.GameOverPayload{
		Winner: r.state.Winner,
		Roles:  roles,
	})

	if r.recorder != nil && r.state.Winner != "" {
		type outcome struct {
			profileID string
			won       bool
			class     string
		}
		var outcomes []outcome
		for _, p := range r.state.Players {
			outcomes = append(outcomes, outcome{
				profileID: p.ProfileID,
				won:       wonWith(p.Role, r.state.Winner),
				class:     roleClass(p.Role),
			})
		}
		rec := r.recorder
		r.postFuncs = append(r.postFuncs, func() {
			for _, o := range outcomes {
				rec.RecordResult(o.profileID, o.won, o.class)
			}
		})
	}

	if r.onTerminal != nil {
		terminal := r.onTerminal
		roomID := r.id
		r.postFuncs = append(r.postFuncs, func() { terminal(roomID) })
	}
}

// abortLocked handles fatal errors: the room ends with no winner.
func (r *Room) abortLocked(err error) {
	log.Printf("[room %s] aborting game: %v", r.id, err)
	r.broadcastLocked(models.WSTypeGameEvent, models.GameEventPayload{
		Message: "game aborted by the server",
		Code:    "ABORTED",
	})
	r.state.Winner = ""
	r.cancelTimerLocked()
	r.state.Stage = models.StageGameOver
	r.finishGameLocked()
}

// ----------------------------------------------------------------------------
// Werewolf turn completion and speakers
// ----------------------------------------------------------------------------

// finishWerewolfTurnLocked resolves the wolf ballot. A tied vote is
// retried once with cleared votes; a second tie means no kill target.
func (r *Room) finishWerewolfTurnLocked() {
	target := ResolveWerewolfVotes(r.state)
	if target == "" && len(r.state.WerewolfVotes) > 0 && !r.state.WerewolfRevoteDone {
		r.state.WerewolfRevoteDone = true
		r.state.WerewolfVotes = map[string]string{}
		notice := models.WSMessage{
			Type:      models.WSTypeGameEvent,
			Payload:   models.GameEventPayload{Message: "vote tied, vote again", Code: "WOLF_REVOTE"},
			Timestamp: time.Now(),
		}
		for _, wolf := range livingWolves(r.state) {
			r.emissions = append(r.emissions, emission{playerID: wolf.ID, msg: notice})
		}
		r.armTimerLocked()
		return
	}
	r.state.WerewolfKillTarget = target
	r.advanceLocked(models.StageWitchTurn)
}

func (r *Room) advanceSheriffSpeakerLocked() {
	next := ""
	for i, id := range r.state.SheriffCandidates {
		if id == r.state.CurrentSpeakerID && i+1 < len(r.state.SheriffCandidates) {
			next = r.state.SheriffCandidates[i+1]
			break
		}
	}
	if next == "" {
		r.advanceLocked(models.StageSheriffVote)
		return
	}
	r.state.CurrentSpeakerID = next
	r.broadcastStateLocked()
	r.armTimerLocked()
}

func (r *Room) advanceSpeakerLocked() {
	next := ""
	for i, id := range r.state.SpeechOrder {
		if id == r.state.CurrentSpeakerID && i+1 < len(r.state.SpeechOrder) {
			next = r.state.SpeechOrder[i+1]
			break
		}
	}
	if next == "" {
		r.advanceLocked(models.StageVote)
		return
	}
	r.state.CurrentSpeakerID = next
	r.broadcastStateLocked()
	r.armTimerLocked()
}

// ----------------------------------------------------------------------------
// Panels
// ----------------------------------------------------------------------------

func (r *Room) sendWolfPanelsLocked() {
	living := publicPlayers(livingPlayers(r.state))
	wolves := livingWolves(r.state)
	teammates := publicPlayers(wolves)
	payload := models.WerewolfPanelPayload{Players: living, Teammates: teammates}
	for _, wolf := range wolves {
		r.sendLocked(wolf.ID, models.WSTypeWerewolfPanel, payload)
	}
}

func (r *Room) sendWitchPanelLocked() {
	witches := livingWith(r.state, func(c catalog.Capabilities) bool { return c.CanSave || c.CanPoison })
	payload := models.WitchPanelPayload{
		WerewolfTarget: r.state.WerewolfKillTarget,
		HasSave:        r.state.WitchHasSave,
		HasPoison:      r.state.WitchHasPoison,
		Players:        publicPlayers(livingPlayers(r.state)),
	}
	for _, w := range witches {
		r.sendLocked(w.ID, models.WSTypeWitchPanel, payload)
	}
}

func (r *Room) sendSeerPanelLocked() {
	seers := livingWith(r.state, func(c catalog.Capabilities) bool { return c.CanCheck })
	payload := models.SeerPanelPayload{Players: publicPlayers(livingPlayers(r.state))}
	for _, s := range seers {
		r.sendLocked(s.ID, models.WSTypeSeerPanel, payload)
	}
}

func (r *Room) sendGuardPanelLocked() {
	guards := livingWith(r.state, func(c catalog.Capabilities) bool { return c.CanGuard })
	payload := models.GuardPanelPayload{
		Players:       publicPlayers(livingPlayers(r.state)),
		LastGuardedID: r.state.LastGuardedID,
	}
	for _, g := range guards {
		r.sendLocked(g.ID, models.WSTypeGuardPanel, payload)
	}
}

// ----------------------------------------------------------------------------
// Timer plumbing
// ----------------------------------------------------------------------------

// armTimerLocked starts the stage countdown. The generation counter is
// the staleness check: an expiry whose generation no longer matches is
// from a stage that already ended.
func (r *Room) armTimerLocked() {
	r.cancelTimerLocked()
	seconds := r.durations.For(r.state.Stage)
	if seconds <= 0 {
		return
	}
	r.timerGen++
	gen := r.timerGen
	r.state.Timer = seconds
	r.stageDeadline = time.Now().Add(time.Duration(seconds) * time.Second)
	r.timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		r.handleTimeout(gen)
	})
}

func (r *Room) cancelTimerLocked() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.stageDeadline = time.Time{}
}

func (r *Room) handleTimeout(gen uint64) {
	r.mu.Lock()
	if gen != r.timerGen {
		r.mu.Unlock()
		return
	}
	r.timeoutLocked()
	emissions, posts := r.takeOutboxLocked()
	r.mu.Unlock()
	r.deliver(emissions, posts)
}

// timeoutLocked is the timer-expiry path of each stage.
func (r *Room) timeoutLocked() {
	switch r.state.Stage {
	case models.StageRoleAssign:
		r.advanceLocked(models.StageNightStart)
	case models.StageNightStart:
		r.advanceLocked(models.StageWerewolfTurn)
	case models.StageWerewolfTurn:
		r.finishWerewolfTurnLocked()
	case models.StageWitchTurn:
		r.advanceLocked(models.StageSeerTurn)
	case models.StageSeerTurn:
		r.advanceLocked(models.StageGuardTurn)
	case models.StageGuardTurn:
		r.advanceLocked(models.StageNightResolve)
	case models.StageNightResolve:
		r.advanceLocked(models.StageDawn)
	case models.StageDawn:
		if r.state.Day == 1 {
			r.advanceLocked(models.StageSheriffElection)
		} else {
			r.advanceLocked(models.StageSpeechOrder)
		}
	case models.StageSheriffElection:
		r.advanceLocked(models.StageSheriffSpeech)
	case models.StageSheriffSpeech:
		r.advanceSheriffSpeakerLocked()
	case models.StageSheriffVote:
		r.advanceLocked(models.StageSheriffResult)
	case models.StageSheriffResult:
		r.advanceLocked(models.StageSpeechOrder)
	case models.StageSpeechOrder:
		r.advanceLocked(models.StageDayDiscussion)
	case models.StageDayDiscussion:
		r.advanceSpeakerLocked()
	case models.StageVote:
		r.advanceLocked(models.StageVoteResolve)
	case models.StageVoteResolve:
		r.advanceLocked(models.StageNightStart)
	}
}

// ----------------------------------------------------------------------------
// Outbox
// ----------------------------------------------------------------------------

// locked runs fn under the room mutex and flushes collected frames
// after release. Frames never go out while the lock is held.
func (r *Room) locked(fn func() error) error {
	r.mu.Lock()
	err := fn()
	emissions, posts := r.takeOutboxLocked()
	r.mu.Unlock()
	r.deliver(emissions, posts)
	return err
}

func (r *Room) takeOutboxLocked() ([]emission, []func()) {
	emissions := r.emissions
	posts := r.postFuncs
	r.emissions = nil
	r.postFuncs = nil
	return emissions, posts
}

func (r *Room) deliver(emissions []emission, posts []func()) {
	for _, e := range emissions {
		if e.playerID == "" {
			r.sink.Broadcast(r.id, e.msg)
		} else {
			r.sink.SendTo(r.id, e.playerID, e.msg)
		}
	}
	for _, fn := range posts {
		fn()
	}
}

func (r *Room) broadcastLocked(t models.WSMessageType, payload any) {
	r.emissions = append(r.emissions, emission{msg: models.WSMessage{
		Type: t, Payload: payload, Timestamp: time.Now(),
	}})
}

func (r *Room) sendLocked(playerID string, t models.WSMessageType, payload any) {
	r.emissions = append(r.emissions, emission{playerID: playerID, msg: models.WSMessage{
		Type: t, Payload: payload, Timestamp: time.Now(),
	}})
}

func (r *Room) broadcastStateLocked() {
	r.broadcastLocked(models.WSTypeGameStateUpdate, models.PublicView(r.state))
}

func copyVotes(votes map[string]string) map[string]string {
	out := make(map[string]string, len(votes))
	for k, v := range votes {
		out[k] = v
	}
	return out
}
