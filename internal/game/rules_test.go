package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkwing-games/werewolf-server/internal/models"
)

// makeState builds a minimal in-game state: players p0..pN seated in
// order, everyone alive, night fields reset.
func makeState(roles ...models.Role) *models.GameState {
	s := &models.GameState{
		RoomID:         "test",
		Stage:          models.StageNightStart,
		Day:            1,
		WitchHasSave:   true,
		WitchHasPoison: true,
	}
	for i, role := range roles {
		seat := i
		s.Players = append(s.Players, &models.Player{
			ID:      fmt.Sprintf("p%d", i),
			Name:    fmt.Sprintf("player-%d", i),
			Seat:    &seat,
			Role:    role,
			IsAlive: true,
		})
	}
	resetNight(s)
	s.SheriffVotes = map[string]string{}
	return s
}

// ----------------------------------------------------------------------------
// Werewolf vote
// ----------------------------------------------------------------------------

func TestResolveWerewolfVotes_UniqueMajority(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleWerewolf,
		models.RoleVillager, models.RoleVillager, models.RoleSeer)
	s.WerewolfVotes = map[string]string{"p0": "p4", "p1": "p4", "p2": "p3"}

	assert.Equal(t, "p4", ResolveWerewolfVotes(s))
}

func TestResolveWerewolfVotes_TieOrEmptyGivesNoTarget(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf,
		models.RoleVillager, models.RoleVillager)

	assert.Equal(t, "", ResolveWerewolfVotes(s), "no votes, no target")

	s.WerewolfVotes = map[string]string{"p0": "p2", "p1": "p3"}
	assert.Equal(t, "", ResolveWerewolfVotes(s), "split vote is a tie")
}

func TestResolveWerewolfVotes_IgnoresDeadAndNonWolfVoters(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf,
		models.RoleVillager, models.RoleVillager)
	s.Players[1].IsAlive = false
	s.WerewolfVotes = map[string]string{
		"p0": "p2",
		"p1": "p3", // dead wolf
		"p2": "p3", // not a wolf
	}

	assert.Equal(t, "p2", ResolveWerewolfVotes(s))
}

// ----------------------------------------------------------------------------
// Night resolution
// ----------------------------------------------------------------------------

func TestResolveNight_SimpleKill(t *testing.T) {
	// Scenario: wolves take the seer, the guard protects someone else,
	// the check still resolves.
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleSeer, models.RoleGuard)
	s.WerewolfKillTarget = "p4"
	s.GuardTarget = "p5"
	s.NightActions["p4"] = models.NightAction{Action: models.ActionCheck, Target: "p0"}

	result := ResolveNight(s)

	assert.Equal(t, []string{"p4"}, result.Dead)
	assert.Empty(t, result.Saved)
	assert.Empty(t, result.Poisoned)
	require.NotNil(t, result.Checked)
	assert.True(t, result.Checked["p0"], "checked a werewolf")
}

func TestResolveNight_WitchSave(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleWitch, models.RoleGuard)
	s.WerewolfKillTarget = "p2"
	s.WitchSaveTarget = "p2"

	result := ResolveNight(s)

	assert.Empty(t, result.Dead)
	assert.Equal(t, "p2", result.Saved)
	assert.Empty(t, result.Poisoned)
}

func TestResolveNight_GuardAndSaveSameTarget(t *testing.T) {
	// Both protections landing on the victim is legal and the victim
	// survives.
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleWitch, models.RoleGuard)
	s.WerewolfKillTarget = "p3"
	s.GuardTarget = "p3"
	s.WitchSaveTarget = "p3"

	result := ResolveNight(s)

	assert.Empty(t, result.Dead)
	assert.Equal(t, "p3", result.Saved)
}

func TestResolveNight_GuardBlocksKill(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleSeer, models.RoleGuard)
	s.WerewolfKillTarget = "p3"
	s.GuardTarget = "p3"

	result := ResolveNight(s)

	assert.Empty(t, result.Dead)
	assert.Empty(t, result.Saved, "guard protection is not a witch save")
}

func TestResolveNight_PoisonKillsThroughGuard(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleWitch, models.RoleGuard)
	s.GuardTarget = "p3"
	s.WitchPoisonTarget = "p3"

	result := ResolveNight(s)

	assert.Equal(t, []string{"p3"}, result.Dead)
	assert.Equal(t, "p3", result.Poisoned)
}

func TestResolveNight_PoisonAndKillSameTargetDedupes(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleWitch, models.RoleGuard)
	s.WerewolfKillTarget = "p2"
	s.WitchPoisonTarget = "p2"

	result := ResolveNight(s)

	assert.Equal(t, []string{"p2"}, result.Dead, "one death, not two")
}

func TestResolveNight_KillAndPoisonDifferentTargets(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleWitch, models.RoleGuard)
	s.WerewolfKillTarget = "p2"
	s.WitchPoisonTarget = "p3"

	result := ResolveNight(s)

	assert.ElementsMatch(t, []string{"p2", "p3"}, result.Dead)
}

func TestResolveNight_CheckResolvesWhenSeerDies(t *testing.T) {
	// The seer is the kill target; the check result is still produced.
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleSeer, models.RoleGuard)
	s.WerewolfKillTarget = "p4"
	s.NightActions["p4"] = models.NightAction{Action: models.ActionCheck, Target: "p2"}

	result := ResolveNight(s)

	assert.Equal(t, []string{"p4"}, result.Dead)
	require.NotNil(t, result.Checked)
	isWolf, ok := result.Checked["p2"]
	require.True(t, ok)
	assert.False(t, isWolf)
}

// ----------------------------------------------------------------------------
// Day vote
// ----------------------------------------------------------------------------

func TestResolveDayVotes_TieEliminatesNobody(t *testing.T) {
	// Four living players, two targets tied at two votes each.
	s := makeState(models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleSeer)
	s.DayVotes = map[string]string{
		"p0": "p2", "p1": "p2",
		"p2": "p0", "p3": "p0",
	}

	result := ResolveDayVotes(s)

	assert.Equal(t, "", result.Eliminated)
	assert.Len(t, result.Votes, 4)
}

func TestResolveDayVotes_SheriffWeightBreaksTally(t *testing.T) {
	// Sheriff p0 plus p1 on T1 gives 2.5; three plain votes on T2 give
	// 3.0, so T2 goes.
	s := makeState(models.RoleVillager, models.RoleVillager, models.RoleVillager,
		models.RoleVillager, models.RoleVillager, models.RoleWerewolf, models.RoleWerewolf)
	s.Players[0].IsSheriff = true
	s.DayVotes = map[string]string{
		"p0": "p5", "p1": "p5",
		"p2": "p6", "p3": "p6", "p4": "p6",
	}

	result := ResolveDayVotes(s)

	assert.Equal(t, "p6", result.Eliminated)
}

func TestResolveDayVotes_SheriffMajorityWins(t *testing.T) {
	// Two votes with the sheriff's beat two without: 2.5 vs 2.0.
	s := makeState(models.RoleVillager, models.RoleVillager, models.RoleVillager,
		models.RoleVillager, models.RoleWerewolf, models.RoleWerewolf)
	s.Players[0].IsSheriff = true
	s.DayVotes = map[string]string{
		"p0": "p4", "p1": "p4",
		"p2": "p5", "p3": "p5",
	}

	result := ResolveDayVotes(s)

	assert.Equal(t, "p4", result.Eliminated)
}

func TestResolveDayVotes_RevealedIdiotHasNoWeight(t *testing.T) {
	s := makeState(models.RoleIdiot, models.RoleVillager, models.RoleVillager,
		models.RoleWerewolf)
	s.Players[0].HasVotedOut = true
	s.DayVotes = map[string]string{
		"p0": "p3", // weight 0
		"p1": "p3",
		"p2": "p1",
		"p3": "p1",
	}

	result := ResolveDayVotes(s)

	// Without the idiot's vote it is 1 vs 2.
	assert.Equal(t, "p1", result.Eliminated)
}

func TestVoteWeight(t *testing.T) {
	alive := &models.Player{Role: models.RoleVillager, IsAlive: true}
	assert.Equal(t, 1.0, VoteWeight(alive))

	sheriff := &models.Player{Role: models.RoleVillager, IsAlive: true, IsSheriff: true}
	assert.Equal(t, 1.5, VoteWeight(sheriff))

	deadSheriff := &models.Player{Role: models.RoleVillager, IsSheriff: true}
	assert.Equal(t, 0.0, VoteWeight(deadSheriff))

	idiot := &models.Player{Role: models.RoleIdiot, IsAlive: true, HasVotedOut: true}
	assert.Equal(t, 0.0, VoteWeight(idiot))
}

// ----------------------------------------------------------------------------
// Speech order
// ----------------------------------------------------------------------------

func TestDetermineSpeechOrder_CircularOverLivingSeats(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleVillager, models.RoleVillager,
		models.RoleSeer, models.RoleGuard, models.RoleWitch)
	s.Players[2].IsAlive = false
	rng := rand.New(rand.NewSource(7))

	order := DetermineSpeechOrder(s, rng)

	require.Len(t, order, 5)
	assert.NotContains(t, order, "p2")
	// Circular by seat: each id's successor is the next living seat.
	living := []string{"p0", "p1", "p3", "p4", "p5"}
	startIdx := -1
	for i, id := range living {
		if id == order[0] {
			startIdx = i
		}
	}
	require.GreaterOrEqual(t, startIdx, 0)
	for i := range order {
		assert.Equal(t, living[(startIdx+i)%len(living)], order[i])
	}
}

func TestDetermineSpeechOrder_AnchorsPastNightVictim(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleVillager, models.RoleVillager,
		models.RoleSeer, models.RoleGuard, models.RoleWitch)
	s.Day = 2
	s.Players[1].IsAlive = false
	s.NightlyDeaths = []string{"p1"}
	rng := rand.New(rand.NewSource(7))

	order := DetermineSpeechOrder(s, rng)

	// First living seat strictly after seat 1 is p2.
	assert.Equal(t, []string{"p2", "p3", "p4", "p5", "p0"}, order)
}

func TestDetermineSpeechOrder_VictimAtLastSeatWraps(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleVillager, models.RoleVillager,
		models.RoleSeer)
	s.Day = 3
	s.Players[3].IsAlive = false
	s.NightlyDeaths = []string{"p3"}
	rng := rand.New(rand.NewSource(7))

	order := DetermineSpeechOrder(s, rng)

	assert.Equal(t, []string{"p0", "p1", "p2"}, order)
}

// ----------------------------------------------------------------------------
// Victory
// ----------------------------------------------------------------------------

func TestCheckGameOver_WolvesWipedMeansGoodWins(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleSeer)
	s.Players[0].IsAlive = false
	s.Players[1].IsAlive = false

	require.True(t, CheckGameOver(s))
	assert.Equal(t, models.WinnerGood, s.Winner)
}

func TestCheckGameOver_GodsWipedMeansWolvesWin(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleVillager, models.RoleVillager,
		models.RoleSeer, models.RoleGuard)
	s.Players[3].IsAlive = false
	s.Players[4].IsAlive = false

	require.True(t, CheckGameOver(s))
	assert.Equal(t, models.WinnerWolf, s.Winner)
}

func TestCheckGameOver_VillagersWipedMeansWolvesWin(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleVillager, models.RoleVillager,
		models.RoleSeer, models.RoleGuard)
	s.Players[1].IsAlive = false
	s.Players[2].IsAlive = false

	require.True(t, CheckGameOver(s))
	assert.Equal(t, models.WinnerWolf, s.Winner)
}

func TestCheckGameOver_WolfWipeBeatsCoincidingGodWipe(t *testing.T) {
	// Final werewolf and final god die on the same resolution step:
	// good wins.
	s := makeState(models.RoleWerewolf, models.RoleVillager, models.RoleSeer)
	s.Players[0].IsAlive = false
	s.Players[2].IsAlive = false

	require.True(t, CheckGameOver(s))
	assert.Equal(t, models.WinnerGood, s.Winner)
}

func TestCheckGameOver_ClassNotFieldedIsNotAWipe(t *testing.T) {
	// A board with no plain villagers cannot lose by villager wipe.
	s := makeState(models.RoleWerewolf, models.RoleSeer, models.RoleGuard)

	assert.False(t, CheckGameOver(s))
	assert.Empty(t, s.Winner)
}

func TestCheckGameOver_GameStillRunning(t *testing.T) {
	s := makeState(models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
		models.RoleVillager, models.RoleSeer, models.RoleGuard)
	s.Players[4].IsAlive = false

	assert.False(t, CheckGameOver(s))
	assert.Empty(t, s.Winner)
}
