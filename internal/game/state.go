package game

import (
	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

// actionNone records an explicit decline from a night actor so the
// stage's completeness predicate can advance without a timeout.
const actionNone = "NONE"

// resetNight clears every per-night field. Called when a new night
// starts; the nightly deaths of the previous night survive until then
// so speech order can anchor on them.
func resetNight(s *models.GameState) {
	s.NightActions = map[string]models.NightAction{}
	s.WerewolfVotes = map[string]string{}
	s.WerewolfKillTarget = ""
	s.WerewolfRevoteDone = false
	s.WitchSaveTarget = ""
	s.WitchPoisonTarget = ""
	s.WitchUsedPotionTonight = false
	s.GuardTarget = ""
	s.NightlyDeaths = nil
	s.DayVotes = map[string]string{}
	s.SpeechOrder = nil
	s.CurrentSpeakerID = ""
}

func livingWolves(s *models.GameState) []*models.Player {
	var out []*models.Player
	for _, p := range s.Players {
		if p.IsAlive && catalog.IsWolf(p.Role) {
			out = append(out, p)
		}
	}
	return out
}

// livingWith returns living players whose capability row satisfies the
// predicate. Used to find the night actor for a stage.
func livingWith(s *models.GameState, pred func(catalog.Capabilities) bool) []*models.Player {
	var out []*models.Player
	for _, p := range s.Players {
		if p.IsAlive && pred(catalog.Caps(p.Role)) {
			out = append(out, p)
		}
	}
	return out
}

func livingPlayers(s *models.GameState) []*models.Player {
	var out []*models.Player
	for _, p := range s.Players {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

func publicPlayers(players []*models.Player) []models.PublicPlayer {
	out := make([]models.PublicPlayer, 0, len(players))
	for _, p := range players {
		out = append(out, models.ProjectPlayer(p))
	}
	return out
}

// roleClass buckets a role for profile statistics.
func roleClass(role models.Role) string {
	switch {
	case catalog.IsWolf(role):
		return "werewolf"
	case catalog.IsGod(role):
		return "god"
	default:
		return "villager"
	}
}

// wonWith reports whether a role's faction matches the winner. The
// good faction is everyone outside the wolf faction.
func wonWith(role models.Role, winner models.Winner) bool {
	if winner == models.WinnerWolf {
		return catalog.IsWolf(role)
	}
	return !catalog.IsWolf(role)
}
