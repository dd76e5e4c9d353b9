package game

import (
	"math/rand"
	"sort"

	"github.com/larkwing-games/werewolf-server/internal/catalog"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

// Pure resolution rules. Nothing here mutates the state or touches
// timers; the room coordinator applies the results under its lock.

// NightResult is the outcome of one resolved night.
type NightResult struct {
	Dead     []string
	Saved    string
	Poisoned string
	Checked  map[string]bool // target id -> is wolf faction
}

// VoteResult is the outcome of one exile vote.
type VoteResult struct {
	Eliminated string
	Votes      map[string]string
}

// ResolveWerewolfVotes tallies the wolf kill vote over living
// wolf-faction voters. A unique top target wins; a tie or an empty
// vote yields no target.
func ResolveWerewolfVotes(s *models.GameState) string {
	tally := map[string]int{}
	for voterID, targetID := range s.WerewolfVotes {
		voter := s.PlayerByID(voterID)
		if voter == nil || !voter.IsAlive || !catalog.IsWolf(voter.Role) {
			continue
		}
		tally[targetID]++
	}
	return uniqueTop(tally)
}

// ResolveNight computes the night's deaths with fixed precedence:
// wolf target, guard protection, witch save, witch poison. The save
// and poison targets were validated and recorded at action time; this
// function only combines them. The seer check is resolved regardless
// of whether the seer survives the night.
func ResolveNight(s *models.GameState) NightResult {
	result := NightResult{}

	killTarget := s.WerewolfKillTarget
	guarded := killTarget != "" && killTarget == s.GuardTarget
	saved := killTarget != "" && killTarget == s.WitchSaveTarget

	if saved {
		result.Saved = killTarget
	}
	if killTarget != "" && !guarded && !saved {
		result.Dead = append(result.Dead, killTarget)
	}

	// Poison kills regardless of guard protection.
	if s.WitchPoisonTarget != "" {
		result.Poisoned = s.WitchPoisonTarget
		if !contains(result.Dead, s.WitchPoisonTarget) {
			result.Dead = append(result.Dead, s.WitchPoisonTarget)
		}
	}

	for actorID, action := range s.NightActions {
		if action.Action != models.ActionCheck {
			continue
		}
		actor := s.PlayerByID(actorID)
		target := s.PlayerByID(action.Target)
		if actor == nil || target == nil || !catalog.Caps(actor.Role).CanCheck {
			continue
		}
		if result.Checked == nil {
			result.Checked = map[string]bool{}
		}
		result.Checked[action.Target] = catalog.IsWolf(target.Role)
	}

	return result
}

// VoteWeight returns a voter's exile-vote weight: 1.5 for a living
// sheriff, 0 for a revealed idiot, 1 otherwise.
func VoteWeight(p *models.Player) float64 {
	if p == nil || !p.IsAlive || p.HasVotedOut {
		return 0
	}
	if p.IsSheriff {
		return 1.5
	}
	return catalog.Caps(p.Role).VoteWeight
}

// ResolveDayVotes aggregates weighted exile votes. A unique maximum
// eliminates that target; any tie eliminates nobody.
func ResolveDayVotes(s *models.GameState) VoteResult {
	tally := map[string]float64{}
	votes := make(map[string]string, len(s.DayVotes))
	for voterID, targetID := range s.DayVotes {
		votes[voterID] = targetID
		w := VoteWeight(s.PlayerByID(voterID))
		if w > 0 {
			tally[targetID] += w
		}
	}
	return VoteResult{Eliminated: uniqueTopWeighted(tally), Votes: votes}
}

// ResolveSheriffVotes picks the sheriff: unique top candidate by
// unweighted living votes, or nobody on a tie.
func ResolveSheriffVotes(s *models.GameState) string {
	tally := map[string]int{}
	for voterID, targetID := range s.SheriffVotes {
		voter := s.PlayerByID(voterID)
		if voter == nil || !voter.IsAlive {
			continue
		}
		tally[targetID]++
	}
	return uniqueTop(tally)
}

// DetermineSpeechOrder returns living players by seat as a circular
// rotation. Day one starts at a random living player; later days start
// just past the lowest-seat night victim, and a peaceful night falls
// back to a random start.
func DetermineSpeechOrder(s *models.GameState, rng *rand.Rand) []string {
	type seated struct {
		id   string
		seat int
	}
	var living []seated
	for _, p := range s.Players {
		if p.IsAlive && p.Seat != nil {
			living = append(living, seated{id: p.ID, seat: *p.Seat})
		}
	}
	if len(living) == 0 {
		return nil
	}
	sort.Slice(living, func(i, j int) bool { return living[i].seat < living[j].seat })

	start := 0
	victimSeat := lowestVictimSeat(s)
	if s.Day <= 1 || victimSeat < 0 {
		start = rng.Intn(len(living))
	} else {
		// First living seat strictly past the victim, wrapping.
		start = 0
		for i, p := range living {
			if p.seat > victimSeat {
				start = i
				break
			}
		}
	}

	order := make([]string, 0, len(living))
	for i := 0; i < len(living); i++ {
		order = append(order, living[(start+i)%len(living)].id)
	}
	return order
}

func lowestVictimSeat(s *models.GameState) int {
	seat := -1
	for _, id := range s.NightlyDeaths {
		p := s.PlayerByID(id)
		if p == nil || p.Seat == nil {
			continue
		}
		if seat < 0 || *p.Seat < seat {
			seat = *p.Seat
		}
	}
	return seat
}

// CheckGameOver evaluates the victory rules and sets s.Winner when the
// game has ended. Wolves wiped wins for the village; a wipe of the god
// class or the plain villagers wins for the wolves, but only for
// classes the board actually fielded. Wolves-eliminated takes priority
// when wipes coincide.
func CheckGameOver(s *models.GameState) bool {
	var livingWolves, livingGods, livingVillagers int
	var fieldedGods, fieldedVillagers bool
	for _, p := range s.Players {
		caps := catalog.Caps(p.Role)
		if caps.IsGod {
			fieldedGods = true
		}
		if p.Role == models.RoleVillager {
			fieldedVillagers = true
		}
		if !p.IsAlive {
			continue
		}
		switch {
		case caps.IsWolf:
			livingWolves++
		case caps.IsGod:
			livingGods++
		case p.Role == models.RoleVillager:
			livingVillagers++
		}
	}

	if livingWolves == 0 {
		s.Winner = models.WinnerGood
		return true
	}
	if (fieldedGods && livingGods == 0) || (fieldedVillagers && livingVillagers == 0) {
		s.Winner = models.WinnerWolf
		return true
	}
	return false
}

// uniqueTop returns the key with the strictly highest count, or ""
// when the tally is empty or tied at the top.
func uniqueTop(tally map[string]int) string {
	best, bestCount, tied := "", 0, false
	for id, n := range tally {
		switch {
		case n > bestCount:
			best, bestCount, tied = id, n, false
		case n == bestCount:
			tied = true
		}
	}
	if tied || bestCount == 0 {
		return ""
	}
	return best
}

func uniqueTopWeighted(tally map[string]float64) string {
	best, bestWeight, tied := "", 0.0, false
	for id, w := range tally {
		switch {
		case w > bestWeight:
			best, bestWeight, tied = id, w, false
		case w == bestWeight:
			tied = true
		}
	}
	if tied || bestWeight == 0 {
		return ""
	}
	return best
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
