package game

import "github.com/larkwing-games/werewolf-server/internal/models"

// StageDurations carries the per-stage countdowns in seconds. The
// values come from configuration; DefaultDurations matches the
// shipped defaults.
type StageDurations struct {
	RoleAssign      int
	NightStart      int
	WerewolfTurn    int
	WitchTurn       int
	SeerTurn        int
	GuardTurn       int
	NightResolve    int
	Dawn            int
	SheriffElection int
	SheriffSpeech   int // per candidate
	SheriffVote     int
	SheriffResult   int
	SpeechOrder     int
	Speech          int // per speaker in day discussion
	Vote            int
	VoteResolve     int
}

func DefaultDurations() StageDurations {
	return StageDurations{
		RoleAssign:      5,
		NightStart:      5,
		WerewolfTurn:    40,
		WitchTurn:       30,
		SeerTurn:        30,
		GuardTurn:       30,
		NightResolve:    5,
		Dawn:            5,
		SheriffElection: 15,
		SheriffSpeech:   45,
		SheriffVote:     45,
		SheriffResult:   5,
		SpeechOrder:     5,
		Speech:          45,
		Vote:            30,
		VoteResolve:     5,
	}
}

// For returns the countdown for a stage. Per-speaker stages return the
// single-speaker slice; WAITING and GAME_OVER have no timer.
func (d StageDurations) For(stage models.Stage) int {
	switch stage {
	case models.StageRoleAssign:
		return d.RoleAssign
	case models.StageNightStart:
		return d.NightStart
	case models.StageWerewolfTurn:
		return d.WerewolfTurn
	case models.StageWitchTurn:
		return d.WitchTurn
	case models.StageSeerTurn:
		return d.SeerTurn
	case models.StageGuardTurn:
		return d.GuardTurn
	case models.StageNightResolve:
		return d.NightResolve
	case models.StageDawn:
		return d.Dawn
	case models.StageSheriffElection:
		return d.SheriffElection
	case models.StageSheriffSpeech:
		return d.SheriffSpeech
	case models.StageSheriffVote:
		return d.SheriffVote
	case models.StageSheriffResult:
		return d.SheriffResult
	case models.StageSpeechOrder:
		return d.SpeechOrder
	case models.StageDayDiscussion:
		return d.Speech
	case models.StageVote:
		return d.Vote
	case models.StageVoteResolve:
		return d.VoteResolve
	}
	return 0
}
