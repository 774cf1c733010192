package rating

import (
	"math"

	"github.com/Dosada05/ladder-system/models"
)

type SimpleStrategy struct{}

func NewSimpleStrategy() Strategy {
	return &SimpleStrategy{}
}

func (s *SimpleStrategy) GetName() string {
	return "Simple"
}

// Apply implements the ladder-climbing rule: a winning challenger jumps
// halfway toward the opponent, everyone between shifts down one position.
// On an opponent win or a draw only the counters change — positions cannot
// reorder in this mode because counters do not drive the ordering.
// Precondition (enforced at challenge creation): the challenger is ranked
// strictly worse (numerically higher) than the opponent.
func (s *SimpleStrategy) Apply(params ApplyParams) (*Result, error) {
	members := cloneMembers(params.Members)
	ci := findMemberIndex(members, params.ChallengerID)
	oi := findMemberIndex(members, params.OpponentID)
	if ci < 0 || oi < 0 {
		return nil, ErrParticipantMissing
	}
	if _, _, err := actualScores(params.Outcome); err != nil {
		return nil, err
	}

	applyCounters(&members[ci], params.Outcome == models.OutcomeChallenger, params.Outcome == models.OutcomeDraw)
	applyCounters(&members[oi], params.Outcome == models.OutcomeOpponent, params.Outcome == models.OutcomeDraw)

	// Ratings never move in simple mode.
	ratingDeltas := []models.RatingDelta{
		{MemberID: members[ci].ID, From: members[ci].Rating, To: members[ci].Rating, Delta: 0},
		{MemberID: members[oi].ID, From: members[oi].Rating, To: members[oi].Rating, Delta: 0},
	}

	sortByRank(members)

	if params.Outcome == models.OutcomeChallenger {
		ci = findMemberIndex(members, params.ChallengerID)
		oi = findMemberIndex(members, params.OpponentID)
		challengerRank := ci + 1
		opponentRank := oi + 1
		if challengerRank > opponentRank {
			hop := int(math.Ceil(float64(challengerRank-opponentRank) / 2.0))
			targetRank := challengerRank - hop
			if floor := opponentRank + 1; targetRank < floor {
				targetRank = floor
			}
			moved := members[ci]
			members = append(members[:ci], members[ci+1:]...)
			insertAt := targetRank - 1
			members = append(members, models.Member{})
			copy(members[insertAt+1:], members[insertAt:])
			members[insertAt] = moved
		}
	}

	rankDeltas := reassignRanks(members)

	return &Result{
		Members:      members,
		RankDeltas:   rankDeltas,
		RatingDeltas: ratingDeltas,
	}, nil
}
