package rating

import (
	"math"

	"github.com/Dosada05/ladder-system/models"
)

type EloStrategy struct{}

func NewEloStrategy() Strategy {
	return &EloStrategy{}
}

func (s *EloStrategy) GetName() string {
	return "Elo"
}

// Apply computes both sides' rating deltas from their pre-match ratings,
// then re-sorts the whole roster and reassigns sequential ranks.
// Deltas are computed per member independently, so with asymmetric K factors
// the exchange is not strictly zero-sum.
func (s *EloStrategy) Apply(params ApplyParams) (*Result, error) {
	members := cloneMembers(params.Members)
	ci := findMemberIndex(members, params.ChallengerID)
	oi := findMemberIndex(members, params.OpponentID)
	if ci < 0 || oi < 0 {
		return nil, ErrParticipantMissing
	}

	challengerScore, opponentScore, err := actualScores(params.Outcome)
	if err != nil {
		return nil, err
	}

	scoring := params.Scoring.Normalized()
	challenger := &members[ci]
	opponent := &members[oi]

	// Expected scores come from the pre-match ratings of both sides.
	preChallenger := NormalizeRating(float64(challenger.Rating), scoring.InitialRating)
	preOpponent := NormalizeRating(float64(opponent.Rating), scoring.InitialRating)
	expChallenger := ExpectedScore(preChallenger, preOpponent)
	expOpponent := ExpectedScore(preOpponent, preChallenger)

	kChallenger := EffectiveKFactor(challenger, scoring)
	kOpponent := EffectiveKFactor(opponent, scoring)

	deltaChallenger := int(math.Round(kChallenger * (challengerScore - expChallenger)))
	deltaOpponent := int(math.Round(kOpponent * (opponentScore - expOpponent)))

	challenger.Rating = NormalizeRating(float64(preChallenger+deltaChallenger), scoring.InitialRating)
	opponent.Rating = NormalizeRating(float64(preOpponent+deltaOpponent), scoring.InitialRating)

	ratingDeltas := []models.RatingDelta{
		{MemberID: challenger.ID, From: preChallenger, To: challenger.Rating, Delta: challenger.Rating - preChallenger},
		{MemberID: opponent.ID, From: preOpponent, To: opponent.Rating, Delta: opponent.Rating - preOpponent},
	}

	applyCounters(challenger, params.Outcome == models.OutcomeChallenger, params.Outcome == models.OutcomeDraw)
	applyCounters(opponent, params.Outcome == models.OutcomeOpponent, params.Outcome == models.OutcomeDraw)

	sortStandings(members)
	rankDeltas := reassignRanks(members)

	return &Result{
		Members:      members,
		RankDeltas:   rankDeltas,
		RatingDeltas: ratingDeltas,
	}, nil
}
