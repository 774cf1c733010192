package rating

import (
	"errors"
	"math"
	"sort"

	"github.com/Dosada05/ladder-system/models"
)

var (
	ErrParticipantMissing = errors.New("rating: challenger or opponent not found in roster")
	ErrUnknownOutcome     = errors.New("rating: unknown outcome")
)

type ApplyParams struct {
	Members      []models.Member
	ChallengerID int
	OpponentID   int
	Outcome      models.ChallengeOutcome
	Scoring      models.ScoringConfig
}

// Result is what a strategy produces: the full updated roster plus the
// deltas that go into the match record.
type Result struct {
	Members      []models.Member
	RankDeltas   []models.RankDelta
	RatingDeltas []models.RatingDelta
}

// Strategy computes the post-match roster for one scoring system. Strategies
// are pure: they never touch storage and never mutate their input slice.
type Strategy interface {
	Apply(params ApplyParams) (*Result, error)

	GetName() string
}

// ForScoringSystem returns the strategy for a scoring system, or false when
// the system is not challenge-enabled (ai/points/custom).
func ForScoringSystem(sys models.ScoringSystem) (Strategy, bool) {
	switch sys {
	case models.ScoringElo:
		return NewEloStrategy(), true
	case models.ScoringSimple:
		return NewSimpleStrategy(), true
	default:
		return nil, false
	}
}

// NormalizeRating clamps a rating to [RatingMin, RatingMax] and rounds it to
// the nearest integer. Non-positive input falls back to the initial rating.
func NormalizeRating(value float64, initialRating int) int {
	if math.IsNaN(value) || value <= 0 {
		value = float64(initialRating)
	}
	r := int(math.Round(value))
	if r < models.RatingMin {
		return models.RatingMin
	}
	if r > models.RatingMax {
		return models.RatingMax
	}
	return r
}

// ExpectedScore is the standard logistic Elo expectation for a against b.
func ExpectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// EffectiveKFactor scales the base K for a member: placement matches move
// 1.5x faster, winning streaks add a configurable bonus. The result is
// clamped to [KFactorMin, KFactorMax].
func EffectiveKFactor(m *models.Member, scoring models.ScoringConfig) float64 {
	scoring = scoring.Normalized()
	k := float64(scoring.KFactor)
	if m.TotalMatches() < scoring.PlacementMatches {
		k *= 1.5
	}
	if m.Streak > 1 && scoring.BonusForStreak > 0 {
		k += math.Min(float64(m.Streak), 5) * scoring.BonusForStreak * 0.2
	}
	if k < models.KFactorMin {
		k = models.KFactorMin
	}
	if k > models.KFactorMax {
		k = models.KFactorMax
	}
	return k
}

// actualScores maps an outcome to the challenger's and opponent's score
// (win=1, draw=0.5, loss=0).
func actualScores(outcome models.ChallengeOutcome) (challenger, opponent float64, err error) {
	switch outcome {
	case models.OutcomeChallenger:
		return 1, 0, nil
	case models.OutcomeOpponent:
		return 0, 1, nil
	case models.OutcomeDraw:
		return 0.5, 0.5, nil
	default:
		return 0, 0, ErrUnknownOutcome
	}
}

// applyCounters updates the win/loss/draw counters and the streak of a single
// member. A draw always resets the streak to zero.
func applyCounters(m *models.Member, won, drew bool) {
	switch {
	case drew:
		m.Draws++
		m.Streak = 0
	case won:
		m.Wins++
		if m.Streak <= 0 {
			m.Streak = 1
		} else {
			m.Streak++
		}
	default:
		m.Losses++
		if m.Streak >= 0 {
			m.Streak = -1
		} else {
			m.Streak--
		}
	}
	if m.Streak < models.StreakMin {
		m.Streak = models.StreakMin
	}
	if m.Streak > models.StreakMax {
		m.Streak = models.StreakMax
	}
}

// cloneMembers copies the roster so strategies stay side-effect free.
func cloneMembers(members []models.Member) []models.Member {
	out := make([]models.Member, len(members))
	copy(out, members)
	return out
}

func findMemberIndex(members []models.Member, id int) int {
	for i := range members {
		if members[i].ID == id {
			return i
		}
	}
	return -1
}

// sortStandings orders the roster by {rating desc, wins desc, losses asc,
// display name asc} — the canonical tie-break chain.
func sortStandings(members []models.Member) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		return a.DisplayName < b.DisplayName
	})
}

// reassignRanks renumbers the roster 1..N by list position and returns the
// rank deltas for members whose rank actually changed.
func reassignRanks(members []models.Member) []models.RankDelta {
	deltas := make([]models.RankDelta, 0)
	for i := range members {
		newRank := i + 1
		prev := members[i].Rank
		if prev == nil || *prev != newRank {
			deltas = append(deltas, models.RankDelta{
				MemberID: members[i].ID,
				From:     prev,
				To:       newRank,
			})
			rank := newRank
			members[i].Rank = &rank
		}
	}
	return deltas
}

// sortByRank orders the roster by current rank ascending; members without a
// rank sink to the bottom in seed-then-id order.
func sortByRank(members []models.Member) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		switch {
		case a.Rank != nil && b.Rank != nil:
			return *a.Rank < *b.Rank
		case a.Rank != nil:
			return true
		case b.Rank != nil:
			return false
		}
		if a.Seed != nil && b.Seed != nil && *a.Seed != *b.Seed {
			return *a.Seed < *b.Seed
		}
		return a.ID < b.ID
	})
}
