package models

import "time"

// ChallengeStatus представляет статус вызова.
type ChallengeStatus string

const (
	ChallengeStatusPending  ChallengeStatus = "pending"
	ChallengeStatusResolved ChallengeStatus = "resolved"
	ChallengeStatusVoid     ChallengeStatus = "void"
)

// ParticipantType определяет, кто стороны вызова: участники лестницы или
// целые капсулы (для лестниц capsule-vs-capsule).
type ParticipantType string

const (
	ParticipantTypeMember  ParticipantType = "member"
	ParticipantTypeCapsule ParticipantType = "capsule"
)

// ChallengeOutcome — исход разрешённого вызова.
type ChallengeOutcome string

const (
	OutcomeChallenger ChallengeOutcome = "challenger"
	OutcomeOpponent   ChallengeOutcome = "opponent"
	OutcomeDraw       ChallengeOutcome = "draw"
)

// RankDelta фиксирует изменение позиции участника после разрешения вызова.
type RankDelta struct {
	MemberID int  `json:"member_id"`
	From     *int `json:"from"`
	To       int  `json:"to"`
}

// RatingDelta фиксирует изменение рейтинга участника матча.
type RatingDelta struct {
	MemberID int `json:"member_id"`
	From     int `json:"from"`
	To       int `json:"to"`
	Delta    int `json:"delta"`
}

// ChallengeResult заполняется ровно один раз при переходе pending → resolved.
type ChallengeResult struct {
	Outcome      ChallengeOutcome `json:"outcome"`
	ReportedAt   time.Time        `json:"reported_at"`
	ReportedBy   int              `json:"reported_by"`
	RankDeltas   []RankDelta      `json:"rank_deltas"`
	RatingDeltas []RatingDelta    `json:"rating_deltas"`
}

// Challenge представляет предложенный матч между двумя сторонами лестницы.
type Challenge struct {
	ID              int              `json:"id" db:"id"`
	LadderID        int              `json:"ladder_id" db:"ladder_id"`
	ParticipantType ParticipantType  `json:"participant_type" db:"participant_type"`
	ChallengerID    int              `json:"challenger_id" db:"challenger_id"`
	OpponentID      int              `json:"opponent_id" db:"opponent_id"`
	Note            *string          `json:"note,omitempty" db:"note"`
	ProofRef        *string          `json:"proof_ref,omitempty" db:"proof_ref"`
	Status          ChallengeStatus  `json:"status" db:"status"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	CreatedBy       int              `json:"created_by" db:"created_by"`
	Result          *ChallengeResult `json:"result,omitempty" db:"-"`
}

// MatchRecord — запись журнала матчей, создаваемая при разрешении вызова.
// Журнал append-only и усечён до MatchHistoryCap последних записей.
type MatchRecord struct {
	ID           int              `json:"id" db:"id"`
	LadderID     int              `json:"ladder_id" db:"ladder_id"`
	ChallengeID  int              `json:"challenge_id" db:"challenge_id"`
	Outcome      ChallengeOutcome `json:"outcome" db:"outcome"`
	ResolvedAt   time.Time        `json:"resolved_at" db:"resolved_at"`
	ResolvedBy   int              `json:"resolved_by" db:"resolved_by"`
	Note         *string          `json:"note,omitempty" db:"note"`
	ProofRef     *string          `json:"proof_ref,omitempty" db:"proof_ref"`
	RankDeltas   []RankDelta      `json:"rank_deltas" db:"-"`
	RatingDeltas []RatingDelta    `json:"rating_deltas" db:"-"`
}
