package models

import "time"

// LadderStatus представляет статусы лестницы, соответствующие ENUM в БД.
type LadderStatus string

const (
	LadderStatusDraft    LadderStatus = "draft"
	LadderStatusActive   LadderStatus = "active"
	LadderStatusArchived LadderStatus = "archived"
)

// LadderVisibility определяет, кто может видеть лестницу.
type LadderVisibility string

const (
	VisibilityPrivate LadderVisibility = "private"
	VisibilityCapsule LadderVisibility = "capsule"
	VisibilityPublic  LadderVisibility = "public"
)

// ScoringSystem определяет алгоритм пересчёта рейтинга.
type ScoringSystem string

const (
	ScoringSimple ScoringSystem = "simple"
	ScoringElo    ScoringSystem = "elo"
	ScoringAI     ScoringSystem = "ai"
	ScoringPoints ScoringSystem = "points"
	ScoringCustom ScoringSystem = "custom"
)

// Documented caps and bounds. These are part of the public contract.
const (
	PendingChallengeCap = 30
	MatchHistoryCap     = 50

	RatingMin = 100
	RatingMax = 4000

	KFactorMin = 4
	KFactorMax = 128

	DefaultInitialRating    = 1200
	DefaultKFactor          = 32
	DefaultPlacementMatches = 3
)

// ScoringConfig хранит параметры алгоритма рейтинга для лестницы.
type ScoringConfig struct {
	InitialRating    int     `json:"initial_rating" db:"initial_rating"`
	KFactor          int     `json:"k_factor" db:"k_factor"`
	PlacementMatches int     `json:"placement_matches" db:"placement_matches"`
	DecayPerDay      float64 `json:"decay_per_day" db:"decay_per_day"`
	BonusForStreak   float64 `json:"bonus_for_streak" db:"bonus_for_streak"`
}

// Normalized возвращает конфигурацию с подставленными значениями по умолчанию.
func (c ScoringConfig) Normalized() ScoringConfig {
	out := c
	if out.InitialRating <= 0 {
		out.InitialRating = DefaultInitialRating
	}
	if out.KFactor <= 0 {
		out.KFactor = DefaultKFactor
	}
	if out.PlacementMatches <= 0 {
		out.PlacementMatches = DefaultPlacementMatches
	}
	return out
}

// Ladder представляет лестницу — рейтинговый ростер внутри капсулы.
type Ladder struct {
	ID            int              `json:"id" db:"id"`
	CapsuleID     int              `json:"capsule_id" db:"capsule_id"`
	Name          string           `json:"name" db:"name"`
	Slug          string           `json:"slug" db:"slug"`
	Summary       *string          `json:"summary,omitempty" db:"summary"`
	Status        LadderStatus     `json:"status" db:"status"`
	Visibility    LadderVisibility `json:"visibility" db:"visibility"`
	ScoringSystem ScoringSystem    `json:"scoring_system" db:"scoring_system"`
	Scoring       ScoringConfig    `json:"scoring"`
	CreatorID     int              `json:"creator_id" db:"creator_id"`
	PublishedAt   *time.Time       `json:"published_at,omitempty" db:"published_at"`
	PublishedBy   *int             `json:"published_by,omitempty" db:"published_by"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	// UpdatedAt — токен оптимистической блокировки: каждое изменяющее
	// обновление проходит через compare-and-swap по этому полю.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	LogoKey   *string   `json:"-" db:"logo_key"`
	LogoURL   *string   `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные данные (не мапятся напрямую)
	Members []Member      `json:"members,omitempty" db:"-"`
	Pending []Challenge   `json:"pending_challenges,omitempty" db:"-"`
	History []MatchRecord `json:"history,omitempty" db:"-"`
}

// IsChallengeEnabled сообщает, поддерживает ли система подсчёта вызовы.
// ai/points/custom пока не поддерживаются.
func (s ScoringSystem) IsChallengeEnabled() bool {
	return s == ScoringSimple || s == ScoringElo
}
