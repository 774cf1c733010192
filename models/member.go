package models

import "time"

// MemberStatus представляет статус членства в лестнице.
type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusInvited  MemberStatus = "invited"
	MemberStatusActive   MemberStatus = "active"
	MemberStatusRejected MemberStatus = "rejected"
	MemberStatusBanned   MemberStatus = "banned"
)

// Bounds for member numeric fields (clamped on write).
const (
	SeedMin = 1
	SeedMax = 999

	RankMin = 1
	RankMax = 999

	CounterMin = 0
	CounterMax = 500

	StreakMin = -20
	StreakMax = 20

	DisplayNameMinLen = 2
	DisplayNameMaxLen = 80
)

// MetadataCapsuleKey — ключ в метаданных участника, связывающий его с
// капсулой для лестниц capsule-vs-capsule.
const MetadataCapsuleKey = "capsule_id"

// Member представляет участника лестницы. UserID может быть nil для
// гостевых (alias) участников.
type Member struct {
	ID          int          `json:"id" db:"id"`
	LadderID    int          `json:"ladder_id" db:"ladder_id"`
	UserID      *int         `json:"user_id,omitempty" db:"user_id"`
	DisplayName string       `json:"display_name" db:"display_name"`
	Handle      *string      `json:"handle,omitempty" db:"handle"`
	Status      MemberStatus `json:"status" db:"status"`
	Seed        *int         `json:"seed,omitempty" db:"seed"`
	// Rank — позиция 1..N; nil до первого пересчёта рейтинга.
	Rank      *int              `json:"rank,omitempty" db:"rank"`
	Rating    int               `json:"rating" db:"rating"`
	Wins      int               `json:"wins" db:"wins"`
	Losses    int               `json:"losses" db:"losses"`
	Draws     int               `json:"draws" db:"draws"`
	Streak    int               `json:"streak" db:"streak"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// TotalMatches возвращает число сыгранных матчей участника.
func (m *Member) TotalMatches() int {
	return m.Wins + m.Losses + m.Draws
}

// CapsuleRef возвращает идентификатор капсулы из метаданных участника,
// если он там есть (используется лестницами capsule-vs-capsule).
func (m *Member) CapsuleRef() (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	v, ok := m.Metadata[MetadataCapsuleKey]
	return v, ok && v != ""
}
