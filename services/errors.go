package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrLadderNotFound    = errors.New("ladder not found")
	ErrMemberNotFound    = errors.New("ladder member not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrCapsuleNotFound   = errors.New("capsule not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed             = errors.New("validation failed")
	ErrLadderNameRequired           = errors.New("ladder name is required")
	ErrDisplayNameRequired          = errors.New("member display name is required")
	ErrDisplayNameLength            = errors.New("member display name must be between 2 and 80 characters")
	ErrChallengeInvalidParticipants = errors.New("challenger and opponent must be distinct active members")
	ErrChallengeRankOrder           = errors.New("must challenge someone ranked above you")
	ErrChallengeInvalidOutcome      = errors.New("invalid challenge outcome")
	ErrRosterEmpty                  = errors.New("roster must contain at least one member")

	// Ошибки состояния
	ErrLadderNotActive          = errors.New("ladder is not active")
	ErrLadderNotDraft           = errors.New("only a draft ladder can be published")
	ErrLadderAlreadyArchived    = errors.New("ladder is already archived")
	ErrScoringNotChallengeable  = errors.New("scoring system does not support challenges")
	ErrChallengeAlreadyFinal    = errors.New("challenge is already in a terminal state")

	// Конфликты
	ErrLadderSlugConflict    = errors.New("ladder slug is already in use in this capsule")
	ErrMemberHandleConflict  = errors.New("member handle is already in use in this ladder")
	ErrLadderVersionConflict = errors.New("ladder was modified concurrently, retries exhausted")

	// Авторизация и доступ
	ErrLadderForbidden = errors.New("operation not allowed for the current user")
	ErrManagerOnly     = errors.New("only a capsule manager can perform this action")

	// Аутентификация
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrPasswordTooShort       = errors.New("password is too short")
)
