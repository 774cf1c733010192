package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/rating"
	"github.com/Dosada05/ladder-system/repositories"
	"github.com/Dosada05/ladder-system/storage"
)

// casRetryLimit — сколько раз операция перечитывает лестницу и повторяет
// запись после проигранной гонки compare-and-swap.
const casRetryLimit = 3

type CreateChallengeInput struct {
	ChallengerID int     `json:"challenger_id"`
	OpponentID   int     `json:"opponent_id"`
	Note         *string `json:"note,omitempty"`
}

type ResolveChallengeInput struct {
	Outcome  models.ChallengeOutcome `json:"outcome"`
	Note     *string                 `json:"note,omitempty"`
	ProofRef *string                 `json:"proof_ref,omitempty"`
}

// ChallengeFeed — то, что видит зритель лестницы: ожидающие вызовы и
// усечённый журнал матчей.
type ChallengeFeed struct {
	Pending []models.Challenge  `json:"pending"`
	History []models.MatchRecord `json:"history"`
}

type ChallengeService interface {
	Create(ctx context.Context, actorID, ladderID int, input CreateChallengeInput) (*models.Challenge, error)
	Resolve(ctx context.Context, actorID, ladderID, challengeID int, input ResolveChallengeInput) (*models.Challenge, error)
	UploadProof(ctx context.Context, actorID, ladderID, challengeID int, contentType string, file io.Reader) (*models.Challenge, error)
	Void(ctx context.Context, actorID, ladderID, challengeID int) error
	List(ctx context.Context, viewerID, ladderID int) (*ChallengeFeed, error)
}

type challengeService struct {
	txm           repositories.TxManager
	ladderRepo    repositories.LadderRepository
	memberRepo    repositories.MemberRepository
	challengeRepo repositories.ChallengeRepository
	historyRepo   repositories.HistoryRepository
	oracle        PermissionOracle
	events        EventSink
	uploader      storage.FileUploader
	logger        *slog.Logger
}

func NewChallengeService(
	txm repositories.TxManager,
	ladderRepo repositories.LadderRepository,
	memberRepo repositories.MemberRepository,
	challengeRepo repositories.ChallengeRepository,
	historyRepo repositories.HistoryRepository,
	oracle PermissionOracle,
	events EventSink,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ChallengeService {
	return &challengeService{
		txm:           txm,
		ladderRepo:    ladderRepo,
		memberRepo:    memberRepo,
		challengeRepo: challengeRepo,
		historyRepo:   historyRepo,
		oracle:        oracle,
		events:        events,
		uploader:      uploader,
		logger:        logger,
	}
}

func (s *challengeService) Create(ctx context.Context, actorID, ladderID int, input CreateChallengeInput) (*models.Challenge, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, members, err := s.loadLadderActor(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}
		if err := ensureChallengeOpen(ladder); err != nil {
			return nil, err
		}

		if input.ChallengerID == input.OpponentID {
			return nil, ErrChallengeInvalidParticipants
		}
		challenger := findActiveMember(members, input.ChallengerID)
		opponent := findActiveMember(members, input.OpponentID)
		if challenger == nil || opponent == nil {
			return nil, ErrChallengeInvalidParticipants
		}

		// В simple-режиме вызывают только вверх по таблице.
		if ladder.ScoringSystem == models.ScoringSimple {
			if challenger.Rank == nil || opponent.Rank == nil || *challenger.Rank <= *opponent.Rank {
				return nil, ErrChallengeRankOrder
			}
		}

		// Пара строк, представляющих капсулы, даёт вызов capsule-vs-capsule.
		participantType := models.ParticipantTypeMember
		if _, ok := challenger.CapsuleRef(); ok {
			if _, ok := opponent.CapsuleRef(); ok {
				participantType = models.ParticipantTypeCapsule
			}
		}

		challenge := &models.Challenge{
			LadderID:        ladderID,
			ParticipantType: participantType,
			ChallengerID:    input.ChallengerID,
			OpponentID:      input.OpponentID,
			Note:            input.Note,
			Status:          models.ChallengeStatusPending,
			CreatedBy:       actorID,
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if err := s.challengeRepo.Create(ctx, tx, challenge); err != nil {
				return err
			}
			return s.ladderRepo.UpdateCAS(ctx, tx, ladder, ladder.UpdatedAt)
		})
		if errors.Is(err, repositories.ErrLadderVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.mapRepoError(err)
		}

		s.emit(ladderID, "challenge.created", challenge)
		return challenge, nil
	}
	return nil, ErrLadderVersionConflict
}

func (s *challengeService) Resolve(ctx context.Context, actorID, ladderID, challengeID int, input ResolveChallengeInput) (*models.Challenge, error) {
	switch input.Outcome {
	case models.OutcomeChallenger, models.OutcomeOpponent, models.OutcomeDraw:
	default:
		return nil, ErrChallengeInvalidOutcome
	}

	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, members, err := s.loadLadderActor(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}

		challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
		if err != nil {
			if errors.Is(err, repositories.ErrChallengeNotFound) {
				return nil, ErrChallengeNotFound
			}
			return nil, fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
		}
		if challenge.LadderID != ladderID {
			return nil, ErrChallengeNotFound
		}
		// Повторное разрешение идемпотентно: дельты не применяются дважды,
		// второй вызывающий получает сохранённый результат — в том числе
		// после архивации лестницы.
		if challenge.Status == models.ChallengeStatusResolved {
			return challenge, nil
		}
		if challenge.Status == models.ChallengeStatusVoid {
			return nil, ErrChallengeAlreadyFinal
		}
		if err := ensureChallengeOpen(ladder); err != nil {
			return nil, err
		}

		strategy, ok := rating.ForScoringSystem(ladder.ScoringSystem)
		if !ok {
			return nil, ErrScoringNotChallengeable
		}
		outcome, err := strategy.Apply(rating.ApplyParams{
			Members:      members,
			ChallengerID: challenge.ChallengerID,
			OpponentID:   challenge.OpponentID,
			Outcome:      input.Outcome,
			Scoring:      ladder.Scoring.Normalized(),
		})
		if err != nil {
			if errors.Is(err, rating.ErrParticipantMissing) {
				return nil, ErrChallengeInvalidParticipants
			}
			if errors.Is(err, rating.ErrUnknownOutcome) {
				return nil, ErrChallengeInvalidOutcome
			}
			return nil, fmt.Errorf("rating recomputation failed: %w", err)
		}

		now := time.Now().UTC()
		result := &models.ChallengeResult{
			Outcome:      input.Outcome,
			ReportedAt:   now,
			ReportedBy:   actorID,
			RankDeltas:   outcome.RankDeltas,
			RatingDeltas: outcome.RatingDeltas,
		}
		record := &models.MatchRecord{
			LadderID:     ladderID,
			ChallengeID:  challenge.ID,
			Outcome:      input.Outcome,
			ResolvedAt:   now,
			ResolvedBy:   actorID,
			Note:         coalesceStr(input.Note, challenge.Note),
			ProofRef:     coalesceStr(input.ProofRef, challenge.ProofRef),
			RankDeltas:   outcome.RankDeltas,
			RatingDeltas: outcome.RatingDeltas,
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			// Ростер сохраняется целиком: пересчёт трогает всю таблицу,
			// частичный патч привёл бы к дрейфу рангов.
			if err := s.memberRepo.ReplaceAll(ctx, tx, ladderID, outcome.Members); err != nil {
				return err
			}
			if err := s.historyRepo.Append(ctx, tx, record); err != nil {
				return err
			}
			if err := s.challengeRepo.UpdateResolved(ctx, tx, challenge.ID, result); err != nil {
				return err
			}
			return s.ladderRepo.UpdateCAS(ctx, tx, ladder, ladder.UpdatedAt)
		})
		if errors.Is(err, repositories.ErrLadderVersionConflict) {
			// Гонка: перечитываем; если соперник успел первым, следующая
			// итерация вернёт его сохранённый результат.
			continue
		}
		if err != nil {
			return nil, s.mapRepoError(err)
		}

		challenge.Status = models.ChallengeStatusResolved
		challenge.Result = result
		s.emit(ladderID, "challenge.resolved", challenge)
		return challenge, nil
	}
	return nil, ErrLadderVersionConflict
}

// UploadProof прикрепляет пруф-артефакт к ожидающему вызову. Ключ объекта
// стабилен для пары (лестница, вызов): повторная загрузка заменяет старый
// пруф. При разрешении вызова ссылка переносится в журнал матчей.
func (s *challengeService) UploadProof(ctx context.Context, actorID, ladderID, challengeID int, contentType string, file io.Reader) (*models.Challenge, error) {
	if s.uploader == nil {
		return nil, errors.New("file storage is not configured")
	}
	ladder, _, err := s.loadLadderActor(ctx, actorID, ladderID)
	if err != nil {
		return nil, err
	}
	if err := ensureChallengeOpen(ladder); err != nil {
		return nil, err
	}

	challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
	}
	if challenge.LadderID != ladderID {
		return nil, ErrChallengeNotFound
	}
	if challenge.Status != models.ChallengeStatusPending {
		return nil, ErrChallengeAlreadyFinal
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := storage.ProofKey(ladderID, challenge.ID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload challenge proof: %w", err)
	}
	if err := s.challengeRepo.UpdateProofRef(ctx, nil, challenge.ID, result.Key); err != nil {
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.Warn("failed to delete orphaned proof object",
				slog.String("key", result.Key), slog.Any("error", delErr))
		}
		return nil, s.mapRepoError(err)
	}

	challenge.ProofRef = &result.Key
	return challenge, nil
}

func (s *challengeService) Void(ctx context.Context, actorID, ladderID, challengeID int) error {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.ladderRepo.GetByID(ctx, nil, ladderID)
		if err != nil {
			if errors.Is(err, repositories.ErrLadderNotFound) {
				return ErrLadderNotFound
			}
			return fmt.Errorf("failed to load ladder %d: %w", ladderID, err)
		}
		viewer, err := s.oracle.ResolveViewer(ctx, ladder.CapsuleID, actorID)
		if err != nil {
			return fmt.Errorf("failed to resolve viewer: %w", err)
		}
		if !viewer.IsManager() {
			return ErrManagerOnly
		}

		challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
		if err != nil {
			if errors.Is(err, repositories.ErrChallengeNotFound) {
				return ErrChallengeNotFound
			}
			return fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
		}
		if challenge.LadderID != ladderID {
			return ErrChallengeNotFound
		}
		if challenge.Status == models.ChallengeStatusVoid {
			return nil
		}
		if challenge.Status == models.ChallengeStatusResolved {
			return ErrChallengeAlreadyFinal
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if err := s.challengeRepo.UpdateVoid(ctx, tx, challengeID); err != nil {
				return err
			}
			return s.ladderRepo.UpdateCAS(ctx, tx, ladder, ladder.UpdatedAt)
		})
		if errors.Is(err, repositories.ErrLadderVersionConflict) {
			continue
		}
		if err != nil {
			return s.mapRepoError(err)
		}
		return nil
	}
	return ErrLadderVersionConflict
}

func (s *challengeService) List(ctx context.Context, viewerID, ladderID int) (*ChallengeFeed, error) {
	ladder, err := s.ladderRepo.GetByID(ctx, nil, ladderID)
	if err != nil {
		if errors.Is(err, repositories.ErrLadderNotFound) {
			return nil, ErrLadderNotFound
		}
		return nil, fmt.Errorf("failed to load ladder %d: %w", ladderID, err)
	}
	viewer, err := s.oracle.ResolveViewer(ctx, ladder.CapsuleID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve viewer: %w", err)
	}
	if !CanViewerAccessLadder(ladder, viewer, false) {
		return nil, ErrLadderForbidden
	}

	pending, err := s.challengeRepo.ListPending(ctx, nil, ladderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending challenges: %w", err)
	}
	history, err := s.historyRepo.ListByLadder(ctx, nil, ladderID, models.MatchHistoryCap)
	if err != nil {
		return nil, fmt.Errorf("failed to list match history: %w", err)
	}
	return &ChallengeFeed{Pending: pending, History: history}, nil
}

// loadLadderActor загружает лестницу с ростером и проверяет, что актор —
// менеджер капсулы или активный участник. Статус лестницы здесь не
// проверяется: Resolve обязан отдать сохранённый результат и после архивации.
func (s *challengeService) loadLadderActor(ctx context.Context, actorID, ladderID int) (*models.Ladder, []models.Member, error) {
	ladder, err := s.ladderRepo.GetByID(ctx, nil, ladderID)
	if err != nil {
		if errors.Is(err, repositories.ErrLadderNotFound) {
			return nil, nil, ErrLadderNotFound
		}
		return nil, nil, fmt.Errorf("failed to load ladder %d: %w", ladderID, err)
	}

	viewer, err := s.oracle.ResolveViewer(ctx, ladder.CapsuleID, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve viewer: %w", err)
	}
	members, err := s.memberRepo.ListByLadder(ctx, nil, ladderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load roster for ladder %d: %w", ladderID, err)
	}
	if !actorCanTouchChallenges(viewer, members, actorID) {
		return nil, nil, ErrLadderForbidden
	}
	return ladder, members, nil
}

// ensureChallengeOpen: новые вызовы и пруфы принимает только активная
// лестница с challenge-совместимой системой подсчёта.
func ensureChallengeOpen(ladder *models.Ladder) error {
	if ladder.Status != models.LadderStatusActive {
		return ErrLadderNotActive
	}
	if !ladder.ScoringSystem.IsChallengeEnabled() {
		return ErrScoringNotChallengeable
	}
	return nil
}

func (s *challengeService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.txm.WithinTx(ctx, fn)
}

// emit отправляет событие подписчикам лестницы. Доставка best-effort:
// ошибка логируется и не влияет на исход операции.
func (s *challengeService) emit(ladderID int, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	event := Event{Type: eventType, LadderID: ladderID, Payload: payload}
	if err := s.events.Publish(ladderID, event); err != nil {
		s.logger.Warn("event delivery failed",
			slog.String("event", eventType),
			slog.Int("ladder_id", ladderID),
			slog.Any("error", err),
		)
	}
}

func (s *challengeService) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrLadderNotFound):
		return ErrLadderNotFound
	case errors.Is(err, repositories.ErrChallengeNotFound):
		return ErrChallengeNotFound
	case errors.Is(err, repositories.ErrMemberNotFound):
		return ErrMemberNotFound
	default:
		return err
	}
}

func findActiveMember(members []models.Member, id int) *models.Member {
	for i := range members {
		if members[i].ID == id && members[i].Status == models.MemberStatusActive {
			return &members[i]
		}
	}
	return nil
}

func coalesceStr(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
