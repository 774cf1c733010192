package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/repositories"
)

// MemberInput — входные данные для добавления или изменения участника.
// Числовые поля кламплятся к документированным диапазонам, а не отвергаются.
type MemberInput struct {
	UserID      *int              `json:"user_id,omitempty"`
	DisplayName string            `json:"display_name"`
	Handle      *string           `json:"handle,omitempty"`
	Status      *models.MemberStatus `json:"status,omitempty"`
	Seed        *int              `json:"seed,omitempty"`
	Rank        *int              `json:"rank,omitempty"`
	Rating      *int              `json:"rating,omitempty"`
	Wins        *int              `json:"wins,omitempty"`
	Losses      *int              `json:"losses,omitempty"`
	Draws       *int              `json:"draws,omitempty"`
	Streak      *int              `json:"streak,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type RosterService interface {
	AddMembers(ctx context.Context, actorID, ladderID int, inputs []MemberInput) ([]models.Member, error)
	UpdateMember(ctx context.Context, actorID, ladderID, memberID int, input MemberInput) (*models.Member, error)
	RemoveMember(ctx context.Context, actorID, ladderID, memberID int) error
	ReplaceRoster(ctx context.Context, actorID, ladderID int, inputs []MemberInput) ([]models.Member, error)
}

type rosterService struct {
	txm        repositories.TxManager
	ladderRepo repositories.LadderRepository
	memberRepo repositories.MemberRepository
	oracle     PermissionOracle
	logger     *slog.Logger
}

func NewRosterService(
	txm repositories.TxManager,
	ladderRepo repositories.LadderRepository,
	memberRepo repositories.MemberRepository,
	oracle PermissionOracle,
	logger *slog.Logger,
) RosterService {
	return &rosterService{
		txm:        txm,
		ladderRepo: ladderRepo,
		memberRepo: memberRepo,
		oracle:     oracle,
		logger:     logger,
	}
}

func (s *rosterService) AddMembers(ctx context.Context, actorID, ladderID int, inputs []MemberInput) ([]models.Member, error) {
	if len(inputs) == 0 {
		return nil, ErrRosterEmpty
	}
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}

		batch := make([]*models.Member, 0, len(inputs))
		for i := range inputs {
			m, err := s.memberFromInput(ladder, inputs[i])
			if err != nil {
				return nil, err
			}
			batch = append(batch, m)
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if err := s.memberRepo.CreateBatch(ctx, tx, batch); err != nil {
				return err
			}
			if err := s.renumberRoster(ctx, tx, ladderID); err != nil {
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

		out := make([]models.Member, 0, len(batch))
		for _, m := range batch {
			out = append(out, *m)
		}
		return out, nil
	}
	return nil, ErrLadderVersionConflict
}

func (s *rosterService) UpdateMember(ctx context.Context, actorID, ladderID, memberID int, input MemberInput) (*models.Member, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}

		member, err := s.memberRepo.GetByID(ctx, nil, memberID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return nil, ErrMemberNotFound
			}
			return nil, fmt.Errorf("failed to load member %d: %w", memberID, err)
		}
		if member.LadderID != ladderID {
			return nil, ErrMemberNotFound
		}

		if err := applyMemberInput(member, input); err != nil {
			return nil, err
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if err := s.memberRepo.Update(ctx, tx, member); err != nil {
				return err
			}
			if err := s.renumberRoster(ctx, tx, ladderID); err != nil {
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
		return member, nil
	}
	return nil, ErrLadderVersionConflict
}

func (s *rosterService) RemoveMember(ctx context.Context, actorID, ladderID, memberID int) error {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
		if err != nil {
			return err
		}

		member, err := s.memberRepo.GetByID(ctx, nil, memberID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("failed to load member %d: %w", memberID, err)
		}
		if member.LadderID != ladderID {
			return ErrMemberNotFound
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if err := s.memberRepo.Delete(ctx, tx, memberID); err != nil {
				return err
			}
			if err := s.renumberRoster(ctx, tx, ladderID); err != nil {
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

func (s *rosterService) ReplaceRoster(ctx context.Context, actorID, ladderID int, inputs []MemberInput) ([]models.Member, error) {
	if len(inputs) == 0 {
		return nil, ErrRosterEmpty
	}
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}

		members := make([]models.Member, 0, len(inputs))
		for i := range inputs {
			m, err := s.memberFromInput(ladder, inputs[i])
			if err != nil {
				return nil, err
			}
			members = append(members, *m)
		}
		normalizeRanks(members)

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if err := s.memberRepo.ReplaceAll(ctx, tx, ladderID, members); err != nil {
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
		return members, nil
	}
	return nil, ErrLadderVersionConflict
}

// renumberRoster перечитывает ростер внутри транзакции и выравнивает ранги
// в непрерывную перестановку 1..N.
func (s *rosterService) renumberRoster(ctx context.Context, tx *sql.Tx, ladderID int) error {
	members, err := s.memberRepo.ListByLadder(ctx, tx, ladderID)
	if err != nil {
		return fmt.Errorf("failed to reload roster for renumbering: %w", err)
	}
	for _, i := range normalizeRanks(members) {
		if err := s.memberRepo.Update(ctx, tx, &members[i]); err != nil {
			return fmt.Errorf("failed to persist rank for member %d: %w", members[i].ID, err)
		}
	}
	return nil
}

func (s *rosterService) loadLadderAsManager(ctx context.Context, actorID, ladderID int) (*models.Ladder, error) {
	ladder, err := s.ladderRepo.GetByID(ctx, nil, ladderID)
	if err != nil {
		if errors.Is(err, repositories.ErrLadderNotFound) {
			return nil, ErrLadderNotFound
		}
		return nil, fmt.Errorf("failed to load ladder %d: %w", ladderID, err)
	}
	viewer, err := s.oracle.ResolveViewer(ctx, ladder.CapsuleID, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve viewer: %w", err)
	}
	if !viewer.IsManager() {
		return nil, ErrManagerOnly
	}
	return ladder, nil
}

func (s *rosterService) memberFromInput(ladder *models.Ladder, input MemberInput) (*models.Member, error) {
	name, err := validateDisplayName(input.DisplayName)
	if err != nil {
		return nil, err
	}

	m := &models.Member{
		LadderID:    ladder.ID,
		UserID:      input.UserID,
		DisplayName: name,
		Handle:      input.Handle,
		Status:      models.MemberStatusActive,
		Rating:      ladder.Scoring.Normalized().InitialRating,
		Metadata:    input.Metadata,
	}
	if input.Status != nil {
		m.Status = *input.Status
	}
	if err := applyMemberInput(m, MemberInput{
		DisplayName: name,
		Seed:        input.Seed,
		Rank:        input.Rank,
		Rating:      input.Rating,
		Wins:        input.Wins,
		Losses:      input.Losses,
		Draws:       input.Draws,
		Streak:      input.Streak,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// applyMemberInput накладывает заданные поля на участника с клампами.
func applyMemberInput(m *models.Member, input MemberInput) error {
	if input.DisplayName != "" {
		name, err := validateDisplayName(input.DisplayName)
		if err != nil {
			return err
		}
		m.DisplayName = name
	}
	if input.Handle != nil {
		m.Handle = input.Handle
	}
	if input.Status != nil {
		m.Status = *input.Status
	}
	if input.UserID != nil {
		m.UserID = input.UserID
	}
	if input.Metadata != nil {
		m.Metadata = input.Metadata
	}
	if input.Seed != nil {
		m.Seed = clampIntPtr(input.Seed, models.SeedMin, models.SeedMax)
	}
	if input.Rank != nil {
		m.Rank = clampIntPtr(input.Rank, models.RankMin, models.RankMax)
	}
	if input.Rating != nil {
		m.Rating = clampInt(*input.Rating, models.RatingMin, models.RatingMax)
	}
	if input.Wins != nil {
		m.Wins = clampInt(*input.Wins, models.CounterMin, models.CounterMax)
	}
	if input.Losses != nil {
		m.Losses = clampInt(*input.Losses, models.CounterMin, models.CounterMax)
	}
	if input.Draws != nil {
		m.Draws = clampInt(*input.Draws, models.CounterMin, models.CounterMax)
	}
	if input.Streak != nil {
		m.Streak = clampInt(*input.Streak, models.StreakMin, models.StreakMax)
	}
	return nil
}

func (s *rosterService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.txm.WithinTx(ctx, fn)
}

func (s *rosterService) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrLadderNotFound):
		return ErrLadderNotFound
	case errors.Is(err, repositories.ErrMemberNotFound):
		return ErrMemberNotFound
	case errors.Is(err, repositories.ErrMemberHandleConflict):
		return ErrMemberHandleConflict
	default:
		return err
	}
}
