package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/repositories"
	"github.com/Dosada05/ladder-system/storage"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

type CreateLadderInput struct {
	CapsuleID     int                     `json:"capsule_id"`
	Name          string                  `json:"name"`
	Summary       *string                 `json:"summary,omitempty"`
	Visibility    models.LadderVisibility `json:"visibility"`
	ScoringSystem models.ScoringSystem    `json:"scoring_system"`
	Scoring       models.ScoringConfig    `json:"scoring"`
}

type UpdateLadderInput struct {
	Name          *string                  `json:"name,omitempty"`
	Summary       *string                  `json:"summary,omitempty"`
	Visibility    *models.LadderVisibility `json:"visibility,omitempty"`
	ScoringSystem *models.ScoringSystem    `json:"scoring_system,omitempty"`
	Scoring       *models.ScoringConfig    `json:"scoring,omitempty"`
}

type LadderService interface {
	Create(ctx context.Context, actorID int, input CreateLadderInput) (*models.Ladder, error)
	Get(ctx context.Context, viewerID, ladderID int) (*models.Ladder, error)
	GetBySlug(ctx context.Context, viewerID, capsuleID int, ladderSlug string) (*models.Ladder, error)
	ListByCapsule(ctx context.Context, viewerID, capsuleID int) ([]models.Ladder, error)
	Update(ctx context.Context, actorID, ladderID int, input UpdateLadderInput) (*models.Ladder, error)
	Publish(ctx context.Context, actorID, ladderID int) (*models.Ladder, error)
	Archive(ctx context.Context, actorID, ladderID int) (*models.Ladder, error)
	UploadLogo(ctx context.Context, actorID, ladderID int, contentType string, file io.Reader) (*models.Ladder, error)
	Delete(ctx context.Context, actorID, ladderID int) error
}

type ladderService struct {
	ladderRepo    repositories.LadderRepository
	memberRepo    repositories.MemberRepository
	challengeRepo repositories.ChallengeRepository
	historyRepo   repositories.HistoryRepository
	oracle        PermissionOracle
	uploader      storage.FileUploader
	logger        *slog.Logger
}

func NewLadderService(
	ladderRepo repositories.LadderRepository,
	memberRepo repositories.MemberRepository,
	challengeRepo repositories.ChallengeRepository,
	historyRepo repositories.HistoryRepository,
	oracle PermissionOracle,
	uploader storage.FileUploader,
	logger *slog.Logger,
) LadderService {
	return &ladderService{
		ladderRepo:    ladderRepo,
		memberRepo:    memberRepo,
		challengeRepo: challengeRepo,
		historyRepo:   historyRepo,
		oracle:        oracle,
		uploader:      uploader,
		logger:        logger,
	}
}

func (s *ladderService) Create(ctx context.Context, actorID int, input CreateLadderInput) (*models.Ladder, error) {
	name := input.Name
	if name == "" {
		return nil, ErrLadderNameRequired
	}
	viewer, err := s.oracle.ResolveViewer(ctx, input.CapsuleID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrCapsuleNotFound) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to resolve viewer: %w", err)
	}
	if !viewer.IsManager() {
		return nil, ErrManagerOnly
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = models.VisibilityCapsule
	}
	scoringSystem := input.ScoringSystem
	if scoringSystem == "" {
		scoringSystem = models.ScoringElo
	}

	ladder := &models.Ladder{
		CapsuleID:     input.CapsuleID,
		Name:          name,
		Slug:          slug.Make(name),
		Summary:       input.Summary,
		Status:        models.LadderStatusDraft,
		Visibility:    visibility,
		ScoringSystem: scoringSystem,
		Scoring:       input.Scoring.Normalized(),
		CreatorID:     actorID,
	}
	if err := s.ladderRepo.Create(ctx, ladder); err != nil {
		return nil, s.mapRepoError(err)
	}
	return ladder, nil
}

func (s *ladderService) Get(ctx context.Context, viewerID, ladderID int) (*models.Ladder, error) {
	ladder, err := s.loadVisibleLadder(ctx, viewerID, ladderID)
	if err != nil {
		return nil, err
	}

	// Ростер, ожидающие вызовы и журнал загружаются параллельно.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		members, err := s.memberRepo.ListByLadder(gctx, nil, ladderID)
		if err != nil {
			return fmt.Errorf("failed to load roster: %w", err)
		}
		ladder.Members = members
		return nil
	})
	g.Go(func() error {
		pending, err := s.challengeRepo.ListPending(gctx, nil, ladderID)
		if err != nil {
			return fmt.Errorf("failed to load pending challenges: %w", err)
		}
		ladder.Pending = pending
		return nil
	})
	g.Go(func() error {
		history, err := s.historyRepo.ListByLadder(gctx, nil, ladderID, models.MatchHistoryCap)
		if err != nil {
			return fmt.Errorf("failed to load match history: %w", err)
		}
		ladder.History = history
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	populateLadderLogoURLFunc(ladder, s.uploader)
	return ladder, nil
}

func (s *ladderService) GetBySlug(ctx context.Context, viewerID, capsuleID int, ladderSlug string) (*models.Ladder, error) {
	ladder, err := s.ladderRepo.GetBySlug(ctx, capsuleID, ladderSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrLadderNotFound) {
			return nil, ErrLadderNotFound
		}
		return nil, fmt.Errorf("failed to load ladder by slug: %w", err)
	}
	return s.Get(ctx, viewerID, ladder.ID)
}

func (s *ladderService) ListByCapsule(ctx context.Context, viewerID, capsuleID int) ([]models.Ladder, error) {
	viewer, err := s.oracle.ResolveViewer(ctx, capsuleID, viewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrCapsuleNotFound) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to resolve viewer: %w", err)
	}

	ladders, err := s.ladderRepo.ListByCapsule(ctx, capsuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ladders for capsule %d: %w", capsuleID, err)
	}

	visible := make([]models.Ladder, 0, len(ladders))
	for i := range ladders {
		if !CanViewerAccessLadder(&ladders[i], viewer, false) {
			continue
		}
		populateLadderLogoURLFunc(&ladders[i], s.uploader)
		visible = append(visible, ladders[i])
	}
	return visible, nil
}

func (s *ladderService) Update(ctx context.Context, actorID, ladderID int, input UpdateLadderInput) (*models.Ladder, error) {
	ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrLadderNameRequired
		}
		ladder.Name = *input.Name
		ladder.Slug = slug.Make(*input.Name)
	}
	if input.Summary != nil {
		ladder.Summary = input.Summary
	}
	if input.Visibility != nil {
		ladder.Visibility = *input.Visibility
	}
	if input.ScoringSystem != nil {
		ladder.ScoringSystem = *input.ScoringSystem
	}
	if input.Scoring != nil {
		ladder.Scoring = input.Scoring.Normalized()
	}

	if err := s.ladderRepo.Update(ctx, ladder); err != nil {
		return nil, s.mapRepoError(err)
	}
	return ladder, nil
}

func (s *ladderService) Publish(ctx context.Context, actorID, ladderID int) (*models.Ladder, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}
		if ladder.Status != models.LadderStatusDraft {
			return nil, ErrLadderNotDraft
		}

		// active требует publishedAt: оба поля ставятся одной записью.
		now := time.Now().UTC()
		ladder.Status = models.LadderStatusActive
		ladder.PublishedAt = &now
		ladder.PublishedBy = &actorID

		err = s.ladderRepo.UpdateCAS(ctx, nil, ladder, ladder.UpdatedAt)
		if errors.Is(err, repositories.ErrLadderVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.mapRepoError(err)
		}
		return ladder, nil
	}
	return nil, ErrLadderVersionConflict
}

func (s *ladderService) Archive(ctx context.Context, actorID, ladderID int) (*models.Ladder, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
		if err != nil {
			return nil, err
		}
		if ladder.Status == models.LadderStatusArchived {
			return nil, ErrLadderAlreadyArchived
		}

		// Архив останавливает новые вызовы; журнал остаётся читаемым.
		ladder.Status = models.LadderStatusArchived

		err = s.ladderRepo.UpdateCAS(ctx, nil, ladder, ladder.UpdatedAt)
		if errors.Is(err, repositories.ErrLadderVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.mapRepoError(err)
		}
		return ladder, nil
	}
	return nil, ErrLadderVersionConflict
}

func (s *ladderService) UploadLogo(ctx context.Context, actorID, ladderID int, contentType string, file io.Reader) (*models.Ladder, error) {
	ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
	if err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, errors.New("file storage is not configured")
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	oldKey := ladder.LogoKey
	key := fmt.Sprintf("ladders/%d/logo_%d%s", ladder.ID, time.Now().Unix(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload ladder logo: %w", err)
	}

	if err := s.ladderRepo.UpdateLogoKey(ctx, ladder.ID, &result.Key); err != nil {
		// Запись не удалась: подчищаем только что загруженный объект.
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.Warn("failed to delete orphaned logo object",
				slog.String("key", result.Key), slog.Any("error", delErr))
		}
		return nil, s.mapRepoError(err)
	}

	if oldKey != nil && *oldKey != "" && *oldKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous logo object",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	ladder.LogoKey = &result.Key
	populateLadderLogoURLFunc(ladder, s.uploader)
	return ladder, nil
}

func (s *ladderService) Delete(ctx context.Context, actorID, ladderID int) error {
	ladder, err := s.loadLadderAsManager(ctx, actorID, ladderID)
	if err != nil {
		return err
	}
	if err := s.ladderRepo.Delete(ctx, ladderID); err != nil {
		return s.mapRepoError(err)
	}
	if ladder.LogoKey != nil && *ladder.LogoKey != "" && s.uploader != nil {
		if delErr := s.uploader.Delete(ctx, *ladder.LogoKey); delErr != nil {
			s.logger.Warn("failed to delete logo of removed ladder",
				slog.String("key", *ladder.LogoKey), slog.Any("error", delErr))
		}
	}
	return nil
}

func (s *ladderService) loadVisibleLadder(ctx context.Context, viewerID, ladderID int) (*models.Ladder, error) {
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
	return ladder, nil
}

func (s *ladderService) loadLadderAsManager(ctx context.Context, actorID, ladderID int) (*models.Ladder, error) {
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
	if !viewer.IsManager() && ladder.CreatorID != actorID {
		return nil, ErrManagerOnly
	}
	return ladder, nil
}

func (s *ladderService) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrLadderNotFound):
		return ErrLadderNotFound
	case errors.Is(err, repositories.ErrLadderSlugConflict):
		return ErrLadderSlugConflict
	case errors.Is(err, repositories.ErrLadderInvalidCapsule):
		return ErrCapsuleNotFound
	default:
		return err
	}
}
