package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/ladder-system/models"
	"github.com/lib/pq"
)

var (
	ErrLadderNotFound        = errors.New("ladder not found")
	ErrLadderSlugConflict    = errors.New("ladder slug conflict for this capsule")
	ErrLadderVersionConflict = errors.New("ladder was modified concurrently")
	ErrLadderInvalidCapsule  = errors.New("invalid capsule reference")
	ErrLadderInvalidCreator  = errors.New("invalid creator reference")
)

const ladderColumns = `
	id, capsule_id, name, slug, summary, status, visibility, scoring_system,
	initial_rating, k_factor, placement_matches, decay_per_day, bonus_for_streak,
	creator_id, published_at, published_by, logo_key, created_at, updated_at`

type LadderRepository interface {
	Create(ctx context.Context, ladder *models.Ladder) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Ladder, error)
	GetBySlug(ctx context.Context, capsuleID int, slug string) (*models.Ladder, error)
	ListByCapsule(ctx context.Context, capsuleID int) ([]models.Ladder, error)
	Update(ctx context.Context, ladder *models.Ladder) error
	// UpdateCAS обновляет запись лестницы только если updated_at не изменился
	// с момента чтения (compare-and-swap). При проигранной гонке возвращает
	// ErrLadderVersionConflict; новый updated_at записывается в ladder.
	UpdateCAS(ctx context.Context, exec SQLExecutor, ladder *models.Ladder, expectedUpdatedAt time.Time) error
	UpdateLogoKey(ctx context.Context, ladderID int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresLadderRepository struct {
	db *sql.DB
}

func NewPostgresLadderRepository(db *sql.DB) LadderRepository {
	return &postgresLadderRepository{db: db}
}

func (r *postgresLadderRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLadderRepository) Create(ctx context.Context, l *models.Ladder) error {
	query := `
		INSERT INTO ladders (
			capsule_id, name, slug, summary, status, visibility, scoring_system,
			initial_rating, k_factor, placement_matches, decay_per_day, bonus_for_streak,
			creator_id, published_at, published_by, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		l.CapsuleID, l.Name, l.Slug, l.Summary, l.Status, l.Visibility, l.ScoringSystem,
		l.Scoring.InitialRating, l.Scoring.KFactor, l.Scoring.PlacementMatches,
		l.Scoring.DecayPerDay, l.Scoring.BonusForStreak,
		l.CreatorID, l.PublishedAt, l.PublishedBy, l.LogoKey,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)

	return r.handleLadderError(err)
}

func (r *postgresLadderRepository) scanLadder(row interface{ Scan(...interface{}) error }) (*models.Ladder, error) {
	l := &models.Ladder{}
	err := row.Scan(
		&l.ID, &l.CapsuleID, &l.Name, &l.Slug, &l.Summary, &l.Status, &l.Visibility, &l.ScoringSystem,
		&l.Scoring.InitialRating, &l.Scoring.KFactor, &l.Scoring.PlacementMatches,
		&l.Scoring.DecayPerDay, &l.Scoring.BonusForStreak,
		&l.CreatorID, &l.PublishedAt, &l.PublishedBy, &l.LogoKey, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLadderNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *postgresLadderRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Ladder, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + ladderColumns + ` FROM ladders WHERE id = $1`
	return r.scanLadder(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresLadderRepository) GetBySlug(ctx context.Context, capsuleID int, slug string) (*models.Ladder, error) {
	query := `SELECT` + ladderColumns + ` FROM ladders WHERE capsule_id = $1 AND slug = $2`
	return r.scanLadder(r.db.QueryRowContext(ctx, query, capsuleID, slug))
}

func (r *postgresLadderRepository) ListByCapsule(ctx context.Context, capsuleID int) ([]models.Ladder, error) {
	query := `SELECT` + ladderColumns + ` FROM ladders WHERE capsule_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, capsuleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ladders := make([]models.Ladder, 0)
	for rows.Next() {
		l, scanErr := r.scanLadder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		ladders = append(ladders, *l)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ladders, nil
}

func (r *postgresLadderRepository) Update(ctx context.Context, l *models.Ladder) error {
	query := `
		UPDATE ladders SET
			name = $1,
			slug = $2,
			summary = $3,
			visibility = $4,
			scoring_system = $5,
			initial_rating = $6,
			k_factor = $7,
			placement_matches = $8,
			decay_per_day = $9,
			bonus_for_streak = $10,
			updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		l.Name, l.Slug, l.Summary, l.Visibility, l.ScoringSystem,
		l.Scoring.InitialRating, l.Scoring.KFactor, l.Scoring.PlacementMatches,
		l.Scoring.DecayPerDay, l.Scoring.BonusForStreak,
		l.ID,
	).Scan(&l.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLadderNotFound
		}
		return r.handleLadderError(err)
	}
	return nil
}

func (r *postgresLadderRepository) UpdateCAS(ctx context.Context, exec SQLExecutor, l *models.Ladder, expectedUpdatedAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE ladders SET
			status = $1,
			published_at = $2,
			published_by = $3,
			updated_at = NOW()
		WHERE id = $4 AND updated_at = $5
		RETURNING updated_at`

	err := executor.QueryRowContext(ctx, query,
		l.Status, l.PublishedAt, l.PublishedBy, l.ID, expectedUpdatedAt,
	).Scan(&l.UpdatedAt)

	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return r.handleLadderError(err)
	}

	// Ноль строк: либо запись исчезла, либо updated_at уже другой.
	var exists bool
	checkErr := executor.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ladders WHERE id = $1)`, l.ID).Scan(&exists)
	if checkErr != nil {
		return fmt.Errorf("failed to check ladder existence after CAS miss: %w", checkErr)
	}
	if !exists {
		return ErrLadderNotFound
	}
	return ErrLadderVersionConflict
}

func (r *postgresLadderRepository) UpdateLogoKey(ctx context.Context, ladderID int, logoKey *string) error {
	query := `UPDATE ladders SET logo_key = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, ladderID)
	if err != nil {
		return fmt.Errorf("failed to update ladder logo key: %w", err)
	}
	return checkAffectedRows(result, ErrLadderNotFound)
}

func (r *postgresLadderRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM ladders WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleLadderError(err)
	}
	return checkAffectedRows(result, ErrLadderNotFound)
}

func (r *postgresLadderRepository) handleLadderError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "ladders_capsule_id_slug_key" {
				return ErrLadderSlugConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "ladders_capsule_id_fkey":
				return ErrLadderInvalidCapsule
			case "ladders_creator_id_fkey":
				return ErrLadderInvalidCreator
			}
		}
	}
	return err
}
