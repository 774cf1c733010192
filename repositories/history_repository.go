package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/ladder-system/models"
)

type HistoryRepository interface {
	// Append записывает матч в журнал и усекает журнал лестницы до
	// models.MatchHistoryCap последних записей.
	Append(ctx context.Context, exec SQLExecutor, record *models.MatchRecord) error
	ListByLadder(ctx context.Context, exec SQLExecutor, ladderID, limit int) ([]models.MatchRecord, error)
}

type postgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) HistoryRepository {
	return &postgresHistoryRepository{db: db}
}

func (r *postgresHistoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresHistoryRepository) Append(ctx context.Context, exec SQLExecutor, rec *models.MatchRecord) error {
	executor := r.getExecutor(exec)

	rankRaw, err := json.Marshal(rec.RankDeltas)
	if err != nil {
		return fmt.Errorf("failed to encode rank deltas: %w", err)
	}
	ratingRaw, err := json.Marshal(rec.RatingDeltas)
	if err != nil {
		return fmt.Errorf("failed to encode rating deltas: %w", err)
	}

	insert := `
		INSERT INTO match_history
			(ladder_id, challenge_id, outcome, resolved_at, resolved_by, note, proof_ref, rank_deltas, rating_deltas)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err = executor.QueryRowContext(ctx, insert,
		rec.LadderID, rec.ChallengeID, rec.Outcome, rec.ResolvedAt, rec.ResolvedBy,
		rec.Note, rec.ProofRef, rankRaw, ratingRaw,
	).Scan(&rec.ID)
	if err != nil {
		return err
	}

	prune := `
		DELETE FROM match_history
		WHERE id IN (
			SELECT id FROM match_history
			WHERE ladder_id = $1
			ORDER BY resolved_at DESC, id DESC
			OFFSET $2
		)`
	if _, err := executor.ExecContext(ctx, prune, rec.LadderID, models.MatchHistoryCap); err != nil {
		return fmt.Errorf("failed to prune match history: %w", err)
	}
	return nil
}

func (r *postgresHistoryRepository) ListByLadder(ctx context.Context, exec SQLExecutor, ladderID, limit int) ([]models.MatchRecord, error) {
	executor := r.getExecutor(exec)
	if limit <= 0 || limit > models.MatchHistoryCap {
		limit = models.MatchHistoryCap
	}
	query := `
		SELECT id, ladder_id, challenge_id, outcome, resolved_at, resolved_by, note, proof_ref, rank_deltas, rating_deltas
		FROM match_history
		WHERE ladder_id = $1
		ORDER BY resolved_at DESC, id DESC
		LIMIT $2`

	rows, err := executor.QueryContext(ctx, query, ladderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.MatchRecord, 0, limit)
	for rows.Next() {
		var rec models.MatchRecord
		var rankRaw, ratingRaw []byte
		err := rows.Scan(
			&rec.ID, &rec.LadderID, &rec.ChallengeID, &rec.Outcome, &rec.ResolvedAt, &rec.ResolvedBy,
			&rec.Note, &rec.ProofRef, &rankRaw, &ratingRaw,
		)
		if err != nil {
			return nil, err
		}
		if len(rankRaw) > 0 {
			if err := json.Unmarshal(rankRaw, &rec.RankDeltas); err != nil {
				return nil, fmt.Errorf("failed to decode rank deltas for record %d: %w", rec.ID, err)
			}
		}
		if len(ratingRaw) > 0 {
			if err := json.Unmarshal(ratingRaw, &rec.RatingDeltas); err != nil {
				return nil, fmt.Errorf("failed to decode rating deltas for record %d: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
