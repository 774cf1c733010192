package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/ladder-system/models"
	"github.com/lib/pq"
)

var (
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrChallengeInvalidLadder = errors.New("challenge references unknown ladder")
)

const challengeColumns = `
	id, ladder_id, participant_type, challenger_id, opponent_id, note, proof_ref,
	status, result, created_at, created_by`

type ChallengeRepository interface {
	// Create inserts a pending challenge. An older pending challenge for the
	// same directed pair (challenger -> opponent) is superseded first, and
	// the oldest pending rows are pruned so the ladder never holds more than
	// models.PendingChallengeCap of them.
	Create(ctx context.Context, exec SQLExecutor, challenge *models.Challenge) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error)
	ListPending(ctx context.Context, exec SQLExecutor, ladderID int) ([]models.Challenge, error)
	UpdateResolved(ctx context.Context, exec SQLExecutor, id int, result *models.ChallengeResult) error
	UpdateProofRef(ctx context.Context, exec SQLExecutor, id int, proofRef string) error
	UpdateVoid(ctx context.Context, exec SQLExecutor, id int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresChallengeRepository struct {
	db *sql.DB
}

func NewPostgresChallengeRepository(db *sql.DB) ChallengeRepository {
	return &postgresChallengeRepository{db: db}
}

func (r *postgresChallengeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresChallengeRepository) scanChallenge(row interface{ Scan(...interface{}) error }) (*models.Challenge, error) {
	var c models.Challenge
	var resultRaw []byte
	err := row.Scan(
		&c.ID, &c.LadderID, &c.ParticipantType, &c.ChallengerID, &c.OpponentID, &c.Note, &c.ProofRef,
		&c.Status, &resultRaw, &c.CreatedAt, &c.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	if len(resultRaw) > 0 {
		var res models.ChallengeResult
		if err := json.Unmarshal(resultRaw, &res); err != nil {
			return nil, fmt.Errorf("failed to decode challenge %d result: %w", c.ID, err)
		}
		c.Result = &res
	}
	return &c, nil
}

func (r *postgresChallengeRepository) Create(ctx context.Context, exec SQLExecutor, c *models.Challenge) error {
	executor := r.getExecutor(exec)

	// Новый вызов той же направленной пары вытесняет старый pending.
	supersede := `
		DELETE FROM challenges
		WHERE ladder_id = $1 AND challenger_id = $2 AND opponent_id = $3 AND status = 'pending'`
	if _, err := executor.ExecContext(ctx, supersede, c.LadderID, c.ChallengerID, c.OpponentID); err != nil {
		return fmt.Errorf("failed to supersede pending challenge: %w", err)
	}

	insert := `
		INSERT INTO challenges
			(ladder_id, participant_type, challenger_id, opponent_id, note, proof_ref, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	err := executor.QueryRowContext(ctx, insert,
		c.LadderID, c.ParticipantType, c.ChallengerID, c.OpponentID, c.Note, c.ProofRef, c.Status, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return r.handleChallengeError(err)
	}

	// Кап на pending: лишние вызовы выбывают старейшими вперёд.
	prune := `
		DELETE FROM challenges
		WHERE id IN (
			SELECT id FROM challenges
			WHERE ladder_id = $1 AND status = 'pending'
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)`
	if _, err := executor.ExecContext(ctx, prune, c.LadderID, models.PendingChallengeCap); err != nil {
		return fmt.Errorf("failed to prune pending challenges: %w", err)
	}
	return nil
}

func (r *postgresChallengeRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + challengeColumns + ` FROM challenges WHERE id = $1`
	return r.scanChallenge(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresChallengeRepository) ListPending(ctx context.Context, exec SQLExecutor, ladderID int) ([]models.Challenge, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + challengeColumns + ` FROM challenges
		WHERE ladder_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC`

	rows, err := executor.QueryContext(ctx, query, ladderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	challenges := make([]models.Challenge, 0)
	for rows.Next() {
		c, scanErr := r.scanChallenge(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		challenges = append(challenges, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *postgresChallengeRepository) UpdateResolved(ctx context.Context, exec SQLExecutor, id int, result *models.ChallengeResult) error {
	executor := r.getExecutor(exec)
	resultRaw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode challenge %d result: %w", id, err)
	}
	query := `UPDATE challenges SET status = 'resolved', result = $1 WHERE id = $2`
	res, err := executor.ExecContext(ctx, query, resultRaw, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrChallengeNotFound)
}

func (r *postgresChallengeRepository) UpdateProofRef(ctx context.Context, exec SQLExecutor, id int, proofRef string) error {
	executor := r.getExecutor(exec)
	res, err := executor.ExecContext(ctx, `UPDATE challenges SET proof_ref = $1 WHERE id = $2`, proofRef, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrChallengeNotFound)
}

func (r *postgresChallengeRepository) UpdateVoid(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	res, err := executor.ExecContext(ctx, `UPDATE challenges SET status = 'void' WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrChallengeNotFound)
}

func (r *postgresChallengeRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	res, err := executor.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrChallengeNotFound)
}

func (r *postgresChallengeRepository) handleChallengeError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" && pqErr.Constraint == "challenges_ladder_id_fkey" {
			return ErrChallengeInvalidLadder
		}
	}
	return err
}
