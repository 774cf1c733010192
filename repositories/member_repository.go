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
	ErrMemberNotFound            = errors.New("ladder member not found")
	ErrMemberHandleConflict      = errors.New("member handle conflict within ladder")
	ErrMemberInvalidLadder       = errors.New("invalid ladder reference")
	ErrMemberRequiresTransaction = errors.New("roster replace requires a transaction")
)

const memberColumns = `
	id, ladder_id, user_id, display_name, handle, status, seed, rank,
	rating, wins, losses, draws, streak, metadata, created_at, updated_at`

type MemberRepository interface {
	ListByLadder(ctx context.Context, exec SQLExecutor, ladderID int) ([]models.Member, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Member, error)
	CreateBatch(ctx context.Context, exec SQLExecutor, members []*models.Member) error
	Update(ctx context.Context, exec SQLExecutor, member *models.Member) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	// ReplaceAll удаляет ростер лестницы и вставляет его заново одним
	// прогоном. Обязана вызываться внутри транзакции: при ошибке вставки
	// откат транзакции восстанавливает ростер, лестница никогда не
	// остаётся пустой из-за упавшего пересчёта.
	ReplaceAll(ctx context.Context, tx *sql.Tx, ladderID int, members []models.Member) error
}

type postgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) MemberRepository {
	return &postgresMemberRepository{db: db}
}

func (r *postgresMemberRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

func (r *postgresMemberRepository) scanMember(row interface{ Scan(...interface{}) error }) (*models.Member, error) {
	var m models.Member
	var metadataRaw []byte
	err := row.Scan(
		&m.ID, &m.LadderID, &m.UserID, &m.DisplayName, &m.Handle, &m.Status, &m.Seed, &m.Rank,
		&m.Rating, &m.Wins, &m.Losses, &m.Draws, &m.Streak, &metadataRaw, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode member %d metadata: %w", m.ID, err)
		}
	}
	return &m, nil
}

func (r *postgresMemberRepository) ListByLadder(ctx context.Context, exec SQLExecutor, ladderID int) ([]models.Member, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + memberColumns + ` FROM ladder_members WHERE ladder_id = $1
		ORDER BY rank ASC NULLS LAST, seed ASC NULLS LAST, id ASC`

	rows, err := executor.QueryContext(ctx, query, ladderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		m, scanErr := r.scanMember(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		members = append(members, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *postgresMemberRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Member, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + memberColumns + ` FROM ladder_members WHERE id = $1`
	return r.scanMember(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMemberRepository) CreateBatch(ctx context.Context, exec SQLExecutor, members []*models.Member) error {
	if len(members) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO ladder_members
			(ladder_id, user_id, display_name, handle, status, seed, rank,
			 rating, wins, losses, draws, streak, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	for _, m := range members {
		metadataRaw, err := marshalMetadata(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for member %q: %w", m.DisplayName, err)
		}
		err = executor.QueryRowContext(ctx, query,
			m.LadderID, m.UserID, m.DisplayName, m.Handle, m.Status, m.Seed, m.Rank,
			m.Rating, m.Wins, m.Losses, m.Draws, m.Streak, metadataRaw,
		).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return r.handleMemberError(err)
		}
	}
	return nil
}

func (r *postgresMemberRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Member) error {
	executor := r.getExecutor(exec)
	metadataRaw, err := marshalMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for member %d: %w", m.ID, err)
	}
	query := `
		UPDATE ladder_members SET
			display_name = $1, handle = $2, status = $3, seed = $4, rank = $5,
			rating = $6, wins = $7, losses = $8, draws = $9, streak = $10,
			metadata = $11, updated_at = NOW()
		WHERE id = $12`

	result, err := executor.ExecContext(ctx, query,
		m.DisplayName, m.Handle, m.Status, m.Seed, m.Rank,
		m.Rating, m.Wins, m.Losses, m.Draws, m.Streak,
		metadataRaw, m.ID,
	)
	if err != nil {
		return r.handleMemberError(err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM ladder_members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) ReplaceAll(ctx context.Context, tx *sql.Tx, ladderID int, members []models.Member) error {
	if tx == nil {
		return ErrMemberRequiresTransaction
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ladder_members WHERE ladder_id = $1`, ladderID); err != nil {
		return fmt.Errorf("roster replace: delete failed for ladder %d: %w", ladderID, err)
	}

	// Выжившие участники сохраняют id и created_at, новые получают serial id.
	keepQuery := `
		INSERT INTO ladder_members
			(id, ladder_id, user_id, display_name, handle, status, seed, rank,
			 rating, wins, losses, draws, streak, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())`
	freshQuery := `
		INSERT INTO ladder_members
			(ladder_id, user_id, display_name, handle, status, seed, rank,
			 rating, wins, losses, draws, streak, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	for i := range members {
		m := &members[i]
		metadataRaw, err := marshalMetadata(m.Metadata)
		if err != nil {
			return fmt.Errorf("roster replace: failed to encode metadata for member %q: %w", m.DisplayName, err)
		}
		if m.ID != 0 {
			_, err = tx.ExecContext(ctx, keepQuery,
				m.ID, m.LadderID, m.UserID, m.DisplayName, m.Handle, m.Status, m.Seed, m.Rank,
				m.Rating, m.Wins, m.Losses, m.Draws, m.Streak, metadataRaw, m.CreatedAt,
			)
		} else {
			err = tx.QueryRowContext(ctx, freshQuery,
				m.LadderID, m.UserID, m.DisplayName, m.Handle, m.Status, m.Seed, m.Rank,
				m.Rating, m.Wins, m.Losses, m.Draws, m.Streak, metadataRaw,
			).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		}
		if err != nil {
			// Откат транзакции вернёт удалённый ростер.
			return fmt.Errorf("roster replace: reinsert failed for member %q: %w", m.DisplayName, r.handleMemberError(err))
		}
	}
	return nil
}

func (r *postgresMemberRepository) handleMemberError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "ladder_members_ladder_id_handle_key" {
				return ErrMemberHandleConflict
			}
		case "23503":
			if pqErr.Constraint == "ladder_members_ladder_id_fkey" {
				return ErrMemberInvalidLadder
			}
		}
	}
	return err
}
