package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/ladder-system/models"
)

var ErrCapsuleNotFound = errors.New("capsule not found")

// CapsuleMemberRepository отвечает на вопрос «кем пользователь является в
// капсуле». Движок лестниц сам не считает права, он только читает ответ.
type CapsuleMemberRepository interface {
	ResolveViewer(ctx context.Context, capsuleID, userID int) (models.Viewer, error)
}

type postgresCapsuleMemberRepository struct {
	db *sql.DB
}

func NewPostgresCapsuleMemberRepository(db *sql.DB) CapsuleMemberRepository {
	return &postgresCapsuleMemberRepository{db: db}
}

func (r *postgresCapsuleMemberRepository) ResolveViewer(ctx context.Context, capsuleID, userID int) (models.Viewer, error) {
	viewer := models.Viewer{UserID: userID, Role: models.RoleNone}

	var ownerID int
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM capsules WHERE id = $1`, capsuleID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return viewer, ErrCapsuleNotFound
		}
		return viewer, err
	}
	if ownerID == userID {
		viewer.Role = models.RoleOwner
		viewer.IsOwner = true
		viewer.IsMember = true
		return viewer, nil
	}

	var role models.CapsuleRole
	err = r.db.QueryRowContext(ctx,
		`SELECT role FROM capsule_members WHERE capsule_id = $1 AND user_id = $2`,
		capsuleID, userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return viewer, nil // не участник — Role остаётся none
		}
		return viewer, err
	}

	viewer.Role = role
	viewer.IsMember = true
	return viewer, nil
}
