package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/ladder-system/models"
)

// Create вытесняет pending-вызов той же направленной пары и срезает
// лишние pending сверх models.PendingChallengeCap, старейшие вперёд.
func TestChallengeCreateSupersedesAndPrunesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPostgresChallengeRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM challenges\s+WHERE ladder_id = \$1 AND challenger_id = \$2 AND opponent_id = \$3 AND status = 'pending'`).
		WithArgs(1, 7, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO challenges").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now().UTC()))
	mock.ExpectExec(`(?s)DELETE FROM challenges\s+WHERE id IN.*ORDER BY created_at DESC, id DESC\s+OFFSET`).
		WithArgs(1, models.PendingChallengeCap).
		WillReturnResult(sqlmock.NewResult(0, 0))

	c := &models.Challenge{
		LadderID:        1,
		ParticipantType: models.ParticipantTypeMember,
		ChallengerID:    7,
		OpponentID:      9,
		Status:          models.ChallengeStatusPending,
		CreatedBy:       3,
	}
	if err := repo.Create(ctx, nil, c); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.ID != 42 {
		t.Errorf("expected assigned id 42, got %d", c.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
