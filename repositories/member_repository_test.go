package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/ladder-system/models"
)

func TestReplaceAllRequiresTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPostgresMemberRepository(db)
	if err := repo.ReplaceAll(context.Background(), nil, 1, nil); !errors.Is(err, ErrMemberRequiresTransaction) {
		t.Fatalf("expected ErrMemberRequiresTransaction, got %v", err)
	}
}

// Падение повторной вставки должно всплыть наружу, чтобы откат транзакции
// восстановил удалённый ростер: лестница никогда не остаётся пустой.
func TestReplaceAllRollsBackOnReinsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPostgresMemberRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ladder_members").WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO ladder_members").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}

	members := []models.Member{
		{ID: 5, LadderID: 1, DisplayName: "Alice", Status: models.MemberStatusActive, Rating: 1200},
	}
	if err := repo.ReplaceAll(ctx, tx, 1, members); err == nil {
		t.Fatal("expected reinsert failure to surface")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReplaceAllKeepsIDsAndAssignsFreshOnes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPostgresMemberRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ladder_members").WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Выживший участник: явный id, created_at сохраняется.
	mock.ExpectExec("INSERT INTO ladder_members").
		WillReturnResult(sqlmock.NewResult(5, 1))
	// Новый участник: serial id из RETURNING.
	mock.ExpectQuery("INSERT INTO ladder_members").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(6, now, now))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}

	members := []models.Member{
		{ID: 5, LadderID: 1, DisplayName: "Alice", Status: models.MemberStatusActive, Rating: 1224, CreatedAt: now},
		{LadderID: 1, DisplayName: "Bob", Status: models.MemberStatusActive, Rating: 1176},
	}
	if err := repo.ReplaceAll(ctx, tx, 1, members); err != nil {
		t.Fatalf("ReplaceAll returned error: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if members[1].ID != 6 {
		t.Errorf("expected fresh member to get id 6, got %d", members[1].ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
