package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/repositories"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return repositories.ErrUserEmailConflict
	}
	user.ID = r.nextID
	r.nextID++
	stored := *user
	r.byEmail[user.Email] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func TestAuthService(t *testing.T) {
	ctx := context.Background()

	t.Run("register and login roundtrip", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := NewAuthService(repo)

		user, err := svc.Register(ctx, RegisterInput{
			DisplayName: "Alice",
			Email:       "alice@example.com",
			Password:    "correct horse battery",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if user.PasswordHash != "" {
			t.Error("expected password hash to be stripped from the response")
		}

		logged, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "correct horse battery"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if logged.ID != user.ID {
			t.Errorf("expected user %d, got %d", user.ID, logged.ID)
		}

		if _, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, ErrAuthInvalidCredentials) {
			t.Errorf("wrong password: expected ErrAuthInvalidCredentials, got %v", err)
		}
	})

	t.Run("short password is rejected", func(t *testing.T) {
		svc := NewAuthService(newFakeUserRepo())

		if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "short"}); !errors.Is(err, ErrPasswordTooShort) {
			t.Fatalf("expected ErrPasswordTooShort, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newFakeUserRepo()
		repo.byEmail["taken@example.com"] = &models.User{ID: 7, Email: "taken@example.com"}
		svc := NewAuthService(repo)

		if _, err := svc.Register(ctx, RegisterInput{Email: "taken@example.com", Password: strings.Repeat("x", 12)}); !errors.Is(err, ErrAuthEmailTaken) {
			t.Fatalf("expected ErrAuthEmailTaken, got %v", err)
		}
	})

	t.Run("unknown email maps to invalid credentials", func(t *testing.T) {
		svc := NewAuthService(newFakeUserRepo())

		if _, err := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever"}); !errors.Is(err, ErrAuthInvalidCredentials) {
			t.Fatalf("expected ErrAuthInvalidCredentials, got %v", err)
		}
	})
}
