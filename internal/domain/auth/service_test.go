package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pixelmint/pixelmint-api/internal/domain/user"
	"github.com/pixelmint/pixelmint-api/internal/pkg/jwt"
	"github.com/pixelmint/pixelmint-api/internal/pkg/password"
)

type fakeUserRepo struct {
	created *user.User
	byEmail *user.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	if f.byEmail != nil && f.byEmail.Email == u.Email {
		return user.ErrEmailAlreadyExists
	}
	f.created = u
	f.byEmail = u
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if f.byEmail != nil && f.byEmail.ID == id {
		return f.byEmail, nil
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if f.byEmail != nil && f.byEmail.Email == email {
		return f.byEmail, nil
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]*user.User, int, error) {
	return nil, 0, nil
}

func testJWTService() *jwt.Service {
	return jwt.NewService("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestRegister(t *testing.T) {
	repo := &fakeUserRepo{}
	svc := NewService(repo, testJWTService(), nil)

	result, err := svc.Register(context.Background(), &RegisterRequest{
		Email:    "  New.User@Example.COM ",
		Password: "supersecret",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if repo.created == nil {
		t.Fatal("expected user to be created")
	}
	if repo.created.Email != "new.user@example.com" {
		t.Errorf("expected normalized email, got %q", repo.created.Email)
	}
	if repo.created.Role != user.RoleUser {
		t.Errorf("expected role user, got %s", repo.created.Role)
	}
	if repo.created.Credits != 0 {
		t.Errorf("expected zero starting credits, got %d", repo.created.Credits)
	}
	if repo.created.PasswordHash == "supersecret" {
		t.Error("password must not be stored in plaintext")
	}
	if result.Tokens.AccessToken == "" {
		t.Error("expected access token")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &fakeUserRepo{}
	svc := NewService(repo, testJWTService(), nil)

	req := &RegisterRequest{Email: "dup@example.com", Password: "supersecret"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), req); err != ErrEmailAlreadyExists {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	hash, err := password.Hash("supersecret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	repo := &fakeUserRepo{byEmail: &user.User{
		ID:           uuid.New(),
		Email:        "login@example.com",
		PasswordHash: hash,
		Role:         user.RoleUser,
		Credits:      120,
	}}
	svc := NewService(repo, testJWTService(), nil)

	result, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "login@example.com",
		Password: "supersecret",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.User.Credits != 120 {
		t.Errorf("expected credits 120, got %d", result.User.Credits)
	}

	claims, err := testJWTService().ValidateAccessToken(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if claims.UserID != repo.byEmail.ID {
		t.Errorf("token carries wrong user id")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hash, _ := password.Hash("supersecret")
	repo := &fakeUserRepo{byEmail: &user.User{
		ID:           uuid.New(),
		Email:        "login@example.com",
		PasswordHash: hash,
	}}
	svc := NewService(repo, testJWTService(), nil)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "login@example.com",
		Password: "wrong",
	})
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewService(&fakeUserRepo{}, testJWTService(), nil)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshWithoutRedis(t *testing.T) {
	// Refresh tokens require Redis; without it they are always rejected.
	svc := NewService(&fakeUserRepo{}, testJWTService(), nil)

	if _, err := svc.Refresh(context.Background(), "some-token"); err != ErrInvalidRefreshToken {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), ""); err != ErrRefreshTokenRequired {
		t.Fatalf("expected ErrRefreshTokenRequired, got %v", err)
	}
}
