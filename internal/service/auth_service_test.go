package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pigeon/internal/domain"
	"pigeon/internal/security"
	"pigeon/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return nil, nil // not used in auth tests
}

func (m *MockUserRepo) ListOnline(ctx context.Context) ([]*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return nil
}

func (m *MockUserRepo) SetPresence(ctx context.Context, id, status, sessionID string, at time.Time) error {
	args := m.Called(ctx, id, status, sessionID, at)
	return args.Error(0)
}

func newAuthService(repo *MockUserRepo) (*service.AuthService, *security.TokenService) {
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(repo, hasher, tokens), tokens
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, tokens := newAuthService(repo)

		repo.On("GetByEmail", mock.Anything, "new@test.io").Return(nil, nil)
		repo.On("GetByUsername", mock.Anything, "newuser").Return(nil, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.Status == domain.StatusOffline
		})).Run(func(args mock.Arguments) {
			// The store assigns the ID.
			args.Get(1).(*domain.User).ID = "user-1"
		}).Return(nil)

		resp, err := svc.Register(context.Background(), service.RegisterRequest{
			Email:    "New@Test.io",
			Username: "newuser",
			Password: "Password1!",
		})
		require.NoError(t, err)
		assert.Equal(t, "newuser", resp.User.Username)
		assert.Equal(t, "new@test.io", resp.User.Email)

		// The issued token carries the user ID as subject.
		sub, err := tokens.Subject(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, sub)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", mock.Anything, "taken@test.io").Return(&domain.User{ID: "u1"}, nil)

		resp, err := svc.Register(context.Background(), service.RegisterRequest{
			Email:    "taken@test.io",
			Username: "other",
			Password: "Password1!",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Nil(t, resp)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", mock.Anything, "new@test.io").Return(nil, nil)
		repo.On("GetByUsername", mock.Anything, "existing").Return(&domain.User{ID: "u1"}, nil)

		resp, err := svc.Register(context.Background(), service.RegisterRequest{
			Email:    "new@test.io",
			Username: "existing",
			Password: "Password1!",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Nil(t, resp)
	})

	t.Run("MissingFields", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newAuthService(repo)

		_, err := svc.Register(context.Background(), service.RegisterRequest{Email: "a@b.c"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLogin(t *testing.T) {
	hasher := security.NewPasswordHasher(4)
	hashed, _ := hasher.Hash("Password1!")
	stored := &domain.User{ID: "user-1", Email: "user@test.io", HashedPassword: hashed}

	t.Run("Success", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", mock.Anything, "user@test.io").Return(stored, nil)

		resp, err := svc.Login(context.Background(), service.LoginRequest{
			Email:    "user@test.io",
			Password: "Password1!",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "user-1", resp.User.ID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", mock.Anything, "user@test.io").Return(stored, nil)

		resp, err := svc.Login(context.Background(), service.LoginRequest{
			Email:    "user@test.io",
			Password: "wrong",
		})
		assert.ErrorIs(t, err, domain.ErrCredentialInvalid)
		assert.Nil(t, resp)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", mock.Anything, "ghost@test.io").Return(nil, nil)

		_, err := svc.Login(context.Background(), service.LoginRequest{
			Email:    "ghost@test.io",
			Password: "whatever",
		})
		assert.ErrorIs(t, err, domain.ErrCredentialInvalid)
	})
}

func TestLogout(t *testing.T) {
	repo := new(MockUserRepo)
	svc, _ := newAuthService(repo)

	repo.On("SetPresence", mock.Anything, "user-1", domain.StatusOffline, "", mock.Anything).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), "user-1"))
	repo.AssertExpectations(t)
}
