package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pigeon/internal/domain"
	"pigeon/internal/security"
)

// AuthService handles registration, login and logout.
type AuthService struct {
	users  domain.UserRepository
	hasher *security.PasswordHasher
	tokens *security.TokenService
}

func NewAuthService(users domain.UserRepository, hasher *security.PasswordHasher, tokens *security.TokenService) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token and the authenticated user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register creates a new user. Email and username must both be unique.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrConflict
	}
	existing, err = s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrConflict
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:          email,
		Username:       username,
		HashedPassword: hashed,
		Status:         domain.StatusOffline,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User registered")
	return &AuthResponse{Token: token, User: user}, nil
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrCredentialInvalid
	}
	if err := s.hasher.Verify(req.Password, user.HashedPassword); err != nil {
		return nil, domain.ErrCredentialInvalid
	}

	// Login marks the user online; the session marker is left untouched and
	// belongs to the live connection.
	now := time.Now().UTC()
	user.Status = domain.StatusOnline
	user.LastConnection = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	logrus.WithField("user_id", user.ID).Info("User logged in")
	return &AuthResponse{Token: token, User: user}, nil
}

// Logout marks the user offline. The token itself stays valid until expiry;
// the live connection, if any, is closed by the caller.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.users.SetPresence(ctx, userID, domain.StatusOffline, "", time.Now().UTC())
}
