package service

import (
	"context"

	"pigeon/internal/cache"
	"pigeon/internal/domain"
)

// UserService exposes user lookups and presence reads. Presence reads go
// through the cache first and fall back to the durable store.
type UserService struct {
	users    domain.UserRepository
	presence *cache.PresenceCache
	pageSize int
}

func NewUserService(users domain.UserRepository, presence *cache.PresenceCache, pageSize int) *UserService {
	return &UserService{users: users, presence: presence, pageSize: pageSize}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrIdentityNotFound
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, page int) ([]*domain.User, error) {
	if page < 1 {
		page = 1
	}
	return s.users.List(ctx, (page-1)*s.pageSize, s.pageSize)
}

func (s *UserService) ListOnline(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListOnline(ctx)
}

// Presence returns a user's presence, preferring the cache over the store.
func (s *UserService) Presence(ctx context.Context, userID string) (*cache.Presence, error) {
	if s.presence != nil {
		p, err := s.presence.Get(ctx, userID)
		if err == nil && p != nil {
			return p, nil
		}
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrIdentityNotFound
	}
	return &cache.Presence{
		UserID:         u.ID,
		Status:         u.Status,
		LastConnection: u.LastConnection,
	}, nil
}
