package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/domain"
	"pigeon/internal/service"
)

// memContactRepo keeps real pair rows, unlike the stub used in delivery tests.
type memContactRepo struct {
	rows map[string]*domain.Contact
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{rows: make(map[string]*domain.Contact)}
}

func (r *memContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	if c, ok := r.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memContactRepo) GetPair(ctx context.Context, userID, contactID string) (*domain.Contact, error) {
	for _, c := range r.rows {
		if c.UserID == userID && c.ContactID == contactID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memContactRepo) ListForUser(ctx context.Context, userID, status string) ([]*domain.Contact, error) {
	var res []*domain.Contact
	for _, c := range r.rows {
		if c.UserID == userID && (status == "" || c.Status == status) {
			cp := *c
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *memContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	if _, ok := r.rows[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memContactRepo) Delete(ctx context.Context, id string) error {
	delete(r.rows, id)
	return nil
}

func (r *memContactRepo) DeletePair(ctx context.Context, userID, contactID string) error {
	for id, c := range r.rows {
		if c.UserID == userID && c.ContactID == contactID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *memContactRepo) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	c, _ := r.GetPair(ctx, ownerID, targetID)
	return c != nil && c.Status == domain.ContactBlocked, nil
}

type contactFixture struct {
	svc           *service.ContactService
	repo          *memContactRepo
	notifications *fakeNotificationRepo
	alice         *domain.User
	bob           *domain.User
}

func newContactFixture(t *testing.T) *contactFixture {
	t.Helper()

	alice := &domain.User{ID: "alice", Username: "alice"}
	bob := &domain.User{ID: "bob", Username: "bob"}

	repo := newMemContactRepo()
	notifRepo := &fakeNotificationRepo{}
	svc := service.NewContactService(
		repo,
		newFakeUserRepo(alice, bob),
		service.NewNotificationService(notifRepo, nil, 30),
	)
	return &contactFixture{svc: svc, repo: repo, notifications: notifRepo, alice: alice, bob: bob}
}

func TestContactRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesReciprocalPendingPair", func(t *testing.T) {
		f := newContactFixture(t)

		own, err := f.svc.Request(ctx, f.alice, "bob")
		require.NoError(t, err)
		assert.Equal(t, domain.ContactPending, own.Status)
		assert.Equal(t, "alice", own.InitiatedBy)

		mirror, err := f.repo.GetPair(ctx, "bob", "alice")
		require.NoError(t, err)
		require.NotNil(t, mirror)
		assert.Equal(t, domain.ContactPending, mirror.Status)
		assert.Equal(t, "alice", mirror.InitiatedBy)

		require.Len(t, f.notifications.created, 1)
		assert.Equal(t, domain.NotificationContactRequest, f.notifications.created[0].Type)
		assert.Equal(t, "bob", f.notifications.created[0].UserID)
	})

	t.Run("SelfRequestRejected", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Request(ctx, f.alice, "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Request(ctx, f.alice, "bob")
		require.NoError(t, err)

		_, err = f.svc.Request(ctx, f.alice, "bob")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("UnknownTarget", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Request(ctx, f.alice, "ghost")
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})
}

func TestContactAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("FlipsBothRows", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Request(ctx, f.alice, "bob")
		require.NoError(t, err)

		own, err := f.svc.Accept(ctx, f.bob, "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.ContactAccepted, own.Status)

		mirror, _ := f.repo.GetPair(ctx, "alice", "bob")
		require.NotNil(t, mirror)
		assert.Equal(t, domain.ContactAccepted, mirror.Status)
	})

	t.Run("InitiatorCannotAcceptOwnRequest", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Request(ctx, f.alice, "bob")
		require.NoError(t, err)

		_, err = f.svc.Accept(ctx, f.alice, "bob")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("NoPendingRequest", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Accept(ctx, f.bob, "alice")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestContactBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("BlockIsOneDirectional", func(t *testing.T) {
		f := newContactFixture(t)
		_, err := f.svc.Request(ctx, f.alice, "bob")
		require.NoError(t, err)
		_, err = f.svc.Accept(ctx, f.bob, "alice")
		require.NoError(t, err)

		require.NoError(t, f.svc.Block(ctx, f.bob, "alice"))

		blocked, _ := f.repo.IsBlocked(ctx, "bob", "alice")
		assert.True(t, blocked)
		// The blocked side's own row is untouched.
		reverse, _ := f.repo.IsBlocked(ctx, "alice", "bob")
		assert.False(t, reverse)
	})

	t.Run("BlockWithoutPriorContact", func(t *testing.T) {
		f := newContactFixture(t)
		require.NoError(t, f.svc.Block(ctx, f.alice, "bob"))

		blocked, _ := f.repo.IsBlocked(ctx, "alice", "bob")
		assert.True(t, blocked)
	})
}

func TestContactDelete(t *testing.T) {
	ctx := context.Background()
	f := newContactFixture(t)

	_, err := f.svc.Request(ctx, f.alice, "bob")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.alice, "bob"))

	own, _ := f.repo.GetPair(ctx, "alice", "bob")
	mirror, _ := f.repo.GetPair(ctx, "bob", "alice")
	assert.Nil(t, own)
	assert.Nil(t, mirror)
}
