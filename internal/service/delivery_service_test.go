package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/domain"
	"pigeon/internal/security"
	"pigeon/internal/service"
)

// In-memory fakes. The delivery state machine is stateful, so hand-written
// fakes are easier to reason about than mock expectations.

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) ListOnline(ctx context.Context) ([]*domain.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) SetPresence(ctx context.Context, id, status, sessionID string, at time.Time) error {
	if u, ok := r.users[id]; ok {
		u.Status = status
		u.SessionID = sessionID
		u.LastConnection = &at
	}
	return nil
}

type fakeMessageRepo struct {
	messages map[string]*domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*domain.Message)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, m *domain.Message) error {
	if _, ok := r.messages[m.ID]; !ok {
		return domain.ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) ListBetween(ctx context.Context, userID, peerID string, offset, limit int) ([]*domain.Message, error) {
	var res []*domain.Message
	for _, m := range r.messages {
		if (m.SenderID == userID && m.RecipientID == peerID) || (m.SenderID == peerID && m.RecipientID == userID) {
			cp := *m
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *fakeMessageRepo) CountBetween(ctx context.Context, userID, peerID string) (int, error) {
	msgs, _ := r.ListBetween(ctx, userID, peerID, 0, 0)
	return len(msgs), nil
}

func (r *fakeMessageRepo) MarkAllReadFrom(ctx context.Context, senderID, recipientID string, at time.Time) error {
	for _, m := range r.messages {
		if m.SenderID == senderID && m.RecipientID == recipientID && m.ReadAt == nil {
			m.MarkRead(at)
		}
	}
	return nil
}

func (r *fakeMessageRepo) Conversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	return nil, nil
}

// backdate rewrites a stored message's creation time, for edit window tests.
func (r *fakeMessageRepo) backdate(id string, d time.Duration) {
	if m, ok := r.messages[id]; ok {
		m.CreatedAt = m.CreatedAt.Add(-d)
	}
}

type fakeContactRepo struct {
	blocked map[[2]string]bool
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{blocked: make(map[[2]string]bool)}
}

func (r *fakeContactRepo) block(owner, target string) {
	r.blocked[[2]string{owner, target}] = true
}

func (r *fakeContactRepo) Create(ctx context.Context, c *domain.Contact) error { return nil }
func (r *fakeContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) GetPair(ctx context.Context, userID, contactID string) (*domain.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) ListForUser(ctx context.Context, userID, status string) ([]*domain.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) Update(ctx context.Context, c *domain.Contact) error    { return nil }
func (r *fakeContactRepo) Delete(ctx context.Context, id string) error            { return nil }
func (r *fakeContactRepo) DeletePair(ctx context.Context, userID, cid string) error { return nil }
func (r *fakeContactRepo) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	return r.blocked[[2]string{ownerID, targetID}], nil
}

type fakeNotificationRepo struct {
	created []*domain.Notification
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	r.created = append(r.created, n)
	return nil
}

func (r *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	for _, n := range r.created {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (r *fakeNotificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*domain.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) CountForUser(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	return 0, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id string) error { return nil }
func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	return nil
}

// fakePusher records pushed events and simulates online/offline users.
type pushedEvent struct {
	UserID  string
	Event   string
	Payload any
}

type fakePusher struct {
	online map[string]bool
	pushes []pushedEvent
}

func newFakePusher(onlineUsers ...string) *fakePusher {
	p := &fakePusher{online: make(map[string]bool)}
	for _, id := range onlineUsers {
		p.online[id] = true
	}
	return p
}

func (p *fakePusher) Push(userID, event string, payload any) bool {
	if !p.online[userID] {
		return false
	}
	p.pushes = append(p.pushes, pushedEvent{UserID: userID, Event: event, Payload: payload})
	return true
}

func (p *fakePusher) eventsFor(userID string) []string {
	var res []string
	for _, e := range p.pushes {
		if e.UserID == userID {
			res = append(res, e.Event)
		}
	}
	return res
}

type deliveryFixture struct {
	svc           *service.DeliveryService
	messages      *fakeMessageRepo
	contacts      *fakeContactRepo
	notifications *fakeNotificationRepo
	pusher        *fakePusher
	alice         *domain.User
	bob           *domain.User
}

func newDeliveryFixture(t *testing.T, onlineUsers ...string) *deliveryFixture {
	t.Helper()

	alice := &domain.User{ID: "alice", Username: "alice", Email: "alice@test.io"}
	bob := &domain.User{ID: "bob", Username: "bob", Email: "bob@test.io"}

	encryptor, err := security.NewEncryptor([]byte("test-key"))
	require.NoError(t, err)

	messages := newFakeMessageRepo()
	contacts := newFakeContactRepo()
	notifRepo := &fakeNotificationRepo{}
	pusher := newFakePusher(onlineUsers...)
	notifications := service.NewNotificationService(notifRepo, nil, 30)

	svc := service.NewDeliveryService(
		messages,
		newFakeUserRepo(alice, bob),
		contacts,
		notifications,
		encryptor,
		pusher,
		5000,
		15*time.Minute,
	)

	return &deliveryFixture{
		svc:           svc,
		messages:      messages,
		contacts:      contacts,
		notifications: notifRepo,
		pusher:        pusher,
		alice:         alice,
		bob:           bob,
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversToOnlineRecipient", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")

		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)
		assert.Equal(t, "salut", view.Content)
		assert.Equal(t, domain.MessageSent, view.Status)

		assert.Equal(t, []string{service.EventNewMessage}, f.pusher.eventsFor("bob"))
		assert.Empty(t, f.notifications.created)

		// Stored content is encrypted, never the plaintext.
		stored, err := f.messages.GetByID(ctx, view.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "salut", stored.Content)
	})

	t.Run("OfflineRecipientGetsNotification", func(t *testing.T) {
		f := newDeliveryFixture(t)

		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		assert.Empty(t, f.pusher.pushes)
		require.Len(t, f.notifications.created, 1)
		assert.Equal(t, "bob", f.notifications.created[0].UserID)
		assert.Equal(t, domain.NotificationMessage, f.notifications.created[0].Type)
		assert.Equal(t, view.ID, f.notifications.created[0].RelatedID)

		// The message is persisted regardless of delivery.
		stored, err := f.messages.GetByID(ctx, view.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored)
	})

	t.Run("UnknownRecipient", func(t *testing.T) {
		f := newDeliveryFixture(t)

		_, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "ghost", Content: "salut"})
		assert.ErrorIs(t, err, domain.ErrRecipientNotFound)
		assert.Empty(t, f.messages.messages)
	})

	t.Run("BlockedEitherDirection", func(t *testing.T) {
		for _, dir := range []struct {
			name           string
			blocker, other string
		}{
			{"RecipientBlockedSender", "bob", "alice"},
			{"SenderBlockedRecipient", "alice", "bob"},
		} {
			t.Run(dir.name, func(t *testing.T) {
				f := newDeliveryFixture(t, "bob")
				f.contacts.block(dir.blocker, dir.other)

				_, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
				assert.ErrorIs(t, err, domain.ErrBlocked)
				assert.Empty(t, f.messages.messages)
				assert.Empty(t, f.pusher.pushes)
			})
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		f := newDeliveryFixture(t)

		_, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "   "})
		assert.ErrorIs(t, err, domain.ErrEmptyContent)
	})

	t.Run("AttachmentOnlyAllowed", func(t *testing.T) {
		f := newDeliveryFixture(t)

		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{
			RecipientID:   "bob",
			AttachmentIDs: []string{"file-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"file-1"}, view.Attachments)
	})

	t.Run("ContentTooLong", func(t *testing.T) {
		f := newDeliveryFixture(t)

		_, err := f.svc.Send(ctx, f.alice, service.SendPayload{
			RecipientID: "bob",
			Content:     strings.Repeat("a", 5001),
		})
		assert.ErrorIs(t, err, domain.ErrContentTooLong)
	})
}

func TestMarkReceived(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstAckStampsAndNotifiesSender", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkReceived(ctx, f.bob, view.ID))

		stored, _ := f.messages.GetByID(ctx, view.ID)
		require.NotNil(t, stored.ReceivedAt)
		assert.Nil(t, stored.ReadAt)
		assert.Equal(t, domain.MessageReceived, stored.Status())
		assert.Equal(t, []string{service.EventMessageReceivedConfirmation}, f.pusher.eventsFor("alice"))
	})

	t.Run("RepeatAckIsIdempotent", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkReceived(ctx, f.bob, view.ID))
		first, _ := f.messages.GetByID(ctx, view.ID)

		require.NoError(t, f.svc.MarkReceived(ctx, f.bob, view.ID))
		second, _ := f.messages.GetByID(ctx, view.ID)

		assert.Equal(t, first.ReceivedAt, second.ReceivedAt)
		// Only one receipt reaches the sender.
		assert.Equal(t, []string{service.EventMessageReceivedConfirmation}, f.pusher.eventsFor("alice"))
	})

	t.Run("LateAckNeverDowngradesRead", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkRead(ctx, f.bob, view.ID))
		require.NoError(t, f.svc.MarkReceived(ctx, f.bob, view.ID))

		stored, _ := f.messages.GetByID(ctx, view.ID)
		require.NotNil(t, stored.ReadAt)
		assert.Equal(t, domain.MessageRead, stored.Status())
	})

	t.Run("UnknownMessage", func(t *testing.T) {
		f := newDeliveryFixture(t)
		err := f.svc.MarkReceived(ctx, f.bob, "missing")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("BackfillsReceivedStamp", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkRead(ctx, f.bob, view.ID))

		stored, _ := f.messages.GetByID(ctx, view.ID)
		require.NotNil(t, stored.ReadAt)
		require.NotNil(t, stored.ReceivedAt)
		assert.Equal(t, *stored.ReadAt, *stored.ReceivedAt)
		assert.Equal(t, []string{service.EventMessageReadConfirmation}, f.pusher.eventsFor("alice"))
	})

	t.Run("KeepsEarlierReceivedStamp", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkReceived(ctx, f.bob, view.ID))
		received, _ := f.messages.GetByID(ctx, view.ID)

		require.NoError(t, f.svc.MarkRead(ctx, f.bob, view.ID))
		read, _ := f.messages.GetByID(ctx, view.ID)

		assert.Equal(t, received.ReceivedAt, read.ReceivedAt)
		assert.True(t, !read.ReadAt.Before(*read.ReceivedAt))
	})

	t.Run("RereadRefreshesReadStamp", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkRead(ctx, f.bob, view.ID))
		first, _ := f.messages.GetByID(ctx, view.ID)

		require.NoError(t, f.svc.MarkRead(ctx, f.bob, view.ID))
		second, _ := f.messages.GetByID(ctx, view.ID)

		// Re-reading succeeds and moves the read stamp forward.
		require.NotNil(t, second.ReadAt)
		assert.True(t, !second.ReadAt.Before(*first.ReadAt))
		// The received backfill stays at the first read.
		assert.Equal(t, first.ReceivedAt, second.ReceivedAt)
		// The sender hears about each read.
		assert.Equal(t,
			[]string{service.EventMessageReadConfirmation, service.EventMessageReadConfirmation},
			f.pusher.eventsFor("alice"))
	})

	t.Run("OnlyRecipientMayRead", func(t *testing.T) {
		f := newDeliveryFixture(t, "alice", "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		err = f.svc.MarkRead(ctx, f.alice, view.ID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		stored, _ := f.messages.GetByID(ctx, view.ID)
		assert.Nil(t, stored.ReadAt)
	})
}

func TestEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("SenderEditsWithinWindow", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		updated, err := f.svc.Edit(ctx, f.alice, service.EditPayload{MessageID: view.ID, Content: "re-salut"})
		require.NoError(t, err)
		assert.Equal(t, "re-salut", updated.Content)
		assert.True(t, updated.Edited)

		assert.Equal(t, []string{service.EventNewMessage, service.EventMessageUpdated}, f.pusher.eventsFor("bob"))
	})

	t.Run("OnlySenderMayEdit", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		_, err = f.svc.Edit(ctx, f.bob, service.EditPayload{MessageID: view.ID, Content: "piraté"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		stored, err := f.svc.Edit(ctx, f.alice, service.EditPayload{MessageID: view.ID, Content: "salut"})
		require.NoError(t, err)
		assert.Equal(t, "salut", stored.Content)
	})

	t.Run("WindowExpired", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		f.messages.backdate(view.ID, 16*time.Minute)

		_, err = f.svc.Edit(ctx, f.alice, service.EditPayload{MessageID: view.ID, Content: "trop tard"})
		assert.ErrorIs(t, err, domain.ErrEditWindowExpired)
	})

	t.Run("DeletedMessageNotEditable", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, f.alice, view.ID))

		_, err = f.svc.Edit(ctx, f.alice, service.EditPayload{MessageID: view.ID, Content: "ressuscité"})
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("TombstonesContentAndAttachments", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{
			RecipientID:   "bob",
			Content:       "secret",
			AttachmentIDs: []string{"file-1"},
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, f.alice, view.ID))

		stored, _ := f.messages.GetByID(ctx, view.ID)
		assert.True(t, stored.Deleted)
		assert.Equal(t, domain.DeletedContent, stored.Content)
		assert.Empty(t, stored.Attachments)
		assert.Contains(t, f.pusher.eventsFor("bob"), service.EventMessageDeleted)
	})

	t.Run("OnlySenderMayDelete", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")
		view, err := f.svc.Send(ctx, f.alice, service.SendPayload{RecipientID: "bob", Content: "salut"})
		require.NoError(t, err)

		err = f.svc.Delete(ctx, f.bob, view.ID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestTyping(t *testing.T) {
	t.Run("RelayedToOnlineRecipient", func(t *testing.T) {
		f := newDeliveryFixture(t, "bob")

		f.svc.Typing(f.alice, service.TypingPayload{RecipientID: "bob", IsTyping: true})

		require.Len(t, f.pusher.pushes, 1)
		assert.Equal(t, service.EventUserTyping, f.pusher.pushes[0].Event)
		ev, ok := f.pusher.pushes[0].Payload.(service.TypingEvent)
		require.True(t, ok)
		assert.Equal(t, "alice", ev.UserID)
		assert.True(t, ev.IsTyping)
	})

	t.Run("OfflineRecipientIsSilent", func(t *testing.T) {
		f := newDeliveryFixture(t)

		f.svc.Typing(f.alice, service.TypingPayload{RecipientID: "bob", IsTyping: true})
		assert.Empty(t, f.pusher.pushes)
	})
}
