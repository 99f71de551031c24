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

// Pusher delivers an event to a user's live connection if one exists.
// Reports whether the event was handed to a connection.
type Pusher interface {
	Push(userID, event string, payload any) bool
}

// DeliveryService implements the message lifecycle: send, delivery and read
// acknowledgements, edit within the allowed window, and tombstone deletion.
type DeliveryService struct {
	messages      domain.MessageRepository
	users         domain.UserRepository
	contacts      domain.ContactRepository
	notifications *NotificationService
	encryptor     *security.Encryptor
	pusher        Pusher
	maxContentLen int
	editWindow    time.Duration
}

func NewDeliveryService(
	messages domain.MessageRepository,
	users domain.UserRepository,
	contacts domain.ContactRepository,
	notifications *NotificationService,
	encryptor *security.Encryptor,
	pusher Pusher,
	maxContentLen int,
	editWindow time.Duration,
) *DeliveryService {
	return &DeliveryService{
		messages:      messages,
		users:         users,
		contacts:      contacts,
		notifications: notifications,
		encryptor:     encryptor,
		pusher:        pusher,
		maxContentLen: maxContentLen,
		editWindow:    editWindow,
	}
}

// Send validates, persists and routes a new message. The message is pushed to
// the recipient's connection when online; otherwise a notification is created.
// Returns the sender-facing view.
func (s *DeliveryService) Send(ctx context.Context, sender *domain.User, p SendPayload) (*MessageView, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" && len(p.AttachmentIDs) == 0 {
		return nil, domain.ErrEmptyContent
	}
	if len([]rune(content)) > s.maxContentLen {
		return nil, domain.ErrContentTooLong
	}

	recipient, err := s.users.GetByID(ctx, p.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, domain.ErrRecipientNotFound
	}

	blocked, err := s.blockedEither(ctx, sender.ID, recipient.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.ErrBlocked
	}

	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	m := &domain.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Content:     encrypted,
		Attachments: p.AttachmentIDs,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	view, err := s.toView(m)
	if err != nil {
		return nil, err
	}

	delivered := s.pusher.Push(recipient.ID, EventNewMessage, view)
	if !delivered {
		s.notifications.Notify(ctx, &domain.Notification{
			UserID:     recipient.ID,
			Type:       domain.NotificationMessage,
			RelatedID:  m.ID,
			FromUserID: sender.ID,
			Content:    fmt.Sprintf("Nouveau message de %s", sender.Username),
		})
	}

	logrus.WithFields(logrus.Fields{
		"message_id":   m.ID,
		"sender_id":    sender.ID,
		"recipient_id": recipient.ID,
		"delivered":    delivered,
	}).Debug("Message sent")
	return view, nil
}

// MarkReceived records a delivery acknowledgement. Only the first
// acknowledgement mutates the message; repeats are no-ops and in particular
// never clear an existing read stamp. The sender is notified on the first ack.
func (s *DeliveryService) MarkReceived(ctx context.Context, acker *domain.User, messageID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.ErrMessageNotFound
	}

	now := time.Now().UTC()
	if !m.MarkReceived(now) {
		return nil
	}
	if err := s.messages.Update(ctx, m); err != nil {
		return err
	}

	s.pusher.Push(m.SenderID, EventMessageReceivedConfirmation, ReceivedReceipt{
		MessageID:  m.ID,
		ReceivedBy: acker.ID,
		ReceivedAt: *m.ReceivedAt,
	})
	return nil
}

// MarkRead records a read acknowledgement from the recipient, backfilling the
// received stamp when the delivery acknowledgement never arrived.
func (s *DeliveryService) MarkRead(ctx context.Context, reader *domain.User, messageID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.ErrMessageNotFound
	}
	if m.RecipientID != reader.ID {
		return domain.ErrUnauthorized
	}

	m.MarkRead(time.Now().UTC())
	if err := s.messages.Update(ctx, m); err != nil {
		return err
	}

	s.pusher.Push(m.SenderID, EventMessageReadConfirmation, ReadReceipt{
		MessageID: m.ID,
		ReadBy:    reader.ID,
		ReadAt:    *m.ReadAt,
	})
	return nil
}

// Edit replaces a message's content. Only the sender may edit, only within the
// edit window, and never after deletion. The recipient gets the updated view.
func (s *DeliveryService) Edit(ctx context.Context, editor *domain.User, p EditPayload) (*MessageView, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if len([]rune(content)) > s.maxContentLen {
		return nil, domain.ErrContentTooLong
	}

	m, err := s.messages.GetByID(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Deleted {
		return nil, domain.ErrMessageNotFound
	}
	if m.SenderID != editor.ID {
		return nil, domain.ErrUnauthorized
	}
	if time.Since(m.CreatedAt) > s.editWindow {
		return nil, domain.ErrEditWindowExpired
	}

	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	m.Content = encrypted
	m.Edited = true
	if err := s.messages.Update(ctx, m); err != nil {
		return nil, err
	}

	view, err := s.toView(m)
	if err != nil {
		return nil, err
	}
	s.pusher.Push(m.RecipientID, EventMessageUpdated, MessageEnvelope{Message: view})
	return view, nil
}

// Delete tombstones a message. The stored content is replaced so the original
// text is unrecoverable; attachments are detached.
func (s *DeliveryService) Delete(ctx context.Context, requester *domain.User, messageID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.ErrMessageNotFound
	}
	if m.SenderID != requester.ID {
		return domain.ErrUnauthorized
	}

	m.Content = domain.DeletedContent
	m.Attachments = nil
	m.Deleted = true
	if err := s.messages.Update(ctx, m); err != nil {
		return err
	}

	s.pusher.Push(m.RecipientID, EventMessageDeleted, DeletedNotice{MessageID: m.ID})
	return nil
}

// Typing relays a typing indicator to the recipient. Nothing is persisted and
// an offline recipient simply misses the event.
func (s *DeliveryService) Typing(sender *domain.User, p TypingPayload) {
	s.pusher.Push(p.RecipientID, EventUserTyping, TypingEvent{
		UserID:   sender.ID,
		Username: sender.Username,
		IsTyping: p.IsTyping,
	})
}

// ListWith returns the paginated conversation with a peer, newest first, and
// marks every incoming message from that peer as read.
func (s *DeliveryService) ListWith(ctx context.Context, user *domain.User, peerID string, page, pageSize int) ([]*MessageView, int, error) {
	peer, err := s.users.GetByID(ctx, peerID)
	if err != nil {
		return nil, 0, err
	}
	if peer == nil {
		return nil, 0, domain.ErrIdentityNotFound
	}

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	msgs, err := s.messages.ListBetween(ctx, user.ID, peerID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.messages.CountBetween(ctx, user.ID, peerID)
	if err != nil {
		return nil, 0, err
	}

	if err := s.messages.MarkAllReadFrom(ctx, peerID, user.ID, time.Now().UTC()); err != nil {
		logrus.WithError(err).Warn("Failed to mark conversation read")
	}

	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		v, err := s.toView(m)
		if err != nil {
			logrus.WithError(err).WithField("message_id", m.ID).Error("Failed to decode message")
			continue
		}
		views = append(views, v)
	}
	return views, total, nil
}

// Conversation summary exposed over REST.
type ConversationView struct {
	Peer        *domain.User `json:"peer"`
	LastMessage *MessageView `json:"lastMessage"`
	UnreadCount int          `json:"unreadCount"`
}

// Conversations lists the user's conversations, most recent first.
func (s *DeliveryService) Conversations(ctx context.Context, user *domain.User) ([]*ConversationView, error) {
	summaries, err := s.messages.Conversations(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	res := make([]*ConversationView, 0, len(summaries))
	for _, sum := range summaries {
		var last *MessageView
		if sum.LastMessage != nil {
			last, err = s.toView(sum.LastMessage)
			if err != nil {
				logrus.WithError(err).Error("Failed to decode last message")
				continue
			}
		}
		res = append(res, &ConversationView{
			Peer:        sum.Peer,
			LastMessage: last,
			UnreadCount: sum.UnreadCount,
		})
	}
	return res, nil
}

// blockedEither reports whether either side has blocked the other.
func (s *DeliveryService) blockedEither(ctx context.Context, a, b string) (bool, error) {
	blocked, err := s.contacts.IsBlocked(ctx, a, b)
	if err != nil {
		return false, err
	}
	if blocked {
		return true, nil
	}
	return s.contacts.IsBlocked(ctx, b, a)
}

// toView decrypts a message into its wire representation. Deleted messages
// carry the tombstone, never the stored ciphertext.
func (s *DeliveryService) toView(m *domain.Message) (*MessageView, error) {
	content := domain.DeletedContent
	if !m.Deleted {
		var err error
		content, err = s.encryptor.Decrypt(m.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypt content: %w", err)
		}
	}
	return &MessageView{
		ID:          m.ID,
		Sender:      m.SenderID,
		Recipient:   m.RecipientID,
		Content:     content,
		Attachments: m.Attachments,
		Status:      m.Status(),
		Edited:      m.Edited,
		Deleted:     m.Deleted,
		ReceivedAt:  m.ReceivedAt,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
