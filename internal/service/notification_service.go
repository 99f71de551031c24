package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"pigeon/internal/domain"
)

// Publisher forwards created notifications to an external queue.
type Publisher interface {
	PublishNotification(n *domain.Notification) error
}

// NotificationService persists notifications and publishes them for external
// consumers. Publishing is best effort; a queue failure never fails the
// operation that produced the notification.
type NotificationService struct {
	notifications domain.NotificationRepository
	publisher     Publisher
	pageSize      int
}

func NewNotificationService(notifications domain.NotificationRepository, publisher Publisher, pageSize int) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		publisher:     publisher,
		pageSize:      pageSize,
	}
}

// Notify creates a notification and publishes it to the queue.
func (s *NotificationService) Notify(ctx context.Context, n *domain.Notification) {
	if err := s.notifications.Create(ctx, n); err != nil {
		logrus.WithError(err).WithField("user_id", n.UserID).Error("Failed to create notification")
		return
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotification(n); err != nil {
		logrus.WithError(err).WithField("notification_id", n.ID).Warn("Failed to publish notification")
	}
}

// NotificationPage is a page of notifications plus the unread counter.
type NotificationPage struct {
	Notifications []*domain.Notification `json:"notifications"`
	Total         int                    `json:"total"`
	Unread        int                    `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * s.pageSize

	items, err := s.notifications.ListForUser(ctx, userID, unreadOnly, offset, s.pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.notifications.CountForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.CountForUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	return &NotificationPage{Notifications: items, Total: total, Unread: unread}, nil
}

// MarkRead marks one notification read. Only the owner may mark it.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	n, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return domain.ErrNotFound
	}
	if n.UserID != userID {
		return domain.ErrUnauthorized
	}
	return s.notifications.MarkRead(ctx, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllRead(ctx, userID)
}
