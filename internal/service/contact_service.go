package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pigeon/internal/domain"
)

// ContactService manages contact relationships. A relationship is stored as a
// reciprocal pair of rows, one per direction; blocking flips only the
// blocker's row.
type ContactService struct {
	contacts      domain.ContactRepository
	users         domain.UserRepository
	notifications *NotificationService
}

func NewContactService(contacts domain.ContactRepository, users domain.UserRepository, notifications *NotificationService) *ContactService {
	return &ContactService{contacts: contacts, users: users, notifications: notifications}
}

// Request creates a pending relationship between two users and notifies the
// target.
func (s *ContactService) Request(ctx context.Context, requester *domain.User, targetID string) (*domain.Contact, error) {
	if targetID == requester.ID {
		return nil, domain.ErrInvalidInput
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, domain.ErrIdentityNotFound
	}

	existing, err := s.contacts.GetPair(ctx, requester.ID, targetID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrConflict
	}

	own := &domain.Contact{
		UserID:      requester.ID,
		ContactID:   targetID,
		Status:      domain.ContactPending,
		InitiatedBy: requester.ID,
	}
	if err := s.contacts.Create(ctx, own); err != nil {
		return nil, err
	}
	mirror := &domain.Contact{
		UserID:      targetID,
		ContactID:   requester.ID,
		Status:      domain.ContactPending,
		InitiatedBy: requester.ID,
	}
	if err := s.contacts.Create(ctx, mirror); err != nil {
		return nil, err
	}

	s.notifications.Notify(ctx, &domain.Notification{
		UserID:     targetID,
		Type:       domain.NotificationContactRequest,
		RelatedID:  own.ID,
		FromUserID: requester.ID,
		Content:    fmt.Sprintf("%s vous a envoyé une demande de contact", requester.Username),
	})

	logrus.WithFields(logrus.Fields{
		"requester_id": requester.ID,
		"target_id":    targetID,
	}).Info("Contact request created")
	return own, nil
}

// Accept confirms a pending request. Only the non-initiating side may accept;
// both rows flip to accepted.
func (s *ContactService) Accept(ctx context.Context, user *domain.User, contactID string) (*domain.Contact, error) {
	own, err := s.contacts.GetPair(ctx, user.ID, contactID)
	if err != nil {
		return nil, err
	}
	if own == nil {
		return nil, domain.ErrNotFound
	}
	if own.Status != domain.ContactPending {
		return nil, domain.ErrConflict
	}
	if own.InitiatedBy == user.ID {
		return nil, domain.ErrUnauthorized
	}

	own.Status = domain.ContactAccepted
	if err := s.contacts.Update(ctx, own); err != nil {
		return nil, err
	}

	mirror, err := s.contacts.GetPair(ctx, contactID, user.ID)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		mirror.Status = domain.ContactAccepted
		if err := s.contacts.Update(ctx, mirror); err != nil {
			return nil, err
		}
	}

	s.notifications.Notify(ctx, &domain.Notification{
		UserID:     contactID,
		Type:       domain.NotificationContactAccepted,
		RelatedID:  own.ID,
		FromUserID: user.ID,
		Content:    fmt.Sprintf("%s a accepté votre demande de contact", user.Username),
	})
	return own, nil
}

// Block marks the target as blocked for the caller only. The relationship row
// is created when none exists so a block does not require a prior contact.
func (s *ContactService) Block(ctx context.Context, user *domain.User, targetID string) error {
	if targetID == user.ID {
		return domain.ErrInvalidInput
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.ErrIdentityNotFound
	}

	own, err := s.contacts.GetPair(ctx, user.ID, targetID)
	if err != nil {
		return err
	}
	if own == nil {
		own = &domain.Contact{
			UserID:      user.ID,
			ContactID:   targetID,
			Status:      domain.ContactBlocked,
			InitiatedBy: user.ID,
		}
		return s.contacts.Create(ctx, own)
	}
	own.Status = domain.ContactBlocked
	return s.contacts.Update(ctx, own)
}

// Delete removes the relationship in both directions.
func (s *ContactService) Delete(ctx context.Context, user *domain.User, targetID string) error {
	own, err := s.contacts.GetPair(ctx, user.ID, targetID)
	if err != nil {
		return err
	}
	if own == nil {
		return domain.ErrNotFound
	}
	if err := s.contacts.DeletePair(ctx, user.ID, targetID); err != nil {
		return err
	}
	return s.contacts.DeletePair(ctx, targetID, user.ID)
}

func (s *ContactService) List(ctx context.Context, userID, status string) ([]*domain.Contact, error) {
	contacts, err := s.contacts.ListForUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []*domain.Contact{}
	}
	return contacts, nil
}
