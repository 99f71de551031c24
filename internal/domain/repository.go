package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
	ListOnline(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	// SetPresence updates the durable presence mirror: status, the session
	// marker of the live connection (empty when offline) and last connection.
	SetPresence(ctx context.Context, id, status, sessionID string, at time.Time) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	Update(ctx context.Context, m *Message) error
	// ListBetween returns messages exchanged between two users, newest first.
	ListBetween(ctx context.Context, userID, peerID string, offset, limit int) ([]*Message, error)
	CountBetween(ctx context.Context, userID, peerID string) (int, error)
	// MarkAllReadFrom stamps every unread message from senderID to
	// recipientID as read, backfilling ReceivedAt where absent.
	MarkAllReadFrom(ctx context.Context, senderID, recipientID string, at time.Time) error
	// Conversations lists the user's conversation summaries, most recent first.
	Conversations(ctx context.Context, userID string) ([]*ConversationSummary, error)
}

// ContactRepository defines persistence operations for contact rows.
type ContactRepository interface {
	Create(ctx context.Context, c *Contact) error
	GetByID(ctx context.Context, id string) (*Contact, error)
	// GetPair returns userID's row about contactID, or nil.
	GetPair(ctx context.Context, userID, contactID string) (*Contact, error)
	ListForUser(ctx context.Context, userID, status string) ([]*Contact, error)
	Update(ctx context.Context, c *Contact) error
	Delete(ctx context.Context, id string) error
	DeletePair(ctx context.Context, userID, contactID string) error
	// IsBlocked reports whether ownerID has blocked targetID.
	IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error)
}

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*Notification, error)
	CountForUser(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}
